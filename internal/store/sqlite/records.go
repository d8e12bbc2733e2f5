package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/giantswarm/sharekeeper/internal/api"
)

// timeLayout has a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) GetShareInstance(ctx context.Context, instanceID string) (*api.ShareInstance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, share_id, share_server_id, status, access_rules_status, created_at, updated_at
		FROM share_instances
		WHERE id = ?
	`, instanceID)

	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.NewShareInstanceNotFoundError(instanceID)
	}
	if err != nil {
		return nil, fmt.Errorf("get share instance: %w", err)
	}
	return &inst, nil
}

func (s *Store) ListShareInstances(ctx context.Context) ([]api.ShareInstance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, share_id, share_server_id, status, access_rules_status, created_at, updated_at
		FROM share_instances
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query share instances: %w", err)
	}
	defer rows.Close()

	instances := []api.ShareInstance{}
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan share instance: %w", err)
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate share instances: %w", err)
	}
	return instances, nil
}

func scanInstance(row rowScanner) (api.ShareInstance, error) {
	var (
		inst               api.ShareInstance
		status, rulesState string
		created, updated   string
	)
	if err := row.Scan(&inst.ID, &inst.ShareID, &inst.ShareServerID, &status, &rulesState, &created, &updated); err != nil {
		return api.ShareInstance{}, err
	}
	inst.Status = api.InstanceStatus(status)
	inst.AccessRulesStatus = api.AccessRulesStatus(rulesState)

	var err error
	if inst.CreatedAt, err = parseTime(created); err != nil {
		return api.ShareInstance{}, err
	}
	if inst.UpdatedAt, err = parseTime(updated); err != nil {
		return api.ShareInstance{}, err
	}
	return inst, nil
}

func (s *Store) CreateShareInstance(ctx context.Context, instance api.ShareInstance) error {
	if instance.ID == "" {
		return api.NewInvalidError("share instance id is required")
	}
	now := time.Now()
	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = now
	}
	if instance.Status == "" {
		instance.Status = api.StatusAvailable
	}
	if instance.AccessRulesStatus == "" {
		instance.AccessRulesStatus = api.AccessRulesActive
	}

	_, err := s.exec(ctx, `
		INSERT INTO share_instances
		(id, share_id, share_server_id, status, access_rules_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		instance.ID,
		instance.ShareID,
		instance.ShareServerID,
		string(instance.Status),
		string(instance.AccessRulesStatus),
		formatTime(instance.CreatedAt),
		formatTime(now),
	)
	if isConstraint(err, sqlite3.ErrConstraintPrimaryKey) || isConstraint(err, sqlite3.ErrConstraintUnique) {
		return fmt.Errorf("share instance %s already exists", instance.ID)
	}
	if err != nil {
		return fmt.Errorf("create share instance: %w", err)
	}
	return nil
}

func (s *Store) SetShareInstanceStatus(ctx context.Context, instanceID string, status api.InstanceStatus) error {
	return s.updateInstance(ctx, instanceID, "status", string(status))
}

func (s *Store) SetAccessRulesStatus(ctx context.Context, instanceID string, status api.AccessRulesStatus) error {
	return s.updateInstance(ctx, instanceID, "access_rules_status", string(status))
}

// updateInstance sets a single status column. column is always a literal
// from this package.
func (s *Store) updateInstance(ctx context.Context, instanceID, column, value string) error {
	res, err := s.exec(ctx,
		fmt.Sprintf(`UPDATE share_instances SET %s = ?, updated_at = ? WHERE id = ?`, column),
		value, formatTime(time.Now()), instanceID,
	)
	if err != nil {
		return fmt.Errorf("update share instance %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update share instance %s: %w", column, err)
	}
	if n == 0 {
		return api.NewShareInstanceNotFoundError(instanceID)
	}
	return nil
}

func (s *Store) ListAccessRules(ctx context.Context, instanceID string) ([]api.AccessRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, instance_id, access_to, access_level, access_key, created_at
		FROM access_rules
		WHERE instance_id = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("query access rules: %w", err)
	}
	defer rows.Close()

	var rules []api.AccessRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access rules: %w", err)
	}
	return rules, nil
}

func (s *Store) GetAccessRule(ctx context.Context, ruleID string) (*api.AccessRule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, instance_id, access_to, access_level, access_key, created_at
		FROM access_rules
		WHERE id = ?
	`, ruleID)

	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.NewAccessRuleNotFoundError(ruleID)
	}
	if err != nil {
		return nil, fmt.Errorf("get access rule: %w", err)
	}
	return &rule, nil
}

func scanRule(row rowScanner) (api.AccessRule, error) {
	var (
		rule    api.AccessRule
		level   string
		created string
	)
	if err := row.Scan(&rule.ID, &rule.InstanceID, &rule.AccessTo, &level, &rule.AccessKey, &created); err != nil {
		return api.AccessRule{}, err
	}
	rule.AccessLevel = api.AccessLevel(level)

	t, err := parseTime(created)
	if err != nil {
		return api.AccessRule{}, err
	}
	rule.CreatedAt = t
	return rule, nil
}

func (s *Store) CreateAccessRule(ctx context.Context, rule api.AccessRule) error {
	if rule.ID == "" {
		return api.NewInvalidError("access rule id is required")
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}

	_, err := s.exec(ctx, `
		INSERT INTO access_rules
		(id, instance_id, access_to, access_level, access_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rule.ID,
		rule.InstanceID,
		rule.AccessTo,
		string(rule.AccessLevel),
		rule.AccessKey,
		formatTime(rule.CreatedAt),
	)
	switch {
	case isConstraint(err, sqlite3.ErrConstraintForeignKey):
		return api.NewShareInstanceNotFoundError(rule.InstanceID)
	case isConstraint(err, sqlite3.ErrConstraintPrimaryKey), isConstraint(err, sqlite3.ErrConstraintUnique):
		return fmt.Errorf("access rule %s already exists", rule.ID)
	case err != nil:
		return fmt.Errorf("create access rule: %w", err)
	}
	return nil
}

// RemoveAccessRules deletes the rules in a single transaction.
func (s *Store) RemoveAccessRules(ctx context.Context, instanceID string, rules []api.AccessRule) error {
	if len(rules) == 0 {
		return nil
	}

	return withBusyRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin remove access rules: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `DELETE FROM access_rules WHERE id = ? AND instance_id = ?`)
		if err != nil {
			return fmt.Errorf("prepare remove access rules: %w", err)
		}
		defer stmt.Close()

		for _, r := range rules {
			if _, err := stmt.ExecContext(ctx, r.ID, instanceID); err != nil {
				return fmt.Errorf("remove access rule %s: %w", r.ID, err)
			}
		}

		return tx.Commit()
	})
}

func (s *Store) SetAccessKey(ctx context.Context, ruleID, accessKey string) error {
	res, err := s.exec(ctx, `UPDATE access_rules SET access_key = ? WHERE id = ?`, accessKey, ruleID)
	if err != nil {
		return fmt.Errorf("set access key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set access key: %w", err)
	}
	if n == 0 {
		return api.NewAccessRuleNotFoundError(ruleID)
	}
	return nil
}

func (s *Store) GetShareServer(ctx context.Context, serverID string) (*api.ShareServer, error) {
	var (
		srv     api.ShareServer
		details string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, host, details FROM share_servers WHERE id = ?`, serverID).
		Scan(&srv.ID, &srv.Host, &details)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.NewShareServerNotFoundError(serverID)
	}
	if err != nil {
		return nil, fmt.Errorf("get share server: %w", err)
	}
	if err := json.Unmarshal([]byte(details), &srv.Details); err != nil {
		return nil, fmt.Errorf("decode share server details: %w", err)
	}
	return &srv, nil
}

func (s *Store) CreateShareServer(ctx context.Context, server api.ShareServer) error {
	if server.ID == "" {
		return api.NewInvalidError("share server id is required")
	}
	details := server.Details
	if details == nil {
		details = map[string]string{}
	}
	encoded, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode share server details: %w", err)
	}

	_, err = s.exec(ctx, `INSERT INTO share_servers (id, host, details) VALUES (?, ?, ?)`,
		server.ID, server.Host, string(encoded))
	if isConstraint(err, sqlite3.ErrConstraintPrimaryKey) || isConstraint(err, sqlite3.ErrConstraintUnique) {
		return fmt.Errorf("share server %s already exists", server.ID)
	}
	if err != nil {
		return fmt.Errorf("create share server: %w", err)
	}
	return nil
}
