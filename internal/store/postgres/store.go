// Package postgres implements api.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/giantswarm/sharekeeper/internal/api"
	"github.com/giantswarm/sharekeeper/pkg/logging"
)

//go:embed schema.sql
var schemaSQL string

const subsystem = "PostgresStore"

// PostgreSQL error codes the store maps to api errors.
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
)

// pgQuerier is the subset of *pgxpool.Pool the store uses. Tests substitute
// a stub.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is an api.Store backed by PostgreSQL.
type Store struct {
	db    pgQuerier
	close func()
	now   func() time.Time
}

var _ api.Store = (*Store)(nil)

// Open connects to the database at dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := newStore(pool)
	s.close = pool.Close

	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logging.Debug(subsystem, "Connected to %s", pool.Config().ConnConfig.Host)
	return s, nil
}

func newStore(db pgQuerier) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate creates the tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func (s *Store) GetShareInstance(ctx context.Context, instanceID string) (*api.ShareInstance, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, share_id, share_server_id, status, access_rules_status, created_at, updated_at
		FROM share_instances
		WHERE id = $1
	`, instanceID)

	inst, err := scanInstance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, api.NewShareInstanceNotFoundError(instanceID)
	}
	if err != nil {
		return nil, fmt.Errorf("get share instance: %w", err)
	}
	return &inst, nil
}

func (s *Store) ListShareInstances(ctx context.Context) ([]api.ShareInstance, error) {
	rows, err := s.db.Query(ctx, `
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

func scanInstance(row pgx.Row) (api.ShareInstance, error) {
	var (
		inst               api.ShareInstance
		status, rulesState string
	)
	if err := row.Scan(&inst.ID, &inst.ShareID, &inst.ShareServerID, &status, &rulesState, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
		return api.ShareInstance{}, err
	}
	inst.Status = api.InstanceStatus(status)
	inst.AccessRulesStatus = api.AccessRulesStatus(rulesState)
	return inst, nil
}

func (s *Store) CreateShareInstance(ctx context.Context, instance api.ShareInstance) error {
	if instance.ID == "" {
		return api.NewInvalidError("share instance id is required")
	}
	now := s.now().UTC()
	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = now
	}
	if instance.Status == "" {
		instance.Status = api.StatusAvailable
	}
	if instance.AccessRulesStatus == "" {
		instance.AccessRulesStatus = api.AccessRulesActive
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO share_instances
		(id, share_id, share_server_id, status, access_rules_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		instance.ID,
		instance.ShareID,
		instance.ShareServerID,
		string(instance.Status),
		string(instance.AccessRulesStatus),
		instance.CreatedAt,
		now,
	)
	if pgErrorCode(err) == codeUniqueViolation {
		return fmt.Errorf("share instance %s already exists", instance.ID)
	}
	if err != nil {
		return fmt.Errorf("create share instance: %w", err)
	}
	return nil
}

func (s *Store) SetShareInstanceStatus(ctx context.Context, instanceID string, status api.InstanceStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE share_instances SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), s.now().UTC(), instanceID)
	if err != nil {
		return fmt.Errorf("update share instance status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.NewShareInstanceNotFoundError(instanceID)
	}
	return nil
}

func (s *Store) SetAccessRulesStatus(ctx context.Context, instanceID string, status api.AccessRulesStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE share_instances SET access_rules_status = $1, updated_at = $2 WHERE id = $3`,
		string(status), s.now().UTC(), instanceID)
	if err != nil {
		return fmt.Errorf("update access rules status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.NewShareInstanceNotFoundError(instanceID)
	}
	return nil
}

func (s *Store) ListAccessRules(ctx context.Context, instanceID string) ([]api.AccessRule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, instance_id, access_to, access_level, access_key, created_at
		FROM access_rules
		WHERE instance_id = $1
		ORDER BY created_at ASC, id ASC
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
	row := s.db.QueryRow(ctx, `
		SELECT id, instance_id, access_to, access_level, access_key, created_at
		FROM access_rules
		WHERE id = $1
	`, ruleID)

	rule, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, api.NewAccessRuleNotFoundError(ruleID)
	}
	if err != nil {
		return nil, fmt.Errorf("get access rule: %w", err)
	}
	return &rule, nil
}

func scanRule(row pgx.Row) (api.AccessRule, error) {
	var (
		rule  api.AccessRule
		level string
	)
	if err := row.Scan(&rule.ID, &rule.InstanceID, &rule.AccessTo, &level, &rule.AccessKey, &rule.CreatedAt); err != nil {
		return api.AccessRule{}, err
	}
	rule.AccessLevel = api.AccessLevel(level)
	return rule, nil
}

func (s *Store) CreateAccessRule(ctx context.Context, rule api.AccessRule) error {
	if rule.ID == "" {
		return api.NewInvalidError("access rule id is required")
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = s.now().UTC()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO access_rules
		(id, instance_id, access_to, access_level, access_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		rule.ID,
		rule.InstanceID,
		rule.AccessTo,
		string(rule.AccessLevel),
		rule.AccessKey,
		rule.CreatedAt,
	)
	switch pgErrorCode(err) {
	case codeForeignKeyViolation:
		return api.NewShareInstanceNotFoundError(rule.InstanceID)
	case codeUniqueViolation:
		return fmt.Errorf("access rule %s already exists", rule.ID)
	}
	if err != nil {
		return fmt.Errorf("create access rule: %w", err)
	}
	return nil
}

// RemoveAccessRules deletes the rules with a single statement.
func (s *Store) RemoveAccessRules(ctx context.Context, instanceID string, rules []api.AccessRule) error {
	if len(rules) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin remove access rules: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM access_rules WHERE instance_id = $1 AND id = ANY($2)`,
		instanceID, api.RuleIDs(rules)); err != nil {
		return fmt.Errorf("remove access rules: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit remove access rules: %w", err)
	}
	return nil
}

func (s *Store) SetAccessKey(ctx context.Context, ruleID, accessKey string) error {
	tag, err := s.db.Exec(ctx, `UPDATE access_rules SET access_key = $1 WHERE id = $2`, accessKey, ruleID)
	if err != nil {
		return fmt.Errorf("set access key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.NewAccessRuleNotFoundError(ruleID)
	}
	return nil
}

func (s *Store) GetShareServer(ctx context.Context, serverID string) (*api.ShareServer, error) {
	var srv api.ShareServer
	err := s.db.QueryRow(ctx, `SELECT id, host, details FROM share_servers WHERE id = $1`, serverID).
		Scan(&srv.ID, &srv.Host, &srv.Details)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, api.NewShareServerNotFoundError(serverID)
	}
	if err != nil {
		return nil, fmt.Errorf("get share server: %w", err)
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

	_, err := s.db.Exec(ctx, `INSERT INTO share_servers (id, host, details) VALUES ($1, $2, $3)`,
		server.ID, server.Host, details)
	if pgErrorCode(err) == codeUniqueViolation {
		return fmt.Errorf("share server %s already exists", server.ID)
	}
	if err != nil {
		return fmt.Errorf("create share server: %w", err)
	}
	return nil
}
