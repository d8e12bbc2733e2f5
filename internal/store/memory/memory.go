// Package memory provides an in-process api.Store. It is used for tests,
// dry runs and the "memory" store backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/giantswarm/sharekeeper/internal/api"
)

// Store keeps share instances, share servers and access rules in maps
// guarded by a single mutex. Records are copied in and out so callers never
// share memory with the store.
type Store struct {
	mu sync.RWMutex

	instances map[string]api.ShareInstance
	servers   map[string]api.ShareServer
	rules     map[string]api.AccessRule

	closed bool
	now    func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		instances: make(map[string]api.ShareInstance),
		servers:   make(map[string]api.ShareServer),
		rules:     make(map[string]api.AccessRule),
		now:       time.Now,
	}
}

var _ api.Store = (*Store)(nil)

func (s *Store) GetShareInstance(ctx context.Context, instanceID string) (*api.ShareInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, api.ErrStoreClosed
	}
	inst, ok := s.instances[instanceID]
	if !ok {
		return nil, api.NewShareInstanceNotFoundError(instanceID)
	}
	return &inst, nil
}

func (s *Store) ListAccessRules(ctx context.Context, instanceID string) ([]api.AccessRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, api.ErrStoreClosed
	}

	var rules []api.AccessRule
	for _, r := range s.rules {
		if r.InstanceID == instanceID {
			rules = append(rules, r)
		}
	}
	sortRules(rules)
	return rules, nil
}

func (s *Store) RemoveAccessRules(ctx context.Context, instanceID string, rules []api.AccessRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return api.ErrStoreClosed
	}
	for _, r := range rules {
		if stored, ok := s.rules[r.ID]; ok && stored.InstanceID == instanceID {
			delete(s.rules, r.ID)
		}
	}
	return nil
}

func (s *Store) SetAccessKey(ctx context.Context, ruleID, accessKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return api.ErrStoreClosed
	}
	rule, ok := s.rules[ruleID]
	if !ok {
		return api.NewAccessRuleNotFoundError(ruleID)
	}
	rule.AccessKey = accessKey
	s.rules[ruleID] = rule
	return nil
}

func (s *Store) SetAccessRulesStatus(ctx context.Context, instanceID string, status api.AccessRulesStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return api.ErrStoreClosed
	}
	inst, ok := s.instances[instanceID]
	if !ok {
		return api.NewShareInstanceNotFoundError(instanceID)
	}
	inst.AccessRulesStatus = status
	inst.UpdatedAt = s.now()
	s.instances[instanceID] = inst
	return nil
}

func (s *Store) GetShareServer(ctx context.Context, serverID string) (*api.ShareServer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, api.ErrStoreClosed
	}
	srv, ok := s.servers[serverID]
	if !ok {
		return nil, api.NewShareServerNotFoundError(serverID)
	}
	return copyServer(srv), nil
}

func (s *Store) CreateShareInstance(ctx context.Context, instance api.ShareInstance) error {
	if instance.ID == "" {
		return api.NewInvalidError("share instance id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return api.ErrStoreClosed
	}
	if _, exists := s.instances[instance.ID]; exists {
		return fmt.Errorf("share instance %s already exists", instance.ID)
	}
	now := s.now()
	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = now
	}
	instance.UpdatedAt = now
	if instance.Status == "" {
		instance.Status = api.StatusAvailable
	}
	if instance.AccessRulesStatus == "" {
		instance.AccessRulesStatus = api.AccessRulesActive
	}
	s.instances[instance.ID] = instance
	return nil
}

func (s *Store) ListShareInstances(ctx context.Context) ([]api.ShareInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, api.ErrStoreClosed
	}
	instances := make([]api.ShareInstance, 0, len(s.instances))
	for _, inst := range s.instances {
		instances = append(instances, inst)
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i].ID < instances[j].ID })
	return instances, nil
}

func (s *Store) SetShareInstanceStatus(ctx context.Context, instanceID string, status api.InstanceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return api.ErrStoreClosed
	}
	inst, ok := s.instances[instanceID]
	if !ok {
		return api.NewShareInstanceNotFoundError(instanceID)
	}
	inst.Status = status
	inst.UpdatedAt = s.now()
	s.instances[instanceID] = inst
	return nil
}

func (s *Store) CreateAccessRule(ctx context.Context, rule api.AccessRule) error {
	if rule.ID == "" {
		return api.NewInvalidError("access rule id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return api.ErrStoreClosed
	}
	if _, ok := s.instances[rule.InstanceID]; !ok {
		return api.NewShareInstanceNotFoundError(rule.InstanceID)
	}
	if _, exists := s.rules[rule.ID]; exists {
		return fmt.Errorf("access rule %s already exists", rule.ID)
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = s.now()
	}
	s.rules[rule.ID] = rule
	return nil
}

func (s *Store) GetAccessRule(ctx context.Context, ruleID string) (*api.AccessRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, api.ErrStoreClosed
	}
	rule, ok := s.rules[ruleID]
	if !ok {
		return nil, api.NewAccessRuleNotFoundError(ruleID)
	}
	return &rule, nil
}

func (s *Store) CreateShareServer(ctx context.Context, server api.ShareServer) error {
	if server.ID == "" {
		return api.NewInvalidError("share server id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return api.ErrStoreClosed
	}
	if _, exists := s.servers[server.ID]; exists {
		return fmt.Errorf("share server %s already exists", server.ID)
	}
	s.servers[server.ID] = *copyServer(server)
	return nil
}

// Close marks the store closed; every later call fails with ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// sortRules orders rules by creation time, then id, so listings are stable.
func sortRules(rules []api.AccessRule) {
	sort.Slice(rules, func(i, j int) bool {
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
		return rules[i].ID < rules[j].ID
	})
}

func copyServer(srv api.ShareServer) *api.ShareServer {
	out := srv
	if srv.Details != nil {
		out.Details = make(map[string]string, len(srv.Details))
		for k, v := range srv.Details {
			out.Details[k] = v
		}
	}
	return &out
}
