package idm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Path-Check/safeplaces-auth/pkg/metricsx"
)

// Role as the provider lists it.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RoleLister loads every role.
type RoleLister func(ctx context.Context) ([]Role, error)

// RoleTable maps role names to provider role ids. It is refreshed only when
// asked to or when a lookup misses; there is no timer.
type RoleTable struct {
	list    RoleLister
	metrics *metricsx.Metrics

	mu    sync.RWMutex
	roles map[string]Role
}

// NewRoleTable returns an empty table backed by list.
func NewRoleTable(list RoleLister, m *metricsx.Metrics) *RoleTable {
	return &RoleTable{list: list, metrics: m, roles: map[string]Role{}}
}

// Refresh replaces the whole table.
func (t *RoleTable) Refresh(ctx context.Context) error {
	roles, err := t.list(ctx)
	t.metrics.ObserveCacheRefresh("roles", metricsx.ModeSync, err)
	if err != nil {
		return fmt.Errorf("idm: refresh roles: %w", err)
	}

	next := make(map[string]Role, len(roles))
	for _, r := range roles {
		next[r.Name] = r
	}

	t.mu.Lock()
	t.roles = next
	t.mu.Unlock()
	return nil
}

// RoleID resolves name, reloading the table once on a miss.
func (t *RoleTable) RoleID(ctx context.Context, name string) (string, error) {
	if r, ok := t.lookup(name); ok {
		return r.ID, nil
	}
	if err := t.Refresh(ctx); err != nil {
		return "", err
	}
	if r, ok := t.lookup(name); ok {
		return r.ID, nil
	}
	return "", fmt.Errorf("%w: %q", ErrRoleNotFound, name)
}

// Exists reports whether name is known, without refreshing.
func (t *RoleTable) Exists(name string) bool {
	_, ok := t.lookup(name)
	return ok
}

// Names lists the known role names, sorted.
func (t *RoleTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.roles))
	for name := range t.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *RoleTable) lookup(name string) (Role, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.roles[name]
	return r, ok
}
