// Package chama is the group wallet engine: member deposits into a shared
// ledger, withdrawals gated by multi-admin approval, and per-member and
// group-wide balance aggregation.
package chama

import (
	"context"
	"errors"
	"sync"
)

// ErrGroupNotFound indicates the chama does not exist in the directory.
var ErrGroupNotFound = errors.New("chama not found")

// Role is a member's role within a chama.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Member is one chama participant and their roles.
type Member struct {
	UserID string `json:"user_id"`
	Roles  []Role `json:"roles"`
}

// Group is a chama's membership record.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []Member `json:"members"`
}

// Admins returns the user ids holding the admin role.
func (g Group) Admins() []string {
	var admins []string
	for _, m := range g.Members {
		for _, r := range m.Roles {
			if r == RoleAdmin {
				admins = append(admins, m.UserID)
				break
			}
		}
	}
	return admins
}

// IsMember reports whether the user belongs to the chama.
func (g Group) IsMember(userID string) bool {
	for _, m := range g.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user holds the admin role.
func (g Group) IsAdmin(userID string) bool {
	for _, admin := range g.Admins() {
		if admin == userID {
			return true
		}
	}
	return false
}

// Directory resolves chama membership. Membership lives outside the
// ledger; the engine consults it at decision points rather than caching
// it, so role changes take effect immediately.
type Directory interface {
	FindGroup(ctx context.Context, chamaID string) (Group, error)
}

// StaticDirectory is an in-memory directory for tests and development.
type StaticDirectory struct {
	mu     sync.RWMutex
	groups map[string]Group
}

// NewStaticDirectory builds an empty directory.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{groups: make(map[string]Group)}
}

// AddGroup registers or replaces a chama's membership record.
func (d *StaticDirectory) AddGroup(g Group) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups[g.ID] = g
}

// FindGroup fetches a chama's membership record.
func (d *StaticDirectory) FindGroup(_ context.Context, chamaID string) (Group, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.groups[chamaID]
	if !ok {
		return Group{}, ErrGroupNotFound
	}
	return g, nil
}
