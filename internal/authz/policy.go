// Package authz decides what an authenticated caller may do with a movie
// record. Access control is deliberately small: a caller owns the records it
// created, and members of the configured admin group may act on any record.
package authz

import (
	"strings"

	"github.com/movievault/api/internal/platform/auth"
)

// DefaultAdminGroup is the group treated as administrative when no override
// is configured.
const DefaultAdminGroup = "admins"

// Scope narrows a listing to the records the caller may see.
type Scope int

const (
	// ScopeOwned restricts listing to records created by the caller.
	ScopeOwned Scope = iota
	// ScopeAll exposes every record; granted to admin-group members only.
	ScopeAll
)

// Policy evaluates ownership and group membership for movie access.
type Policy struct {
	adminGroup string
}

// NewPolicy constructs a Policy. An empty adminGroup falls back to
// DefaultAdminGroup.
func NewPolicy(adminGroup string) *Policy {
	adminGroup = strings.TrimSpace(adminGroup)
	if adminGroup == "" {
		adminGroup = DefaultAdminGroup
	}
	return &Policy{adminGroup: adminGroup}
}

// AdminGroup returns the group name granted administrative access.
func (p *Policy) AdminGroup() string {
	if p == nil {
		return DefaultAdminGroup
	}
	return p.adminGroup
}

// IsAdmin reports whether the identity belongs to the admin group.
func (p *Policy) IsAdmin(identity *auth.Identity) bool {
	if p == nil || identity == nil {
		return false
	}
	return identity.HasGroup(p.adminGroup)
}

// CanAccess reports whether the identity may read or mutate a record owned by
// ownerID. Admin-group members may access any record; everyone else only
// records they own. An empty owner denies non-admin access outright so that
// records with corrupted ownership metadata never leak.
func (p *Policy) CanAccess(identity *auth.Identity, ownerID string) bool {
	if p == nil || identity == nil {
		return false
	}
	if p.IsAdmin(identity) {
		return true
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return false
	}
	return identity.UID == ownerID
}

// ListScope returns the widest listing scope the identity is entitled to.
func (p *Policy) ListScope(identity *auth.Identity) Scope {
	if p.IsAdmin(identity) {
		return ScopeAll
	}
	return ScopeOwned
}
