package domain

import (
	"strings"
	"time"
)

// Role represents user role in the system
type Role string

const (
	RoleClient Role = "CLIENT"
	RoleCoach  Role = "COACH"
	RoleAdmin  Role = "ADMIN"
)

// roleRanks is the fixed privilege order: ADMIN > COACH > CLIENT
var roleRanks = map[Role]int{
	RoleClient: 1,
	RoleCoach:  2,
	RoleAdmin:  3,
}

// Rank returns the privilege rank of the role, 0 for unknown roles
func (r Role) Rank() int {
	return roleRanks[r]
}

// IsValid checks if the role is one of the predefined roles
func (r Role) IsValid() bool {
	_, ok := roleRanks[r]
	return ok
}

// IsHighest reports whether r is the top-ranked role
func (r Role) IsHighest() bool {
	return r == RoleAdmin
}

// ParseRole normalizes and validates a role string
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	return role, role.IsValid()
}

// AllRoles returns all roles ordered from lowest to highest
func AllRoles() []Role {
	return []Role{RoleClient, RoleCoach, RoleAdmin}
}

// CanAccessRole reports whether actual is at least as privileged as required.
// Unknown roles never grant access.
func CanAccessRole(actual, required Role) bool {
	if !actual.IsValid() || !required.IsValid() {
		return false
	}
	return actual.Rank() >= required.Rank()
}

// Identity is the immutable principal the session subsystem works with
type Identity struct {
	ID    uint
	Role  Role
	Email string
}

// TokenPair represents access and refresh tokens with their absolute expiries
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
