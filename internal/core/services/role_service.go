package services

import (
	"context"
	"log"
	"sync"

	"nutricoach/internal/adapters/persistence/repositories"
	"nutricoach/internal/core/domain"
)

// ActAsHeader lets an administrator act with a lower effective role
const ActAsHeader = "X-Act-As-Role"

// RoleService resolves role and assignment based access
type RoleService struct {
	assignments repositories.AssignmentRepository
}

// NewRoleService creates a new role service
func NewRoleService(assignments repositories.AssignmentRepository) *RoleService {
	return &RoleService{assignments: assignments}
}

// CanAccessResourceOwner decides whether principalID, holding actual, may
// act on the resources of ownerID whose role is targetOwnerRole.
// Denials return false with ErrNotAssigned or ErrForbiddenRole.
func (s *RoleService) CanAccessResourceOwner(
	ctx context.Context,
	actual domain.Role,
	targetOwnerRole domain.Role,
	ownerID uint,
	principalID uint,
) (bool, error) {
	if actual.IsHighest() {
		return true, nil
	}
	if ownerID == principalID && actual.IsValid() {
		return true, nil
	}

	if actual == domain.RoleCoach && targetOwnerRole == domain.RoleClient {
		assigned, err := s.assignments.Exists(ctx, principalID, ownerID)
		if err != nil {
			return false, err
		}
		if !assigned {
			return false, domain.ErrNotAssigned
		}
		return true, nil
	}

	return false, domain.ErrForbiddenRole
}

// NewRoleContext builds the per-request role context for identity.
// override is honoured only for administrators.
func (s *RoleService) NewRoleContext(identity domain.Identity, override string) *RoleContext {
	rc := &RoleContext{
		PrincipalID:   identity.ID,
		ActualRole:    identity.Role,
		EffectiveRole: identity.Role,
		authority:     s,
	}

	if override == "" {
		return rc
	}
	role, ok := domain.ParseRole(override)
	if !ok {
		log.Printf("⚠️ Ignoring unknown %s value %q from user %d", ActAsHeader, override, identity.ID)
		return rc
	}
	if !identity.Role.IsHighest() {
		log.Printf("⚠️ Ignoring %s from non-admin user %d (role %s)", ActAsHeader, identity.ID, identity.Role)
		return rc
	}

	if role != identity.Role {
		rc.EffectiveRole = role
		rc.IsActingAs = true
		log.Printf("🎭 Impersonation: user %d actual=%s effective=%s", identity.ID, identity.Role, role)
	}
	return rc
}

// OwnerSet is the set of resource owners a principal may act on
type OwnerSet struct {
	// All is true for principals unrestricted by assignments
	All bool
	IDs []uint
}

// Contains reports whether id is in the set
func (o *OwnerSet) Contains(id uint) bool {
	if o.All {
		return true
	}
	for _, v := range o.IDs {
		if v == id {
			return true
		}
	}
	return false
}

// RoleContext is the per-request authorization view of a principal
type RoleContext struct {
	PrincipalID   uint
	ActualRole    domain.Role
	EffectiveRole domain.Role
	IsActingAs    bool

	authority *RoleService

	mu     sync.Mutex
	owners *OwnerSet
}

// CanAccessRole checks the effective role against required
func (rc *RoleContext) CanAccessRole(required domain.Role) bool {
	return domain.CanAccessRole(rc.EffectiveRole, required)
}

// CanAccessOwner checks access to the resources of ownerID
func (rc *RoleContext) CanAccessOwner(ctx context.Context, ownerRole domain.Role, ownerID uint) (bool, error) {
	return rc.authority.CanAccessResourceOwner(ctx, rc.ActualRole, ownerRole, ownerID, rc.PrincipalID)
}

// Owners returns the owners this principal may act on, loaded once per request.
// Administrators get an unrestricted set.
func (rc *RoleContext) Owners(ctx context.Context) (*OwnerSet, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.owners != nil {
		return rc.owners, nil
	}

	var (
		ids []uint
		err error
	)
	switch rc.ActualRole {
	case domain.RoleAdmin:
		rc.owners = &OwnerSet{All: true}
		return rc.owners, nil
	case domain.RoleCoach:
		ids, err = rc.authority.assignments.ListClientIDs(ctx, rc.PrincipalID)
	case domain.RoleClient:
		ids, err = rc.authority.assignments.ListCoachIDs(ctx, rc.PrincipalID)
	}
	if err != nil {
		return nil, err
	}

	rc.owners = &OwnerSet{IDs: ids}
	return rc.owners, nil
}
