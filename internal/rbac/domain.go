package rbac

import (
	"context"

	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Guard answers authorization queries for an actor. The effective
// permission set is the union of the permission names on the actor's
// directly assigned roles: one role hop, exact string match, no deny
// rules, no wildcards.
type Guard interface {
	// Has reports whether the actor holds the named permission. An
	// anonymous actor holds nothing; that is an answer, not an error.
	Has(ctx context.Context, actor shared.Actor, permission string) (bool, error)
	// EffectivePermissions returns the deduplicated permission names
	// reachable from the actor's roles.
	EffectivePermissions(ctx context.Context, actor shared.Actor) ([]string, error)
}

// Repository provides the role/permission graph reads the resolver needs.
type Repository interface {
	UserPermissionNames(ctx context.Context, userID int64) ([]string, error)
}
