package rbac

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Service resolves effective permissions against the stored role graph.
// It holds no state of its own; every answer is computed from the current
// graph. Concurrent lookups for the same user share one query.
type Service struct {
	repo  Repository
	group singleflight.Group
}

// NewService constructs a Service over the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// EffectivePermissions returns deduplicated permission names for the actor.
// Anonymous actors resolve to the empty set.
func (s *Service) EffectivePermissions(ctx context.Context, actor shared.Actor) ([]string, error) {
	if actor.Anonymous() {
		return nil, nil
	}
	key := strconv.FormatInt(actor.UserID, 10)
	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		return s.repo.UserPermissionNames(context.WithoutCancel(ctx), actor.UserID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		names, _ := res.Val.([]string)
		return dedupe(names), nil
	}
}

// Has reports whether the actor holds the named permission.
func (s *Service) Has(ctx context.Context, actor shared.Actor, permission string) (bool, error) {
	if actor.Anonymous() || permission == "" {
		return false, nil
	}
	granted, err := s.EffectivePermissions(ctx, actor)
	if err != nil {
		return false, err
	}
	for _, name := range granted {
		if name == permission {
			return true, nil
		}
	}
	return false, nil
}

var _ Guard = (*Service)(nil)

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
