package shared

import "context"

// Actor identifies who a request executes on behalf of. The zero value is
// the anonymous actor: no identity, empty effective permission set.
type Actor struct {
	UserID int64
}

// Anonymous reports whether the actor carries no resolved identity.
func (a Actor) Anonymous() bool {
	return a.UserID == 0
}

type sessionContextKey struct{}

type actorContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithActor stores the resolved actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor; the anonymous actor when absent.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
