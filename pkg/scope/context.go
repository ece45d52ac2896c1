package scope

import "context"

// ctxKey is an unexported type used as the context key for RequestScope.
type ctxKey struct{}

// RequestScope carries the resolved organization, workspace, and actor
// identity through request context.
type RequestScope struct {
	OrgID       string
	WorkspaceID string
	ActorID     string
	Groups      []string
}

// HasGroup returns true if the actor belongs to the named group.
func (s RequestScope) HasGroup(name string) bool {
	for _, g := range s.Groups {
		if g == name {
			return true
		}
	}
	return false
}

// WithScope returns a new context with the given RequestScope attached.
func WithScope(ctx context.Context, rs RequestScope) context.Context {
	return context.WithValue(ctx, ctxKey{}, rs)
}

// FromContext retrieves the RequestScope from the context.
// Returns the zero value and false if no scope is set.
func FromContext(ctx context.Context) (RequestScope, bool) {
	rs, ok := ctx.Value(ctxKey{}).(RequestScope)
	return rs, ok
}
