package shared

import (
	"context"

	"github.com/civitas-platform/civitas/internal/authz"
)

type sessionContextKey struct{}

type principalContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithPrincipal stores the resolved grant graph for the request user.
func ContextWithPrincipal(ctx context.Context, grants *authz.PrincipalGrants) context.Context {
	return context.WithValue(ctx, principalContextKey{}, grants)
}

// PrincipalFromContext extracts the grant graph loaded by the auth middleware.
// Returns nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *authz.PrincipalGrants {
	grants, _ := ctx.Value(principalContextKey{}).(*authz.PrincipalGrants)
	return grants
}

// SubjectFromContext is a convenience wrapper converting the principal into an
// evaluation subject. Anonymous requests yield the zero Subject.
func SubjectFromContext(ctx context.Context) authz.Subject {
	return PrincipalFromContext(ctx).Subject()
}
