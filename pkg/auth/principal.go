// Package auth carries the authenticated caller through a request.
// Services take the Principal as an explicit argument; the context value only
// bridges the HTTP middleware and the handlers.
package auth

import "context"

type principalKey struct{}

const SystemPrincipalID = "system"

type Principal struct {
	ID     string
	System bool
}

func System() Principal {
	return Principal{ID: SystemPrincipalID, System: true}
}

func (p Principal) Authenticated() bool {
	return p.ID != ""
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || !p.Authenticated() {
		return Principal{}, false
	}
	return p, true
}
