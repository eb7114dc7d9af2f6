package application

import (
	"context"
	"fmt"

	"mxiledger/domain/entities"
)

// Principal is the caller identity forwarded by the gateway
type Principal struct {
	UserID string
	Admin  bool
}

// SystemPrincipal runs scheduled maintenance
var SystemPrincipal = Principal{UserID: "system", Admin: true}

type principalKey struct{}

// WithPrincipal attaches the caller identity to ctx
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller identity, if any
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != ""
}

// authorizeUser allows admins and the user acting on their own account
func authorizeUser(ctx context.Context, userID string) (Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return p, fmt.Errorf("%w: no caller identity", entities.ErrNotAuthorized)
	}
	if !p.Admin && p.UserID != userID {
		return p, fmt.Errorf("%w: %s may not act for %s", entities.ErrNotAuthorized, p.UserID, userID)
	}
	return p, nil
}

// authorizeAdmin allows admin principals only
func authorizeAdmin(ctx context.Context) (Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return p, fmt.Errorf("%w: no caller identity", entities.ErrNotAuthorized)
	}
	if !p.Admin {
		return p, fmt.Errorf("%w: %s is not an admin", entities.ErrNotAuthorized, p.UserID)
	}
	return p, nil
}
