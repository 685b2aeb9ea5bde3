// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*Package access provides token based access control.

A Principal is the verified identity of a request. It is derived from a
session token by the Guard and stored in the request context with

  ctx = ContextWithPrincipal(ctx, principal)

and retrieved with

  principal := PrincipalFromContext(ctx)

Every protected route composes the primitives RequireAdmin and
RequireSelfOrAdmin. Admin privileges are taken from the token, they are
never re-read from the profile store.
*/
package access

import (
	"context"
	"strings"

	"github.com/relabs-tech/investpro/core"
)

// AdminID is the principal id of the local admin
const AdminID = "admin"

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

// the predefined context key
const (
	contextKeyPrincipal contextKey = "_principal_"
)

// Principal is the authenticated identity derived from a verified token
type Principal struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// ContextWithPrincipal returns a new context with the principal added to it
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, p)
}

// PrincipalFromContext retrieves a principal from the context. Returns nil
// if the request was not authenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, ok := ctx.Value(contextKeyPrincipal).(*Principal)
	if ok {
		return p
	}
	return nil
}

// RequireAdmin fails with core.ErrAdminRequired unless the principal is an admin
func RequireAdmin(p *Principal) error {
	if p == nil {
		return core.ErrMissingToken
	}
	if !p.IsAdmin {
		return core.ErrAdminRequired
	}
	return nil
}

// RequireSelfOrAdmin fails with core.ErrAccessDenied unless the principal is an
// admin or is the target user itself.
func RequireSelfOrAdmin(p *Principal, targetID string) error {
	if p == nil {
		return core.ErrMissingToken
	}
	if p.IsAdmin || (p.ID != "" && p.ID == targetID) {
		return nil
	}
	return core.ErrAccessDenied
}

// BearerToken extracts the token from an Authorization header value of the form
// "Bearer <token>". The scheme is matched case insensitive. Returns the empty
// string if there is no token.
func BearerToken(authorization string) string {
	authorization = strings.TrimSpace(authorization)
	if len(authorization) < 7 || !strings.EqualFold(authorization[:7], "bearer ") {
		return ""
	}
	token := strings.TrimSpace(authorization[7:])
	if token == "null" || token == "undefined" {
		return ""
	}
	return token
}
