// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package access

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/investpro/core"
	"github.com/relabs-tech/investpro/core/logger"
)

// Guard authenticates requests with session tokens
type Guard struct {
	codec *TokenCodec
}

// NewGuard returns a guard verifying tokens with codec
func NewGuard(codec *TokenCodec) *Guard {
	if codec == nil {
		panic("guard requires a token codec")
	}
	return &Guard{codec: codec}
}

// Codec returns the guard's token codec
func (g *Guard) Codec() *TokenCodec {
	return g.codec
}

// Authenticate extracts the bearer token from the headers and verifies it.
//
// Fails with core.ErrMissingToken if there is no token; verification errors are
// returned as they are.
func (g *Guard) Authenticate(header http.Header) (*Principal, error) {
	tokenString := BearerToken(header.Get("Authorization"))
	if tokenString == "" {
		return nil, core.ErrMissingToken
	}
	claims, err := g.codec.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	return claims.Principal(), nil
}

// Middleware returns a middleware which rejects unauthenticated requests
// with 401 and otherwise stores the principal in the request context.
func (g *Guard) Middleware() mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return g.Wrap(h)
	}
}

// Wrap is the handler form of Middleware
func (g *Guard) Wrap(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := g.Authenticate(r.Header)
		if err != nil {
			rlog := logger.FromContext(r.Context())
			rlog.WithError(err).Debugf("rejected %s %s", r.Method, r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(core.StatusCode(err))
			body, _ := json.Marshal(map[string]string{"error": core.PublicMessage(err)})
			w.Write(body)
			return
		}
		ctx := ContextWithPrincipal(r.Context(), principal)
		ctx, _ = logger.ContextWithLoggerIdentity(ctx, principal.ID)
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}
