// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"

	"github.com/gorilla/handlers"
)

// handleCORS answers preflight requests and sets the CORS headers. With the
// wildcard origin the request's origin is echoed, so credentials keep working.
func (b *Backend) handleCORS(h http.Handler) http.Handler {
	options := []handlers.CORSOption{
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.ExposedHeaders([]string{"X-Request-Id"}),
		handlers.AllowCredentials(),
		handlers.MaxAge(600),
	}
	wildcard := false
	for _, origin := range b.corsOrigins {
		wildcard = wildcard || origin == "*"
	}
	if wildcard {
		options = append(options, handlers.AllowedOriginValidator(func(string) bool { return true }))
	} else {
		options = append(options, handlers.AllowedOrigins(b.corsOrigins))
	}
	return handlers.CORS(options...)(h)
}
