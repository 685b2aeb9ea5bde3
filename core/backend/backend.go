// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/relabs-tech/investpro/core/access"
	"github.com/relabs-tech/investpro/core/auth"
	"github.com/relabs-tech/investpro/core/logger"
	"github.com/relabs-tech/investpro/core/profiles"
	"github.com/relabs-tech/investpro/core/schema"
)

// Backend is the InvestPro REST backend
type Backend struct {
	router        *mux.Router
	api           *mux.Router
	authenticator *auth.Authenticator
	profiles      *profiles.Repository
	guard         *access.Guard
	validator     *schema.Validator
	staticDir     string
	corsOrigins   []string
	limiter       *ipRateLimiter
	backendName   string
}

// Builder is a builder helper for the Backend
type Builder struct {
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Authenticator logs users in and registers new accounts. This is mandatory.
	Authenticator *auth.Authenticator
	// Profiles is the profile repository. This is mandatory, its store may be nil.
	Profiles *profiles.Repository
	// Guard authenticates bearer tokens. This is mandatory.
	Guard *access.Guard
	// Validator validates request bodies. Defaults to the embedded request schemas.
	Validator *schema.Validator
	// StaticDir is the directory of the built frontend. Optional.
	StaticDir string
	// CORSOrigins are the allowed origins. Defaults to all origins.
	CORSOrigins []string
	// LoginRate limits login and registration attempts per client IP. Zero disables the limit.
	LoginRate rate.Limit
	// LoginBurst is the burst of the login rate limit
	LoginBurst int
	// BackendName is reported by the health endpoint
	BackendName string
}

// New realizes the actual backend and adds the routes to the router
func New(bb *Builder) *Backend {
	if bb.Router == nil {
		panic("Router is missing")
	}
	if bb.Authenticator == nil {
		panic("Authenticator is missing")
	}
	if bb.Profiles == nil {
		panic("Profiles is missing")
	}
	if bb.Guard == nil {
		panic("Guard is missing")
	}
	validator := bb.Validator
	if validator == nil {
		validator = schema.MustNewRequestValidator()
	}
	corsOrigins := bb.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	b := &Backend{
		router:        bb.Router,
		authenticator: bb.Authenticator,
		profiles:      bb.Profiles,
		guard:         bb.Guard,
		validator:     validator,
		staticDir:     bb.StaticDir,
		corsOrigins:   corsOrigins,
		backendName:   bb.BackendName,
	}
	if bb.LoginRate > 0 {
		burst := bb.LoginBurst
		if burst < 1 {
			burst = 1
		}
		b.limiter = newIPRateLimiter(bb.LoginRate, burst)
	}

	logger.AddRequestID(b.router)
	b.api = b.router.PathPrefix("/api").Subrouter()
	b.api.NotFoundHandler = http.HandlerFunc(endpointNotFound)
	b.api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	b.router.NotFoundHandler = http.HandlerFunc(endpointNotFound)
	b.router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	b.handleRoutes()
	return b
}

// handleRoutes adds all handlers. Static files come last, they match every path.
func (b *Backend) handleRoutes() {
	logger.Default().Debugln("backend: HandleRoutes")
	b.handleAuthRoutes(b.api)
	b.handleUserRoutes(b.api)
	b.handleHealth(b.api)
	b.handleStatic(b.router)
}

// Router returns the router with all routes, without the outer middleware
func (b *Backend) Router() *mux.Router {
	return b.router
}

// Handler returns the router wrapped with CORS, panic recovery and compression.
// Use it as the server's handler.
func (b *Backend) Handler() http.Handler {
	h := b.handleCompression(b.router)
	h = b.handleRecovery(h)
	return b.handleCORS(h)
}

func endpointNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Endpoint not found"})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
}
