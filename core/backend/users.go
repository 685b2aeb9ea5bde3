// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/investpro/core/access"
	"github.com/relabs-tech/investpro/core/logger"
	"github.com/relabs-tech/investpro/core/schema"
)

// handleUserRoutes adds the profile routes. /users/stats is added by
// handleStatistics and must be registered before /users/{id}.
func (b *Backend) handleUserRoutes(router *mux.Router) {
	rlog := logger.Default()
	rlog.Debugln("users")
	rlog.Debugln("  handle route: /api/users GET,POST")
	rlog.Debugln("  handle route: /api/users/{id} GET,PUT,DELETE")

	router.Handle("/users", b.guard.Wrap(http.HandlerFunc(b.listUsers))).Methods(http.MethodGet)
	router.Handle("/users", b.guard.Wrap(http.HandlerFunc(b.createUser))).Methods(http.MethodPost)
	b.handleStatistics(router)
	router.Handle("/users/{id}", b.guard.Wrap(http.HandlerFunc(b.getUser))).Methods(http.MethodGet)
	router.Handle("/users/{id}", b.guard.Wrap(http.HandlerFunc(b.updateUser))).Methods(http.MethodPut)
	router.Handle("/users/{id}", b.guard.Wrap(http.HandlerFunc(b.deleteUser))).Methods(http.MethodDelete)
}

func (b *Backend) listUsers(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	profiles, err := b.profiles.List(r.Context(), access.PrincipalFromContext(r.Context()))
	if err != nil {
		writeError(w, r, "4201", err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (b *Backend) createUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger.FromContext(ctx).Infoln("called route for", r.URL, r.Method)
	caller := access.PrincipalFromContext(ctx)
	// permissions are checked before the body, a non-admin learns nothing about the schema
	if err := access.RequireAdmin(caller); err != nil {
		writeError(w, r, "4202", err)
		return
	}
	doc, err := b.decodeBody(r, schema.ProfileCreateRequest)
	if err != nil {
		writeError(w, r, "4203", err)
		return
	}
	profile, err := b.profiles.Create(ctx, caller, doc)
	if err != nil {
		writeError(w, r, "4204", err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (b *Backend) getUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger.FromContext(ctx).Infoln("called route for", r.URL, r.Method)
	profile, err := b.profiles.Get(ctx, access.PrincipalFromContext(ctx), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, "4205", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (b *Backend) updateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger.FromContext(ctx).Infoln("called route for", r.URL, r.Method)
	caller := access.PrincipalFromContext(ctx)
	id := mux.Vars(r)["id"]
	if err := access.RequireSelfOrAdmin(caller, id); err != nil {
		writeError(w, r, "4206", err)
		return
	}
	doc, err := b.decodeBody(r, schema.ProfileUpdateRequest)
	if err != nil {
		writeError(w, r, "4207", err)
		return
	}
	profile, err := b.profiles.Update(ctx, caller, id, doc)
	if err != nil {
		writeError(w, r, "4208", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (b *Backend) deleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger.FromContext(ctx).Infoln("called route for", r.URL, r.Method)
	if err := b.profiles.Delete(ctx, access.PrincipalFromContext(ctx), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, "4209", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}
