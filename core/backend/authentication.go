// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/investpro/core"
	"github.com/relabs-tech/investpro/core/access"
	"github.com/relabs-tech/investpro/core/auth"
	"github.com/relabs-tech/investpro/core/logger"
	"github.com/relabs-tech/investpro/core/schema"
)

// verifiedUser is the user returned by /auth/verify. Profile fields are only
// present if the profile could be read.
type verifiedUser struct {
	ID                string       `json:"id"`
	Email             string       `json:"email"`
	IsAdmin           bool         `json:"is_admin"`
	Name              string       `json:"name,omitempty"`
	Username          string       `json:"username,omitempty"`
	Phone             *string      `json:"phone,omitempty"`
	CPF               *string      `json:"cpf,omitempty"`
	Balance           *core.Amount `json:"balance,omitempty"`
	MonthlyProfit     *core.Amount `json:"monthly_profit,omitempty"`
	AccumulatedProfit *core.Amount `json:"accumulated_profit,omitempty"`
	Status            string       `json:"status,omitempty"`
}

func (b *Backend) handleAuthRoutes(router *mux.Router) {
	rlog := logger.Default()
	rlog.Debugln("authentication")
	rlog.Debugln("  handle route: /api/auth/login POST")
	rlog.Debugln("  handle route: /api/auth/register POST")
	rlog.Debugln("  handle route: /api/auth/verify POST")
	rlog.Debugln("  handle route: /api/auth/logout POST")

	router.Handle("/auth/login", b.rateLimited(b.login)).Methods(http.MethodPost)
	router.Handle("/auth/register", b.rateLimited(b.register)).Methods(http.MethodPost)
	router.Handle("/auth/verify", b.guard.Wrap(http.HandlerFunc(b.verify))).Methods(http.MethodPost)
	router.HandleFunc("/auth/logout", b.logout).Methods(http.MethodPost)
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	doc, err := b.decodeBody(r, schema.LoginRequest)
	if err != nil {
		writeError(w, r, "4101", err)
		return
	}
	result, err := b.authenticator.Login(r.Context(), stringField(doc, "email"), stringField(doc, "password"))
	if err != nil {
		writeError(w, r, "4102", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   result.Token,
		"user":    result.User,
	})
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	doc, err := b.decodeBody(r, schema.RegisterRequest)
	if err != nil {
		writeError(w, r, "4103", err)
		return
	}
	result, err := b.authenticator.Register(r.Context(), auth.RegisterRequest{
		Username: stringField(doc, "username"),
		Email:    stringField(doc, "email"),
		Phone:    stringField(doc, "phone"),
		CPF:      stringField(doc, "cpf"),
		Password: stringField(doc, "password"),
	})
	if err != nil {
		writeError(w, r, "4104", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "User created successfully",
		"user_id": result.UserID,
	})
}

// verify returns the principal of the token. Admin claims come from the token
// only; profile fields are added for regular users when the profile is readable.
func (b *Backend) verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := access.PrincipalFromContext(ctx)
	if principal == nil {
		writeError(w, r, "4105", core.ErrMissingToken)
		return
	}
	user := verifiedUser{ID: principal.ID, Email: principal.Email, IsAdmin: principal.IsAdmin}
	if principal.ID == access.AdminID {
		user.Name = "Administrador"
	} else if b.profiles.Available() {
		profile, err := b.profiles.Get(ctx, principal, principal.ID)
		if err != nil {
			logger.FromContext(ctx).WithError(err).Debugln("verify without profile")
		} else {
			user.Name = profile.Name
			user.Username = profile.Username
			user.Phone = profile.Phone
			user.CPF = profile.CPF
			user.Balance = &profile.Balance
			user.MonthlyProfit = &profile.MonthlyProfit
			user.AccumulatedProfit = &profile.AccumulatedProfit
			user.Status = profile.Status
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

// logout ends the identity service session of the bearer, if any. It always succeeds.
func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	b.authenticator.Logout(r.Context(), access.BearerToken(r.Header.Get("Authorization")))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logout successful",
	})
}
