// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package auth implements login, registration and logout.
//
// Credentials are checked by the configured local admin or by the external
// identity service. A successful login yields a session token issued by the
// access.TokenCodec; from then on the service is stateless.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/relabs-tech/investpro/core"
	"github.com/relabs-tech/investpro/core/access"
	"github.com/relabs-tech/investpro/core/logger"
	"github.com/relabs-tech/investpro/core/pointers"
)

// Builder is a builder helper for the Authenticator
type Builder struct {
	// Identity is the external identity service. If nil, only the local admin can log in.
	Identity core.IdentityService
	// Profiles is the profile store. If nil, profiles are synthesized and never persisted.
	Profiles core.ProfileStore
	// Codec issues the session tokens. Mandatory.
	Codec *access.TokenCodec
	// LocalAdmin is an optional local admin credential set
	LocalAdmin *access.LocalAdmin
}

// Authenticator validates credentials and issues session tokens
type Authenticator struct {
	identity   core.IdentityService
	profiles   core.ProfileStore
	codec      *access.TokenCodec
	localAdmin *access.LocalAdmin
}

// LoginResult is the result of a successful login
type LoginResult struct {
	Token string
	User  core.Profile
}

// RegisterRequest is the input for Register. Phone and CPF are optional.
type RegisterRequest struct {
	Username string
	Email    string
	Phone    string
	CPF      string
	Password string
}

// RegistrationResult is the result of a successful registration.
//
// ProfileCreated is false if the account was created but the profile could not
// be written. The profile is then created at the first login.
type RegistrationResult struct {
	UserID         string
	ProfileCreated bool
}

// Validation errors of this package
var (
	ErrLoginFieldsRequired    = core.Validation("Email and password are required")
	ErrRegisterFieldsRequired = core.Validation("Username, email and password are required")
)

// New returns a new authenticator
func New(bb *Builder) *Authenticator {
	if bb.Codec == nil {
		panic("authenticator requires a token codec")
	}
	return &Authenticator{
		identity:   bb.Identity,
		profiles:   bb.Profiles,
		codec:      bb.Codec,
		localAdmin: bb.LocalAdmin,
	}
}

// LocalAdminEnabled returns true if a local admin is configured
func (a *Authenticator) LocalAdminEnabled() bool {
	return a.localAdmin.Enabled()
}

// Login validates the credentials and issues a session token.
//
// The local admin never reaches the identity service. Everybody else is
// verified by the identity service and gets their profile ensured, see
// EnsureProfile. The admin claim of the token is taken from that profile.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	rlog := logger.FromContext(ctx)
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrLoginFieldsRequired
	}

	if a.localAdmin.Matches(email, password) {
		token, err := a.codec.Issue(access.ClaimsFor(a.localAdmin.Principal()))
		if err != nil {
			return nil, fmt.Errorf("%w: cannot issue token: %v", core.ErrInternal, err)
		}
		rlog.Infoln("local admin logged in")
		return &LoginResult{Token: token, User: a.localAdmin.Snapshot()}, nil
	}

	if a.identity == nil {
		return nil, core.ErrAuthUnavailable
	}
	identity, err := a.identity.SignIn(ctx, email, password)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidCredentials):
			return nil, core.ErrInvalidCredentials
		case core.IsKind(err, core.KindUnavailable):
			return nil, fmt.Errorf("%w: %v", core.ErrAuthUnavailable, err)
		}
		return nil, fmt.Errorf("%w: sign in: %v", core.ErrInternal, err)
	}

	profile, _ := a.EnsureProfile(ctx, *identity, nil)
	claims := access.ClaimsFor(access.Principal{
		ID:      identity.ID,
		Email:   identity.Email,
		IsAdmin: profile.IsAdmin,
	})
	claims.IdentityToken = identity.AccessToken
	token, err := a.codec.Issue(claims)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot issue token: %v", core.ErrInternal, err)
	}
	return &LoginResult{Token: token, User: profile}, nil
}

// EnsureProfile returns the profile of the identity and creates it if it does
// not exist yet.
//
// A missing profile is persisted as the default record: zero balance and
// profits, status active, no admin rights, name and username set to the email.
// The defaults may override name, username, phone and cpf. If the store cannot
// be read or written, the default record is returned without being persisted
// and persisted is false. The failure is logged so the account can be
// reconciled; the next login tries again.
func (a *Authenticator) EnsureProfile(ctx context.Context, identity core.Identity, defaults core.ProfileFields) (profile core.Profile, persisted bool) {
	rlog := logger.FromContext(ctx).WithField("user_id", identity.ID)

	profile = core.NewProfile(identity.ID, identity.Email)
	if err := profile.Apply(defaults); err != nil {
		rlog.WithError(err).Errorln("Error 3101: invalid profile defaults")
	}

	if a.profiles == nil {
		rlog.Warnln("no profile store, profile is not persisted")
		return profile, false
	}

	existing, err := a.profiles.Get(ctx, identity.ID)
	if err == nil {
		existing.ID = identity.ID
		if identity.Email != "" {
			existing.Email = identity.Email
		}
		return *existing, true
	}
	if !errors.Is(err, core.ErrNotFound) {
		rlog.WithError(err).Errorln("Error 3102: cannot read profile, reconciliation needed")
		return profile, false
	}

	created, err := a.profiles.Insert(ctx, profile)
	if err != nil {
		rlog.WithError(err).Errorln("Error 3103: cannot create profile, reconciliation needed")
		return profile, false
	}
	rlog.Infoln("created missing profile")
	return *created, true
}

// Register creates an account at the identity service and its profile.
//
// A failure to write the profile does not fail the registration because the
// account exists already. It is logged and reported in the result.
func (a *Authenticator) Register(ctx context.Context, request RegisterRequest) (*RegistrationResult, error) {
	rlog := logger.FromContext(ctx)
	if strings.TrimSpace(request.Username) == "" || strings.TrimSpace(request.Email) == "" || request.Password == "" {
		return nil, ErrRegisterFieldsRequired
	}
	if a.identity == nil {
		return nil, core.ErrRegistrationUnavailable
	}

	phone, cpf := pointers.OptionalString(request.Phone), pointers.OptionalString(request.CPF)
	identity, err := a.identity.SignUp(ctx, core.SignUpRequest{
		Email:    request.Email,
		Password: request.Password,
		Metadata: map[string]interface{}{
			"name":     request.Username,
			"username": request.Username,
			"phone":    phone,
			"cpf":      cpf,
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, core.ErrDuplicateAccount):
			return nil, core.ErrDuplicateAccount
		case core.IsKind(err, core.KindUnavailable):
			return nil, fmt.Errorf("%w: %v", core.ErrRegistrationUnavailable, err)
		}
		return nil, fmt.Errorf("%w: sign up: %v", core.ErrRegistrationFailed, err)
	}
	if identity == nil || identity.ID == "" {
		return nil, fmt.Errorf("%w: no user returned from sign up", core.ErrRegistrationFailed)
	}
	rlog = rlog.WithField("user_id", identity.ID)
	rlog.Infoln("account registered")

	fields := core.ProfileFields{
		"username": request.Username,
		"name":     request.Username,
		"email":    request.Email,
		"phone":    phone,
		"cpf":      cpf,
	}
	result := &RegistrationResult{UserID: identity.ID}
	if err := a.writeProfile(ctx, identity.ID, fields); err != nil {
		rlog.WithError(err).Warnln("Error 3104: account created without profile, reconciliation needed")
		return result, nil
	}
	result.ProfileCreated = true
	return result, nil
}

// writeProfile completes a profile which a database trigger may have created
// already, or inserts it.
func (a *Authenticator) writeProfile(ctx context.Context, id string, fields core.ProfileFields) error {
	if a.profiles == nil {
		return errors.New("no profile store")
	}
	_, err := a.profiles.Update(ctx, id, fields)
	if err == nil || !errors.Is(err, core.ErrNotFound) {
		return err
	}
	profile := core.NewProfile(id, "")
	if err := profile.Apply(fields); err != nil {
		return err
	}
	_, err = a.profiles.Insert(ctx, profile)
	return err
}

// Logout signals the identity service to end the session which was opened
// when token was issued by Login. This is best effort: errors are logged and
// never returned. Tokens which do not verify, or which carry no identity
// session, are ignored. The session token itself stays valid until it expires.
func (a *Authenticator) Logout(ctx context.Context, token string) {
	if a.identity == nil || token == "" {
		return
	}
	rlog := logger.FromContext(ctx)
	claims, err := a.codec.Verify(token)
	if err != nil {
		rlog.WithError(err).Debugln("logout with invalid token")
		return
	}
	if claims.IdentityToken == "" {
		return
	}
	if err := a.identity.SignOut(ctx, claims.IdentityToken); err != nil {
		rlog.WithError(err).WithField("user_id", claims.UserID).Warnln("identity service sign out failed")
	}
}
