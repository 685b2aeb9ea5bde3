// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package supabase

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/investpro/core"
	"github.com/relabs-tech/investpro/core/client"
)

// GoTrue error codes mapped to core.ErrDuplicateAccount
var duplicateAccountCodes = map[string]bool{
	"user_already_exists": true,
	"email_exists":        true,
}

// legacyDuplicateAccountMsg is the message of GoTrue versions without error
// codes. It only counts together with a numeric code equal to the status.
const legacyDuplicateAccountMsg = "User already registered"

// GoTrue error codes mapped to core.ErrInvalidCredentials
var invalidCredentialCodes = map[string]bool{
	"invalid_credentials": true,
	"invalid_grant":       true,
	"email_not_confirmed": true,
}

// Auth implements core.IdentityService with GoTrue
type Auth struct {
	rest client.Client
}

var _ core.IdentityService = (*Auth)(nil)

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// gotrueSession is the response of token and signup. Signup answers with the
// bare user if email confirmation is required.
type gotrueSession struct {
	AccessToken string      `json:"access_token"`
	User        *gotrueUser `json:"user"`
	gotrueUser
}

func (s *gotrueSession) identity() *core.Identity {
	user := s.User
	if user == nil {
		user = &s.gotrueUser
	}
	if user.ID == "" {
		return nil
	}
	return &core.Identity{ID: user.ID, Email: user.Email, AccessToken: s.AccessToken}
}

// SignIn implements core.IdentityService
func (a *Auth) SignIn(ctx context.Context, email, password string) (*core.Identity, error) {
	body := map[string]string{"email": email, "password": password}
	res, err := a.rest.WithContext(ctx).Do(http.MethodPost, "/auth/v1/token?grant_type=password", nil, body)
	if err != nil {
		return nil, unavailable(core.ErrAuthUnavailable, err)
	}
	if res.StatusCode != http.StatusOK {
		apiErr := parseAPIError(res.Body)
		switch {
		case res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests:
			return nil, unavailable(core.ErrAuthUnavailable, fmt.Errorf("status %d: %s", res.StatusCode, apiErr))
		case invalidCredentialCodes[apiErr.code()], res.StatusCode == http.StatusBadRequest, res.StatusCode == http.StatusUnauthorized:
			return nil, fmt.Errorf("%w: %s", core.ErrInvalidCredentials, apiErr)
		}
		return nil, fmt.Errorf("sign in returned status %d: %s", res.StatusCode, apiErr)
	}
	var session gotrueSession
	if err := res.Decode(&session); err != nil {
		return nil, fmt.Errorf("cannot decode session: %w", err)
	}
	identity := session.identity()
	if identity == nil {
		return nil, fmt.Errorf("%w: no user in session", core.ErrInvalidCredentials)
	}
	return identity, nil
}

// duplicateAccount returns true if the sign up error reports an existing account
func (e apiError) duplicateAccount(status int) bool {
	if duplicateAccountCodes[e.code()] {
		return true
	}
	var legacy int
	return e.ErrorCode == "" && json.Unmarshal(e.Code, &legacy) == nil &&
		legacy == status && e.Msg == legacyDuplicateAccountMsg
}

// SignUp implements core.IdentityService
func (a *Auth) SignUp(ctx context.Context, request core.SignUpRequest) (*core.Identity, error) {
	body := map[string]interface{}{
		"email":    request.Email,
		"password": request.Password,
		"data":     request.Metadata,
	}
	res, err := a.rest.WithContext(ctx).Do(http.MethodPost, "/auth/v1/signup", nil, body)
	if err != nil {
		return nil, unavailable(core.ErrRegistrationUnavailable, err)
	}
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		apiErr := parseAPIError(res.Body)
		switch {
		case apiErr.duplicateAccount(res.StatusCode):
			return nil, core.ErrDuplicateAccount
		case res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests:
			return nil, unavailable(core.ErrRegistrationUnavailable, fmt.Errorf("status %d: %s", res.StatusCode, apiErr))
		}
		return nil, fmt.Errorf("sign up returned status %d: %s", res.StatusCode, apiErr)
	}
	var session gotrueSession
	if err := res.Decode(&session); err != nil {
		return nil, fmt.Errorf("cannot decode sign up response: %w", err)
	}
	identity := session.identity()
	if identity == nil {
		return nil, fmt.Errorf("sign up returned no user")
	}
	return identity, nil
}

// SignOut implements core.IdentityService. Tokens which GoTrue does not know
// are considered signed out already.
func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	header := map[string]string{"Authorization": "Bearer " + accessToken}
	res, err := a.rest.WithContext(ctx).Do(http.MethodPost, "/auth/v1/logout", header, nil)
	if err != nil {
		return unavailable(core.ErrAuthUnavailable, err)
	}
	switch {
	case res.StatusCode < 300, res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		return nil
	case res.StatusCode >= 500:
		return unavailable(core.ErrAuthUnavailable, fmt.Errorf("status %d: %s", res.StatusCode, parseAPIError(res.Body)))
	}
	return fmt.Errorf("sign out returned status %d: %s", res.StatusCode, parseAPIError(res.Body))
}
