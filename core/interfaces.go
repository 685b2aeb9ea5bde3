// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package core

import "context"

// Identity is an account as known by the identity service
type Identity struct {
	ID    string
	Email string
	// AccessToken is the identity service's own session token, if it issued one
	AccessToken string
}

// SignUpRequest is the input for creating an account at the identity service
type SignUpRequest struct {
	Email    string
	Password string
	// Metadata is stored with the account by the identity service
	Metadata map[string]interface{}
}

// IdentityService is the system of record for credentials and account existence.
//
// Implementations: supabase/ (GoTrue over HTTP), fake/ (testing and development).
type IdentityService interface {
	// SignIn verifies the credentials. Returns ErrInvalidCredentials when the service
	// rejects them and an error of KindUnavailable when it cannot be reached.
	SignIn(ctx context.Context, email, password string) (*Identity, error)

	// SignUp creates a new account. Returns ErrDuplicateAccount when the email is
	// already registered.
	SignUp(ctx context.Context, request SignUpRequest) (*Identity, error)

	// SignOut invalidates the identity service's own session for accessToken.
	SignOut(ctx context.Context, accessToken string) error
}

// ProfileStore is the system of record for profiles.
//
// Implementations: supabase/ (PostgREST), csql/ (Postgres), fake/ (testing and development).
// Get, Update and Delete return ErrNotFound for unknown ids.
type ProfileStore interface {
	// List returns all profiles, newest first
	List(ctx context.Context) ([]Profile, error)
	Get(ctx context.Context, id string) (*Profile, error)
	// Insert stores a new profile. If the id is empty, the store assigns one.
	Insert(ctx context.Context, profile Profile) (*Profile, error)
	Update(ctx context.Context, id string, fields ProfileFields) (*Profile, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
