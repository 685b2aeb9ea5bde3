// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend_test

import (
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/investpro/core"
	"github.com/relabs-tech/investpro/core/access"
	"github.com/relabs-tech/investpro/core/auth"
	"github.com/relabs-tech/investpro/core/backend"
	"github.com/relabs-tech/investpro/core/client"
	"github.com/relabs-tech/investpro/core/fake"
	"github.com/relabs-tech/investpro/core/profiles"
)

const (
	adminEmail    = "admin@investapp.com"
	adminPassword = "admin123"
)

// TestService is a backend on in-memory collaborators
type TestService struct {
	backend *backend.Backend
	fake    *fake.Backend
	codec   *access.TokenCodec
	// client talks to the backend without authorization
	client client.Client
}

// CreateTestService creates a backend with the users u1 (ana@example.com)
// and u2 (bia@example.com). configure may change the builder before the
// backend is created.
func CreateTestService(t *testing.T, configure ...func(*backend.Builder)) *TestService {
	t.Helper()
	ana := core.NewProfile("u1", "ana@example.com")
	ana.Name = "Ana"
	ana.Balance = 1500.25
	bia := core.NewProfile("u2", "bia@example.com")
	bia.Name = "Bia"

	s := &TestService{
		fake: fake.New(
			fake.WithUser("u1", "ana@example.com", "secret1"),
			fake.WithUser("u2", "bia@example.com", "secret2"),
			fake.WithProfile(ana),
			fake.WithProfile(bia),
		),
		codec: access.MustNewTokenCodec("test-secret", 24*time.Hour),
	}

	builder := backend.Builder{
		Router: mux.NewRouter(),
		Authenticator: auth.New(&auth.Builder{
			Identity:   s.fake,
			Profiles:   s.fake,
			Codec:      s.codec,
			LocalAdmin: &access.LocalAdmin{Email: adminEmail, Password: adminPassword},
		}),
		Profiles:    profiles.New(s.fake),
		Guard:       access.NewGuard(s.codec),
		BackendName: "memory",
	}
	for _, c := range configure {
		c(&builder)
	}
	s.backend = backend.New(&builder)
	s.client = client.NewWithRouter(s.backend.Handler())
	return s
}

// clientFor returns a client with a token for the principal
func (s *TestService) clientFor(t *testing.T, p access.Principal) client.Client {
	t.Helper()
	token, err := s.codec.Issue(access.ClaimsFor(p))
	require.NoError(t, err)
	return s.client.WithToken(token)
}

func (s *TestService) admin(t *testing.T) client.Client {
	return s.clientFor(t, access.Principal{ID: access.AdminID, Email: adminEmail, IsAdmin: true})
}

func (s *TestService) ana(t *testing.T) client.Client {
	return s.clientFor(t, access.Principal{ID: "u1", Email: "ana@example.com"})
}

// errorOf decodes the error message of a JSON error body
func errorOf(t *testing.T, body []byte) string {
	t.Helper()
	var e struct {
		Error string `json:"error"`
	}
	require.NoError(t, (&client.Response{Body: body}).Decode(&e))
	return e.Error
}
