package supabase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/investpro/core"
	"github.com/relabs-tech/investpro/core/access"
	"github.com/relabs-tech/investpro/core/auth"
)

const testKey = "anon-key"

// project is a stand-in for a Supabase project, answering like GoTrue and PostgREST do
type project struct {
	t        *testing.T
	router   *mux.Router
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
}

func newProject(t *testing.T) (*project, *Client) {
	p := &project{t: t, router: mux.NewRouter()}
	p.router.Use(func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			p.mu.Lock()
			p.requests = append(p.requests, r)
			p.bodies = append(p.bodies, string(body))
			p.mu.Unlock()
			if r.Header.Get("apikey") != testKey {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			h.ServeHTTP(w, r)
		})
	})
	server := httptest.NewServer(p.router)
	t.Cleanup(server.Close)
	c, err := New(server.URL, testKey)
	require.NoError(t, err)
	return p, c
}

func (p *project) handle(method, path string, status int, body string) {
	p.router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Range", "0-0/42")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}).Methods(method)
}

func (p *project) last() (*http.Request, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(p.t, p.requests)
	return p.requests[len(p.requests)-1], p.bodies[len(p.bodies)-1]
}

func TestNew(t *testing.T) {
	_, err := New("", testKey)
	assert.Error(t, err)
	_, err = New("not a url", testKey)
	assert.Error(t, err)
	_, err = New("https://xyz.supabase.co", "")
	assert.Error(t, err)
}

func TestSignIn(t *testing.T) {
	p, c := newProject(t)
	p.handle(http.MethodPost, "/auth/v1/token", http.StatusOK,
		`{"access_token":"gotrue-token","token_type":"bearer","user":{"id":"u1","email":"ana@example.com"}}`)

	identity, err := c.Auth().SignIn(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, &core.Identity{ID: "u1", Email: "ana@example.com", AccessToken: "gotrue-token"}, identity)

	r, body := p.last()
	assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
	assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
	assert.JSONEq(t, `{"email":"ana@example.com","password":"secret"}`, body)
}

func TestSignInFailures(t *testing.T) {
	tests := []struct {
		status int
		body   string
		check  func(error) bool
	}{
		{http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`,
			func(err error) bool { return assert.ErrorIs(t, err, core.ErrInvalidCredentials) }},
		{http.StatusBadRequest, `{"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}`,
			func(err error) bool { return assert.ErrorIs(t, err, core.ErrInvalidCredentials) }},
		{http.StatusBadGateway, `upstream down`,
			func(err error) bool { return assert.ErrorIs(t, err, core.ErrAuthUnavailable) }},
		{http.StatusTooManyRequests, `{"error_code":"over_request_rate_limit"}`,
			func(err error) bool { return assert.True(t, core.IsKind(err, core.KindUnavailable)) }},
	}
	for _, tt := range tests {
		p, c := newProject(t)
		p.handle(http.MethodPost, "/auth/v1/token", tt.status, tt.body)
		_, err := c.Auth().SignIn(context.Background(), "ana@example.com", "wrong")
		tt.check(err)
	}
}

func TestUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	c, err := New(server.URL, testKey)
	require.NoError(t, err)

	_, err = c.Auth().SignIn(context.Background(), "ana@example.com", "secret")
	assert.ErrorIs(t, err, core.ErrAuthUnavailable)
	_, err = c.Auth().SignUp(context.Background(), core.SignUpRequest{Email: "a@b.c", Password: "x"})
	assert.ErrorIs(t, err, core.ErrRegistrationUnavailable)
	_, err = c.Profiles().List(context.Background())
	assert.ErrorIs(t, err, core.ErrDatabaseUnavailable)
}

func TestSignUp(t *testing.T) {
	p, c := newProject(t)
	// with email confirmation GoTrue answers with the bare user
	p.handle(http.MethodPost, "/auth/v1/signup", http.StatusOK, `{"id":"u9","email":"bia@example.com","aud":"authenticated"}`)

	identity, err := c.Auth().SignUp(context.Background(), core.SignUpRequest{
		Email:    "bia@example.com",
		Password: "pw",
		Metadata: map[string]interface{}{"username": "bia"},
	})
	require.NoError(t, err)
	assert.Equal(t, "u9", identity.ID)

	_, body := p.last()
	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &sent))
	assert.Equal(t, "bia", sent["data"].(map[string]interface{})["username"])
}

func TestSignUpDuplicate(t *testing.T) {
	for _, code := range []string{"user_already_exists", "email_exists"} {
		p, c := newProject(t)
		p.handle(http.MethodPost, "/auth/v1/signup", http.StatusUnprocessableEntity,
			`{"code":422,"error_code":"`+code+`","msg":"User already registered"}`)
		_, err := c.Auth().SignUp(context.Background(), core.SignUpRequest{Email: "bia@example.com", Password: "pw"})
		assert.ErrorIs(t, err, core.ErrDuplicateAccount, code)
	}

	// GoTrue before error codes answers with status and message only
	for _, status := range []int{http.StatusBadRequest, http.StatusUnprocessableEntity} {
		p, c := newProject(t)
		p.handle(http.MethodPost, "/auth/v1/signup", status,
			fmt.Sprintf(`{"code":%d,"msg":"User already registered"}`, status))
		_, err := c.Auth().SignUp(context.Background(), core.SignUpRequest{Email: "bia@example.com", Password: "pw"})
		assert.ErrorIs(t, err, core.ErrDuplicateAccount, status)
	}

	// messages alone are not trusted
	p, c := newProject(t)
	p.handle(http.MethodPost, "/auth/v1/signup", http.StatusBadRequest, `{"msg":"User already registered"}`)
	_, err := c.Auth().SignUp(context.Background(), core.SignUpRequest{Email: "bia@example.com", Password: "pw"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrDuplicateAccount)
}

func TestSignOut(t *testing.T) {
	p, c := newProject(t)
	p.handle(http.MethodPost, "/auth/v1/logout", http.StatusNoContent, ``)
	require.NoError(t, c.Auth().SignOut(context.Background(), "session"))
	r, _ := p.last()
	assert.Equal(t, "Bearer session", r.Header.Get("Authorization"))

	p, c = newProject(t)
	p.handle(http.MethodPost, "/auth/v1/logout", http.StatusUnauthorized, `{"error_code":"bad_jwt"}`)
	assert.NoError(t, c.Auth().SignOut(context.Background(), "not-a-gotrue-token"))
}

func TestLogoutEndsGoTrueSession(t *testing.T) {
	ctx := context.Background()
	p, c := newProject(t)
	p.handle(http.MethodPost, "/auth/v1/token", http.StatusOK,
		`{"access_token":"gotrue-session-abc","token_type":"bearer","user":{"id":"u1","email":"ana@example.com"}}`)
	p.handle(http.MethodPost, "/auth/v1/logout", http.StatusNoContent, ``)

	authenticator := auth.New(&auth.Builder{
		Identity: c.Auth(),
		Codec:    access.MustNewTokenCodec("test-secret", time.Hour),
	})
	result, err := authenticator.Login(ctx, "ana@example.com", "secret")
	require.NoError(t, err)

	authenticator.Logout(ctx, result.Token)
	r, _ := p.last()
	assert.Equal(t, "/auth/v1/logout", r.URL.Path)
	assert.Equal(t, "Bearer gotrue-session-abc", r.Header.Get("Authorization"))
}

func TestProfilesListAndGet(t *testing.T) {
	p, c := newProject(t)
	p.router.HandleFunc(profilesPath, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "eq.u1":
			w.Write([]byte(`[{"id":"u1","email":"ana@example.com","balance":"1500.50","monthly_profit":null,"accumulated_profit":3,"is_admin":false,"status":"active"}]`))
		case "eq.nope":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":"22P02","message":"invalid input syntax for type uuid: \"nope\""}`))
		case "":
			w.Write([]byte(`[{"id":"u2"},{"id":"u1"}]`))
		default:
			w.Write([]byte(`[]`))
		}
	}).Methods(http.MethodGet)

	profiles, err := c.Profiles().List(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	r, _ := p.last()
	assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))

	profile, err := c.Profiles().Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, core.Amount(1500.5), profile.Balance)
	assert.Equal(t, core.Amount(0), profile.MonthlyProfit)
	assert.Equal(t, core.Amount(3), profile.AccumulatedProfit)

	_, err = c.Profiles().Get(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = c.Profiles().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestProfilesWrite(t *testing.T) {
	p, c := newProject(t)
	p.router.HandleFunc(profilesPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Prefer") != "return=representation" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("id") == "eq.missing" {
			w.Write([]byte(`[]`))
			return
		}
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
		}
		w.Write([]byte(`[{"id":"u1","name":"Ana","balance":"10.00","is_admin":true}]`))
	}).Methods(http.MethodPost, http.MethodPatch, http.MethodDelete)

	created, err := c.Profiles().Insert(context.Background(), core.NewProfile("", "ana@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "u1", created.ID)
	_, body := p.last()
	assert.NotContains(t, body, `"id"`)
	assert.Contains(t, body, `"balance":0`)

	updated, err := c.Profiles().Update(context.Background(), "u1", core.ProfileFields{"balance": core.Amount(10), "is_admin": true})
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin)
	r, body := p.last()
	assert.Equal(t, http.MethodPatch, r.Method)
	assert.Equal(t, "eq.u1", r.URL.Query().Get("id"))
	assert.JSONEq(t, `{"balance":10,"is_admin":true}`, body)

	_, err = c.Profiles().Update(context.Background(), "missing", core.ProfileFields{"name": "x"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, c.Profiles().Delete(context.Background(), "u1"))
	assert.ErrorIs(t, c.Profiles().Delete(context.Background(), "missing"), core.ErrNotFound)
}

func TestProfilesCountAndOutage(t *testing.T) {
	p, c := newProject(t)
	p.handle(http.MethodGet, profilesPath, http.StatusOK, `[{"id":"u1"}]`)
	count, err := c.Profiles().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, count)
	r, _ := p.last()
	assert.Equal(t, "count=exact", r.Header.Get("Prefer"))

	p, c = newProject(t)
	p.handle(http.MethodGet, profilesPath, http.StatusServiceUnavailable, `{"message":"connection refused"}`)
	_, err = c.Profiles().List(context.Background())
	assert.ErrorIs(t, err, core.ErrDatabaseUnavailable)
}
