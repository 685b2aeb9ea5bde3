package access

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/relabs-tech/investpro/core"
)

const testSecret = "test-secret"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokenRoundTrip(t *testing.T) {
	issuedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	codec := MustNewTokenCodec(testSecret, 0).WithClock(fixedClock(issuedAt))

	for _, p := range []Principal{
		{ID: "admin", Email: "admin@investapp.com", IsAdmin: true},
		{ID: "u1", Email: "ana@example.com"},
		{ID: "u2"},
	} {
		token, err := codec.Issue(ClaimsFor(p))
		require.NoError(t, err)

		claims, err := codec.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, p, *claims.Principal())
		assert.Equal(t, p.ID, claims.Subject)
		assert.True(t, issuedAt.Add(24*time.Hour).Equal(claims.ExpiresAt.Time))
	}
}

func TestTokenExpiry(t *testing.T) {
	issuedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	expiry := issuedAt.Add(DefaultTokenValidity)
	codec := MustNewTokenCodec(testSecret, 0).WithClock(fixedClock(issuedAt))
	token, err := codec.Issue(Claims{UserID: "u1", IsAdmin: true})
	require.NoError(t, err)

	codec.WithClock(fixedClock(expiry.Add(-time.Second)))
	_, err = codec.Verify(token)
	assert.NoError(t, err)

	for _, now := range []time.Time{expiry, expiry.Add(time.Second), expiry.Add(48 * time.Hour)} {
		codec.WithClock(fixedClock(now))
		_, err = codec.Verify(token)
		assert.ErrorIs(t, err, core.ErrTokenExpired)
	}
}

func TestTokenTampered(t *testing.T) {
	codec := MustNewTokenCodec(testSecret, time.Hour)
	token, err := codec.Issue(Claims{UserID: "u1"})
	require.NoError(t, err)

	dot := strings.LastIndex(token, ".")
	signature := []byte(token[dot+1:])
	// the last character carries padding bits which decoders ignore
	for i := 0; i < len(signature)-1; i++ {
		tampered := append([]byte{}, signature...)
		if tampered[i] == 'A' {
			tampered[i] = 'B'
		} else {
			tampered[i] = 'A'
		}
		_, err = codec.Verify(token[:dot+1] + string(tampered))
		assert.ErrorIs(t, err, core.ErrTokenMalformed, "byte %d", i)
	}
}

func TestTokenMalformed(t *testing.T) {
	codec := MustNewTokenCodec(testSecret, time.Hour)

	other := MustNewTokenCodec("other-secret", time.Hour)
	foreign, err := other.Issue(Claims{UserID: "u1"})
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1", IsAdmin: true}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u1"}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)

	for _, token := range []string{"", "garbage", "a.b.c", foreign, unsigned, noExpiry} {
		_, err := codec.Verify(token)
		assert.ErrorIs(t, err, core.ErrTokenMalformed, token)
	}
}

func TestNewTokenCodecRequiresSecret(t *testing.T) {
	_, err := NewTokenCodec("", time.Hour)
	assert.Error(t, err)
	assert.Panics(t, func() { MustNewTokenCodec("", 0) })
}

func TestRequireSelfOrAdmin(t *testing.T) {
	tests := []struct {
		principal *Principal
		target    string
		allowed   bool
	}{
		{&Principal{ID: "u1"}, "u1", true},
		{&Principal{ID: "u2"}, "u1", false},
		{&Principal{ID: "u1"}, "", false},
		{&Principal{ID: "", IsAdmin: false}, "", false},
		{&Principal{ID: "admin", IsAdmin: true}, "u1", true},
		{&Principal{ID: "u2", IsAdmin: true}, "u1", true},
		{&Principal{ID: "u2", IsAdmin: true}, "u2", true},
	}
	for _, tt := range tests {
		err := RequireSelfOrAdmin(tt.principal, tt.target)
		if tt.allowed {
			assert.NoError(t, err, "%+v -> %s", tt.principal, tt.target)
		} else {
			assert.ErrorIs(t, err, core.ErrAccessDenied, "%+v -> %s", tt.principal, tt.target)
		}
	}
	assert.ErrorIs(t, RequireSelfOrAdmin(nil, "u1"), core.ErrMissingToken)
}

func TestRequireAdmin(t *testing.T) {
	assert.NoError(t, RequireAdmin(&Principal{ID: "admin", IsAdmin: true}))
	assert.ErrorIs(t, RequireAdmin(&Principal{ID: "u1"}), core.ErrAdminRequired)
	assert.ErrorIs(t, RequireAdmin(nil), core.ErrMissingToken)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken("Bearer "))
	assert.Equal(t, "", BearerToken("Bearer null"))
	assert.Equal(t, "", BearerToken(""))
}

func TestGuardAuthenticate(t *testing.T) {
	issuedAt := time.Now()
	codec := MustNewTokenCodec(testSecret, time.Hour).WithClock(fixedClock(issuedAt))
	guard := NewGuard(codec)
	token, err := codec.Issue(Claims{UserID: "u1", Email: "ana@example.com"})
	require.NoError(t, err)

	_, err = guard.Authenticate(http.Header{})
	assert.ErrorIs(t, err, core.ErrMissingToken)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	principal, err := guard.Authenticate(header)
	require.NoError(t, err)
	assert.Equal(t, &Principal{ID: "u1", Email: "ana@example.com"}, principal)

	codec.WithClock(fixedClock(issuedAt.Add(2 * time.Hour)))
	_, err = guard.Authenticate(header)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestGuardMiddleware(t *testing.T) {
	codec := MustNewTokenCodec(testSecret, time.Hour)
	guard := NewGuard(codec)
	var seen *Principal
	handler := guard.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Token is missing"}`, rec.Body.String())
	assert.Nil(t, seen)

	token, err := codec.Issue(Claims{UserID: "u1", IsAdmin: true})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u1", seen.ID)
	assert.True(t, seen.IsAdmin)
}

func TestLocalAdmin(t *testing.T) {
	var disabled *LocalAdmin
	assert.False(t, disabled.Enabled())
	assert.False(t, disabled.Matches("", ""))
	assert.False(t, (&LocalAdmin{Email: "admin@investapp.com"}).Matches("admin@investapp.com", ""))

	plain := &LocalAdmin{Email: "admin@investapp.com", Password: "admin123"}
	assert.True(t, plain.Matches("admin@investapp.com", "admin123"))
	assert.True(t, plain.Matches("Admin@InvestApp.com", "admin123"))
	assert.False(t, plain.Matches("admin@investapp.com", "admin124"))
	assert.False(t, plain.Matches("other@investapp.com", "admin123"))

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	require.NoError(t, err)
	hashed := &LocalAdmin{Email: "admin@investapp.com", Password: string(hash)}
	assert.True(t, hashed.Matches("admin@investapp.com", "admin123"))
	assert.False(t, hashed.Matches("admin@investapp.com", string(hash)))

	snapshot := plain.Snapshot()
	assert.Equal(t, AdminID, snapshot.ID)
	assert.Equal(t, "Administrador", snapshot.Name)
	assert.Equal(t, core.Amount(50000), snapshot.Balance)
	assert.True(t, snapshot.IsAdmin)
	assert.Equal(t, Principal{ID: "admin", Email: "admin@investapp.com", IsAdmin: true}, plain.Principal())
}
