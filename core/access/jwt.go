// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/relabs-tech/investpro/core"
)

// DefaultTokenValidity is the validity of a session token if nothing else is configured
const DefaultTokenValidity = 24 * time.Hour

// Claims are the claims of a session token.
//
// The subject carries the same value as UserID. IdentityToken is the identity
// service's own session token, kept so that logout can end that session.
type Claims struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email,omitempty"`
	IsAdmin       bool   `json:"is_admin"`
	IdentityToken string `json:"idp_token,omitempty"`
	jwt.RegisteredClaims
}

// Principal returns the principal asserted by the claims
func (c *Claims) Principal() *Principal {
	return &Principal{ID: c.UserID, Email: c.Email, IsAdmin: c.IsAdmin}
}

// ClaimsFor returns claims for the principal. The expiry is left to the codec.
func ClaimsFor(p Principal) Claims {
	return Claims{UserID: p.ID, Email: p.Email, IsAdmin: p.IsAdmin}
}

// TokenCodec issues and verifies HS256 session tokens
//
// The codec is stateless apart from its key and is safe for concurrent use.
type TokenCodec struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

// NewTokenCodec returns a codec signing with the shared secret. A validity of
// zero selects DefaultTokenValidity.
func NewTokenCodec(secret string, validity time.Duration) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("token codec requires a secret")
	}
	if validity < 0 {
		return nil, fmt.Errorf("invalid token validity %s", validity)
	}
	if validity == 0 {
		validity = DefaultTokenValidity
	}
	return &TokenCodec{
		secret:   []byte(secret),
		validity: validity,
		now:      time.Now,
		// expiry is checked against our own clock, see Verify
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// MustNewTokenCodec is like NewTokenCodec but panics on error
func MustNewTokenCodec(secret string, validity time.Duration) *TokenCodec {
	codec, err := NewTokenCodec(secret, validity)
	if err != nil {
		panic(err)
	}
	return codec
}

// WithClock replaces the clock of the codec. Used by tests.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	c.now = now
	return c
}

// Validity returns the validity of issued tokens
func (c *TokenCodec) Validity() time.Duration {
	return c.validity
}

// Issue signs the claims. Subject and issued-at are set from UserID and the
// clock. If no expiry is given, the token expires after the codec's validity.
func (c *TokenCodec) Issue(claims Claims) (string, error) {
	if claims.UserID == "" {
		return "", errors.New("cannot issue token without user id")
	}
	now := c.now()
	claims.Subject = claims.UserID
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.validity))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify checks signature and expiry of the token and returns its claims.
//
// Fails with core.ErrTokenExpired at or after the expiry instant and with
// core.ErrTokenMalformed for anything that does not parse or does not carry a
// valid HS256 signature.
func (c *TokenCodec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := c.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTokenMalformed, err)
	}
	if !token.Valid {
		return nil, core.ErrTokenMalformed
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: no expiry", core.ErrTokenMalformed)
	}
	if claims.UserID == "" {
		if claims.Subject == "" {
			return nil, fmt.Errorf("%w: no subject", core.ErrTokenMalformed)
		}
		claims.UserID = claims.Subject
	}
	if !c.now().Before(claims.ExpiresAt.Time) {
		return nil, core.ErrTokenExpired
	}
	return claims, nil
}
