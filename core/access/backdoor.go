// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package access

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/relabs-tech/investpro/core"
)

// LocalAdmin is a configured credential set which logs in as admin without
// contacting the identity service. It is meant for environments where the
// identity service is not set up. The zero value is disabled.
//
// Password is either plaintext or a bcrypt hash (anything starting with "$2").
type LocalAdmin struct {
	Email    string
	Password string
	// Profile is the snapshot returned at login. If empty, DefaultAdminProfile is used.
	Profile *core.Profile
}

// DefaultAdminProfile returns the profile snapshot of the local admin
func DefaultAdminProfile(email string) core.Profile {
	p := core.NewProfile(AdminID, email)
	p.Username = "admin"
	p.Name = "Administrador"
	p.Balance = 50000
	p.MonthlyProfit = 5.2
	p.AccumulatedProfit = 15.8
	p.IsAdmin = true
	return p
}

// Enabled returns true if the local admin is configured
func (l *LocalAdmin) Enabled() bool {
	return l != nil && l.Email != "" && l.Password != ""
}

// Matches returns true if the credentials are the local admin's. Emails are
// compared case insensitive.
func (l *LocalAdmin) Matches(email, password string) bool {
	if !l.Enabled() || !strings.EqualFold(strings.TrimSpace(email), l.Email) {
		return false
	}
	if strings.HasPrefix(l.Password, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(l.Password), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(l.Password), []byte(password)) == 1
}

// Principal returns the local admin's principal
func (l *LocalAdmin) Principal() Principal {
	return Principal{ID: AdminID, Email: l.Email, IsAdmin: true}
}

// Snapshot returns the local admin's profile snapshot
func (l *LocalAdmin) Snapshot() core.Profile {
	if l.Profile != nil {
		p := *l.Profile
		p.ID = AdminID
		p.IsAdmin = true
		return p
	}
	return DefaultAdminProfile(l.Email)
}
