// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package fake provides an in-memory identity service and profile store.
//
// Use fake.New() in unit tests to avoid network calls and external dependencies.
// The backend is also used for BACKEND=memory development mode.
package fake

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/investpro/core"
)

// Option configures the fake backend.
type Option func(*Backend)

type account struct {
	id       string
	email    string
	password string
	metadata map[string]interface{}
}

type row struct {
	profile core.Profile
	seq     int
}

// Backend implements core.IdentityService and core.ProfileStore in memory.
// It is safe for concurrent use.
type Backend struct {
	mu       sync.RWMutex
	accounts map[string]*account // lower case email → account
	profiles map[string]*row     // id → profile
	seq      int
	now      func() time.Time

	unavailable    bool
	failingInserts bool
	signIns        int
	signOuts       []string
}

var (
	_ core.IdentityService = (*Backend)(nil)
	_ core.ProfileStore    = (*Backend)(nil)
)

// WithUser adds an account to the identity service.
func WithUser(id, email, password string) Option {
	return func(b *Backend) {
		b.accounts[strings.ToLower(email)] = &account{id: id, email: email, password: password}
	}
}

// WithProfile adds a profile to the store.
func WithProfile(profile core.Profile) Option {
	return func(b *Backend) {
		b.insert(profile)
	}
}

// WithUnavailable makes every call fail as if the service could not be reached.
func WithUnavailable() Option {
	return func(b *Backend) {
		b.unavailable = true
	}
}

// WithFailingInserts makes profile inserts fail while everything else keeps working.
func WithFailingInserts() Option {
	return func(b *Backend) {
		b.failingInserts = true
	}
}

// New creates an in-memory backend
func New(opts ...Option) *Backend {
	b := &Backend{
		accounts: make(map[string]*account),
		profiles: make(map[string]*row),
		now:      time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// SetUnavailable switches the simulated outage on or off
func (b *Backend) SetUnavailable(unavailable bool) {
	b.mu.Lock()
	b.unavailable = unavailable
	b.mu.Unlock()
}

// SignInCount returns the number of SignIn calls which reached the backend
func (b *Backend) SignInCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.signIns
}

// SignOutCount returns the number of SignOut calls which reached the backend
func (b *Backend) SignOutCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.signOuts)
}

// SignedOut returns the access tokens of the SignOut calls, oldest first
func (b *Backend) SignedOut() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string{}, b.signOuts...)
}

// Metadata returns the sign-up metadata stored with the account for email
func (b *Backend) Metadata(email string) map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if a, ok := b.accounts[strings.ToLower(email)]; ok {
		return a.metadata
	}
	return nil
}

func (b *Backend) down() error {
	if b.unavailable {
		return fmt.Errorf("%w: fake backend is down", core.ErrUnavailable)
	}
	return nil
}

// SignIn implements core.IdentityService
func (b *Backend) SignIn(ctx context.Context, email, password string) (*core.Identity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.down(); err != nil {
		return nil, err
	}
	b.signIns++
	a, ok := b.accounts[strings.ToLower(email)]
	if !ok || a.password != password {
		return nil, core.ErrInvalidCredentials
	}
	return &core.Identity{ID: a.id, Email: a.email, AccessToken: "fake-session-" + a.id}, nil
}

// SignUp implements core.IdentityService
func (b *Backend) SignUp(ctx context.Context, request core.SignUpRequest) (*core.Identity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.down(); err != nil {
		return nil, err
	}
	key := strings.ToLower(request.Email)
	if _, ok := b.accounts[key]; ok {
		return nil, core.ErrDuplicateAccount
	}
	a := &account{
		id:       uuid.New().String(),
		email:    request.Email,
		password: request.Password,
		metadata: request.Metadata,
	}
	b.accounts[key] = a
	return &core.Identity{ID: a.id, Email: a.email}, nil
}

// SignOut implements core.IdentityService
func (b *Backend) SignOut(ctx context.Context, accessToken string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.down(); err != nil {
		return err
	}
	b.signOuts = append(b.signOuts, accessToken)
	return nil
}

func (b *Backend) insert(profile core.Profile) core.Profile {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	if profile.CreatedAt == nil {
		now := b.now().UTC()
		profile.CreatedAt = &now
	}
	b.seq++
	b.profiles[profile.ID] = &row{profile: profile, seq: b.seq}
	return profile
}

// List implements core.ProfileStore. Profiles are returned newest first.
func (b *Backend) List(ctx context.Context) ([]core.Profile, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.down(); err != nil {
		return nil, err
	}
	rows := make([]*row, 0, len(b.profiles))
	for _, r := range b.profiles {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		ci, cj := rows[i].profile.CreatedAt, rows[j].profile.CreatedAt
		if !ci.Equal(*cj) {
			return ci.After(*cj)
		}
		return rows[i].seq > rows[j].seq
	})
	profiles := make([]core.Profile, len(rows))
	for i, r := range rows {
		profiles[i] = r.profile
	}
	return profiles, nil
}

// Get implements core.ProfileStore
func (b *Backend) Get(ctx context.Context, id string) (*core.Profile, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.down(); err != nil {
		return nil, err
	}
	r, ok := b.profiles[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	profile := r.profile
	return &profile, nil
}

// Insert implements core.ProfileStore
func (b *Backend) Insert(ctx context.Context, profile core.Profile) (*core.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.down(); err != nil {
		return nil, err
	}
	if b.failingInserts {
		return nil, fmt.Errorf("%w: insert rejected", core.ErrDatabaseUnavailable)
	}
	if _, ok := b.profiles[profile.ID]; ok && profile.ID != "" {
		return nil, fmt.Errorf("duplicate key value violates unique constraint \"profiles_pkey\" (id=%s)", profile.ID)
	}
	profile = b.insert(profile)
	return &profile, nil
}

// Update implements core.ProfileStore
func (b *Backend) Update(ctx context.Context, id string, fields core.ProfileFields) (*core.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.down(); err != nil {
		return nil, err
	}
	r, ok := b.profiles[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	profile := r.profile
	if err := profile.Apply(fields); err != nil {
		return nil, err
	}
	r.profile = profile
	return &profile, nil
}

// Delete implements core.ProfileStore
func (b *Backend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.down(); err != nil {
		return err
	}
	if _, ok := b.profiles[id]; !ok {
		return core.ErrNotFound
	}
	delete(b.profiles, id)
	return nil
}

// Count implements core.ProfileStore
func (b *Backend) Count(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.down(); err != nil {
		return 0, err
	}
	return len(b.profiles), nil
}
