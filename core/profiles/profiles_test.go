package profiles

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/investpro/core"
	"github.com/relabs-tech/investpro/core/access"
	"github.com/relabs-tech/investpro/core/fake"
)

var (
	admin = &access.Principal{ID: "admin", Email: "admin@investapp.com", IsAdmin: true}
	u1    = &access.Principal{ID: "u1", Email: "ana@example.com"}
	u2    = &access.Principal{ID: "u2", Email: "bia@example.com"}
)

func document(t *testing.T, s string) core.Document {
	var doc core.Document
	require.NoError(t, json.Unmarshal([]byte(s), &doc))
	return doc
}

func seeded() (*Repository, *fake.Backend) {
	backend := fake.New(
		fake.WithProfile(core.NewProfile("u1", "ana@example.com")),
		fake.WithProfile(core.NewProfile("u2", "bia@example.com")),
	)
	return New(backend), backend
}

func TestAdminOnlyOperations(t *testing.T) {
	ctx := context.Background()
	r, _ := seeded()

	_, err := r.List(ctx, u1)
	assert.ErrorIs(t, err, core.ErrAdminRequired)
	_, err = r.Create(ctx, u1, core.Document{"email": "x@example.com"})
	assert.ErrorIs(t, err, core.ErrAdminRequired)
	assert.ErrorIs(t, r.Delete(ctx, u1, "u1"), core.ErrAdminRequired)
	_, err = r.Stats(ctx, u1)
	assert.ErrorIs(t, err, core.ErrAdminRequired)

	list, err := r.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSelfOrAdmin(t *testing.T) {
	ctx := context.Background()
	r, _ := seeded()

	_, err := r.Get(ctx, u2, "u1")
	assert.ErrorIs(t, err, core.ErrAccessDenied)
	_, err = r.Update(ctx, u2, "u1", core.Document{"name": "x"})
	assert.ErrorIs(t, err, core.ErrAccessDenied)

	p, err := r.Get(ctx, u1, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", p.Email)

	_, err = r.Get(ctx, admin, "nobody")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdateIsAdminRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	r, _ := seeded()

	p, err := r.Update(ctx, u1, "u1", document(t, `{"is_admin": true, "name": "Ana"}`))
	require.NoError(t, err)
	assert.False(t, p.IsAdmin)
	assert.Equal(t, "Ana", p.Name)

	p, err = r.Update(ctx, u1, "u1", document(t, `{"is_admin": true}`))
	require.NoError(t, err)
	assert.False(t, p.IsAdmin)
	assert.Equal(t, "Ana", p.Name)

	_, err = r.Update(ctx, u1, "u1", document(t, `{"password": "x"}`))
	assert.ErrorIs(t, err, core.ErrNoFieldsToUpdate)

	stored, err := r.Get(ctx, admin, "u1")
	require.NoError(t, err)
	assert.False(t, stored.IsAdmin)

	p, err = r.Update(ctx, admin, "u1", document(t, `{"is_admin": true}`))
	require.NoError(t, err)
	assert.True(t, p.IsAdmin)

	p, err = r.Update(ctx, admin, "u1", document(t, `{"is_admin": false}`))
	require.NoError(t, err)
	assert.False(t, p.IsAdmin)
}

func TestUpdateCoercion(t *testing.T) {
	ctx := context.Background()
	r, _ := seeded()

	p, err := r.Update(ctx, u1, "u1", document(t, `{"balance": "1234.56", "monthly_profit": 2, "phone": "123", "cpf": null, "email": "evil@example.com"}`))
	require.NoError(t, err)
	assert.InDelta(t, 1234.56, float64(p.Balance), 1e-9)
	assert.Equal(t, core.Amount(2), p.MonthlyProfit)
	require.NotNil(t, p.Phone)
	assert.Equal(t, "123", *p.Phone)
	assert.Nil(t, p.CPF)
	assert.Equal(t, "ana@example.com", p.Email)

	_, err = r.Update(ctx, u1, "u1", document(t, `{"balance": "lots"}`))
	assert.Equal(t, 400, core.StatusCode(err))
	_, err = r.Update(ctx, u1, "u1", document(t, `{"name": 7}`))
	assert.Equal(t, 400, core.StatusCode(err))

	_, err = r.Update(ctx, u1, "u1", document(t, `{"password": "x"}`))
	assert.ErrorIs(t, err, core.ErrNoFieldsToUpdate)
	_, err = r.Update(ctx, admin, "missing", document(t, `{"name": "x"}`))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCreateThenGet(t *testing.T) {
	ctx := context.Background()
	r, _ := seeded()

	created, err := r.Create(ctx, admin, document(t, `{
		"email": "carla@example.com",
		"username": "carla",
		"phone": "+55 21 98888-7777",
		"balance": "2500.75",
		"monthly_profit": 1.1,
		"accumulated_profit": 3.3,
		"status": "inactive"
	}`))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "carla", created.Name)

	got, err := r.Get(ctx, admin, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Username, got.Username)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, created.Email, got.Email)
	assert.Equal(t, created.Phone, got.Phone)
	assert.Equal(t, created.CPF, got.CPF)
	assert.Equal(t, created.Status, got.Status)
	assert.Equal(t, created.IsAdmin, got.IsAdmin)
	assert.InDelta(t, 2500.75, float64(got.Balance), 1e-9)
	assert.InDelta(t, 1.1, float64(got.MonthlyProfit), 1e-9)
	assert.InDelta(t, 3.3, float64(got.AccumulatedProfit), 1e-9)
}

func TestCreateDefaults(t *testing.T) {
	ctx := context.Background()
	r, _ := seeded()

	_, err := r.Create(ctx, admin, core.Document{"name": "x"})
	assert.ErrorIs(t, err, ErrEmailRequired)

	p, err := r.Create(ctx, admin, core.Document{"email": "d@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "d@example.com", p.Username)
	assert.Equal(t, "d@example.com", p.Name)
	assert.Equal(t, core.StatusActive, p.Status)
	assert.Equal(t, core.Amount(0), p.Balance)
	assert.False(t, p.IsAdmin)

	p, err = r.Create(ctx, admin, core.Document{"email": "e@example.com", "username": "eve"})
	require.NoError(t, err)
	assert.Equal(t, "eve", p.Name)
}

func TestDeleteChecksExistence(t *testing.T) {
	ctx := context.Background()
	r, _ := seeded()

	assert.ErrorIs(t, r.Delete(ctx, admin, "missing"), core.ErrNotFound)
	require.NoError(t, r.Delete(ctx, admin, "u2"))
	_, err := r.Get(ctx, admin, "u2")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	r, backend := seeded()
	_, err := backend.Update(ctx, "u1", core.ProfileFields{"balance": core.Amount(100.5), "is_admin": true})
	require.NoError(t, err)
	_, err = backend.Update(ctx, "u2", core.ProfileFields{"balance": core.Amount(50), "status": core.StatusInactive})
	require.NoError(t, err)

	stats, err := r.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, &core.Stats{
		TotalUsers:    2,
		ActiveUsers:   1,
		AdminUsers:    1,
		TotalBalance:  150.5,
		InactiveUsers: 1,
	}, stats)
}

func TestUnavailableStore(t *testing.T) {
	ctx := context.Background()
	r := New(nil)
	assert.False(t, r.Available())

	_, err := r.List(ctx, u1)
	assert.ErrorIs(t, err, core.ErrAdminRequired)
	_, err = r.List(ctx, admin)
	assert.ErrorIs(t, err, core.ErrDatabaseUnavailable)
	_, err = r.Ping(ctx)
	assert.ErrorIs(t, err, core.ErrDatabaseUnavailable)

	r = New(fake.New(fake.WithUnavailable()))
	_, err = r.Get(ctx, u1, "u1")
	assert.ErrorIs(t, err, core.ErrDatabaseUnavailable)
	assert.Equal(t, "Database service unavailable", core.PublicMessage(err))
}
