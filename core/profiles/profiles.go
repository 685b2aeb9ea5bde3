// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*Package profiles is the access controlled adapter to the profile store.

Every operation takes the calling principal and checks it with the access
primitives before the store is touched. Request documents are allow-listed and
coerced to typed profile fields; monetary values may arrive as JSON numbers or
as numeric strings and are always returned as floats.
*/
package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/relabs-tech/investpro/core"
	"github.com/relabs-tech/investpro/core/access"
	"github.com/relabs-tech/investpro/core/logger"
)

// UpdatableFields are the fields every caller may update on a profile they can access
var UpdatableFields = []string{
	"username", "name", "phone", "cpf", "balance", "monthly_profit", "accumulated_profit", "status",
}

// AdminField is the field only admins may write
const AdminField = "is_admin"

// ErrEmailRequired is returned by Create for documents without email
var ErrEmailRequired = core.Validation("Email is required")

// Repository is the profile repository adapter
type Repository struct {
	store core.ProfileStore
}

// New returns a repository for store. A nil store makes every operation fail
// with core.ErrDatabaseUnavailable after the access checks.
func New(store core.ProfileStore) *Repository {
	return &Repository{store: store}
}

// Available returns true if the repository has a store
func (r *Repository) Available() bool {
	return r.store != nil
}

// List returns all profiles, newest first. Admin only.
func (r *Repository) List(ctx context.Context, caller *access.Principal) ([]core.Profile, error) {
	if err := access.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if r.store == nil {
		return nil, core.ErrDatabaseUnavailable
	}
	profiles, err := r.store.List(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	if profiles == nil {
		profiles = []core.Profile{}
	}
	return profiles, nil
}

// Create creates a new profile from a request document. Admin only.
//
// Email is required. Username defaults to the email and name to the username.
// Money defaults to zero, status to active and is_admin to false.
func (r *Repository) Create(ctx context.Context, caller *access.Principal, doc core.Document) (*core.Profile, error) {
	if err := access.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if r.store == nil {
		return nil, core.ErrDatabaseUnavailable
	}

	email, _ := doc["email"].(string)
	if strings.TrimSpace(email) == "" {
		return nil, ErrEmailRequired
	}
	fields, err := Coerce(doc, writableFields()...)
	if err != nil {
		return nil, err
	}
	profile := core.NewProfile("", email)
	if err := profile.Apply(fields); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInternal, err)
	}
	if _, ok := fields["username"]; !ok {
		profile.Username = email
	}
	if _, ok := fields["name"]; !ok {
		profile.Name = profile.Username
	}
	if profile.Status == "" {
		profile.Status = core.StatusActive
	}

	created, err := r.store.Insert(ctx, profile)
	if err != nil {
		return nil, storeError(err)
	}
	logger.FromContext(ctx).WithField("user_id", created.ID).Infoln("profile created")
	return created, nil
}

// Get returns the profile with id. Self or admin.
func (r *Repository) Get(ctx context.Context, caller *access.Principal, id string) (*core.Profile, error) {
	if err := access.RequireSelfOrAdmin(caller, id); err != nil {
		return nil, err
	}
	if r.store == nil {
		return nil, core.ErrDatabaseUnavailable
	}
	profile, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return profile, nil
}

// Update writes the allow-listed fields of doc to the profile with id. Self or admin.
//
// is_admin is only written when the caller is an admin; for everybody else it
// is ignored, and a request with nothing else returns the profile unchanged.
// Fails with core.ErrNoFieldsToUpdate if doc has no updatable field at all.
func (r *Repository) Update(ctx context.Context, caller *access.Principal, id string, doc core.Document) (*core.Profile, error) {
	if err := access.RequireSelfOrAdmin(caller, id); err != nil {
		return nil, err
	}
	if r.store == nil {
		return nil, core.ErrDatabaseUnavailable
	}

	fields, err := Coerce(doc, writableFields()...)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, core.ErrNoFieldsToUpdate
	}
	if !caller.IsAdmin {
		if _, ok := fields[AdminField]; ok {
			logger.FromContext(ctx).WithField("user_id", id).Warnln("ignoring is_admin from non-admin caller")
			delete(fields, AdminField)
		}
	}
	if len(fields) == 0 {
		profile, err := r.store.Get(ctx, id)
		if err != nil {
			return nil, storeError(err)
		}
		return profile, nil
	}

	profile, err := r.store.Update(ctx, id, fields)
	if err != nil {
		return nil, storeError(err)
	}
	return profile, nil
}

// Delete deletes the profile with id. Admin only.
func (r *Repository) Delete(ctx context.Context, caller *access.Principal, id string) error {
	if err := access.RequireAdmin(caller); err != nil {
		return err
	}
	if r.store == nil {
		return core.ErrDatabaseUnavailable
	}
	if _, err := r.store.Get(ctx, id); err != nil {
		return storeError(err)
	}
	if err := r.store.Delete(ctx, id); err != nil {
		return storeError(err)
	}
	logger.FromContext(ctx).WithField("user_id", id).Infoln("profile deleted")
	return nil
}

// Stats computes the user statistics by scanning all profiles. Admin only.
func (r *Repository) Stats(ctx context.Context, caller *access.Principal) (*core.Stats, error) {
	if err := access.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if r.store == nil {
		return nil, core.ErrDatabaseUnavailable
	}
	profiles, err := r.store.List(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return ComputeStats(profiles), nil
}

// ComputeStats aggregates the profiles
func ComputeStats(profiles []core.Profile) *core.Stats {
	stats := &core.Stats{TotalUsers: len(profiles)}
	for _, p := range profiles {
		if p.Status == core.StatusActive {
			stats.ActiveUsers++
		}
		if p.IsAdmin {
			stats.AdminUsers++
		}
		stats.TotalBalance += p.Balance
	}
	stats.InactiveUsers = stats.TotalUsers - stats.ActiveUsers
	return stats
}

// Ping counts the profiles. It is used for database diagnostics and requires no principal.
func (r *Repository) Ping(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, core.ErrDatabaseUnavailable
	}
	count, err := r.store.Count(ctx)
	if err != nil {
		return 0, storeError(err)
	}
	return count, nil
}

// Coerce picks the allowed keys from doc and converts their values to the
// types expected by core.ProfileFields. Keys which are not allowed are dropped.
func Coerce(doc core.Document, allowed ...string) (core.ProfileFields, error) {
	fields := core.ProfileFields{}
	for _, key := range allowed {
		value, ok := doc[key]
		if !ok {
			continue
		}
		var err error
		switch key {
		case "username", "name", "status", "email":
			s, ok := value.(string)
			if !ok {
				err = fmt.Errorf("expected string, got %T", value)
			}
			fields[key] = s
		case "phone", "cpf":
			switch v := value.(type) {
			case nil:
				fields[key] = (*string)(nil)
			case string:
				fields[key] = &v
			default:
				err = fmt.Errorf("expected string, got %T", value)
			}
		case "balance", "monthly_profit", "accumulated_profit":
			fields[key], err = core.AmountFrom(value)
		case AdminField:
			b, ok := value.(bool)
			if !ok {
				err = fmt.Errorf("expected boolean, got %T", value)
			}
			fields[key] = b
		default:
			return nil, fmt.Errorf("%w: field %s cannot be coerced", core.ErrInternal, key)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", core.Validation("Invalid value for "+key), key, err)
		}
	}
	return fields, nil
}

// writableFields returns the updatable fields plus is_admin
func writableFields() []string {
	return append(append([]string{}, UpdatableFields...), AdminField)
}

// storeError maps errors of the store to the errors of the repository.
func storeError(err error) error {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return core.ErrNotFound
	case core.IsKind(err, core.KindUnavailable):
		if errors.Is(err, core.ErrDatabaseUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", core.ErrDatabaseUnavailable, err)
	case core.IsKind(err, core.KindValidation):
		return err
	}
	return fmt.Errorf("%w: %v", core.ErrInternal, err)
}
