// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package csql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/relabs-tech/investpro/core"
	"github.com/relabs-tech/investpro/core/pointers"
)

const profileColumns = `id, username, name, email, phone, cpf, balance, monthly_profit, accumulated_profit, is_admin, status, created_at`

// ProfileStore implements core.ProfileStore on the profiles table of a Postgres database,
// typically the database behind a Supabase project.
type ProfileStore struct {
	db    *DB
	table string
}

var _ core.ProfileStore = (*ProfileStore)(nil)

// NewProfileStore returns a store for <schema>.profiles
func NewProfileStore(db *DB) *ProfileStore {
	return &ProfileStore{db: db, table: db.Schema + ".profiles"}
}

// EnsureProfilesTable creates the profiles table if it does not exist. In production
// the table is owned by the identity service's database; this is for development.
func (s *ProfileStore) EnsureProfilesTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
id uuid PRIMARY KEY,
username text,
name text,
email text,
phone text,
cpf text,
balance numeric(15,2) NOT NULL DEFAULT 0,
monthly_profit numeric(7,2) NOT NULL DEFAULT 0,
accumulated_profit numeric(7,2) NOT NULL DEFAULT 0,
is_admin boolean NOT NULL DEFAULT false,
status text NOT NULL DEFAULT 'active',
created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS profiles_created_at_idx ON `+s.table+` (created_at DESC);`)
	if err != nil {
		return dbError(err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*core.Profile, error) {
	var (
		p                             core.Profile
		username, name, email, status sql.NullString
		phone, cpf                    sql.NullString
		balance, monthly, accumulated sql.NullString
		createdAt                     sql.NullTime
	)
	err := row.Scan(&p.ID, &username, &name, &email, &phone, &cpf,
		&balance, &monthly, &accumulated, &p.IsAdmin, &status, &createdAt)
	if err != nil {
		return nil, err
	}
	p.Username, p.Name, p.Email, p.Status = username.String, name.String, email.String, status.String
	if phone.Valid {
		p.Phone = pointers.StringPtr(phone.String)
	}
	if cpf.Valid {
		p.CPF = pointers.StringPtr(cpf.String)
	}
	if p.Balance, err = core.ParseAmount(balance.String); err != nil {
		return nil, err
	}
	if p.MonthlyProfit, err = core.ParseAmount(monthly.String); err != nil {
		return nil, err
	}
	if p.AccumulatedProfit, err = core.ParseAmount(accumulated.String); err != nil {
		return nil, err
	}
	if createdAt.Valid {
		t := createdAt.Time.UTC()
		p.CreatedAt = &t
	}
	return &p, nil
}

// List implements core.ProfileStore
func (s *ProfileStore) List(ctx context.Context) ([]core.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM `+s.table+` ORDER BY created_at DESC;`)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()
	profiles := []core.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, dbError(err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err)
	}
	return profiles, nil
}

// Get implements core.ProfileStore
func (s *ProfileStore) Get(ctx context.Context, id string) (*core.Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, core.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM `+s.table+` WHERE id=$1;`, id)
	p, err := scanProfile(row)
	if err != nil {
		return nil, dbError(err)
	}
	return p, nil
}

// Insert implements core.ProfileStore. Profiles without id get a new uuid.
func (s *ProfileStore) Insert(ctx context.Context, profile core.Profile) (*core.Profile, error) {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	} else if _, err := uuid.Parse(profile.ID); err != nil {
		return nil, fmt.Errorf("invalid profile id '%s'", profile.ID)
	}
	var createdAt interface{}
	if profile.CreatedAt != nil {
		createdAt = *profile.CreatedAt
	}
	row := s.db.QueryRowContext(ctx, `INSERT INTO `+s.table+` (`+profileColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,COALESCE($12::timestamptz, now()))
RETURNING `+profileColumns+`;`,
		profile.ID, profile.Username, profile.Name, profile.Email, pointers.Value(profile.Phone), pointers.Value(profile.CPF),
		float64(profile.Balance), float64(profile.MonthlyProfit), float64(profile.AccumulatedProfit),
		profile.IsAdmin, profile.Status, createdAt)
	p, err := scanProfile(row)
	if err != nil {
		return nil, dbError(err)
	}
	return p, nil
}

// Update implements core.ProfileStore
func (s *ProfileStore) Update(ctx context.Context, id string, fields core.ProfileFields) (*core.Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, core.ErrNotFound
	}
	if len(fields) == 0 {
		return s.Get(ctx, id)
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sets []string
	args := []interface{}{id}
	for _, key := range keys {
		value, err := columnValue(key, fields[key])
		if err != nil {
			return nil, err
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", key, len(args)))
	}
	row := s.db.QueryRowContext(ctx, `UPDATE `+s.table+` SET `+strings.Join(sets, ", ")+
		` WHERE id=$1 RETURNING `+profileColumns+`;`, args...)
	p, err := scanProfile(row)
	if err != nil {
		return nil, dbError(err)
	}
	return p, nil
}

// Delete implements core.ProfileStore
func (s *ProfileStore) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return core.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE id=$1;`, id)
	if err != nil {
		return dbError(err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return dbError(err)
	}
	if count == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Count implements core.ProfileStore
func (s *ProfileStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+s.table+`;`).Scan(&count)
	if err != nil {
		return 0, dbError(err)
	}
	return count, nil
}

// columnValue checks that key is a writable column and converts value to a driver value
func columnValue(key string, value interface{}) (interface{}, error) {
	switch key {
	case "username", "name", "email", "status":
		if s, ok := value.(string); ok {
			return s, nil
		}
	case "phone", "cpf":
		if s, ok := value.(*string); ok {
			return pointers.Value(s), nil
		}
	case "balance", "monthly_profit", "accumulated_profit":
		if a, ok := value.(core.Amount); ok {
			return float64(a), nil
		}
	case "is_admin":
		if b, ok := value.(bool); ok {
			return b, nil
		}
	default:
		return nil, fmt.Errorf("unknown profile field %s", key)
	}
	return nil, fmt.Errorf("invalid value of type %T for profile field %s", value, key)
}

// dbError maps database errors to core errors. Connection failures make the
// database unavailable, missing rows are core.ErrNotFound.
func dbError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	var netErr net.Error
	var pqErr *pq.Error
	switch {
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone), errors.As(err, &netErr):
		return fmt.Errorf("%w: %v", core.ErrDatabaseUnavailable, err)
	case errors.As(err, &pqErr):
		// class 08 is connection exception, 57P is operator intervention
		if pqErr.Code.Class() == "08" || strings.HasPrefix(string(pqErr.Code), "57P") {
			return fmt.Errorf("%w: %v", core.ErrDatabaseUnavailable, err)
		}
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", core.ErrDatabaseUnavailable, err)
	}
	return err
}
