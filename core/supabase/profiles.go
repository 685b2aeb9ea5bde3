// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/relabs-tech/investpro/core"
	"github.com/relabs-tech/investpro/core/client"
)

const profilesPath = "/rest/v1/profiles"

// PostgREST error code for values which do not parse, e.g. ids which are no uuid
const invalidTextRepresentation = "22P02"

// Profiles implements core.ProfileStore with PostgREST
type Profiles struct {
	rest client.Client
}

var _ core.ProfileStore = (*Profiles)(nil)

var returnRepresentation = map[string]string{"Prefer": "return=representation"}

func byID(id string) string {
	return profilesPath + "?id=eq." + url.QueryEscape(id)
}

// do sends the request and decodes a successful response into result. Unsuccessful
// responses are mapped to core errors.
func (p *Profiles) do(ctx context.Context, method, path string, header map[string]string, body interface{}, result interface{}) (*client.Response, error) {
	res, err := p.rest.WithContext(ctx).Do(method, path, header, body)
	if err != nil {
		return nil, unavailable(core.ErrDatabaseUnavailable, err)
	}
	if res.StatusCode >= 300 {
		apiErr := parseAPIError(res.Body)
		switch {
		case res.StatusCode >= 500:
			return nil, unavailable(core.ErrDatabaseUnavailable, fmt.Errorf("status %d: %s", res.StatusCode, apiErr))
		case apiErr.code() == invalidTextRepresentation && strings.Contains(path, "id=eq."):
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("%s %s returned status %d: %s", method, path, res.StatusCode, apiErr)
	}
	if err := res.Decode(result); err != nil {
		return nil, fmt.Errorf("cannot decode profiles: %w", err)
	}
	return res, nil
}

// single returns the only profile of a representation, or core.ErrNotFound
func single(profiles []core.Profile) (*core.Profile, error) {
	if len(profiles) == 0 {
		return nil, core.ErrNotFound
	}
	return &profiles[0], nil
}

// List implements core.ProfileStore
func (p *Profiles) List(ctx context.Context) ([]core.Profile, error) {
	profiles := []core.Profile{}
	_, err := p.do(ctx, http.MethodGet, profilesPath+"?select=*&order=created_at.desc", nil, nil, &profiles)
	return profiles, err
}

// Get implements core.ProfileStore
func (p *Profiles) Get(ctx context.Context, id string) (*core.Profile, error) {
	var profiles []core.Profile
	if _, err := p.do(ctx, http.MethodGet, byID(id)+"&select=*", nil, nil, &profiles); err != nil {
		return nil, err
	}
	return single(profiles)
}

// Insert implements core.ProfileStore. An empty id is left to the database.
func (p *Profiles) Insert(ctx context.Context, profile core.Profile) (*core.Profile, error) {
	var profiles []core.Profile
	if _, err := p.do(ctx, http.MethodPost, profilesPath, returnRepresentation, profile, &profiles); err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("insert returned no profile")
	}
	return &profiles[0], nil
}

// Update implements core.ProfileStore
func (p *Profiles) Update(ctx context.Context, id string, fields core.ProfileFields) (*core.Profile, error) {
	var profiles []core.Profile
	if _, err := p.do(ctx, http.MethodPatch, byID(id), returnRepresentation, fields, &profiles); err != nil {
		return nil, err
	}
	return single(profiles)
}

// Delete implements core.ProfileStore
func (p *Profiles) Delete(ctx context.Context, id string) error {
	var profiles []core.Profile
	if _, err := p.do(ctx, http.MethodDelete, byID(id), returnRepresentation, nil, &profiles); err != nil {
		return err
	}
	_, err := single(profiles)
	return err
}

// Count implements core.ProfileStore. The count is read from the Content-Range
// header, e.g. "0-0/42" or "*/0".
func (p *Profiles) Count(ctx context.Context) (int, error) {
	header := map[string]string{"Prefer": "count=exact"}
	res, err := p.do(ctx, http.MethodGet, profilesPath+"?select=id&limit=1", header, nil, nil)
	if err != nil {
		return 0, err
	}
	contentRange := res.Header.Get("Content-Range")
	i := strings.LastIndex(contentRange, "/")
	if i < 0 {
		return 0, fmt.Errorf("no count in content range '%s'", contentRange)
	}
	count, err := strconv.Atoi(contentRange[i+1:])
	if err != nil {
		return 0, fmt.Errorf("invalid count in content range '%s'", contentRange)
	}
	return count, nil
}
