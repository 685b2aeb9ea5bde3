// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package supabase connects to a Supabase project.

Auth implements core.IdentityService on top of the GoTrue API, Profiles
implements core.ProfileStore on top of the PostgREST API. Both authenticate
with the project's API key. Errors are translated from the services'
structured error codes, never from their messages.
*/
package supabase

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/investpro/core/client"
)

// Client is a connection to a Supabase project
type Client struct {
	rest client.Client
}

// New returns a client for the project at projectURL, authenticating with key
func New(projectURL, key string) (*Client, error) {
	u, err := url.Parse(projectURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid supabase url '%s'", projectURL)
	}
	if key == "" {
		return nil, errors.New("supabase key is missing")
	}
	return &Client{
		rest: client.NewWithURL(projectURL).WithHeader("apikey", key).WithToken(key),
	}, nil
}

// NewWithClient returns a client using c for all requests. c must carry the API key.
func NewWithClient(c client.Client) *Client {
	return &Client{rest: c}
}

// Auth returns the identity service of the project
func (c *Client) Auth() *Auth {
	return &Auth{rest: c.rest}
}

// Profiles returns the profile store of the project
func (c *Client) Profiles() *Profiles {
	return &Profiles{rest: c.rest}
}

// apiError is the union of the error bodies of GoTrue and PostgREST
type apiError struct {
	// GoTrue
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	// PostgREST, and GoTrue in some versions as number
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
	Details string          `json:"details"`
	Hint    string          `json:"hint"`
}

func parseAPIError(body []byte) apiError {
	var e apiError
	json.Unmarshal(body, &e)
	return e
}

// code returns the most specific error code of the body
func (e apiError) code() string {
	if e.ErrorCode != "" {
		return e.ErrorCode
	}
	var s string
	if len(e.Code) > 0 && json.Unmarshal(e.Code, &s) == nil && s != "" {
		return s
	}
	return e.Error
}

func (e apiError) String() string {
	var parts []string
	for _, p := range []string{e.code(), e.Msg, e.Message, e.ErrorDescription, e.Details, e.Hint} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ": ")
}

// unavailable reports failures of the transport and of the service itself
func unavailable(base error, err error) error {
	return fmt.Errorf("%w: %v", base, err)
}
