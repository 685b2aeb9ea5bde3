// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package client provides easy and fast access to a JSON REST api

A client either talks to a remote service over HTTP, or directly to an
http.Handler such as the mux router. The in-process mode is the tool of choice
for unit tests; the HTTP mode is used to reach the external identity service
and profile store.
*/
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// DefaultTimeout is the timeout of clients created with NewWithURL
const DefaultTimeout = 20 * time.Second

// ErrTransport is returned when a request could not be sent or no response
// was received. Failures reported by the server itself are *StatusError.
var ErrTransport = errors.New("transport error")

// StatusError is returned when the server answered with an unexpected status code
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Want       int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: handler returned wrong status code: got %v want %v. Error: %s",
		e.Method, e.Path, e.StatusCode, e.Want, strings.TrimSpace(string(e.Body)))
}

// Client provides easy access to the REST API.
type Client struct {
	handler    http.Handler
	httpClient *http.Client
	url        string
	token      string
	ctx        context.Context

	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests to the backend,
// through the router. No network is involved.
func NewWithRouter(router http.Handler) Client {
	return Client{
		handler:        router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the service at url
//
// WithToken adds an authorization token to the request header.
func NewWithURL(url string) Client {
	return Client{
		url:            strings.TrimSuffix(url, "/"),
		httpClient:     &http.Client{Timeout: DefaultTimeout},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	// we want a true copy to avoid side effects
	headers := make(map[string]string, len(c.defaultHeaders)+1)
	for k, v := range c.defaultHeaders {
		headers[k] = v
	}
	headers[key] = value
	c.defaultHeaders = headers
	return c
}

// WithToken returns a new client which sends token as bearer token
func (c Client) WithToken(token string) Client {
	c.token = token
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the request context of the client
func (c Client) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Response is a response as received by Do
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the body into result. result can also be raw *[]byte.
// A nil result or an empty body is a no-op.
func (r *Response) Decode(result interface{}) error {
	if result == nil || len(r.Body) == 0 {
		return nil
	}
	if raw, ok := result.(*[]byte); ok {
		*raw = r.Body
		return nil
	}
	return json.Unmarshal(r.Body, result)
}

// Do sends a request and returns the response regardless of its status code.
//
// body can be nil, a []byte or anything that marshals to JSON. header is added
// to the client's default headers. An error is only returned if the request
// could not be made; it then wraps ErrTransport.
func (c Client) Do(method, path string, header map[string]string, body interface{}) (*Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		j, ok := body.([]byte)
		if !ok {
			var err error
			j, err = json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("%s to %s: %w", method, path, err)
			}
		}
		reader = bytes.NewReader(j)
	}
	r, err := http.NewRequestWithContext(c.Context(), method, c.url+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	}
	for key, value := range c.defaultHeaders {
		r.Header.Set(key, value)
	}
	for key, value := range header {
		r.Header.Set(key, value)
	}

	if c.handler != nil {
		rec := httptest.NewRecorder()
		c.handler.ServeHTTP(rec, r)
		res := rec.Result()
		return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: rec.Body.Bytes()}, nil
	}

	res, err := c.httpClient.Do(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: reading body: %v", ErrTransport, method, path, err)
	}
	return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: resBody}, nil
}

// expect sends the request and checks the status code against want. The first
// entry of want is the preferred status and is reported in errors.
func (c Client) expect(method, path string, header map[string]string, body interface{}, result interface{}, want ...int) (int, http.Header, error) {
	res, err := c.Do(method, path, header, body)
	if err != nil {
		return http.StatusInternalServerError, nil, err
	}
	ok := false
	for _, w := range want {
		ok = ok || res.StatusCode == w
	}
	if !ok {
		return res.StatusCode, res.Header, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: res.StatusCode,
			Want:       want[0],
			Body:       res.Body,
		}
	}
	if res.StatusCode == http.StatusNoContent {
		return res.StatusCode, res.Header, nil
	}
	return res.StatusCode, res.Header, res.Decode(result)
}

// RawGet gets a resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// The path can be extend with query strings.
//
// result can be a raw *[]byte or nil.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	status, _, err := c.RawGetWithHeader(path, nil, result)
	return status, err
}

// RawGetWithHeader gets a resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error.
//
// Returns the actual http status code and the return header
func (c Client) RawGetWithHeader(path string, header map[string]string, result interface{}) (int, http.Header, error) {
	return c.expect(http.MethodGet, path, header, nil, result, http.StatusOK, http.StatusNoContent)
}

// RawPostWithHeader posts a resource to path. Expects http.StatusCreated or http.StatusOK as response,
// otherwise it will flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPostWithHeader(path string, header map[string]string, body interface{}, result interface{}) (int, error) {
	status, _, err := c.expect(http.MethodPost, path, header, body, result, http.StatusCreated, http.StatusOK)
	return status, err
}

// RawPost posts a resource to path. See RawPostWithHeader.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	return c.RawPostWithHeader(path, nil, body, result)
}

// RawPut puts a resource to path. Expects http.StatusOK, http.StatusCreated or http.StatusNoContent as valid responses,
// otherwise it will flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can also be raw *[]byte.
// result can be nil.
func (c Client) RawPut(path string, body interface{}, result interface{}) (int, error) {
	status, _, err := c.expect(http.MethodPut, path, nil, body, result, http.StatusOK, http.StatusCreated, http.StatusNoContent)
	return status, err
}

// RawDelete deletes a resource. Expects http.StatusOK or http.StatusNoContent as response,
// otherwise it will flag an error. Returns the actual http status code.
func (c Client) RawDelete(path string) (int, error) {
	status, _, err := c.expect(http.MethodDelete, path, nil, nil, nil, http.StatusOK, http.StatusNoContent)
	return status, err
}
