// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package schema

import (
	"embed"
	"io/fs"
)

// Schema IDs of the API request bodies
const (
	LoginRequest         = "https://investpro.capital/schemas/login.json"
	RegisterRequest      = "https://investpro.capital/schemas/register.json"
	ProfileCreateRequest = "https://investpro.capital/schemas/profile_create.json"
	ProfileUpdateRequest = "https://investpro.capital/schemas/profile_update.json"
)

//go:embed requests
var requestsFS embed.FS

// NewRequestValidator returns a validator for the API request bodies.
//
// The schemas only check types. Required fields are checked by the handlers so
// that clients get a specific message.
func NewRequestValidator() (*Validator, error) {
	sub, err := fs.Sub(requestsFS, "requests")
	if err != nil {
		return nil, err
	}
	return NewValidatorFromFS(sub)
}

// MustNewRequestValidator is like NewRequestValidator but panics on error
func MustNewRequestValidator() *Validator {
	v, err := NewRequestValidator()
	if err != nil {
		panic(err)
	}
	return v
}
