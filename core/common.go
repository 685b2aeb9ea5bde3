// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package core

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the HTTP surface
type Kind int

// all supported error kinds
const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindUnavailable
)

// Error is an error with a kind and a message that is safe to show to API clients.
//
// Internal detail never goes into Message. Wrap the error with fmt.Errorf("%w: ...")
// to carry the detail to the logs.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Validation returns a new validation error with the given client message
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Predefined errors. Compare with errors.Is, they may be wrapped.
var (
	ErrMissingToken       = &Error{Kind: KindUnauthorized, Message: "Token is missing"}
	ErrTokenExpired       = &Error{Kind: KindUnauthorized, Message: "Token has expired"}
	ErrTokenMalformed     = &Error{Kind: KindUnauthorized, Message: "Invalid token"}
	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Message: "Credenciais inválidas"}

	ErrAdminRequired = &Error{Kind: KindForbidden, Message: "Access denied. Admin privileges required."}
	ErrAccessDenied  = &Error{Kind: KindForbidden, Message: "Access denied"}

	ErrNotFound = &Error{Kind: KindNotFound, Message: "User not found"}

	ErrUnavailable             = &Error{Kind: KindUnavailable, Message: "Service unavailable"}
	ErrAuthUnavailable         = &Error{Kind: KindUnavailable, Message: "Serviço de autenticação indisponível"}
	ErrRegistrationUnavailable = &Error{Kind: KindUnavailable, Message: "Serviço de registro indisponível"}
	ErrDatabaseUnavailable     = &Error{Kind: KindUnavailable, Message: "Database service unavailable"}

	ErrDuplicateAccount   = &Error{Kind: KindValidation, Message: "Este email já está cadastrado"}
	ErrNoFieldsToUpdate   = &Error{Kind: KindValidation, Message: "No valid fields to update"}
	ErrInvalidRequestBody = &Error{Kind: KindValidation, Message: "Invalid request body"}

	ErrRegistrationFailed = &Error{Kind: KindInternal, Message: "Erro ao criar conta. Tente novamente."}
	ErrInternal           = &Error{Kind: KindInternal, Message: "Internal server error"}
)

// KindOf returns the kind of the first *Error in err's chain. Errors without
// a kind are internal errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind returns true if err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusCode maps an error to its HTTP status code
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message which may be shown to an API client
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ErrInternal.Message
}
