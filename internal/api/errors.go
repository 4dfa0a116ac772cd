package api

import (
	"errors"
	"net/http"
)

// Domain error taxonomy. Repositories and services wrap these sentinels so
// the boundary layer can map every failure to a fixed response category
// without inspecting storage-level errors.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrForbidden       = errors.New("action forbidden")
	ErrUnauthenticated = errors.New("invalid authentication credentials")
	ErrAccountInactive = errors.New("inactive user")
	ErrValidation      = errors.New("invalid input")
)

// StatusForError maps a domain error to its HTTP status. Unknown errors are
// treated as internal.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccountInactive):
		return http.StatusBadRequest
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
