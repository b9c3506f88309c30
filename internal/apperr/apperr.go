// Package apperr defines the error kinds shared by the catalog, process and
// archive services. Callers classify errors with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidFormat  = errors.New("invalid format")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrOutOfTolerance = errors.New("out of tolerance")
	ErrBadRequest     = errors.New("bad request")
	ErrInternal       = errors.New("internal error")
)

// Internal marks a storage failure. The original error stays reachable
// through errors.Is / errors.As.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInternal) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInternal, err)
}

// Passthrough keeps classified errors as they are and marks everything else
// as Internal. Used at the end of a transaction callback where both kinds
// can surface.
func Passthrough(err error) error {
	if err == nil || Classified(err) {
		return err
	}
	return Internal(err)
}

// Classified reports whether err carries one of the kinds above.
func Classified(err error) bool {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

var kinds = []error{
	ErrInvalidFormat,
	ErrNotFound,
	ErrConflict,
	ErrOutOfTolerance,
	ErrBadRequest,
	ErrInternal,
}

// HTTPStatus maps an error kind to the status code the API answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError
	case errors.Is(err, ErrInvalidFormat), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrOutOfTolerance):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// IsInternal reports whether err is an Internal error or carries no kind.
func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal) || !Classified(err)
}

// Public is the text of err that may be shown to a client. Internal errors
// collapse to a fixed message so storage details stay in the log.
func Public(err error) string {
	if IsInternal(err) {
		return ErrInternal.Error()
	}
	return err.Error()
}
