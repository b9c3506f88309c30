package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal(cause)

	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, cause)
	assert.Same(t, err, Internal(err), "already internal errors are not wrapped twice")
	assert.NoError(t, Internal(nil))
}

func TestPassthrough(t *testing.T) {
	conflict := fmt.Errorf("%w: product 1 already exists", ErrConflict)
	assert.Equal(t, conflict, Passthrough(conflict))

	raw := errors.New("disk full")
	assert.ErrorIs(t, Passthrough(raw), ErrInternal)
	assert.NoError(t, Passthrough(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("%w: no", ErrInvalidFormat), http.StatusBadRequest},
		{fmt.Errorf("%w: quantity", ErrBadRequest), http.StatusBadRequest},
		{fmt.Errorf("%w: process", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: not finished", ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: 94.99", ErrOutOfTolerance), http.StatusUnprocessableEntity},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "%v", tt.err)
	}
}

func TestPublic(t *testing.T) {
	assert.Equal(t, "not found: product 7", Public(fmt.Errorf("%w: product 7", ErrNotFound)))
	assert.Equal(t, "internal error", Public(Internal(errors.New("dial tcp 10.0.0.5:5432: connection refused"))))
	assert.Equal(t, "internal error", Public(errors.New("unclassified")))
}
