package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	base := errors.New("persona not found")
	wrapped := fmt.Errorf("validate: %w", New(base, http.StatusNotFound, "persona not found"))

	status, msg := StatusOf(wrapped)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "persona not found", msg)
	assert.ErrorIs(t, wrapped, base)

	status, msg = StatusOf(errors.New("dial tcp: refused"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, SystemErrorMessage, msg)
}

func TestAppErrorMessage(t *testing.T) {
	assert.Equal(t, "bad input", New(nil, http.StatusBadRequest, "bad input").Error())
	assert.Equal(t, "bad input: boom", New(errors.New("boom"), http.StatusBadRequest, "bad input").Error())
}
