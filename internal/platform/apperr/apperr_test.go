package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryOf_Wrapped(t *testing.T) {
	base := Conflict("email already registered")
	wrapped := fmt.Errorf("register: %w", base)

	assert.Equal(t, CategoryConflict, CategoryOf(wrapped))
	assert.True(t, Is(wrapped, CategoryConflict))
	assert.False(t, Is(wrapped, CategoryNotFound))
	assert.Equal(t, CategoryInternal, CategoryOf(errors.New("boom")))
	assert.False(t, Is(nil, CategoryInternal))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("driver failure")
	err := Wrap(CategoryInternal, cause, "could not save")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "could not save: driver failure", err.Error())
}

func TestCategoryStatus(t *testing.T) {
	cases := map[Category]int{
		CategoryNotFound:          http.StatusNotFound,
		CategoryConflict:          http.StatusConflict,
		CategoryInvalidState:      http.StatusConflict,
		CategoryInvalidTransition: http.StatusConflict,
		CategoryUnauthorized:      http.StatusUnauthorized,
		CategoryForbidden:         http.StatusForbidden,
		CategoryValidation:        http.StatusBadRequest,
		CategoryUpstreamTimeout:   http.StatusGatewayTimeout,
		CategoryInternal:          http.StatusInternalServerError,
	}
	for cat, want := range cases {
		assert.Equal(t, want, cat.Status(), string(cat))
	}
}

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantStatus   int
		wantCategory Category
		wantMessage  string
	}{
		{"app error", InvalidState("report is finalized"), http.StatusConflict, CategoryInvalidState, "report is finalized"},
		{"echo error", echo.NewHTTPError(http.StatusBadRequest, "invalid id"), http.StatusBadRequest, CategoryValidation, "invalid id"},
		{"echo forbidden", echo.NewHTTPError(http.StatusForbidden, "required role: doctor"), http.StatusForbidden, CategoryForbidden, "required role: doctor"},
		{"plain error", errors.New("secret detail"), http.StatusInternalServerError, CategoryInternal, "internal server error"},
		{"timeout", UpstreamTimeout("image analysis timed out"), http.StatusGatewayTimeout, CategoryUpstreamTimeout, "image analysis timed out"},
	}

	e := echo.New()
	h := HTTPErrorHandler(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			h(tt.err, c)

			require.Equal(t, tt.wantStatus, rec.Code)
			var body Body
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCategory, body.Category)
			assert.Equal(t, tt.wantMessage, body.Message)
		})
	}
}
