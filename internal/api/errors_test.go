package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/geoping/geoping-server/internal/service"
)

func Test_statusForKind(t *testing.T) {
	tcases := []struct {
		kind     service.Kind
		expected int
	}{
		{service.KindNotAuthenticated, http.StatusUnauthorized},
		{service.KindNotAuthorized, http.StatusForbidden},
		{service.KindQuotaExceeded, http.StatusForbidden},
		{service.KindNotFound, http.StatusNotFound},
		{service.KindConflict, http.StatusConflict},
		{service.KindInvalidInput, http.StatusBadRequest},
		{service.KindInferenceFailure, http.StatusBadGateway},
		{service.KindInferenceTimeout, http.StatusGatewayTimeout},
		{service.KindInternal, http.StatusInternalServerError},
	}

	for _, tc := range tcases {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.expected, statusForKind(tc.kind))
		})
	}
}

func TestNewServiceError(t *testing.T) {
	t.Run("keeps service message", func(t *testing.T) {
		err := service.E(service.KindConflict, "subscription request already decided")
		apiErr := NewServiceError(err)

		assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
		assert.Equal(t, "subscription request already decided", apiErr.Message)
		assert.Nil(t, apiErr.Err)
	})

	t.Run("internal errors hide the cause", func(t *testing.T) {
		dbErr := errors.New("pq: connection refused")
		apiErr := NewServiceError(dbErr)

		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
		assert.Equal(t, "internal server error", apiErr.Message)
		assert.ErrorIs(t, apiErr, dbErr)
	})

	t.Run("unknown kind defaults to internal", func(t *testing.T) {
		apiErr := NewServiceError(errors.New("boom"))
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	})
}
