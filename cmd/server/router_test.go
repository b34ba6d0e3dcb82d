package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"socialid/internal/auth/handler"
	"socialid/internal/auth/handler/mocks"
	"socialid/internal/platform/metrics"
	dErrors "socialid/pkg/domain-errors"
	"socialid/pkg/platform/middleware/request"
)

type rejectAll struct{}

func (rejectAll) ValidateSession(string) (uuid.UUID, error) {
	return uuid.Nil, dErrors.New(dErrors.CodeUnauthorized, "Token is invalid. Please login again.")
}

func testRouter(t *testing.T, health healthFunc) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handler.New(mocks.NewMockService(gomock.NewController(t)), rejectAll{}, logger)
	return newRouter(h, health, metrics.New(prometheus.NewRegistry()), logger)
}

func TestRouterHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		r := testRouter(t, func(context.Context) error { return nil })
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
		assert.NotEmpty(t, rec.Header().Get(request.HeaderRequestID))
	})

	t.Run("dependency down", func(t *testing.T) {
		r := testRouter(t, func(context.Context) error { return errors.New("dial tcp: connection refused") })
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}

func TestRouterMountsAPI(t *testing.T) {
	r := testRouter(t, func(context.Context) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/currentuser", nil)
	req.Header.Set(request.HeaderRequestID, "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(request.HeaderRequestID))
}
