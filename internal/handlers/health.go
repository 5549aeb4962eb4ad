package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/apierr"
	"github.com/vidtube/backend/internal/response"
)

const healthTimeout = 2 * time.Second

// HealthHandler responds with service health information.
type HealthHandler struct {
	DB Pinger
}

type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) error {
	status := healthStatus{Status: "ok", Database: "skipped"}
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			return apierr.Wrap(http.StatusServiceUnavailable, "Database unavailable", err)
		}
		status.Database = "ok"
	}
	response.Success(r.Context(), w, http.StatusOK, status, "Service is healthy")
	return nil
}
