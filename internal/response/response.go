package response

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/vidtube/backend/internal/apierr"
	"github.com/vidtube/backend/internal/logging"
)

// Envelope wraps every successful response body. Data is always present and may be null.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ErrorEnvelope wraps every failed response body.
type ErrorEnvelope struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

// Success writes data inside the success envelope.
func Success(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	JSON(ctx, w, status, Envelope{StatusCode: status, Data: data, Message: message, Success: true})
}

// Error converts err into the error envelope. Causes are logged, never rendered.
func Error(ctx context.Context, w http.ResponseWriter, err error) {
	apiErr := apierr.From(err)
	details := apiErr.Errors
	if details == nil {
		details = []string{}
	}

	logger := logging.FromContext(ctx)
	if apiErr.Status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", apiErr.Status, "message", apiErr.Message, "error", apiErr.Err)
	} else {
		logger.Warn("request returned client error", "status", apiErr.Status, "message", apiErr.Message)
	}

	JSON(ctx, w, apiErr.Status, ErrorEnvelope{
		StatusCode: apiErr.Status,
		Message:    apiErr.Message,
		Success:    false,
		Errors:     details,
	})
}

// JSON encodes payload with the given status.
func JSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}
