package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vidtube/backend/internal/apierr"
)

func TestSuccessKeepsNullData(t *testing.T) {
	rec := httptest.NewRecorder()

	Success(context.Background(), rec, http.StatusOK, nil, "Video like toggled successfully")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data, ok := body["data"]
	if !ok || data != nil {
		t.Fatalf("expected explicit null data, got %v (present=%v)", data, ok)
	}
	if body["success"] != true || body["statusCode"].(float64) != 200 {
		t.Fatalf("unexpected envelope %v", body)
	}
}

func TestErrorHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()

	Error(context.Background(), rec, apierr.Upstream("User creation failed", errors.New("mongo: connection refused")))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("internal cause leaked: %s", rec.Body.String())
	}

	var body ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Message != "User creation failed" || body.Errors == nil {
		t.Fatalf("unexpected error envelope %+v", body)
	}
}

func TestErrorUnknown(t *testing.T) {
	rec := httptest.NewRecorder()

	Error(context.Background(), rec, errors.New("boom"))

	var body ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.StatusCode != http.StatusInternalServerError || body.Message != "Internal server error" {
		t.Fatalf("unexpected envelope %+v", body)
	}
}
