package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vidtube/backend/internal/apierr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/response"
)

const (
	defaultPageLimit   = 10
	maxPageLimit       = 100
	multipartMemory    = 32 << 20
	refreshTokenCookie = "refreshToken"
)

// handle adapts an error-returning handler to http.HandlerFunc. Returned errors are
// rendered as the error envelope.
func handle(fn func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			response.Error(r.Context(), w, err)
		}
	}
}

func currentUser(r *http.Request) (models.User, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user.ID == "" {
		return models.User{}, apierr.Unauthorized("Unauthorized request")
	}
	return user, nil
}

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return apierr.Validation("Request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return apierr.Validation("Request body is required")
		}
		return apierr.Validation("Invalid request body", err.Error())
	}
	return nil
}

func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierr.New(http.StatusRequestEntityTooLarge, "Request body too large")
		}
		return apierr.Validation("Invalid multipart form", err.Error())
	}
	return nil
}

func cleanupMultipart(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

func formFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

func formValue(r *http.Request, field string) string {
	return strings.TrimSpace(r.FormValue(field))
}

func uploadError(err error, message string) error {
	switch {
	case errors.Is(err, media.ErrTooLarge):
		return apierr.New(http.StatusRequestEntityTooLarge, "File exceeds the upload limit")
	case errors.Is(err, media.ErrMissingFile):
		return apierr.Validation(message)
	}
	return apierr.Upstream(message, err)
}

func requireID(id, message string) error {
	if !models.IsValidID(id) {
		return apierr.Validation(message)
	}
	return nil
}

func storeError(err error, notFound string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apierr.NotFound(notFound)
	}
	return err
}

func pagination(r *http.Request) (int, int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func nowFrom(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now().UTC()
}
