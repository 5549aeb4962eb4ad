package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/apierr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/response"
)

const duplicateUserMessage = "User with this email id or username already exists"

// UserHandler implements registration, session and profile endpoints.
type UserHandler struct {
	Users          UserStore
	Sessions       SessionManager
	Media          MediaUploader
	Cookies        CookiePolicy
	MaxUploadBytes int64
	NowFunc        func() time.Time
}

// Register handles POST /api/v1/users/register.
func (h UserHandler) Register(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if err := parseMultipart(w, r, h.MaxUploadBytes); err != nil {
		return err
	}
	defer cleanupMultipart(r)

	username := strings.ToLower(formValue(r, "username"))
	email := strings.ToLower(formValue(r, "email"))
	fullName := formValue(r, "fullname")
	password := r.FormValue("password")
	if username == "" || email == "" || fullName == "" || strings.TrimSpace(password) == "" {
		return apierr.Validation("All fields are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apierr.Validation("Invalid email address")
	}

	if _, err := h.Users.FindByLogin(ctx, username, email); err == nil {
		logger.Warn("register existing account", "username", username, "email", email)
		return apierr.Conflict(duplicateUserMessage)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return err
	}

	avatarFile := formFile(r, "avatar")
	if avatarFile == nil {
		return apierr.Validation("Avatar is required")
	}
	avatar, err := h.Media.Upload(ctx, media.FolderAvatars, avatarFile)
	if err != nil {
		return uploadError(err, "Failed to upload avatar")
	}
	uploaded := []string{avatar.Location}

	var coverImage string
	if coverFile := formFile(r, "coverimage"); coverFile != nil {
		cover, err := h.Media.Upload(ctx, media.FolderCoverImages, coverFile)
		if err != nil {
			logger.Warn("registration aborted after media upload", "uploaded", uploaded)
			return uploadError(err, "Failed to upload cover image")
		}
		coverImage = cover.Location
		uploaded = append(uploaded, coverImage)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apierr.Upstream("Failed to secure password", err)
	}

	now := nowFrom(h.NowFunc)
	user := models.User{
		ID:         models.NewID(),
		Username:   username,
		Email:      email,
		FullName:   fullName,
		Avatar:     avatar.Location,
		CoverImage: coverImage,
		Password:   string(hashed),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.Users.Create(ctx, user); err != nil {
		logger.Warn("registration aborted after media upload", "uploaded", uploaded)
		if errors.Is(err, repositories.ErrConflict) {
			return apierr.Conflict(duplicateUserMessage)
		}
		return apierr.Upstream("Something went wrong while registering the user", err)
	}

	logger.Info("user registered", "user_id", user.ID)
	response.Success(ctx, w, http.StatusCreated, user.Profile(), "User Registered Successfully")
	return nil
}

// Login handles POST /api/v1/users/login.
func (h UserHandler) Login(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Username) == "" && strings.TrimSpace(req.Email) == "" {
		return apierr.Validation("Username or email required")
	}
	if req.Password == "" {
		return apierr.Validation("Password required")
	}

	user, err := h.Users.FindByLogin(ctx, req.Username, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			metrics.LoginAttemptsTotal.WithLabelValues("unknown_user").Inc()
			return apierr.NotFound("User does not exist")
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "user_id", user.ID)
		metrics.LoginAttemptsTotal.WithLabelValues("wrong_password").Inc()
		return apierr.Unauthorized("Wrong Password")
	}

	tokens, err := h.Sessions.Issue(ctx, user)
	if err != nil {
		return apierr.Upstream("Something went wrong while generating refresh and access token", err)
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	setSessionCookies(w, tokens, h.Cookies)
	response.Success(ctx, w, http.StatusOK, loginResponse{
		User:         user.Profile(),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "User logged in successfully")
	return nil
}

// Logout handles POST /api/v1/users/logout.
func (h UserHandler) Logout(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	if err := h.Sessions.Revoke(r.Context(), user.ID); err != nil && !errors.Is(err, auth.ErrIdentityNotFound) {
		return err
	}

	clearSessionCookies(w, h.Cookies)
	response.Success(r.Context(), w, http.StatusOK, nil, "User logged out successfully")
	return nil
}

// RefreshToken handles POST /api/v1/users/refresh-token. The token is read from the
// refreshToken cookie or the JSON body.
func (h UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var token string
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil {
		token = strings.TrimSpace(cookie.Value)
	}
	if token == "" && r.ContentLength != 0 {
		var req refreshRequest
		if err := decodeJSON(r, &req); err != nil {
			return err
		}
		token = strings.TrimSpace(req.RefreshToken)
	}
	if token == "" {
		return apierr.Unauthorized("Unauthorized request")
	}

	tokens, err := h.Sessions.Rotate(ctx, token)
	if err != nil {
		metrics.TokenRotationsTotal.WithLabelValues("rejected").Inc()
		logging.FromContext(ctx).Warn("refresh token rejected", "error", err)
		switch {
		case errors.Is(err, auth.ErrRefreshTokenReused):
			return apierr.Unauthorized("Refresh token is expired or used")
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrIdentityNotFound):
			return apierr.Unauthorized("Invalid refresh token")
		}
		return err
	}

	metrics.TokenRotationsTotal.WithLabelValues("success").Inc()
	setSessionCookies(w, tokens, h.Cookies)
	response.Success(ctx, w, http.StatusOK, tokens, "Access token refreshed")
	return nil
}

// CurrentUser handles GET /api/v1/users/current-user.
func (h UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	response.Success(r.Context(), w, http.StatusOK, user.Profile(), "Current user fetched successfully")
	return nil
}

// ChangePassword handles POST /api/v1/users/change-password.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	viewer, err := currentUser(r)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if req.OldPassword == "" || strings.TrimSpace(req.NewPassword) == "" {
		return apierr.Validation("All fields are required")
	}

	user, err := h.Users.FindByID(ctx, viewer.ID)
	if err != nil {
		return storeError(err, "User does not exist")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		return apierr.Validation("Invalid old password")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apierr.Upstream("Failed to secure password", err)
	}
	if err := h.Users.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		return storeError(err, "User does not exist")
	}

	response.Success(ctx, w, http.StatusOK, nil, "Password changed successfully")
	return nil
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	viewer, err := currentUser(r)
	if err != nil {
		return err
	}

	var req updateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.FullName == "" || req.Email == "" {
		return apierr.Validation("All fields are required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return apierr.Validation("Invalid email address")
	}

	user, err := h.Users.UpdateAccount(ctx, viewer.ID, req.FullName, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return apierr.Conflict("Email is already in use")
		}
		return storeError(err, "User does not exist")
	}

	response.Success(ctx, w, http.StatusOK, user.Profile(), "Account details updated successfully")
	return nil
}

// UpdateAvatar handles PATCH /api/v1/users/avatar.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) error {
	return h.replaceImage(w, r, imageReplacement{
		field:   "avatar",
		folder:  media.FolderAvatars,
		missing: "Avatar file is missing",
		failed:  "Failed to upload avatar",
		success: "Avatar image updated successfully",
		current: func(u models.User) string { return u.Avatar },
		store:   h.Users.UpdateAvatar,
	})
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) error {
	return h.replaceImage(w, r, imageReplacement{
		field:   "coverimage",
		folder:  media.FolderCoverImages,
		missing: "Cover image file is missing",
		failed:  "Failed to upload cover image",
		success: "Cover image updated successfully",
		current: func(u models.User) string { return u.CoverImage },
		store:   h.Users.UpdateCoverImage,
	})
}

type imageReplacement struct {
	field   string
	folder  string
	missing string
	failed  string
	success string
	current func(models.User) string
	store   func(ctx context.Context, id, location string) (models.User, error)
}

func (h UserHandler) replaceImage(w http.ResponseWriter, r *http.Request, img imageReplacement) error {
	ctx := r.Context()
	viewer, err := currentUser(r)
	if err != nil {
		return err
	}

	if err := parseMultipart(w, r, h.MaxUploadBytes); err != nil {
		return err
	}
	defer cleanupMultipart(r)

	file := formFile(r, img.field)
	if file == nil {
		return apierr.Validation(img.missing)
	}
	asset, err := h.Media.Upload(ctx, img.folder, file)
	if err != nil {
		return uploadError(err, img.failed)
	}

	previous := img.current(viewer)
	user, err := img.store(ctx, viewer.ID, asset.Location)
	if err != nil {
		return storeError(err, "User does not exist")
	}
	if previous != "" && previous != asset.Location {
		_ = h.Media.Remove(ctx, previous)
	}

	response.Success(ctx, w, http.StatusOK, user.Profile(), img.success)
	return nil
}

// ChannelProfile handles GET /api/v1/users/c/{username}.
func (h UserHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) error {
	viewer, err := currentUser(r)
	if err != nil {
		return err
	}
	username := strings.TrimSpace(r.PathValue("username"))
	if username == "" {
		return apierr.Validation("Username is missing")
	}

	channel, err := h.Users.ChannelProfile(r.Context(), username, viewer.ID)
	if err != nil {
		return storeError(err, "Channel does not exist")
	}
	response.Success(r.Context(), w, http.StatusOK, channel, "User channel fetched successfully")
	return nil
}

// WatchHistory handles GET /api/v1/users/history.
func (h UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) error {
	viewer, err := currentUser(r)
	if err != nil {
		return err
	}
	history, err := h.Users.WatchHistory(r.Context(), viewer.ID)
	if err != nil {
		return storeError(err, "User does not exist")
	}
	response.Success(r.Context(), w, http.StatusOK, history, "Watch history fetched successfully")
	return nil
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         models.Profile `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullname"`
	Email    string `json:"email"`
}
