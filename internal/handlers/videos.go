package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vidtube/backend/internal/apierr"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/response"
)

var videoSortFields = map[string]bool{
	"createdAt": true,
	"views":     true,
	"duration":  true,
	"title":     true,
}

// VideoHandler provides endpoints for publishing, browsing and managing videos.
type VideoHandler struct {
	Videos         VideoStore
	Users          UserStore
	Media          MediaUploader
	MaxUploadBytes int64
	NowFunc        func() time.Time
}

// List handles GET /api/v1/videos/.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) error {
	viewer, err := currentUser(r)
	if err != nil {
		return err
	}

	page, limit := pagination(r)
	params := r.URL.Query()
	query := models.VideoQuery{
		Page:     page,
		Limit:    limit,
		Search:   strings.TrimSpace(params.Get("query")),
		SortBy:   params.Get("sortBy"),
		SortDesc: !strings.EqualFold(params.Get("sortType"), "asc"),
		OwnerID:  strings.TrimSpace(params.Get("userId")),
		ViewerID: viewer.ID,
	}
	if !videoSortFields[query.SortBy] {
		query.SortBy = "createdAt"
	}
	if query.OwnerID != "" {
		if err := requireID(query.OwnerID, "Invalid user ID"); err != nil {
			return err
		}
	}

	result, err := h.Videos.List(r.Context(), query)
	if err != nil {
		return err
	}
	response.Success(r.Context(), w, http.StatusOK, result, "Videos fetched successfully")
	return nil
}

// Publish handles POST /api/v1/videos/publishAVideo.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	viewer, err := currentUser(r)
	if err != nil {
		return err
	}

	if err := parseMultipart(w, r, h.MaxUploadBytes); err != nil {
		return err
	}
	defer cleanupMultipart(r)

	title := formValue(r, "title")
	description := formValue(r, "description")
	if title == "" || description == "" {
		return apierr.Validation("Title and description are required")
	}
	videoFile := formFile(r, "videoFile")
	if videoFile == nil {
		return apierr.Validation("Video file is required")
	}
	thumbnailFile := formFile(r, "thumbnail")
	if thumbnailFile == nil {
		return apierr.Validation("Thumbnail is required")
	}

	videoAsset, err := h.Media.Upload(ctx, media.FolderVideos, videoFile)
	if err != nil {
		return uploadError(err, "Failed to upload video")
	}
	thumbnail, err := h.Media.Upload(ctx, media.FolderThumbnails, thumbnailFile)
	if err != nil {
		_ = h.Media.Remove(ctx, videoAsset.Location)
		return uploadError(err, "Failed to upload thumbnail")
	}

	now := nowFrom(h.NowFunc)
	video := models.Video{
		ID:          models.NewID(),
		OwnerID:     viewer.ID,
		VideoFile:   videoAsset.Location,
		Thumbnail:   thumbnail.Location,
		Title:       title,
		Description: description,
		Duration:    videoAsset.Duration,
		IsPublished: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Videos.Create(ctx, video); err != nil {
		_ = h.Media.Remove(ctx, videoAsset.Location)
		_ = h.Media.Remove(ctx, thumbnail.Location)
		return apierr.Upstream("Something went wrong while publishing the video", err)
	}

	logging.FromContext(ctx).Info("video published", "video_id", video.ID, "duration", video.Duration)
	response.Success(ctx, w, http.StatusCreated, video, "Video published successfully")
	return nil
}

// Get handles GET /api/v1/videos/getVideoById/{videoId}. Unpublished videos are only
// visible to their owner.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) error {
	viewer, err := currentUser(r)
	if err != nil {
		return err
	}
	id := r.PathValue("videoId")
	if err := requireID(id, "Invalid video ID"); err != nil {
		return err
	}

	video, err := h.Videos.FindWithOwner(r.Context(), id)
	if err != nil {
		return storeError(err, "Video not found")
	}
	if !video.IsPublished && video.OwnerID != viewer.ID {
		return apierr.NotFound("Video not found")
	}

	response.Success(r.Context(), w, http.StatusOK, video, "Video fetched successfully")
	return nil
}

// Update handles PATCH /api/v1/videos/updateVideo/{videoId}.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	video, err := h.ownedVideo(r, "You are not allowed to update this video")
	if err != nil {
		return err
	}

	if err := parseMultipart(w, r, h.MaxUploadBytes); err != nil {
		return err
	}
	defer cleanupMultipart(r)

	var update models.VideoUpdate
	if _, ok := r.MultipartForm.Value["title"]; ok {
		title := formValue(r, "title")
		if title == "" {
			return apierr.Validation("Title cannot be empty")
		}
		update.Title = &title
	}
	if _, ok := r.MultipartForm.Value["description"]; ok {
		description := formValue(r, "description")
		update.Description = &description
	}
	if file := formFile(r, "thumbnail"); file != nil {
		thumbnail, err := h.Media.Upload(ctx, media.FolderThumbnails, file)
		if err != nil {
			return uploadError(err, "Failed to upload thumbnail")
		}
		update.Thumbnail = &thumbnail.Location
	}
	if update.Title == nil && update.Description == nil && update.Thumbnail == nil {
		return apierr.Validation("Nothing to update")
	}

	updated, err := h.Videos.Update(ctx, video.ID, update)
	if err != nil {
		return storeError(err, "Video not found")
	}
	if update.Thumbnail != nil && video.Thumbnail != "" {
		_ = h.Media.Remove(ctx, video.Thumbnail)
	}

	response.Success(ctx, w, http.StatusOK, updated, "Video updated successfully")
	return nil
}

// Delete handles POST /api/v1/videos/deleteVideo/{videoId}. Media removal is best effort.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	video, err := h.ownedVideo(r, "You are not allowed to delete this video")
	if err != nil {
		return err
	}

	if err := h.Videos.Delete(ctx, video.ID); err != nil {
		return storeError(err, "Video not found")
	}
	_ = h.Media.Remove(ctx, video.VideoFile)
	_ = h.Media.Remove(ctx, video.Thumbnail)

	response.Success(ctx, w, http.StatusOK, nil, "Video deleted successfully")
	return nil
}

// TogglePublish handles POST /api/v1/videos/togglePublishStatus/{videoId}.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) error {
	video, err := h.ownedVideo(r, "You are not allowed to change this video")
	if err != nil {
		return err
	}

	updated, err := h.Videos.TogglePublished(r.Context(), video.ID)
	if err != nil {
		return storeError(err, "Video not found")
	}
	response.Success(r.Context(), w, http.StatusOK, updated, "Publish status toggled successfully")
	return nil
}

// RecordView handles POST /api/v1/videos/viewUpdate/{videoId}. The view increments the
// counter and moves the video to the end of the viewer's watch history.
func (h VideoHandler) RecordView(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	viewer, err := currentUser(r)
	if err != nil {
		return err
	}
	id := r.PathValue("videoId")
	if err := requireID(id, "Invalid video ID"); err != nil {
		return err
	}

	video, err := h.Videos.FindByID(ctx, id)
	if err != nil {
		return storeError(err, "Video not found")
	}
	if !video.IsPublished && video.OwnerID != viewer.ID {
		return apierr.NotFound("Video not found")
	}

	updated, err := h.Videos.IncrementViews(ctx, id)
	if err != nil {
		return storeError(err, "Video not found")
	}
	if err := h.Users.AddToWatchHistory(ctx, viewer.ID, id); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return err
	}

	response.Success(ctx, w, http.StatusOK, updated, "Video view recorded successfully")
	return nil
}

func (h VideoHandler) ownedVideo(r *http.Request, forbidden string) (models.Video, error) {
	viewer, err := currentUser(r)
	if err != nil {
		return models.Video{}, err
	}
	id := r.PathValue("videoId")
	if err := requireID(id, "Invalid video ID"); err != nil {
		return models.Video{}, err
	}

	video, err := h.Videos.FindByID(r.Context(), id)
	if err != nil {
		return models.Video{}, storeError(err, "Video not found")
	}
	if video.OwnerID != viewer.ID {
		return models.Video{}, apierr.Forbidden(forbidden)
	}
	return video, nil
}
