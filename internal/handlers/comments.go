package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/vidtube/backend/internal/apierr"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/response"
)

// CommentHandler serves comments on videos.
type CommentHandler struct {
	Comments CommentStore
	Videos   VideoStore
	NowFunc  func() time.Time
}

type commentRequest struct {
	Content string `json:"content"`
}

// List handles GET /api/v1/comments/{videoId}.
func (h CommentHandler) List(w http.ResponseWriter, r *http.Request) error {
	if _, err := h.visibleVideo(r); err != nil {
		return err
	}
	page, limit := pagination(r)
	comments, err := h.Comments.ListByVideo(r.Context(), r.PathValue("videoId"), page, limit)
	if err != nil {
		return err
	}
	response.Success(r.Context(), w, http.StatusOK, comments, "Comments fetched successfully")
	return nil
}

// Add handles POST /api/v1/comments/{videoId}.
func (h CommentHandler) Add(w http.ResponseWriter, r *http.Request) error {
	video, err := h.visibleVideo(r)
	if err != nil {
		return err
	}
	viewer, err := currentUser(r)
	if err != nil {
		return err
	}
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return apierr.Validation("Content is required")
	}

	now := nowFrom(h.NowFunc)
	comment := models.Comment{
		ID:        models.NewID(),
		VideoID:   video.ID,
		OwnerID:   viewer.ID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Comments.Create(r.Context(), comment); err != nil {
		return err
	}
	response.Success(r.Context(), w, http.StatusCreated, comment, "Comment added successfully")
	return nil
}

// Update handles PATCH /api/v1/comments/c/{commentId}.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) error {
	comment, err := h.ownedComment(r, "You are not allowed to update this comment")
	if err != nil {
		return err
	}
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return apierr.Validation("Content is required")
	}

	updated, err := h.Comments.Update(r.Context(), comment.ID, content)
	if err != nil {
		return storeError(err, "Comment not found")
	}
	response.Success(r.Context(), w, http.StatusOK, updated, "Comment updated successfully")
	return nil
}

// Delete handles DELETE /api/v1/comments/c/{commentId}.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) error {
	comment, err := h.ownedComment(r, "You are not allowed to delete this comment")
	if err != nil {
		return err
	}
	if err := h.Comments.Delete(r.Context(), comment.ID); err != nil {
		return storeError(err, "Comment not found")
	}
	response.Success(r.Context(), w, http.StatusOK, nil, "Comment deleted successfully")
	return nil
}

// visibleVideo loads the video named by the path, hiding unpublished videos from
// everyone but their owner.
func (h CommentHandler) visibleVideo(r *http.Request) (models.Video, error) {
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
	if !video.IsPublished && video.OwnerID != viewer.ID {
		return models.Video{}, apierr.NotFound("Video not found")
	}
	return video, nil
}

func (h CommentHandler) ownedComment(r *http.Request, forbidden string) (models.Comment, error) {
	viewer, err := currentUser(r)
	if err != nil {
		return models.Comment{}, err
	}
	id := r.PathValue("commentId")
	if err := requireID(id, "Invalid comment ID"); err != nil {
		return models.Comment{}, err
	}
	comment, err := h.Comments.FindByID(r.Context(), id)
	if err != nil {
		return models.Comment{}, storeError(err, "Comment not found")
	}
	if comment.OwnerID != viewer.ID {
		return models.Comment{}, apierr.Forbidden(forbidden)
	}
	return comment, nil
}
