package handlers

import (
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/relations"
	"github.com/vidtube/backend/internal/response"
)

// LikeHandler toggles likes on videos, comments and tweets.
type LikeHandler struct {
	Relations RelationToggler
	Likes     LikeStore
}

// likeView is the like record returned while a like is on. Exactly one of the target
// fields is set and carries the liked entity.
type likeView struct {
	ID        string    `json:"_id"`
	LikedBy   string    `json:"likedBy"`
	Video     any       `json:"video,omitempty"`
	Comment   any       `json:"comment,omitempty"`
	Tweet     any       `json:"tweet,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

var likeMessages = map[relations.Kind]toggleMessages{
	relations.KindVideo:   {invalid: "Invalid video ID", notFound: "Video not found"},
	relations.KindComment: {invalid: "Invalid comment ID", notFound: "Comment not found"},
	relations.KindTweet:   {invalid: "Invalid tweet ID", notFound: "Tweet not found"},
}

// ToggleVideo handles POST /api/v1/likes/toggle/v/{videoId}.
func (h LikeHandler) ToggleVideo(w http.ResponseWriter, r *http.Request) error {
	return h.toggle(w, r, relations.KindVideo, r.PathValue("videoId"))
}

// ToggleComment handles POST /api/v1/likes/toggle/c/{commentId}.
func (h LikeHandler) ToggleComment(w http.ResponseWriter, r *http.Request) error {
	return h.toggle(w, r, relations.KindComment, r.PathValue("commentId"))
}

// ToggleTweet handles POST /api/v1/likes/toggle/t/{tweetId}.
func (h LikeHandler) ToggleTweet(w http.ResponseWriter, r *http.Request) error {
	return h.toggle(w, r, relations.KindTweet, r.PathValue("tweetId"))
}

func (h LikeHandler) toggle(w http.ResponseWriter, r *http.Request, kind relations.Kind, target string) error {
	viewer, err := currentUser(r)
	if err != nil {
		return err
	}
	result, err := toggleRelation(r.Context(), h.Relations, viewer.ID, kind, target, likeMessages[kind])
	if err != nil {
		return err
	}
	if !result.Active {
		response.Success(r.Context(), w, http.StatusOK, nil, result.Message)
		return nil
	}

	view := likeView{ID: result.Record.ID, LikedBy: result.Record.Actor, CreatedAt: result.Record.CreatedAt}
	switch kind {
	case relations.KindVideo:
		view.Video = result.Snapshot
	case relations.KindComment:
		view.Comment = result.Snapshot
	case relations.KindTweet:
		view.Tweet = result.Snapshot
	}
	response.Success(r.Context(), w, http.StatusOK, view, result.Message)
	return nil
}

// LikedVideos handles GET /api/v1/likes/videos.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request) error {
	viewer, err := currentUser(r)
	if err != nil {
		return err
	}
	videos, err := h.Likes.LikedVideos(r.Context(), viewer.ID)
	if err != nil {
		return err
	}
	response.Success(r.Context(), w, http.StatusOK, videos, "Fetched liked videos successfully")
	return nil
}
