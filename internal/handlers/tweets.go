package handlers

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vidtube/backend/internal/apierr"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/response"
)

const maxTweetLength = 280

// TweetHandler serves short text posts.
type TweetHandler struct {
	Tweets  TweetStore
	Users   UserStore
	NowFunc func() time.Time
}

type tweetRequest struct {
	Content string `json:"content"`
}

func (req tweetRequest) content() (string, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return "", apierr.Validation("Content is required")
	}
	if utf8.RuneCountInString(content) > maxTweetLength {
		return "", apierr.Validation("Tweet cannot exceed 280 characters")
	}
	return content, nil
}

// Create handles POST /api/v1/tweets/createTweet.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request) error {
	viewer, err := currentUser(r)
	if err != nil {
		return err
	}
	var req tweetRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	content, err := req.content()
	if err != nil {
		return err
	}

	now := nowFrom(h.NowFunc)
	tweet := models.Tweet{
		ID:        models.NewID(),
		OwnerID:   viewer.ID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Tweets.Create(r.Context(), tweet); err != nil {
		return err
	}
	response.Success(r.Context(), w, http.StatusCreated, tweet, "Tweet created successfully")
	return nil
}

// ListByUser handles POST /api/v1/tweets/getUserTweets/{userId}.
func (h TweetHandler) ListByUser(w http.ResponseWriter, r *http.Request) error {
	if _, err := currentUser(r); err != nil {
		return err
	}
	userID := r.PathValue("userId")
	if err := requireID(userID, "Invalid user ID"); err != nil {
		return err
	}
	if _, err := h.Users.FindByID(r.Context(), userID); err != nil {
		return storeError(err, "User not found")
	}

	tweets, err := h.Tweets.ListByOwner(r.Context(), userID)
	if err != nil {
		return err
	}
	response.Success(r.Context(), w, http.StatusOK, tweets, "Tweets fetched successfully")
	return nil
}

// Update handles POST /api/v1/tweets/updateTweet/{tweetId}.
func (h TweetHandler) Update(w http.ResponseWriter, r *http.Request) error {
	tweet, err := h.ownedTweet(r, "You are not allowed to update this tweet")
	if err != nil {
		return err
	}
	var req tweetRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	content, err := req.content()
	if err != nil {
		return err
	}

	updated, err := h.Tweets.Update(r.Context(), tweet.ID, content)
	if err != nil {
		return storeError(err, "Tweet not found")
	}
	response.Success(r.Context(), w, http.StatusOK, updated, "Tweet updated successfully")
	return nil
}

// Delete handles POST /api/v1/tweets/deleteTweet/{tweetId}.
func (h TweetHandler) Delete(w http.ResponseWriter, r *http.Request) error {
	tweet, err := h.ownedTweet(r, "You are not allowed to delete this tweet")
	if err != nil {
		return err
	}
	if err := h.Tweets.Delete(r.Context(), tweet.ID); err != nil {
		return storeError(err, "Tweet not found")
	}
	response.Success(r.Context(), w, http.StatusOK, nil, "Tweet deleted successfully")
	return nil
}

func (h TweetHandler) ownedTweet(r *http.Request, forbidden string) (models.Tweet, error) {
	viewer, err := currentUser(r)
	if err != nil {
		return models.Tweet{}, err
	}
	id := r.PathValue("tweetId")
	if err := requireID(id, "Invalid tweet ID"); err != nil {
		return models.Tweet{}, err
	}
	tweet, err := h.Tweets.FindByID(r.Context(), id)
	if err != nil {
		return models.Tweet{}, storeError(err, "Tweet not found")
	}
	if tweet.OwnerID != viewer.ID {
		return models.Tweet{}, apierr.Forbidden(forbidden)
	}
	return tweet, nil
}
