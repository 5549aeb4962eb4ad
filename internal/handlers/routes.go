package handlers

import (
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/apierr"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/response"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{DB: deps.DB}
	users := UserHandler{
		Users:          deps.Users,
		Sessions:       deps.Sessions,
		Media:          deps.Media,
		Cookies:        deps.Cookies,
		MaxUploadBytes: deps.MaxUploadBytes,
		NowFunc:        deps.NowFunc,
	}
	videos := VideoHandler{
		Videos:         deps.Videos,
		Users:          deps.Users,
		Media:          deps.Media,
		MaxUploadBytes: deps.MaxUploadBytes,
		NowFunc:        deps.NowFunc,
	}
	tweets := TweetHandler{Tweets: deps.Tweets, Users: deps.Users, NowFunc: deps.NowFunc}
	comments := CommentHandler{Comments: deps.Comments, Videos: deps.Videos, NowFunc: deps.NowFunc}
	likes := LikeHandler{Relations: deps.Relations, Likes: deps.Likes}
	subscriptions := SubscriptionHandler{Relations: deps.Relations, Subscriptions: deps.Subscriptions}

	protected := middleware.Authenticate(deps.Verifier)
	limited := middleware.RateLimit(deps.LoginLimiter, "login")

	public := func(pattern string, fn func(http.ResponseWriter, *http.Request) error) {
		mux.Handle(pattern, handle(fn))
	}
	private := func(pattern string, fn func(http.ResponseWriter, *http.Request) error) {
		mux.Handle(pattern, protected(handle(fn)))
	}

	public("GET /healthz", health.Handle)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	mux.Handle("POST /api/v1/users/register", limited(handle(users.Register)))
	mux.Handle("POST /api/v1/users/login", limited(handle(users.Login)))
	public("POST /api/v1/users/refresh-token", users.RefreshToken)
	private("POST /api/v1/users/logout", users.Logout)
	private("GET /api/v1/users/current-user", users.CurrentUser)
	private("POST /api/v1/users/change-password", users.ChangePassword)
	private("PATCH /api/v1/users/update-account", users.UpdateAccount)
	private("PATCH /api/v1/users/avatar", users.UpdateAvatar)
	private("PATCH /api/v1/users/cover-image", users.UpdateCoverImage)
	private("GET /api/v1/users/c/{username}", users.ChannelProfile)
	private("GET /api/v1/users/history", users.WatchHistory)

	private("GET /api/v1/videos/{$}", videos.List)
	private("POST /api/v1/videos/publishAVideo", videos.Publish)
	private("GET /api/v1/videos/getVideoById/{videoId}", videos.Get)
	private("PATCH /api/v1/videos/updateVideo/{videoId}", videos.Update)
	private("POST /api/v1/videos/deleteVideo/{videoId}", videos.Delete)
	private("POST /api/v1/videos/togglePublishStatus/{videoId}", videos.TogglePublish)
	private("POST /api/v1/videos/viewUpdate/{videoId}", videos.RecordView)

	private("POST /api/v1/tweets/createTweet", tweets.Create)
	private("POST /api/v1/tweets/getUserTweets/{userId}", tweets.ListByUser)
	private("POST /api/v1/tweets/updateTweet/{tweetId}", tweets.Update)
	private("POST /api/v1/tweets/deleteTweet/{tweetId}", tweets.Delete)

	private("GET /api/v1/comments/{videoId}", comments.List)
	private("POST /api/v1/comments/{videoId}", comments.Add)
	private("PATCH /api/v1/comments/c/{commentId}", comments.Update)
	private("DELETE /api/v1/comments/c/{commentId}", comments.Delete)

	private("POST /api/v1/likes/toggle/v/{videoId}", likes.ToggleVideo)
	private("POST /api/v1/likes/toggle/c/{commentId}", likes.ToggleComment)
	private("POST /api/v1/likes/toggle/t/{tweetId}", likes.ToggleTweet)
	private("GET /api/v1/likes/videos", likes.LikedVideos)

	private("POST /api/v1/subscriptions/c/sub/{channelId}", subscriptions.Toggle)
	private("GET /api/v1/subscriptions/u/{subscriberId}", subscriptions.SubscribedChannels)
	private("GET /api/v1/subscriptions/c/{channelId}", subscriptions.Subscribers)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		response.Error(r.Context(), w, apierr.NotFound("Route not found"))
	})
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users          UserStore
	Sessions       SessionManager
	Verifier       middleware.AccessVerifier
	Videos         VideoStore
	Tweets         TweetStore
	Comments       CommentStore
	Relations      RelationToggler
	Likes          LikeStore
	Subscriptions  SubscriptionStore
	Media          MediaUploader
	LoginLimiter   middleware.RateLimiter
	Cookies        CookiePolicy
	MaxUploadBytes int64
	Metrics        http.Handler
	DB             Pinger
	NowFunc        func() time.Time
}
