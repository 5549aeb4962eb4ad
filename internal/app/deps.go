package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/storage"
	"github.com/vidtube/backend/internal/videos"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, database *mongo.Database, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, error) {
	if database == nil {
		return handlers.Dependencies{}, fmt.Errorf("database is required")
	}

	objects, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure object storage: %w", err)
	}
	uploader := media.NewUploader(objects, videos.NewFFProbe(cfg.FFProbePath, cfg.FFProbeTimeout), cfg.UploadDir, cfg.MaxUploadBytes)

	users := repositories.NewMongoUserRepository(database)
	videoRepo := repositories.NewMongoVideoRepository(database)
	tweets := repositories.NewMongoTweetRepository(database)
	comments := repositories.NewMongoCommentRepository(database)
	relationStore := repositories.NewMongoRelationStore(database)

	sessions := auth.NewManager(auth.TokenConfig{
		AccessSecret:  cfg.AccessTokenSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshSecret: cfg.RefreshTokenSecret,
		RefreshTTL:    cfg.RefreshTokenTTL,
	}, users, nil)

	limiter := middleware.NewIPRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow, cfg.LoginRateLimit, 10*cfg.LoginRateWindow)

	client := database.Client()
	deps := handlers.Dependencies{
		Users:          users,
		Sessions:       sessions,
		Verifier:       sessions,
		Videos:         videoRepo,
		Tweets:         tweets,
		Comments:       comments,
		Relations:      handlers.NewRelationEngine(relationStore, videoRepo, comments, tweets, users),
		Likes:          relationStore,
		Subscriptions:  relationStore,
		Media:          uploader,
		LoginLimiter:   limiter,
		Cookies:        handlers.CookiePolicy{Secure: cfg.SecureCookies()},
		MaxUploadBytes: cfg.MaxUploadBytes,
		Metrics:        promhttp.Handler(),
		DB: handlers.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	logger.Info("dependencies configured",
		"database", database.Name(),
		"bucket", cfg.ObjectStore.Bucket,
		"upload_dir", cfg.UploadDir,
		"max_upload_bytes", cfg.MaxUploadBytes,
	)

	return deps, nil
}
