package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures the runtime configuration for the VidTube backend service.
type Config struct {
	AppPort       int
	Environment   string
	MongoURI      string
	MongoDatabase string
	SeedDir       string
	LogLevel      string
	LogFormat     string
	CORSOrigins   []string

	AccessTokenSecret  string
	AccessTokenTTL     time.Duration
	RefreshTokenSecret string
	RefreshTokenTTL    time.Duration

	LoginRateLimit  int
	LoginRateWindow time.Duration

	UploadDir      string
	MaxUploadBytes int64
	FFProbePath    string
	FFProbeTimeout time.Duration
	WriteTimeout   time.Duration

	ObjectStore ObjectStoreConfig
}

// ObjectStoreConfig describes the S3-compatible bucket that hosts uploaded media.
type ObjectStoreConfig struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
}

// Load reads configuration from environment variables, applying sensible defaults
// for local development while allowing overrides through environment variables.
// A .env file in the working directory is honoured when present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	cfg := Config{
		AppPort:       getInt("VIDTUBE_PORT", 8000),
		Environment:   getString("VIDTUBE_ENV", "development"),
		MongoURI:      getString("VIDTUBE_MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getString("VIDTUBE_MONGODB_DATABASE", "vidtube"),
		SeedDir:       getString("VIDTUBE_SEED_DIR", "seeds"),
		LogLevel:      getString("VIDTUBE_LOG_LEVEL", "info"),
		LogFormat:     getString("VIDTUBE_LOG_FORMAT", "json"),
		CORSOrigins:   getList("VIDTUBE_CORS_ORIGIN"),

		AccessTokenSecret:  os.Getenv("VIDTUBE_ACCESS_TOKEN_SECRET"),
		AccessTokenTTL:     getDuration("VIDTUBE_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenSecret: os.Getenv("VIDTUBE_REFRESH_TOKEN_SECRET"),
		RefreshTokenTTL:    getDuration("VIDTUBE_REFRESH_TOKEN_TTL", 240*time.Hour),

		LoginRateLimit:  getInt("VIDTUBE_LOGIN_RATE_LIMIT", 10),
		LoginRateWindow: getDuration("VIDTUBE_LOGIN_RATE_WINDOW", time.Minute),

		UploadDir:      getString("VIDTUBE_UPLOAD_DIR", os.TempDir()),
		MaxUploadBytes: int64(getInt("VIDTUBE_MAX_UPLOAD_BYTES", 512<<20)),
		FFProbePath:    getString("VIDTUBE_FFPROBE_PATH", "ffprobe"),
		FFProbeTimeout: getDuration("VIDTUBE_FFPROBE_TIMEOUT", 20*time.Second),
		WriteTimeout:   getDuration("VIDTUBE_WRITE_TIMEOUT", 5*time.Minute),

		ObjectStore: ObjectStoreConfig{
			Bucket:        getString("VIDTUBE_S3_BUCKET", "vidtube-media"),
			Region:        getString("VIDTUBE_S3_REGION", "us-east-1"),
			Endpoint:      os.Getenv("VIDTUBE_S3_ENDPOINT"),
			PublicBaseURL: os.Getenv("VIDTUBE_S3_PUBLIC_BASE_URL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// SecureCookies reports whether auth cookies must carry the Secure flag.
func (c Config) SecureCookies() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c Config) validate() error {
	var missing []string
	if strings.TrimSpace(c.AccessTokenSecret) == "" {
		missing = append(missing, "VIDTUBE_ACCESS_TOKEN_SECRET")
	}
	if strings.TrimSpace(c.RefreshTokenSecret) == "" {
		missing = append(missing, "VIDTUBE_REFRESH_TOKEN_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("config: access and refresh token secrets must differ")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	return nil
}

func getString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func getList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
