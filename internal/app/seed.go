package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// seedUser is one account in a seed file. Passwords are stored in plain text in the
// file and hashed on import.
type seedUser struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	FullName   string `json:"fullname"`
	Password   string `json:"password"`
	Avatar     string `json:"avatar"`
	CoverImage string `json:"coverimage"`
}

type seedFile struct {
	Users []seedUser `json:"users"`
}

type userCreator interface {
	Create(ctx context.Context, user models.User) error
}

func runSeed(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected seed name (e.g. dev)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	seedDir := cfg.SeedDir
	if !filepath.IsAbs(seedDir) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		seedDir = filepath.Join(wd, seedDir)
	}

	seedName := args[0]
	if !strings.HasSuffix(seedName, ".json") {
		seedName = fmt.Sprintf("%s_seed.json", seedName)
	}

	seed, err := loadSeed(filepath.Join(seedDir, seedName))
	if err != nil {
		return fmt.Errorf("read seed %s: %w", seedName, err)
	}

	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer db.Disconnect(client)

	created, err := applySeed(ctx, repositories.NewMongoUserRepository(client.Database(cfg.MongoDatabase)), seed, bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("apply seed %s: %w", seedName, err)
	}

	fmt.Printf("applied seed %s (%d users created, %d skipped)\n", seedName, created, len(seed.Users)-created)
	return nil
}

func loadSeed(path string) (seedFile, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return seedFile{}, err
	}
	var seed seedFile
	decoder := json.NewDecoder(bytes.NewReader(contents))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&seed); err != nil {
		return seedFile{}, fmt.Errorf("decode seed: %w", err)
	}
	return seed, nil
}

// applySeed creates the seed users. Users that already exist are skipped so a seed can
// be applied repeatedly.
func applySeed(ctx context.Context, users userCreator, seed seedFile, cost int) (int, error) {
	created := 0
	for i, entry := range seed.Users {
		if entry.Username == "" || entry.Email == "" || entry.Password == "" {
			return created, fmt.Errorf("seed user %d: username, email and password are required", i)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(entry.Password), cost)
		if err != nil {
			return created, fmt.Errorf("hash password for %s: %w", entry.Username, err)
		}

		now := time.Now().UTC()
		user := models.User{
			ID:         models.NewID(),
			Username:   strings.ToLower(entry.Username),
			Email:      strings.ToLower(entry.Email),
			FullName:   entry.FullName,
			Avatar:     entry.Avatar,
			CoverImage: entry.CoverImage,
			Password:   string(hash),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := users.Create(ctx, user); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				continue
			}
			return created, fmt.Errorf("create seed user %s: %w", entry.Username, err)
		}
		created++
	}
	return created, nil
}
