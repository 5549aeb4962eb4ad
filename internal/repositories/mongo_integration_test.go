//go:build integration

package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/relations"
)

var testDB *mongo.Database

func TestMain(m *testing.M) {
	uri := os.Getenv("VIDTUBE_TEST_MONGODB_URI")
	if uri == "" {
		fmt.Fprintln(os.Stderr, "VIDTUBE_TEST_MONGODB_URI not set; skipping mongo integration tests")
		os.Exit(0)
	}

	ctx := context.Background()
	client, err := db.Connect(ctx, uri)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to mongodb: %v\n", err)
		os.Exit(1)
	}

	testDB = client.Database(fmt.Sprintf("vidtube_test_%d", time.Now().UnixNano()))
	if err := EnsureIndexes(ctx, testDB); err != nil {
		fmt.Fprintf(os.Stderr, "ensure indexes: %v\n", err)
		_ = db.Disconnect(client)
		os.Exit(1)
	}

	code := m.Run()

	_ = testDB.Drop(ctx)
	_ = db.Disconnect(client)

	os.Exit(code)
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, name := range []string{usersCollection, videosCollection, tweetsCollection, commentsCollection, likesCollection, subscriptionsCollection} {
		if _, err := testDB.Collection(name).DeleteMany(ctx, map[string]any{}); err != nil {
			t.Fatalf("clear %s: %v", name, err)
		}
	}
}

func createUser(t *testing.T, repo *MongoUserRepository, username string) models.User {
	t.Helper()
	ts := time.Now().UTC().Truncate(time.Millisecond)
	user := models.User{
		ID:        models.NewID(),
		Username:  username,
		Email:     username + "@example.com",
		FullName:  username,
		Avatar:    "https://media.example.com/avatars/" + username + ".png",
		Password:  "hash",
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func TestMongoUserRepository_CreateFindAndConflict(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewMongoUserRepository(testDB)
	user := createUser(t, repo, "alice")

	found, err := repo.FindByLogin(ctx, "", "ALICE@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if found.ID != user.ID {
		t.Fatalf("expected %s got %s", user.ID, found.ID)
	}

	dup := user
	dup.ID = models.NewID()
	dup.Email = "other@example.com"
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", err)
	}

	if _, err := repo.FindByID(ctx, models.NewID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMongoUserRepository_RefreshTokenCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewMongoUserRepository(testDB)
	user := createUser(t, repo, "bob")

	if err := repo.SetRefreshToken(ctx, user.ID, "first"); err != nil {
		t.Fatalf("set refresh token: %v", err)
	}
	if err := repo.SwapRefreshToken(ctx, user.ID, "first", "second"); err != nil {
		t.Fatalf("swap refresh token: %v", err)
	}
	if err := repo.SwapRefreshToken(ctx, user.ID, "first", "third"); !errors.Is(err, auth.ErrRefreshTokenReused) {
		t.Fatalf("expected reuse to fail, got %v", err)
	}

	if err := repo.SetRefreshToken(ctx, user.ID, ""); err != nil {
		t.Fatalf("clear refresh token: %v", err)
	}
	stored, err := repo.FindIdentity(ctx, user.ID)
	if err != nil {
		t.Fatalf("find identity: %v", err)
	}
	if stored.RefreshToken != "" {
		t.Fatalf("expected refresh token cleared, got %q", stored.RefreshToken)
	}
}

func TestMongoRelationStore_ToggleAndAggregations(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewMongoUserRepository(testDB)
	videos := NewMongoVideoRepository(testDB)
	store := NewMongoRelationStore(testDB)

	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")

	ts := time.Now().UTC().Truncate(time.Millisecond)
	video := models.Video{
		ID: models.NewID(), OwnerID: bob.ID, Title: "Intro", VideoFile: "v.mp4",
		Thumbnail: "t.png", IsPublished: true, CreatedAt: ts, UpdatedAt: ts,
	}
	if err := videos.Create(ctx, video); err != nil {
		t.Fatalf("create video: %v", err)
	}

	engine := relations.NewEngine(store, map[relations.Kind]relations.Target{
		relations.KindVideo:   {Message: "Video like toggled successfully"},
		relations.KindChannel: {Message: "Subscription toggled successfully", ForbidSelf: true},
	}, relations.Options{ValidID: models.IsValidID, NewID: models.NewID})

	if _, err := engine.Toggle(ctx, alice.ID, relations.KindVideo, video.ID); err != nil {
		t.Fatalf("like: %v", err)
	}
	liked, err := store.LikedVideos(ctx, alice.ID)
	if err != nil {
		t.Fatalf("liked videos: %v", err)
	}
	if len(liked) != 1 || liked[0].ID != video.ID || liked[0].Owner.Username != "bob" {
		t.Fatalf("unexpected liked videos: %+v", liked)
	}

	duplicate := relations.Record{ID: models.NewID(), Actor: alice.ID, Kind: relations.KindVideo, Target: video.ID, CreatedAt: ts}
	if err := store.Create(ctx, duplicate); !errors.Is(err, relations.ErrDuplicateRecord) {
		t.Fatalf("expected unique index to reject duplicate like, got %v", err)
	}

	if _, err := engine.Toggle(ctx, alice.ID, relations.KindVideo, video.ID); err != nil {
		t.Fatalf("unlike: %v", err)
	}
	liked, err = store.LikedVideos(ctx, alice.ID)
	if err != nil {
		t.Fatalf("liked videos after unlike: %v", err)
	}
	if len(liked) != 0 {
		t.Fatalf("expected no liked videos, got %d", len(liked))
	}

	if _, err := engine.Toggle(ctx, alice.ID, relations.KindChannel, bob.ID); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	profile, err := users.ChannelProfile(ctx, "bob", alice.ID)
	if err != nil {
		t.Fatalf("channel profile: %v", err)
	}
	if profile.SubscribersCount != 1 || !profile.IsSubscribed || profile.ChannelsSubscribedToCount != 0 {
		t.Fatalf("unexpected channel profile: %+v", profile)
	}

	subscribers, err := store.Subscribers(ctx, bob.ID)
	if err != nil {
		t.Fatalf("subscribers: %v", err)
	}
	if len(subscribers) != 1 || subscribers[0].ID != alice.ID {
		t.Fatalf("unexpected subscribers: %+v", subscribers)
	}
}

func TestMongoVideoRepository_ListAndWatchHistory(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewMongoUserRepository(testDB)
	videos := NewMongoVideoRepository(testDB)
	owner := createUser(t, users, "carol")

	base := time.Now().UTC().Truncate(time.Millisecond)
	var ids []string
	for i := 0; i < 3; i++ {
		video := models.Video{
			ID: models.NewID(), OwnerID: owner.ID, Title: fmt.Sprintf("Episode %d", i),
			VideoFile: "v.mp4", Thumbnail: "t.png", IsPublished: i != 2,
			CreatedAt: base.Add(time.Duration(i) * time.Minute), UpdatedAt: base,
		}
		if err := videos.Create(ctx, video); err != nil {
			t.Fatalf("create video: %v", err)
		}
		ids = append(ids, video.ID)
	}

	page, err := videos.List(ctx, models.VideoQuery{Page: 1, Limit: 10, SortBy: "createdAt", SortDesc: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.TotalDocs != 2 || len(page.Videos) != 2 || page.Videos[0].ID != ids[1] {
		t.Fatalf("unexpected public page: %+v", page)
	}

	own, err := videos.List(ctx, models.VideoQuery{Page: 1, Limit: 10, OwnerID: owner.ID, ViewerID: owner.ID})
	if err != nil {
		t.Fatalf("list own: %v", err)
	}
	if own.TotalDocs != 3 {
		t.Fatalf("expected owner to see unpublished videos, got %d", own.TotalDocs)
	}

	toggled, err := videos.TogglePublished(ctx, ids[2])
	if err != nil {
		t.Fatalf("toggle publish: %v", err)
	}
	if !toggled.IsPublished {
		t.Fatal("expected video to be published")
	}

	for _, id := range []string{ids[0], ids[1], ids[0]} {
		if err := users.AddToWatchHistory(ctx, owner.ID, id); err != nil {
			t.Fatalf("add to history: %v", err)
		}
	}
	history, err := users.WatchHistory(ctx, owner.ID)
	if err != nil {
		t.Fatalf("watch history: %v", err)
	}
	if len(history) != 2 || history[0].ID != ids[1] || history[1].ID != ids[0] {
		t.Fatalf("expected rewatched video at the end, got %+v", history)
	}
}
