package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/relations"
	"github.com/vidtube/backend/internal/repositories"
)

// backend holds every collection the handler stubs read and write.
type backend struct {
	mu        sync.Mutex
	users     map[string]models.User
	videos    map[string]models.Video
	tweets    map[string]models.Tweet
	comments  map[string]models.Comment
	relations *relations.MemoryStore
}

func newBackend() *backend {
	return &backend{
		users:     make(map[string]models.User),
		videos:    make(map[string]models.Video),
		tweets:    make(map[string]models.Tweet),
		comments:  make(map[string]models.Comment),
		relations: relations.NewMemoryStore(),
	}
}

func (b *backend) summaryLocked(id string) models.UserSummary {
	return b.users[id].Summary()
}

type memUsers struct{ *backend }

func (s memUsers) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s memUsers) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s memUsers) FindByLogin(_ context.Context, username, email string) (models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s memUsers) update(id string, fn func(*models.User)) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	fn(&user)
	s.users[id] = user
	return user, nil
}

func (s memUsers) UpdateAccount(_ context.Context, id, fullName, email string) (models.User, error) {
	s.mu.Lock()
	for _, other := range s.users {
		if other.ID != id && other.Email == email {
			s.mu.Unlock()
			return models.User{}, repositories.ErrConflict
		}
	}
	s.mu.Unlock()
	return s.update(id, func(u *models.User) { u.FullName, u.Email = fullName, email })
}

func (s memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	_, err := s.update(id, func(u *models.User) { u.Password = hash })
	return err
}

func (s memUsers) UpdateAvatar(_ context.Context, id, location string) (models.User, error) {
	return s.update(id, func(u *models.User) { u.Avatar = location })
}

func (s memUsers) UpdateCoverImage(_ context.Context, id, location string) (models.User, error) {
	return s.update(id, func(u *models.User) { u.CoverImage = location })
}

func (s memUsers) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	user, err := s.FindByLogin(ctx, username, "")
	if err != nil {
		return models.ChannelProfile{}, err
	}
	return models.ChannelProfile{
		ID:                        user.ID,
		Username:                  user.Username,
		Email:                     user.Email,
		FullName:                  user.FullName,
		Avatar:                    user.Avatar,
		CoverImage:                user.CoverImage,
		SubscribersCount:          len(s.relations.Actors(relations.KindChannel, user.ID)),
		ChannelsSubscribedToCount: len(s.relations.Targets(user.ID, relations.KindChannel)),
		IsSubscribed:              s.relations.Count(viewerID, relations.KindChannel, user.ID) == 1,
	}, nil
}

func (s memUsers) WatchHistory(_ context.Context, userID string) ([]models.VideoWithOwner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	history := []models.VideoWithOwner{}
	for _, id := range user.WatchHistory {
		if video, ok := s.videos[id]; ok {
			history = append(history, models.VideoWithOwner{Video: video, Owner: s.summaryLocked(video.OwnerID)})
		}
	}
	return history, nil
}

func (s memUsers) AddToWatchHistory(_ context.Context, userID, videoID string) error {
	_, err := s.update(userID, func(u *models.User) {
		history := make([]string, 0, len(u.WatchHistory)+1)
		for _, id := range u.WatchHistory {
			if id != videoID {
				history = append(history, id)
			}
		}
		u.WatchHistory = append(history, videoID)
	})
	return err
}

func (s memUsers) FindIdentity(ctx context.Context, userID string) (models.User, error) {
	user, err := s.FindByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, auth.ErrIdentityNotFound
	}
	return user, err
}

func (s memUsers) SetRefreshToken(_ context.Context, userID, token string) error {
	if _, err := s.update(userID, func(u *models.User) { u.RefreshToken = token }); err != nil {
		return auth.ErrIdentityNotFound
	}
	return nil
}

func (s memUsers) SwapRefreshToken(_ context.Context, userID, current, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok || user.RefreshToken != current {
		return auth.ErrRefreshTokenReused
	}
	user.RefreshToken = next
	s.users[userID] = user
	return nil
}

type memVideos struct{ *backend }

func (s memVideos) Create(_ context.Context, video models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[video.ID] = video
	return nil
}

func (s memVideos) FindByID(_ context.Context, id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

func (s memVideos) FindWithOwner(_ context.Context, id string) (models.VideoWithOwner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return models.VideoWithOwner{}, repositories.ErrNotFound
	}
	return models.VideoWithOwner{Video: video, Owner: s.summaryLocked(video.OwnerID)}, nil
}

func (s memVideos) List(_ context.Context, query models.VideoQuery) (models.VideoPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.VideoWithOwner
	for _, video := range s.videos {
		if query.OwnerID != "" && video.OwnerID != query.OwnerID {
			continue
		}
		if !video.IsPublished && video.OwnerID != query.ViewerID {
			continue
		}
		if query.Search != "" && !strings.Contains(strings.ToLower(video.Title+" "+video.Description), strings.ToLower(query.Search)) {
			continue
		}
		matched = append(matched, models.VideoWithOwner{Video: video, Owner: s.summaryLocked(video.OwnerID)})
	}
	sort.Slice(matched, func(i, j int) bool {
		if query.SortDesc {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	page := models.VideoPage{Videos: []models.VideoWithOwner{}, TotalDocs: int64(len(matched)), Page: query.Page, Limit: query.Limit}
	page.TotalPages = (page.TotalDocs + int64(query.Limit) - 1) / int64(query.Limit)
	start := (query.Page - 1) * query.Limit
	if start < len(matched) {
		end := min(start+query.Limit, len(matched))
		page.Videos = matched[start:end]
	}
	return page, nil
}

func (s memVideos) modify(id string, fn func(*models.Video)) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	fn(&video)
	s.videos[id] = video
	return video, nil
}

func (s memVideos) Update(_ context.Context, id string, update models.VideoUpdate) (models.Video, error) {
	return s.modify(id, func(v *models.Video) {
		if update.Title != nil {
			v.Title = *update.Title
		}
		if update.Description != nil {
			v.Description = *update.Description
		}
		if update.Thumbnail != nil {
			v.Thumbnail = *update.Thumbnail
		}
	})
}

func (s memVideos) TogglePublished(_ context.Context, id string) (models.Video, error) {
	return s.modify(id, func(v *models.Video) { v.IsPublished = !v.IsPublished })
}

func (s memVideos) IncrementViews(_ context.Context, id string) (models.Video, error) {
	return s.modify(id, func(v *models.Video) { v.Views++ })
}

func (s memVideos) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.videos, id)
	for cid, comment := range s.comments {
		if comment.VideoID == id {
			delete(s.comments, cid)
		}
	}
	return nil
}

type memTweets struct{ *backend }

func (s memTweets) Create(_ context.Context, tweet models.Tweet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tweets[tweet.ID] = tweet
	return nil
}

func (s memTweets) FindByID(_ context.Context, id string) (models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tweet, ok := s.tweets[id]
	if !ok {
		return models.Tweet{}, repositories.ErrNotFound
	}
	return tweet, nil
}

func (s memTweets) ListByOwner(_ context.Context, ownerID string) ([]models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tweets := []models.Tweet{}
	for _, tweet := range s.tweets {
		if tweet.OwnerID == ownerID {
			tweets = append(tweets, tweet)
		}
	}
	sort.Slice(tweets, func(i, j int) bool { return tweets[i].CreatedAt.After(tweets[j].CreatedAt) })
	return tweets, nil
}

func (s memTweets) Update(_ context.Context, id, content string) (models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tweet, ok := s.tweets[id]
	if !ok {
		return models.Tweet{}, repositories.ErrNotFound
	}
	tweet.Content = content
	s.tweets[id] = tweet
	return tweet, nil
}

func (s memTweets) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tweets[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.tweets, id)
	return nil
}

type memComments struct{ *backend }

func (s memComments) Create(_ context.Context, comment models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[comment.ID] = comment
	return nil
}

func (s memComments) FindByID(_ context.Context, id string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment, ok := s.comments[id]
	if !ok {
		return models.Comment{}, repositories.ErrNotFound
	}
	return comment, nil
}

func (s memComments) ListByVideo(_ context.Context, videoID string, page, limit int) (models.CommentPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.Comment
	for _, comment := range s.comments {
		if comment.VideoID == videoID {
			matched = append(matched, comment)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })

	result := models.CommentPage{Comments: []models.Comment{}, TotalDocs: int64(len(matched)), Page: page, Limit: limit}
	start := (page - 1) * limit
	if start < len(matched) {
		result.Comments = matched[start:min(start+limit, len(matched))]
	}
	return result, nil
}

func (s memComments) Update(_ context.Context, id, content string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment, ok := s.comments[id]
	if !ok {
		return models.Comment{}, repositories.ErrNotFound
	}
	comment.Content = content
	s.comments[id] = comment
	return comment, nil
}

func (s memComments) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

// memRelationViews derives the like and subscription listings from the relation store.
type memRelationViews struct{ *backend }

func (s memRelationViews) LikedVideos(_ context.Context, userID string) ([]models.VideoWithOwner, error) {
	ids := s.relations.Targets(userID, relations.KindVideo)
	s.mu.Lock()
	defer s.mu.Unlock()
	liked := []models.VideoWithOwner{}
	for _, id := range ids {
		if video, ok := s.videos[id]; ok {
			liked = append(liked, models.VideoWithOwner{Video: video, Owner: s.summaryLocked(video.OwnerID)})
		}
	}
	return liked, nil
}

func (s memRelationViews) Subscribers(_ context.Context, channelID string) ([]models.UserSummary, error) {
	return s.summaries(s.relations.Actors(relations.KindChannel, channelID)), nil
}

func (s memRelationViews) SubscribedChannels(_ context.Context, subscriberID string) ([]models.UserSummary, error) {
	return s.summaries(s.relations.Targets(subscriberID, relations.KindChannel)), nil
}

func (s memRelationViews) summaries(ids []string) []models.UserSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.UserSummary{}
	for _, id := range ids {
		if _, ok := s.users[id]; ok {
			out = append(out, s.summaryLocked(id))
		}
	}
	return out
}

// fakeMedia records uploads instead of contacting the media host.
type fakeMedia struct {
	mu       sync.Mutex
	uploads  []string
	removed  []string
	failFor  map[string]error
	duration float64
}

func (m *fakeMedia) Upload(_ context.Context, folder string, file *multipart.FileHeader) (media.Asset, error) {
	if file == nil {
		return media.Asset{}, media.ErrMissingFile
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor[folder]; err != nil {
		return media.Asset{}, err
	}
	location := "https://media.test/" + folder + "/" + file.Filename
	m.uploads = append(m.uploads, location)
	asset := media.Asset{Location: location, Size: file.Size}
	if folder == media.FolderVideos {
		asset.Duration = m.duration
	}
	return asset, nil
}

func (m *fakeMedia) Remove(_ context.Context, location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, location)
	return nil
}

func (m *fakeMedia) uploadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads)
}

// countingLimiter allows the first max calls.
type countingLimiter struct {
	mu    sync.Mutex
	max   int
	calls int
}

func (l *countingLimiter) Allow(string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.calls <= l.max
}

type testEnv struct {
	mux      *http.ServeMux
	backend  *backend
	users    memUsers
	media    *fakeMedia
	sessions *auth.Manager
	deps     Dependencies
}

func newTestEnv(t *testing.T, adjust ...func(*Dependencies)) *testEnv {
	t.Helper()

	b := newBackend()
	users := memUsers{b}
	videos := memVideos{b}
	tweets := memTweets{b}
	comments := memComments{b}
	views := memRelationViews{b}
	uploads := &fakeMedia{duration: 12.5}
	sessions := auth.NewManager(auth.TokenConfig{
		AccessSecret:  "test-access-secret",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "test-refresh-secret",
		RefreshTTL:    24 * time.Hour,
	}, users, nil)

	deps := Dependencies{
		Users:          users,
		Sessions:       sessions,
		Verifier:       sessions,
		Videos:         videos,
		Tweets:         tweets,
		Comments:       comments,
		Relations:      NewRelationEngine(b.relations, videos, comments, tweets, users),
		Likes:          views,
		Subscriptions:  views,
		Media:          uploads,
		MaxUploadBytes: 10 << 20,
	}
	for _, fn := range adjust {
		fn(&deps)
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)
	return &testEnv{mux: mux, backend: b, users: users, media: uploads, sessions: sessions, deps: deps}
}

// seedUser stores a user with password "secret" and returns an access token for them.
func (e *testEnv) seedUser(t *testing.T, username string) (models.User, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	user := models.User{
		ID:        models.NewID(),
		Username:  username,
		Email:     username + "@example.com",
		FullName:  strings.ToUpper(username[:1]) + username[1:],
		Avatar:    "https://media.test/avatars/" + username + ".png",
		Password:  string(hash),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	tokens, err := e.sessions.Issue(context.Background(), user)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	return user, tokens.AccessToken
}

func (e *testEnv) do(t *testing.T, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: token})
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.do(t, req, token)
}

func (e *testEnv) doMultipart(t *testing.T, method, path, token string, fields map[string]string, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, files)
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	return e.do(t, req, token)
}

// multipartBody builds a form where files maps field names to file names.
func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("write field %s: %v", name, err)
		}
	}
	for field, filename := range files {
		part, err := writer.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create file %s: %v", field, err)
		}
		if _, err := part.Write([]byte("content of " + filename)); err != nil {
			t.Fatalf("write file %s: %v", field, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Errors     []string        `json:"errors"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
	}
	return env
}

func decodeData(t *testing.T, env envelope, dest any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dest); err != nil {
		t.Fatalf("decode data: %v (data %s)", err, env.Data)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) envelope {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d got %d: %s", status, rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.StatusCode != status {
		t.Fatalf("expected envelope status %d got %d", status, env.StatusCode)
	}
	if message != "" && env.Message != message {
		t.Fatalf("expected message %q got %q", message, env.Message)
	}
	return env
}

func isNullData(data json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(data))
	return trimmed == "" || trimmed == "null"
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
