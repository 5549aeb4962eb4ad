package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vidtube/backend/internal/config"
)

type fakeObjects struct {
	uploads map[string]string
	deleted []string
	err     error
}

func (f *fakeObjects) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	if f.uploads == nil {
		f.uploads = make(map[string]string)
	}
	f.uploads[*input.Key] = string(body)
	return &manager.UploadOutput{}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StorageSaveAndDelete(t *testing.T) {
	objects := &fakeObjects{}
	store := newS3Storage(objects, objects, config.ObjectStoreConfig{Bucket: "media", PublicBaseURL: "https://cdn.example.com/"})

	location, err := store.Save(context.Background(), "/videos/abc.mp4", "video/mp4", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if location != "https://cdn.example.com/videos/abc.mp4" {
		t.Fatalf("unexpected location %q", location)
	}
	if objects.uploads["videos/abc.mp4"] != "payload" {
		t.Fatalf("expected payload to be uploaded under trimmed key, got %v", objects.uploads)
	}

	if err := store.Delete(context.Background(), location); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(objects.deleted) != 1 || objects.deleted[0] != "videos/abc.mp4" {
		t.Fatalf("expected key derived from location, got %v", objects.deleted)
	}
}

func TestS3StorageWithoutBaseURLReturnsKey(t *testing.T) {
	objects := &fakeObjects{}
	store := newS3Storage(objects, objects, config.ObjectStoreConfig{Bucket: "media"})

	location, err := store.Save(context.Background(), "avatars/a.png", "", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if location != "avatars/a.png" {
		t.Fatalf("expected bare key, got %q", location)
	}
}

func TestS3StorageErrors(t *testing.T) {
	objects := &fakeObjects{err: errors.New("access denied")}
	store := newS3Storage(objects, objects, config.ObjectStoreConfig{Bucket: "media"})

	if _, err := store.Save(context.Background(), "", "", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for empty key")
	}
	if _, err := store.Save(context.Background(), "a.png", "", strings.NewReader("x")); err == nil {
		t.Fatal("expected upload error to surface")
	}
	if err := store.Delete(context.Background(), "a.png"); err == nil {
		t.Fatal("expected delete error to surface")
	}
}

func TestNewS3StorageRequiresBucket(t *testing.T) {
	if _, err := NewS3Storage(context.Background(), config.ObjectStoreConfig{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
