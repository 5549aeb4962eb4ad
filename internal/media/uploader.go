// Package media spools multipart uploads to scoped temp files and hands them to the
// object store. Temp files never outlive the request that created them.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/videos"
)

// Folders group uploaded objects by purpose.
const (
	FolderAvatars     = "avatars"
	FolderCoverImages = "cover-images"
	FolderVideos      = "videos"
	FolderThumbnails  = "thumbnails"
)

var (
	// ErrMissingFile indicates the multipart part carried no file.
	ErrMissingFile = errors.New("media file is required")
	// ErrTooLarge indicates the part exceeded the configured upload limit.
	ErrTooLarge = errors.New("media file exceeds upload limit")
)

// Storage persists finished uploads and returns their public location.
type Storage interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, location string) error
}

// Asset describes a stored upload.
type Asset struct {
	Location string
	Size     int64
	Duration float64
}

// Uploader moves multipart files into Storage.
type Uploader struct {
	storage  Storage
	prober   videos.Prober
	tempDir  string
	maxBytes int64
}

// NewUploader constructs an Uploader. A nil prober skips duration probing.
func NewUploader(storage Storage, prober videos.Prober, tempDir string, maxBytes int64) *Uploader {
	if storage == nil {
		panic("media: storage must not be nil")
	}
	return &Uploader{storage: storage, prober: prober, tempDir: tempDir, maxBytes: maxBytes}
}

// Upload spools file to a temp file, probes videos for their duration and stores the
// result under folder. The temp file is removed on every return path.
func (u *Uploader) Upload(ctx context.Context, folder string, file *multipart.FileHeader) (asset Asset, err error) {
	if file == nil {
		return Asset{}, ErrMissingFile
	}

	ctx, span := logging.StartSpan(ctx, "media.upload", "folder", folder, "filename", file.Filename)
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		metrics.MediaUploadsTotal.WithLabelValues(folder, status).Inc()
		span.End(err)
	}()

	if u.maxBytes > 0 && file.Size > u.maxBytes {
		return Asset{}, ErrTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return Asset{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(file.Filename))
	tmp, err := os.CreateTemp(u.tempDir, "upload-*"+ext)
	if err != nil {
		return Asset{}, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		if removeErr := os.Remove(tmp.Name()); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			logging.FromContext(ctx).Warn("failed to remove temp upload", "path", tmp.Name(), "error", removeErr)
		}
	}()

	var reader io.Reader = src
	if u.maxBytes > 0 {
		reader = io.LimitReader(src, u.maxBytes+1)
	}
	written, err := io.Copy(tmp, reader)
	if err != nil {
		return Asset{}, fmt.Errorf("spool upload: %w", err)
	}
	if u.maxBytes > 0 && written > u.maxBytes {
		return Asset{}, ErrTooLarge
	}

	asset.Size = written
	if folder == FolderVideos && u.prober != nil {
		meta, err := u.prober.Probe(ctx, tmp.Name())
		if err != nil {
			return Asset{}, fmt.Errorf("probe video: %w", err)
		}
		asset.Duration = meta.Duration
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return Asset{}, fmt.Errorf("rewind temp file: %w", err)
	}

	key := path.Join(folder, uuid.NewString()+ext)
	location, err := u.storage.Save(ctx, key, file.Header.Get("Content-Type"), tmp)
	if err != nil {
		return Asset{}, err
	}
	metrics.MediaUploadBytes.WithLabelValues(folder).Add(float64(written))

	asset.Location = location
	return asset, nil
}

// Remove deletes a stored object. Failures are logged and returned.
func (u *Uploader) Remove(ctx context.Context, location string) error {
	if strings.TrimSpace(location) == "" {
		return nil
	}
	if err := u.storage.Delete(ctx, location); err != nil {
		logging.FromContext(ctx).Warn("failed to remove stored media", "location", location, "error", err)
		return err
	}
	return nil
}
