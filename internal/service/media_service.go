package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Accepted proctoring media types.
var allowedMIMETypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"video/webm": ".webm",
}

// BlobStore persists uploaded media under a slash-separated key.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Delete(ctx context.Context, key string) error
}

// MediaUpload describes a stored upload.
type MediaUpload struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// MediaService stores proctoring media for live sessions.
type MediaService struct {
	enabled  bool
	maxBytes int64
	blobs    BlobStore
	log      zerolog.Logger
	now      func() time.Time
}

// NewMediaService creates a new MediaService.
func NewMediaService(enabled bool, maxBytes int64, blobs BlobStore, log zerolog.Logger) *MediaService {
	return &MediaService{
		enabled:  enabled,
		maxBytes: maxBytes,
		blobs:    blobs,
		log:      log.With().Str("component", "media_service").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether uploads are accepted at all.
func (s *MediaService) Enabled() bool {
	return s.enabled
}

// Upload validates and stores one file for sess.
func (s *MediaService) Upload(ctx context.Context, sess *model.Session, contentType string, size int64, r io.Reader) (*MediaUpload, error) {
	if !s.enabled {
		return nil, model.ErrMediaDisabled
	}
	if !sess.IsLive(s.now()) {
		return nil, model.ErrSessionNotLive
	}

	contentType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := allowedMIMETypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s (allowed: %s)",
			model.ErrUnsupportedMedia, contentType, strings.Join(allowedTypes(), ", "))
	}
	if size > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max: %d)", model.ErrMediaTooLarge, size, s.maxBytes)
	}

	key := path.Join("sessions", sess.ID.String(), uuid.New().String()+ext)

	// Declared sizes can lie; never read past the limit.
	written, err := s.blobs.Put(ctx, key, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("store media: %w", err)
	}
	if written > s.maxBytes {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to remove oversized upload")
		}
		return nil, fmt.Errorf("%w: more than %d bytes", model.ErrMediaTooLarge, s.maxBytes)
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("key", key).
		Int64("size", written).
		Msg("Media stored")

	return &MediaUpload{Key: key, ContentType: contentType, Size: written}, nil
}

func allowedTypes() []string {
	types := make([]string, 0, len(allowedMIMETypes))
	for t := range allowedMIMETypes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
