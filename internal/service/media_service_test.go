package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type memBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (m *memBlobs) Put(_ context.Context, key string, r io.Reader) (int64, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return n, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blobs == nil {
		m.blobs = map[string][]byte{}
	}
	m.blobs[key] = buf.Bytes()
	return n, nil
}

func (m *memBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func liveSession(now time.Time) *model.Session {
	return &model.Session{
		ID:        uuid.New(),
		Active:    true,
		StartedAt: now,
		EndsAt:    now.Add(time.Hour),
	}
}

func TestMediaUploadDisabled(t *testing.T) {
	svc := NewMediaService(false, 1024, &memBlobs{}, zerolog.Nop())
	_, err := svc.Upload(t.Context(), liveSession(time.Now()), "image/png", 3, strings.NewReader("png"))
	if !errors.Is(err, model.ErrMediaDisabled) || !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("expected ErrMediaDisabled, got %v", err)
	}
}

func TestMediaUpload(t *testing.T) {
	blobs := &memBlobs{}
	svc := NewMediaService(true, 8, blobs, zerolog.Nop())
	sess := liveSession(time.Now())

	t.Run("stores under the session prefix", func(t *testing.T) {
		up, err := svc.Upload(t.Context(), sess, "video/webm; codecs=vp8", 5, strings.NewReader("frame"))
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
		prefix := "sessions/" + sess.ID.String() + "/"
		if !strings.HasPrefix(up.Key, prefix) || !strings.HasSuffix(up.Key, ".webm") {
			t.Fatalf("unexpected key %q", up.Key)
		}
		if up.Size != 5 || up.ContentType != "video/webm" {
			t.Fatalf("unexpected upload: %+v", up)
		}
		if string(blobs.blobs[up.Key]) != "frame" {
			t.Fatalf("blob not stored")
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := svc.Upload(t.Context(), sess, "image/gif", 3, strings.NewReader("gif"))
		if !errors.Is(err, model.ErrUnsupportedMedia) {
			t.Fatalf("expected ErrUnsupportedMedia, got %v", err)
		}
	})

	t.Run("declared size too large", func(t *testing.T) {
		_, err := svc.Upload(t.Context(), sess, "image/png", 100, strings.NewReader("x"))
		if !errors.Is(err, model.ErrMediaTooLarge) {
			t.Fatalf("expected ErrMediaTooLarge, got %v", err)
		}
	})

	t.Run("body larger than declared", func(t *testing.T) {
		before := len(blobs.blobs)
		_, err := svc.Upload(t.Context(), sess, "image/png", 1, strings.NewReader("0123456789"))
		if !errors.Is(err, model.ErrMediaTooLarge) {
			t.Fatalf("expected ErrMediaTooLarge, got %v", err)
		}
		if len(blobs.blobs) != before {
			t.Fatalf("oversized blob was kept")
		}
	})

	t.Run("finished session", func(t *testing.T) {
		done := liveSession(time.Now())
		done.Active = false
		_, err := svc.Upload(t.Context(), done, "image/png", 1, strings.NewReader("x"))
		if !errors.Is(err, model.ErrSessionNotLive) {
			t.Fatalf("expected ErrSessionNotLive, got %v", err)
		}
	})
}
