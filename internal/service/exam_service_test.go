package service

import (
	"context"
	"errors"
	"testing"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/rs/zerolog"
)

type invalidationRecorder struct {
	examIDs []int64
}

func (r *invalidationRecorder) InvalidateExam(_ context.Context, examID int64) error {
	r.examIDs = append(r.examIDs, examID)
	return nil
}

func newExamServiceFixture(t *testing.T) (*fixture, *ExamService, *invalidationRecorder) {
	t.Helper()
	f := newFixture(t, 2)
	inv := &invalidationRecorder{}
	svc := NewExamService(nil, f.store, f.store, f.hasher, inv, zerolog.Nop())
	return f, svc, inv
}

func TestGetConfig(t *testing.T) {
	f, svc, _ := newExamServiceFixture(t)
	early := f.store.AddBlock(model.Block{ExamID: f.exam.ID, Title: "Addressing", Qty: 1, OrderIndex: 0, Enabled: true})
	f.store.AddBlock(model.Block{ExamID: f.exam.ID, Title: "Hidden", Qty: 1, OrderIndex: 5, Enabled: false})

	cfg, err := svc.GetConfig(t.Context(), f.exam.ID)
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg.Title != "Network Fundamentals" || cfg.DurationMinutes != 60 {
		t.Fatalf("unexpected header: %+v", cfg)
	}
	if len(cfg.Blocks) != 2 || cfg.Blocks[0].ID != early.ID || cfg.Blocks[1].ID != f.block.ID {
		t.Fatalf("unexpected blocks: %+v", cfg.Blocks)
	}

	if _, err := svc.GetConfig(t.Context(), 9999); !errors.Is(err, model.ErrExamNotFound) {
		t.Fatalf("expected ErrExamNotFound, got %v", err)
	}
}

func TestVerifyGatePassword(t *testing.T) {
	f, svc, _ := newExamServiceFixture(t)
	noGate := f.store.AddExam(model.Exam{Title: "Open", DurationMinutes: 10})

	tests := []struct {
		name     string
		examID   int64
		password string
		want     bool
	}{
		{"correct password", f.exam.ID, "open-sesame", true},
		{"wrong password", f.exam.ID, "open-sesame!", false},
		{"empty password", f.exam.ID, "", false},
		{"exam without gate", noGate.ID, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.VerifyGatePassword(t.Context(), tt.examID, tt.password)
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if got != tt.want {
				t.Fatalf("valid = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := svc.VerifyGatePassword(t.Context(), 9999, "x"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateSettings(t *testing.T) {
	f, svc, inv := newExamServiceFixture(t)

	blank := "   "
	zero := 0
	gate := "  s3cret "
	got, err := svc.UpdateSettings(t.Context(), f.exam.ID, model.UpdateExamSettingsRequest{
		Title:           &blank,
		DurationMinutes: &zero,
		GatePassword:    &gate,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "Network Fundamentals" {
		t.Fatalf("blank title must be ignored, got %q", got.Title)
	}
	if got.DurationMinutes != 1 {
		t.Fatalf("duration must be clamped to 1, got %d", got.DurationMinutes)
	}
	if got.GatePassword != "s3cret" {
		t.Fatalf("gate password must be trimmed, got %q", got.GatePassword)
	}
	if len(inv.examIDs) != 1 || inv.examIDs[0] != f.exam.ID {
		t.Fatalf("expected cache invalidation for exam %d, got %v", f.exam.ID, inv.examIDs)
	}

	title := "  Routing & Switching "
	got, err = svc.UpdateSettings(t.Context(), f.exam.ID, model.UpdateExamSettingsRequest{Title: &title})
	if err != nil {
		t.Fatalf("update title: %v", err)
	}
	if got.Title != "Routing & Switching" || got.DurationMinutes != 1 {
		t.Fatalf("unexpected settings: %+v", got)
	}
}

func TestUpdateSettingsKeepsRunningSessionDeadline(t *testing.T) {
	f, svc, _ := newExamServiceFixture(t)
	sess := f.openSession(t, "")

	d := 5
	if _, err := svc.UpdateSettings(t.Context(), f.exam.ID, model.UpdateExamSettingsRequest{DurationMinutes: &d}); err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, _ := f.store.Get(t.Context(), sess.ID)
	if !stored.EndsAt.Equal(sess.EndsAt) {
		t.Fatalf("ends_at moved from %s to %s", sess.EndsAt, stored.EndsAt)
	}
}

func TestIssueCodes(t *testing.T) {
	f, svc, _ := newExamServiceFixture(t)

	codes, err := svc.IssueCodes(t.Context(), f.exam.ID, 3)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(codes) != 3 {
		t.Fatalf("expected 3 codes, got %d", len(codes))
	}
	for _, c := range codes {
		if len(c) != accessCodeLength {
			t.Fatalf("code %q has length %d", c, len(c))
		}
	}

	grant, err := f.sessions.RedeemCode(t.Context(), f.exam.ID, codes[1])
	if err != nil {
		t.Fatalf("issued code must be redeemable: %v", err)
	}
	if grant.Token == "" {
		t.Fatal("empty token")
	}

	for _, n := range []int{0, 501} {
		if _, err := svc.IssueCodes(t.Context(), f.exam.ID, n); !errors.Is(err, model.ErrBadRequest) {
			t.Fatalf("count %d: expected ErrBadRequest, got %v", n, err)
		}
	}
	if _, err := svc.IssueCodes(t.Context(), 9999, 1); !errors.Is(err, model.ErrExamNotFound) {
		t.Fatalf("expected ErrExamNotFound, got %v", err)
	}
}
