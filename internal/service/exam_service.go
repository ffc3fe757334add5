package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/rs/zerolog"
)

// ExamService serves exam-level operations: public config, the gate password
// and admin settings and code issuance.
type ExamService struct {
	bank   QuestionBank
	exams  ExamStore
	codes  CodeStore
	hasher *Hasher
	cache  CacheInvalidator
	log    zerolog.Logger
}

// NewExamService creates a new ExamService. bank may be a cached reader over
// exams; cache may be nil.
func NewExamService(bank QuestionBank, exams ExamStore, codes CodeStore, hasher *Hasher, cache CacheInvalidator, log zerolog.Logger) *ExamService {
	if bank == nil {
		bank = exams
	}
	return &ExamService{
		bank:   bank,
		exams:  exams,
		codes:  codes,
		hasher: hasher,
		cache:  cache,
		log:    log.With().Str("component", "exam_service").Logger(),
	}
}

// GetConfig returns the public exam header with its enabled blocks.
func (s *ExamService) GetConfig(ctx context.Context, examID int64) (*model.ExamConfig, error) {
	exam, err := s.bank.GetExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	blocks, err := s.bank.ListEnabledBlocks(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}

	headers := make([]model.BlockHeader, 0, len(blocks))
	for _, b := range blocks {
		headers = append(headers, model.BlockHeader{
			ID:         b.ID,
			Title:      b.Title,
			Qty:        b.Qty,
			OrderIndex: b.OrderIndex,
		})
	}

	return &model.ExamConfig{
		ExamID:          exam.ID,
		Title:           exam.Title,
		DurationMinutes: exam.DurationMinutes,
		Blocks:          headers,
	}, nil
}

// VerifyGatePassword reports whether password opens the exam gate. An exam
// without a gate password never validates.
func (s *ExamService) VerifyGatePassword(ctx context.Context, examID int64, password string) (bool, error) {
	// Read through the store, the cached exam has no gate password.
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return false, fmt.Errorf("get exam: %w", err)
	}
	if exam.GatePassword == "" {
		return false, nil
	}
	return secretsEqual(exam.GatePassword, password), nil
}

// GetSettings returns the admin-editable fields of an exam.
func (s *ExamService) GetSettings(ctx context.Context, examID int64) (*model.ExamSettings, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return settingsOf(exam), nil
}

// UpdateSettings applies an admin edit. Blank titles are ignored and the
// duration is clamped to at least one minute. Running sessions keep the
// ends_at they were opened with.
func (s *ExamService) UpdateSettings(ctx context.Context, examID int64, req model.UpdateExamSettingsRequest) (*model.ExamSettings, error) {
	var patch model.ExamSettingsPatch

	if req.Title != nil {
		if title := strings.TrimSpace(*req.Title); title != "" {
			patch.Title = &title
		}
	}
	if req.DurationMinutes != nil {
		d := *req.DurationMinutes
		if d < 1 {
			d = 1
		}
		patch.DurationMinutes = &d
	}
	if req.GatePassword != nil {
		pw := strings.TrimSpace(*req.GatePassword)
		patch.GatePassword = &pw
	}

	exam, err := s.exams.UpdateExamSettings(ctx, examID, patch)
	if err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateExam(ctx, examID); err != nil {
			s.log.Warn().Err(err).Int64("exam_id", examID).Msg("Failed to invalidate exam cache")
		}
	}

	s.log.Info().Int64("exam_id", examID).Msg("Exam settings updated")
	return settingsOf(exam), nil
}

func settingsOf(e *model.Exam) *model.ExamSettings {
	return &model.ExamSettings{
		ExamID:          e.ID,
		Title:           e.Title,
		DurationMinutes: e.DurationMinutes,
		GatePassword:    e.GatePassword,
	}
}

// IssueCodes generates count one-time access codes for an exam. Only the
// hashes are stored; the plaintext is returned once.
func (s *ExamService) IssueCodes(ctx context.Context, examID int64, count int) ([]string, error) {
	if count < 1 || count > 500 {
		return nil, fmt.Errorf("%w: count must be between 1 and 500", model.ErrBadRequest)
	}
	if _, err := s.exams.GetExam(ctx, examID); err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	plain := make([]string, 0, count)
	hashes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		code, err := newAccessCode()
		if err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(code)
		if err != nil {
			return nil, fmt.Errorf("hash code: %w", err)
		}
		plain = append(plain, code)
		hashes = append(hashes, hash)
	}

	n, err := s.codes.InsertCodes(ctx, examID, hashes)
	if err != nil {
		return nil, fmt.Errorf("insert codes: %w", err)
	}

	s.log.Info().Int64("exam_id", examID).Int("count", n).Msg("Access codes issued")
	return plain, nil
}
