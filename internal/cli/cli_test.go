package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/certexam/certexam-backend/internal/repository/memory"
	"github.com/certexam/certexam-backend/internal/service"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const sampleBank = `
exam:
  title: Cloud Practitioner
  duration_minutes: 60
  gate_password: open-sesame
blocks:
  - title: Storage
    qty: 2
    questions:
      - code: ST-1
        text: Which tier is cheapest?
        options:
          - text: Archive
            correct: true
          - text: Hot
      - code: ST-2
        text: Which tier is fastest?
        enabled: false
        options:
          - text: Archive
          - text: Hot
            correct: true
  - title: Networking
    qty: 1
    enabled: false
    questions: []
`

func TestParseBank(t *testing.T) {
	bank, err := parseBank(strings.NewReader(sampleBank))
	if err != nil {
		t.Fatalf("parseBank: %v", err)
	}

	if bank.Exam.Title != "Cloud Practitioner" || bank.Exam.DurationMinutes != 60 || bank.Exam.GatePassword != "open-sesame" {
		t.Fatalf("unexpected exam: %+v", bank.Exam)
	}
	if len(bank.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(bank.Blocks))
	}

	storage := bank.Blocks[0]
	if storage.Block.OrderIndex != 1 || !storage.Block.Enabled || storage.Block.Qty != 2 {
		t.Fatalf("unexpected storage block: %+v", storage.Block)
	}
	if len(storage.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(storage.Questions))
	}
	if !storage.Questions[0].Enabled || storage.Questions[1].Enabled {
		t.Fatal("question enabled flags not honoured")
	}
	if storage.Questions[1].OrderIndex != 2 || !storage.Questions[1].Options[1].IsCorrect {
		t.Fatalf("unexpected second question: %+v", storage.Questions[1])
	}
	if bank.Blocks[1].Block.Enabled || bank.Blocks[1].Block.OrderIndex != 2 {
		t.Fatalf("unexpected networking block: %+v", bank.Blocks[1].Block)
	}
}

func TestParseBankDefaultsDuration(t *testing.T) {
	bank, err := parseBank(strings.NewReader("exam:\n  title: Quick\n"))
	if err != nil {
		t.Fatalf("parseBank: %v", err)
	}
	if bank.Exam.DurationMinutes != defaultDurationMinutes {
		t.Fatalf("expected default duration, got %d", bank.Exam.DurationMinutes)
	}
}

func TestParseBankRejectsInvalidFiles(t *testing.T) {
	cases := map[string]string{
		"missing title":     "exam:\n  duration_minutes: 10\n",
		"negative duration": "exam:\n  title: X\n  duration_minutes: -5\n",
		"unknown field":     "exam:\n  title: X\n  colour: blue\n",
		"no correct option": `
exam: {title: X}
blocks:
  - title: B
    qty: 1
    questions:
      - code: Q1
        text: t
        options: [{text: a}, {text: b}]
`,
		"single option": `
exam: {title: X}
blocks:
  - title: B
    qty: 1
    questions:
      - code: Q1
        text: t
        options: [{text: a, correct: true}]
`,
		"duplicate code": `
exam: {title: X}
blocks:
  - title: B
    qty: 1
    questions:
      - code: Q1
        text: t
        options: [{text: a, correct: true}, {text: b}]
      - code: Q1
        text: u
        options: [{text: a, correct: true}, {text: b}]
`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parseBank(strings.NewReader(doc)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

type recordingImporter struct {
	got *model.BankImport
	err error
}

func (r *recordingImporter) ImportBank(_ context.Context, bank *model.BankImport) (int64, error) {
	r.got = bank
	return 42, r.err
}

func TestSeedBankReportsImport(t *testing.T) {
	importer := &recordingImporter{}
	var out bytes.Buffer

	if err := seedBank(context.Background(), importer, strings.NewReader(sampleBank), &out); err != nil {
		t.Fatalf("seedBank: %v", err)
	}
	if importer.got == nil || importer.got.Exam.Title != "Cloud Practitioner" {
		t.Fatal("bank not passed to importer")
	}
	if !strings.Contains(out.String(), "ID 42 (2 blocks, 2 questions)") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestSeedBankWrapsImportError(t *testing.T) {
	importer := &recordingImporter{err: model.ErrConflict}
	err := seedBank(context.Background(), importer, strings.NewReader(sampleBank), &bytes.Buffer{})
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestIssueCodesWritesYAML(t *testing.T) {
	store := memory.New()
	exam := store.AddExam(model.Exam{Title: "Cloud", DurationMinutes: 30})
	svc := service.NewExamService(nil, store, store, service.NewHasher(bcrypt.MinCost), nil, zerolog.Nop())

	var out bytes.Buffer
	if err := issueCodes(context.Background(), svc, exam.ID, 3, true, &out); err != nil {
		t.Fatalf("issueCodes: %v", err)
	}

	var doc issuedCodes
	if err := yaml.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if doc.ExamID != exam.ID || len(doc.Codes) != 3 {
		t.Fatalf("unexpected document: %+v", doc)
	}

	redeemable, err := store.ListRedeemableCodes(context.Background(), exam.ID)
	if err != nil {
		t.Fatalf("ListRedeemableCodes: %v", err)
	}
	if len(redeemable) != 3 {
		t.Fatalf("expected 3 stored codes, got %d", len(redeemable))
	}
	if bcrypt.CompareHashAndPassword([]byte(redeemable[0].CodeHash), []byte(doc.Codes[0])) != nil {
		t.Fatal("stored hash does not match the printed code")
	}
}

func TestIssueCodesPlainOutput(t *testing.T) {
	store := memory.New()
	exam := store.AddExam(model.Exam{Title: "Cloud", DurationMinutes: 30})
	svc := service.NewExamService(nil, store, store, service.NewHasher(bcrypt.MinCost), nil, zerolog.Nop())

	var out bytes.Buffer
	if err := issueCodes(context.Background(), svc, exam.ID, 2, false, &out); err != nil {
		t.Fatalf("issueCodes: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out.String()), "\n"); len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out.String())
	}
}

func TestIssueCodesUnknownExam(t *testing.T) {
	store := memory.New()
	svc := service.NewExamService(nil, store, store, service.NewHasher(bcrypt.MinCost), nil, zerolog.Nop())

	err := issueCodes(context.Background(), svc, 999, 2, false, &bytes.Buffer{})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

const sampleRoster = `
default_password: changeme123
users:
  - first_name: Ada
    last_name: Lovelace
    email: ADA@example.com
    code: C-001
    exam_permission: true
  - first_name: Alan
    email: alan@example.com
    personal_id: P-77
    password: turing-machine
`

func TestParseUsers(t *testing.T) {
	entries, err := parseUsers(strings.NewReader(sampleRoster))
	if err != nil {
		t.Fatalf("parseUsers: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	ada := entries[0]
	if ada.User.Email != "ada@example.com" || ada.Password != "changeme123" || !ada.User.ExamPermission {
		t.Fatalf("unexpected first entry: %+v", ada)
	}
	if entries[1].Password != "turing-machine" || entries[1].User.PersonalID != "P-77" {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
	for _, e := range entries {
		if e.User.Role != model.RoleCandidate {
			t.Fatalf("imported role %q, want candidate", e.User.Role)
		}
	}
}

func TestParseUsersRejectsShortPassword(t *testing.T) {
	_, err := parseUsers(strings.NewReader("users:\n  - email: a@example.com\n    password: short\n"))
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestImportUsersSkipsExistingEmails(t *testing.T) {
	store := memory.New()
	store.AddUser(model.User{Email: "ada@example.com", Role: model.RoleCandidate})

	entries, err := parseUsers(strings.NewReader(sampleRoster))
	if err != nil {
		t.Fatalf("parseUsers: %v", err)
	}

	var out bytes.Buffer
	created, err := importUsers(context.Background(), store.Users(), service.NewHasher(bcrypt.MinCost), entries, &out)
	if err != nil {
		t.Fatalf("importUsers: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 created account, got %d", created)
	}
	if !strings.Contains(out.String(), "Skipped ada@example.com") {
		t.Fatalf("expected skip notice, got %q", out.String())
	}

	alan, err := store.Users().GetByEmail(context.Background(), "alan@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(alan.PasswordHash), []byte("turing-machine")) != nil {
		t.Fatal("password not hashed with the roster value")
	}
}
