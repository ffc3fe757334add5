package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/certexam/certexam-backend/internal/model"
	"gopkg.in/yaml.v3"
)

// bankFile is the YAML layout accepted by `examctl seed`.
type bankFile struct {
	Exam struct {
		Title           string `yaml:"title"`
		DurationMinutes int    `yaml:"duration_minutes"`
		GatePassword    string `yaml:"gate_password"`
	} `yaml:"exam"`
	Blocks []struct {
		Title     string `yaml:"title"`
		Qty       int    `yaml:"qty"`
		Enabled   *bool  `yaml:"enabled"`
		Questions []struct {
			Code    string `yaml:"code"`
			Text    string `yaml:"text"`
			Enabled *bool  `yaml:"enabled"`
			Options []struct {
				Text    string `yaml:"text"`
				Correct bool   `yaml:"correct"`
			} `yaml:"options"`
		} `yaml:"questions"`
	} `yaml:"blocks"`
}

const defaultDurationMinutes = 45

// parseBank decodes and validates a bank file. Order indexes follow the
// order of the YAML lists, starting at 1.
func parseBank(r io.Reader) (*model.BankImport, error) {
	var f bankFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode bank file: %w", err)
	}

	title := strings.TrimSpace(f.Exam.Title)
	if title == "" {
		return nil, fmt.Errorf("exam.title is required")
	}
	duration := f.Exam.DurationMinutes
	if duration == 0 {
		duration = defaultDurationMinutes
	}
	if duration < 1 {
		return nil, fmt.Errorf("exam.duration_minutes must be at least 1")
	}

	bank := &model.BankImport{
		Exam: model.Exam{
			Title:           title,
			DurationMinutes: duration,
			GatePassword:    strings.TrimSpace(f.Exam.GatePassword),
		},
	}

	seen := make(map[string]bool)
	for bi, b := range f.Blocks {
		if strings.TrimSpace(b.Title) == "" {
			return nil, fmt.Errorf("blocks[%d].title is required", bi)
		}
		if b.Qty < 0 {
			return nil, fmt.Errorf("blocks[%d].qty must not be negative", bi)
		}

		block := model.BlockImport{
			Block: model.Block{
				Title:      strings.TrimSpace(b.Title),
				Qty:        b.Qty,
				OrderIndex: bi + 1,
				Enabled:    enabledOrDefault(b.Enabled),
			},
		}

		for qi, q := range b.Questions {
			code := strings.TrimSpace(q.Code)
			if code == "" {
				return nil, fmt.Errorf("blocks[%d].questions[%d].code is required", bi, qi)
			}
			if seen[code] {
				return nil, fmt.Errorf("duplicate question code %q", code)
			}
			seen[code] = true

			if len(q.Options) < 2 {
				return nil, fmt.Errorf("question %q needs at least two options", code)
			}
			options := make([]model.Option, 0, len(q.Options))
			correct := 0
			for _, o := range q.Options {
				if o.Correct {
					correct++
				}
				options = append(options, model.Option{Text: o.Text, IsCorrect: o.Correct})
			}
			if correct == 0 {
				return nil, fmt.Errorf("question %q has no correct option", code)
			}

			block.Questions = append(block.Questions, model.Question{
				Code:       code,
				Text:       q.Text,
				OrderIndex: qi + 1,
				Enabled:    enabledOrDefault(q.Enabled),
				Options:    options,
			})
		}

		bank.Blocks = append(bank.Blocks, block)
	}

	return bank, nil
}

func enabledOrDefault(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}
