package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/certexam/certexam-backend/internal/model"
	"gopkg.in/yaml.v3"
)

type userEntry struct {
	PersonalID     string `yaml:"personal_id"`
	FirstName      string `yaml:"first_name"`
	LastName       string `yaml:"last_name"`
	Email          string `yaml:"email"`
	Code           string `yaml:"code"`
	Password       string `yaml:"password"`
	ExamPermission bool   `yaml:"exam_permission"`
}

type usersFile struct {
	// DefaultPassword is used for entries without their own password.
	DefaultPassword string      `yaml:"default_password"`
	Users           []userEntry `yaml:"users"`
}

// candidateImport is one account to create, with its plaintext password.
type candidateImport struct {
	User     model.User
	Password string
}

// parseUsers decodes a candidate roster. Every imported account gets the
// candidate role.
func parseUsers(r io.Reader) ([]candidateImport, error) {
	var f usersFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode users file: %w", err)
	}

	out := make([]candidateImport, 0, len(f.Users))
	for i, u := range f.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" {
			return nil, fmt.Errorf("users[%d].email is required", i)
		}
		password := u.Password
		if password == "" {
			password = f.DefaultPassword
		}
		if len(password) < 8 {
			return nil, fmt.Errorf("users[%d] (%s): password must be at least 8 characters", i, email)
		}

		out = append(out, candidateImport{
			User: model.User{
				PersonalID:     strings.TrimSpace(u.PersonalID),
				FirstName:      strings.TrimSpace(u.FirstName),
				LastName:       strings.TrimSpace(u.LastName),
				Email:          email,
				Code:           strings.TrimSpace(u.Code),
				Role:           model.RoleCandidate,
				ExamPermission: u.ExamPermission,
			},
			Password: password,
		})
	}
	return out, nil
}
