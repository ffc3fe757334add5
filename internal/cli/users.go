package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/certexam/certexam-backend/internal/repository"
	"github.com/certexam/certexam-backend/internal/service"
	"github.com/spf13/cobra"
)

type accountCreator interface {
	Create(ctx context.Context, u *model.User) error
}

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage candidate accounts",
	}
	cmd.AddCommand(newUsersImportCmd())
	return cmd
}

func newUsersImportCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create candidate accounts from a YAML roster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			entries, err := parseUsers(f)
			if err != nil {
				return err
			}

			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			created, err := importUsers(cmd.Context(), repository.NewUserRepository(e.pool),
				service.NewHasher(e.cfg.BcryptCost), entries, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if created < len(entries) {
				return fmt.Errorf("%d of %d accounts were not created", len(entries)-created, len(entries))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "users.yaml", "path to the roster file")
	return cmd
}

// importUsers creates every entry it can. Existing emails are reported and
// skipped; any other failure stops the import.
func importUsers(ctx context.Context, accounts accountCreator, hasher *service.Hasher, entries []candidateImport, out io.Writer) (int, error) {
	created := 0
	for i, entry := range entries {
		hash, err := hasher.Hash(entry.Password)
		if err != nil {
			return created, fmt.Errorf("hash password for %s: %w", entry.User.Email, err)
		}

		u := entry.User
		u.PasswordHash = hash
		if err := accounts.Create(ctx, &u); err != nil {
			if errors.Is(err, model.ErrConflict) {
				fmt.Fprintf(out, "Skipped %s: %v\n", u.Email, err)
				continue
			}
			return created, fmt.Errorf("create %s: %w", u.Email, err)
		}

		created++
		if (i+1)%25 == 0 {
			fmt.Fprintf(out, "Processed %d accounts...\n", i+1)
		}
	}

	fmt.Fprintf(out, "Import completed! Created %d/%d accounts.\n", created, len(entries))
	return created, nil
}
