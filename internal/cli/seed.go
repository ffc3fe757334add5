package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/certexam/certexam-backend/internal/model"
	"github.com/certexam/certexam-backend/internal/repository"
	"github.com/spf13/cobra"
)

type bankImporter interface {
	ImportBank(ctx context.Context, bank *model.BankImport) (int64, error)
}

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import an exam with its blocks, questions and options from YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			return seedBank(cmd.Context(), repository.NewExamRepository(e.pool), f, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "bank.yaml", "path to the bank file")
	return cmd
}

func seedBank(ctx context.Context, importer bankImporter, r io.Reader, out io.Writer) error {
	bank, err := parseBank(r)
	if err != nil {
		return err
	}

	examID, err := importer.ImportBank(ctx, bank)
	if err != nil {
		return fmt.Errorf("import bank: %w", err)
	}

	questions := 0
	for _, b := range bank.Blocks {
		questions += len(b.Questions)
	}
	fmt.Fprintf(out, "Imported exam %q as ID %d (%d blocks, %d questions)\n",
		bank.Exam.Title, examID, len(bank.Blocks), questions)
	return nil
}
