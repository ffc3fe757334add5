package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/certexam/certexam-backend/internal/repository"
	"github.com/certexam/certexam-backend/internal/service"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type codeIssuer interface {
	IssueCodes(ctx context.Context, examID int64, count int) ([]string, error)
}

// issuedCodes is written by `codes issue --out`.
type issuedCodes struct {
	ExamID int64    `yaml:"exam_id"`
	Codes  []string `yaml:"codes"`
}

func newCodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Manage one-time access codes",
	}
	cmd.AddCommand(newCodesIssueCmd())
	return cmd
}

func newCodesIssueCmd() *cobra.Command {
	var (
		examID int64
		count  int
		out    string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Generate access codes for an exam and print them once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			examRepo := repository.NewExamRepository(e.pool)
			examService := service.NewExamService(nil, examRepo, repository.NewCodeRepository(e.pool),
				service.NewHasher(e.cfg.BcryptCost), nil, e.log)

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return issueCodes(cmd.Context(), examService, examID, count, out != "", w)
		},
	}

	cmd.Flags().Int64Var(&examID, "exam", 0, "exam id")
	cmd.Flags().IntVar(&count, "count", 10, "number of codes to generate (1-500)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the codes to a YAML file instead of stdout")
	_ = cmd.MarkFlagRequired("exam")
	return cmd
}

func issueCodes(ctx context.Context, issuer codeIssuer, examID int64, count int, asYAML bool, w io.Writer) error {
	codes, err := issuer.IssueCodes(ctx, examID, count)
	if err != nil {
		return err
	}

	if asYAML {
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(issuedCodes{ExamID: examID, Codes: codes})
	}

	for _, c := range codes {
		fmt.Fprintln(w, c)
	}
	return nil
}
