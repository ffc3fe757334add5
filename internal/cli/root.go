package cli

import (
	"context"
	"time"

	"github.com/certexam/certexam-backend/internal/config"
	"github.com/certexam/certexam-backend/internal/database"
	"github.com/certexam/certexam-backend/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Execute runs the examctl CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:          "examctl",
		Short:        "Operational tooling for the certification exam backend",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			cobra.OnFinalize(cancel)
			cmd.SetContext(ctx)
		},
	}

	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall deadline for the command")
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newCodesCmd())
	cmd.AddCommand(newUsersCmd())
	return cmd
}

// env is the database connection shared by the subcommands.
type env struct {
	cfg  *config.Config
	log  zerolog.Logger
	pool *pgxpool.Pool
}

func connect(ctx context.Context) (*env, error) {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, pool: pool}, nil
}

func (e *env) Close() {
	e.pool.Close()
}
