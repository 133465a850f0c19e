package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/infra"
	"github.com/tnqbao/gau-review-orchestrator/repository"
	"github.com/tnqbao/gau-review-orchestrator/service"
)

var (
	envFile  string
	ownerStr string
	asJSON   bool

	cfg      *config.Config
	postgres *infra.PostgresClient
	repo     *repository.Repository
)

var rootCmd = &cobra.Command{
	Use:           "reviewctl",
	Short:         "Administer review jobs and review bases.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg != nil {
			return nil
		}
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "No %s file found, continuing with environment variables\n", envFile)
		}
		cfg = config.NewConfig()
		postgres = infra.InitPostgresClient(cfg.EnvConfig)
		repo = repository.InitRepository(postgres.DB)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "staging.env", "Environment file to load")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "JSON output")
}

func ownerFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&ownerStr, "owner", "", "Owner user id (uuid)")
	_ = cmd.MarkPersistentFlagRequired("owner")
}

func owner() (uuid.UUID, error) {
	id, err := uuid.Parse(ownerStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --owner %q: %w", ownerStr, err)
	}
	return id, nil
}

// reviewService builds the control surface without a dispatcher; the CLI never starts jobs.
// Cancels reach workers through Redis when withNotifier is set.
func reviewService(withNotifier bool) *service.ReviewService {
	opts := service.Options{
		Jobs:   repo.ReviewJobRepo,
		Bases:  repo.ReviewBaseRepo,
		Logger: infra.NewLoggerClient(slog.NewTextHandler(os.Stderr, nil)),
	}
	if withNotifier {
		opts.Notifier = infra.InitRedisClient(cfg.EnvConfig)
	}
	return service.NewReviewService(opts, cfg.EnvConfig)
}
