package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tnqbao/gau-review-orchestrator/entity"
	"github.com/tnqbao/gau-review-orchestrator/infra"
)

type corpusCache interface {
	Invalidate(ctx context.Context) error
	ApprovedSubmissions(ctx context.Context) ([]entity.ReferenceSubmission, error)
}

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the approved-submissions corpus used for duplicate checks",
}

var corpusRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Drop the cached corpus and reload it from the record store",
	RunE: func(cmd *cobra.Command, args []string) error {
		env := cfg.EnvConfig
		corpus := infra.NewCachedCorpus(
			infra.NewRecordCorpus(infra.InitRecordStoreService(env), env.Review.CorpusBaseID, env.Review.CorpusTable),
			infra.InitRedisClient(env),
			env.Review.CorpusCacheTTL,
		)
		count, err := refreshCorpus(cmd.Context(), corpus)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, map[string]int{"submissions": count})
		}
		fmt.Printf("corpus reloaded, %d approved submissions\n", count)
		return nil
	},
}

func init() {
	corpusCmd.AddCommand(corpusRefreshCmd)
	rootCmd.AddCommand(corpusCmd)
}

// refreshCorpus invalidates the cache first so the reload reads the record store.
func refreshCorpus(ctx context.Context, corpus corpusCache) (int, error) {
	if err := corpus.Invalidate(ctx); err != nil {
		return 0, fmt.Errorf("failed to drop cached corpus: %w", err)
	}
	submissions, err := corpus.ApprovedSubmissions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reload corpus: %w", err)
	}
	return len(submissions), nil
}
