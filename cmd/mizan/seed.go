package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/opensource-food/mizan/internal/corpus"
	"github.com/opensource-food/mizan/internal/repository"
)

var seedFlags struct {
	file string
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write a rule corpus into the configured database",
	Long: `Upsert additives, madhab rulings and ingredient rules into the database.

Without --file the built-in corpus is written. Existing records with the same
code or rule id are updated; nothing is deleted.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVarP(&seedFlags.file, "file", "f", "", "YAML corpus file (defaults to the built-in corpus)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	set := corpus.Default()
	if seedFlags.file != "" {
		if set, err = corpus.LoadFile(seedFlags.file); err != nil {
			return err
		}
	}

	repo, err := openRepository(cfg.Repository)
	if err != nil {
		return err
	}
	defer repo.Close()

	stats, err := repository.Seed(cmd.Context(), repo, set)
	if err != nil {
		return err
	}

	slog.Info("corpus seeded",
		"corpus_version", set.Version,
		"driver", cfg.Repository.Driver,
	)

	out, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
