package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opensource-food/mizan/internal/corpus"
	"github.com/opensource-food/mizan/internal/domain"
	"github.com/opensource-food/mizan/internal/engine"
	"github.com/opensource-food/mizan/internal/repository"
)

var analyzeFlags struct {
	barcode      string
	ingredients  string
	additives    []string
	labels       []string
	analysisTags []string
	madhab       string
	strictness   string
	corpusFile   string
	useDB        bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one product and print the verdict as JSON",
	Long: `Analyze one product against the rule corpus and print the verdict.

By default the built-in corpus is used in memory. Use --corpus to analyze
against a YAML corpus file, or --db to read the configured database.

Examples:
  mizan analyze --ingredients "gélatine de porc, sucre"
  mizan analyze --additives en:e120 --madhab maliki
  mizan analyze --labels fr:halal-avs --strictness very_strict`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.barcode, "barcode", "", "product barcode")
	f.StringVarP(&analyzeFlags.ingredients, "ingredients", "i", "", "raw ingredient text")
	f.StringSliceVarP(&analyzeFlags.additives, "additives", "a", nil, "additive tags (e.g. en:e471)")
	f.StringSliceVarP(&analyzeFlags.labels, "labels", "l", nil, "label tags (e.g. fr:halal)")
	f.StringSliceVar(&analyzeFlags.analysisTags, "analysis-tags", nil, "ingredient analysis tags (e.g. en:vegan)")
	f.StringVarP(&analyzeFlags.madhab, "madhab", "m", "", "general, hanafi, shafii, maliki or hanbali")
	f.StringVarP(&analyzeFlags.strictness, "strictness", "s", "", "relaxed, moderate, strict or very_strict")
	f.StringVar(&analyzeFlags.corpusFile, "corpus", "", "YAML corpus file to analyze against")
	f.BoolVar(&analyzeFlags.useDB, "db", false, "read rules from the configured database")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts, err := parseOptions(analyzeFlags.madhab, analyzeFlags.strictness, domain.Options{
		Madhab:     cfg.Engine.DefaultMadhab,
		Strictness: cfg.Engine.DefaultStrictness,
	})
	if err != nil {
		return err
	}

	var primary domain.RuleRepository
	switch {
	case analyzeFlags.useDB:
		repo, err := openRepository(cfg.Repository)
		if err != nil {
			return err
		}
		defer repo.Close()
		primary = repo
	case analyzeFlags.corpusFile != "":
		set, err := corpus.LoadFile(analyzeFlags.corpusFile)
		if err != nil {
			return err
		}
		primary = repository.NewStatic(set)
	default:
		primary = repository.NewStatic(corpus.Default())
	}

	eng := engine.New(ruleView(primary, cfg.Repository.UseLegacyFallback, nil), engine.Config{})

	input := &domain.ProductInput{
		Barcode:                 analyzeFlags.barcode,
		IngredientsText:         analyzeFlags.ingredients,
		AdditivesTags:           analyzeFlags.additives,
		LabelsTags:              analyzeFlags.labels,
		IngredientsAnalysisTags: analyzeFlags.analysisTags,
	}

	analysis, err := eng.Analyze(cmd.Context(), input, opts)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(struct {
		Barcode  string               `json:"barcode,omitempty"`
		Options  domain.Options       `json:"options"`
		Analysis domain.HalalAnalysis `json:"analysis"`
	}{input.Barcode, opts, analysis}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// parseOptions validates flag values, falling back to defaults for empty ones.
func parseOptions(madhab, strictness string, defaults domain.Options) (domain.Options, error) {
	opts := defaults
	if madhab != "" {
		m, ok := domain.ParseMadhab(madhab)
		if !ok {
			return opts, fmt.Errorf("invalid --madhab %q: want general, hanafi, shafii, maliki or hanbali", madhab)
		}
		opts.Madhab = m
	}
	if strictness != "" {
		s, ok := domain.ParseStrictness(strictness)
		if !ok {
			return opts, fmt.Errorf("invalid --strictness %q: want relaxed, moderate, strict or very_strict", strictness)
		}
		opts.Strictness = s
	}
	return opts, nil
}
