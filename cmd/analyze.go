package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aegis-vc/dealmemo-cli/internal/benchmark"
	"github.com/aegis-vc/dealmemo-cli/internal/model"
	"github.com/aegis-vc/dealmemo-cli/internal/pipeline"
)

var (
	analyzeWeightsPath string
	analyzeOutPath     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <document>...",
	Short: "Analyze deal documents and generate an investment memo",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		docs, err := pipeline.LoadDocuments(args)
		if err != nil {
			return err
		}

		weightings := cfg.Scoring.Weightings
		if analyzeWeightsPath != "" {
			weightings, err = loadWeightings(analyzeWeightsPath)
			if err != nil {
				return err
			}
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var bench benchmark.Source
		var lookup pipeline.SectorLookup
		if env.warehouse != nil {
			bench = env.warehouse
			lookup = env.warehouse
		}

		p := pipeline.New(cfg, env.store, bench, lookup, env.anthropic)

		memo, err := p.Analyze(ctx, docs, weightings)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		zap.L().Info("analysis complete",
			zap.String("company", memo.Summary.CompanyName),
			zap.Float64("score", memo.Summary.SignalScore),
			zap.String("recommendation", string(memo.Summary.Recommendation)),
			zap.Int("risk_flags",
				len(memo.RiskAssessment.HighPriority)+
					len(memo.RiskAssessment.MediumPriority)+
					len(memo.RiskAssessment.LowPriority)),
		)

		outPath := analyzeOutPath
		if outPath == "" && cfg.Analysis.MemoOutputDir != "" {
			if err := os.MkdirAll(cfg.Analysis.MemoOutputDir, 0o755); err != nil {
				return eris.Wrapf(err, "create memo output dir %s", cfg.Analysis.MemoOutputDir)
			}
			outPath = filepath.Join(cfg.Analysis.MemoOutputDir, memoFilename(memo))
		}

		out := os.Stdout
		if outPath != "" {
			f, createErr := os.Create(outPath)
			if createErr != nil {
				return eris.Wrapf(createErr, "create output file %s", outPath)
			}
			defer f.Close()
			out = f
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(memo)
	},
}

// memoFilename derives a stable filename from the memo's company and
// version, so repeated runs in the same output dir do not clobber each
// other.
func memoFilename(memo *model.DealMemo) string {
	name := strings.ToLower(memo.Summary.CompanyName)
	name = strings.NewReplacer(" ", "-", "/", "-").Replace(name)
	if name == "" {
		name = "memo"
	}
	return fmt.Sprintf("%s-v%d.json", name, memo.Version)
}

func loadWeightings(path string) (model.Weightings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Weightings{}, eris.Wrapf(err, "read weightings %s", path)
	}
	var w model.Weightings
	if err := json.Unmarshal(raw, &w); err != nil {
		return model.Weightings{}, eris.Wrapf(err, "parse weightings %s", path)
	}
	if err := w.Validate(); err != nil {
		return model.Weightings{}, err
	}
	return w, nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeWeightsPath, "weights", "", "JSON file overriding scoring weightings")
	analyzeCmd.Flags().StringVar(&analyzeOutPath, "out", "", "write memo JSON to file instead of stdout")
	rootCmd.AddCommand(analyzeCmd)
}
