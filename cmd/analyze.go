package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hackarada/sast-blame/internal/config"
	"github.com/hackarada/sast-blame/internal/observability"
	"github.com/hackarada/sast-blame/internal/reporting"
	"github.com/hackarada/sast-blame/internal/semgrep"
)

func newAnalyzeCmd(factory ComponentFactory) *cobra.Command {
	var (
		repoLocator string
		targetPath  string
		output      string
		concurrency int
	)

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run semgrep over a path and enrich each finding with blame",
		Long: `Runs semgrep against the target path, then resolves for every
reported line who last modified it, in which commit, and when. Findings
whose blame cannot be resolved are still reported, with blame absent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if repoLocator == "" {
				return fmt.Errorf("a repository locator must be provided via --repo")
			}

			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := config.Get()

			// Flag overrides on top of file/env configuration.
			if cmd.Flags().Changed("concurrency") {
				cfg.Engine.Concurrency = concurrency
			}
			if cmd.Flags().Changed("output") {
				cfg.Output.Path = output
			}

			pipeline, err := factory.Create(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}

			entries, err := pipeline.Analyze(ctx, repoLocator, targetPath)
			if err != nil {
				var analysisErr *semgrep.AnalysisError
				if errors.As(err, &analysisErr) {
					logger.Error("Static analysis failed; no findings to enrich", zap.Error(err))
				}
				return err
			}

			report := reporting.Build(repoLocator, entries)
			logger.Info("Analysis complete",
				zap.String("run_id", report.RunID),
				zap.Int("findings", report.Summary.TotalFindings),
				zap.Int("with_blame", report.Summary.WithBlame))

			return report.Write(cfg.Output.Path, cfg.Output.Pretty)
		},
	}

	analyzeCmd.Flags().StringVarP(&repoLocator, "repo", "r", "", "repository locator (URL or local path) used for blame resolution")
	analyzeCmd.Flags().StringVarP(&targetPath, "path", "p", ".", "path to analyze")
	analyzeCmd.Flags().StringVarP(&output, "output", "o", "-", "report destination ('-' for stdout)")
	analyzeCmd.Flags().IntVar(&concurrency, "concurrency", 0, "max blame lookups in flight")
	_ = analyzeCmd.MarkFlagRequired("repo")

	return analyzeCmd
}
