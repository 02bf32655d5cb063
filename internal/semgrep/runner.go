// Package semgrep invokes the external semgrep process and decodes its
// JSON output into findings.
package semgrep

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/hackarada/sast-blame/api/schemas"
	"github.com/hackarada/sast-blame/internal/config"
)

// AnalysisError marks a failure of the analysis tool itself. Unlike blame
// lookup failures, which degrade per finding, an AnalysisError aborts the
// whole run: findings are a precondition, not a per-item degradable input.
type AnalysisError struct {
	Cause error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("semgrep analysis failed: %v", e.Cause)
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// semgrepOutput mirrors the slice of semgrep's JSON document we consume.
type semgrepOutput struct {
	Results []semgrepResult `json:"results"`
}

type semgrepResult struct {
	CheckID string `json:"check_id"`
	Path    string `json:"path"`
	Start   struct {
		Line int `json:"line"`
	} `json:"start"`
	Extra struct {
		Message  string `json:"message"`
		Severity string `json:"severity"`
	} `json:"extra"`
}

// Runner executes semgrep against a target path. It implements
// schemas.FindingsSource.
type Runner struct {
	binary    string
	timeout   time.Duration
	extraArgs []string
	log       *zap.Logger
}

// NewRunner creates a runner from the semgrep configuration.
func NewRunner(cfg config.SemgrepConfig, logger *zap.Logger) *Runner {
	return &Runner{
		binary:    cfg.Binary,
		timeout:   cfg.Timeout,
		extraArgs: cfg.ExtraArgs,
		log:       logger.Named("semgrep"),
	}
}

// Findings runs semgrep over path and returns the decoded findings. Every
// failure mode (binary missing, non-zero exit, timeout, non-JSON stdout)
// wraps into *AnalysisError.
func (r *Runner) Findings(ctx context.Context, path string) ([]schemas.Finding, error) {
	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := append([]string{"--json"}, r.extraArgs...)
	args = append(args, path)

	r.log.Debug("Invoking semgrep", zap.String("binary", r.binary), zap.Strings("args", args))

	start := time.Now()
	cmd := exec.CommandContext(runCtx, r.binary, args...)
	stdout, err := cmd.Output()
	if err != nil {
		// Surface stderr when the process itself reported the failure.
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return nil, &AnalysisError{Cause: fmt.Errorf("%w: %s", err, exitErr.Stderr)}
		}
		return nil, &AnalysisError{Cause: err}
	}

	var out semgrepOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return nil, &AnalysisError{Cause: fmt.Errorf("malformed semgrep output: %w", err)}
	}

	findings := make([]schemas.Finding, 0, len(out.Results))
	for _, res := range out.Results {
		findings = append(findings, schemas.Finding{
			File:     res.Path,
			Line:     res.Start.Line,
			Message:  res.Extra.Message,
			Severity: res.Extra.Severity,
			RuleID:   res.CheckID,
		})
	}

	r.log.Info("Semgrep analysis complete",
		zap.Int("findings", len(findings)),
		zap.Duration("duration", time.Since(start)))

	return findings, nil
}
