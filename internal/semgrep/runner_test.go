package semgrep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hackarada/sast-blame/internal/config"
)

const sampleOutput = `{
	"results": [
		{
			"check_id": "python.lang.security.audit.eval-detected",
			"path": "src/a.py",
			"start": {"line": 10},
			"extra": {"message": "Eval detected", "severity": "WARNING"}
		},
		{
			"check_id": "python.lang.security.audit.exec-detected",
			"path": "src/b.py",
			"start": {"line": 3},
			"extra": {"message": "Exec detected", "severity": "ERROR"}
		}
	]
}`

// fakeSemgrep writes an executable shell script standing in for the real
// semgrep binary.
func fakeSemgrep(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("Skipping: shell-script semgrep stub requires a POSIX shell.")
	}

	path := filepath.Join(t.TempDir(), "semgrep")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func newRunner(t *testing.T, binary string, timeout time.Duration) *Runner {
	t.Helper()
	return NewRunner(config.SemgrepConfig{
		Binary:  binary,
		Timeout: timeout,
	}, zaptest.NewLogger(t))
}

func TestRunnerFindings(t *testing.T) {
	binary := fakeSemgrep(t, fmt.Sprintf("cat <<'EOF'\n%s\nEOF\n", sampleOutput))
	runner := newRunner(t, binary, time.Minute)

	findings, err := runner.Findings(context.Background(), ".")
	require.NoError(t, err)
	require.Len(t, findings, 2)

	assert.Equal(t, "src/a.py", findings[0].File)
	assert.Equal(t, 10, findings[0].Line)
	assert.Equal(t, "Eval detected", findings[0].Message)
	assert.Equal(t, "WARNING", findings[0].Severity)
	assert.Equal(t, "python.lang.security.audit.eval-detected", findings[0].RuleID)

	assert.Equal(t, "src/b.py:3", findings[1].Key())
}

func TestRunnerEmptyResults(t *testing.T) {
	binary := fakeSemgrep(t, `echo '{"results": []}'`)
	runner := newRunner(t, binary, time.Minute)

	findings, err := runner.Findings(context.Background(), ".")
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestRunnerFailures(t *testing.T) {
	t.Run("non-zero exit is fatal", func(t *testing.T) {
		binary := fakeSemgrep(t, "echo 'boom' >&2\nexit 2")
		runner := newRunner(t, binary, time.Minute)

		_, err := runner.Findings(context.Background(), ".")
		require.Error(t, err)

		var analysisErr *AnalysisError
		assert.True(t, errors.As(err, &analysisErr), "failures must be typed as *AnalysisError")
		assert.Contains(t, analysisErr.Error(), "semgrep analysis failed")
	})

	t.Run("non-JSON stdout is fatal", func(t *testing.T) {
		binary := fakeSemgrep(t, "echo 'not json at all'")
		runner := newRunner(t, binary, time.Minute)

		_, err := runner.Findings(context.Background(), ".")
		var analysisErr *AnalysisError
		require.True(t, errors.As(err, &analysisErr))
	})

	t.Run("missing binary is fatal", func(t *testing.T) {
		runner := newRunner(t, filepath.Join(t.TempDir(), "no-such-semgrep"), time.Minute)

		_, err := runner.Findings(context.Background(), ".")
		var analysisErr *AnalysisError
		require.True(t, errors.As(err, &analysisErr))
	})

	t.Run("timeout is fatal", func(t *testing.T) {
		binary := fakeSemgrep(t, "sleep 10\necho '{\"results\": []}'")
		runner := newRunner(t, binary, 50*time.Millisecond)

		_, err := runner.Findings(context.Background(), ".")
		var analysisErr *AnalysisError
		require.True(t, errors.As(err, &analysisErr))
	})
}

func TestAnalysisErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &AnalysisError{Cause: cause}
	assert.ErrorIs(t, err, cause, "the underlying cause must stay reachable")
}
