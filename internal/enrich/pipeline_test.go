package enrich

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackarada/sast-blame/api/schemas"
	"github.com/hackarada/sast-blame/internal/semgrep"
	"github.com/hackarada/sast-blame/internal/vcs"
)

// fakeSource returns canned findings or a canned error.
type fakeSource struct {
	findings []schemas.Finding
	err      error
}

func (s *fakeSource) Findings(ctx context.Context, path string) ([]schemas.Finding, error) {
	return s.findings, s.err
}

// fakeProvider answers lookups through a function and counts invocations.
type fakeProvider struct {
	name   string
	lookup func(ctx context.Context, repoLocator, file string, line int) (*schemas.BlameRecord, error)
	calls  atomic.Int64
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Lookup(ctx context.Context, repoLocator, file string, line int) (*schemas.BlameRecord, error) {
	p.calls.Add(1)
	return p.lookup(ctx, repoLocator, file, line)
}

func registryWith(marker string, provider schemas.BlameProvider) *vcs.Registry {
	registry := vcs.NewRegistry(zap.NewNop())
	if provider != nil {
		registry.Register(marker, provider)
	}
	return registry
}

func annRecord() *schemas.BlameRecord {
	return &schemas.BlameRecord{Author: "Ann", Commit: "abc123", Date: "2024-01-01T00:00:00Z"}
}

func TestAnalyzeEnrichesEveryFinding(t *testing.T) {
	source := &fakeSource{findings: []schemas.Finding{
		{File: "src/a.py", Line: 10, Severity: "WARNING", RuleID: "r1"},
		{File: "src/b.py", Line: 5, Severity: "ERROR", RuleID: "r2"},
		{File: "src/c.py", Line: 1, Severity: "INFO", RuleID: "r3"},
	}}
	provider := &fakeProvider{name: "gitlab", lookup: func(ctx context.Context, repoLocator, file string, line int) (*schemas.BlameRecord, error) {
		if file == "src/b.py" {
			return nil, errors.New("file not found")
		}
		return annRecord(), nil
	}}

	pipeline := New(source, registryWith("gitlab", provider), 4, time.Second, zap.NewNop())
	entries, err := pipeline.Analyze(context.Background(), "https://gitlab.example.com/g/p", ".")
	require.NoError(t, err)

	require.Len(t, entries, 3, "one entry per distinct file:line")

	require.Contains(t, entries, "src/a.py:10")
	blame := entries["src/a.py:10"].Blame
	require.NotNil(t, blame)
	assert.Equal(t, "Ann", blame.Author)
	assert.Equal(t, "abc123", blame.Commit)
	assert.Equal(t, "2024-01-01T00:00:00Z", blame.Date)

	assert.Nil(t, entries["src/b.py:5"].Blame, "a failed lookup degrades that entry only")
	assert.NotNil(t, entries["src/c.py:1"].Blame)
}

func TestAnalyzeWithoutMatchingProvider(t *testing.T) {
	source := &fakeSource{findings: []schemas.Finding{
		{File: "src/a.py", Line: 10},
		{File: "src/b.py", Line: 5},
	}}
	provider := &fakeProvider{name: "gitlab", lookup: func(ctx context.Context, repoLocator, file string, line int) (*schemas.BlameRecord, error) {
		return annRecord(), nil
	}}

	pipeline := New(source, registryWith("gitlab", provider), 2, time.Second, zap.NewNop())
	entries, err := pipeline.Analyze(context.Background(), "https://bitbucket.org/o/r", ".")
	require.NoError(t, err)

	require.Len(t, entries, 2)
	for key, entry := range entries {
		assert.Nil(t, entry.Blame, "entry %s must carry unknown blame", key)
	}
	assert.Zero(t, provider.calls.Load(), "no lookup may be attempted without a matching provider")
}

func TestAnalyzeWithEmptyRegistry(t *testing.T) {
	source := &fakeSource{findings: []schemas.Finding{{File: "a.py", Line: 1}}}

	pipeline := New(source, registryWith("", nil), 1, time.Second, zap.NewNop())
	entries, err := pipeline.Analyze(context.Background(), "https://gitlab.com/g/p", ".")
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Nil(t, entries["a.py:1"].Blame)
}

func TestAnalyzeSourceFailureIsFatal(t *testing.T) {
	cause := errors.New("semgrep exploded")
	source := &fakeSource{err: &semgrep.AnalysisError{Cause: cause}}

	pipeline := New(source, registryWith("", nil), 1, time.Second, zap.NewNop())
	entries, err := pipeline.Analyze(context.Background(), "https://gitlab.com/g/p", ".")

	require.Error(t, err)
	assert.Nil(t, entries, "no partial mapping on a fatal analysis failure")

	var analysisErr *semgrep.AnalysisError
	assert.True(t, errors.As(err, &analysisErr))
	assert.ErrorIs(t, err, cause)
}

func TestAnalyzeDuplicateKeyLastWriteWins(t *testing.T) {
	source := &fakeSource{findings: []schemas.Finding{
		{File: "b.py", Line: 5, Message: "earlier", RuleID: "r1"},
		{File: "b.py", Line: 5, Message: "later", RuleID: "r2"},
	}}
	provider := &fakeProvider{name: "gitlab", lookup: func(ctx context.Context, repoLocator, file string, line int) (*schemas.BlameRecord, error) {
		return annRecord(), nil
	}}

	// Run with several workers: the winner must still follow analysis
	// output order, not goroutine completion order.
	for i := 0; i < 25; i++ {
		pipeline := New(source, registryWith("gitlab", provider), 4, time.Second, zap.NewNop())
		entries, err := pipeline.Analyze(context.Background(), "https://gitlab.com/g/p", ".")
		require.NoError(t, err)

		require.Len(t, entries, 1, "duplicate file:line keys collapse to one entry")
		assert.Equal(t, "later", entries["b.py:5"].Finding.Message)
		assert.Equal(t, "r2", entries["b.py:5"].Finding.RuleID)
	}
}

func TestAnalyzeLookupTimeoutDegrades(t *testing.T) {
	source := &fakeSource{findings: []schemas.Finding{
		{File: "slow.py", Line: 1},
		{File: "fast.py", Line: 2},
	}}
	provider := &fakeProvider{name: "gitlab", lookup: func(ctx context.Context, repoLocator, file string, line int) (*schemas.BlameRecord, error) {
		if file == "slow.py" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return annRecord(), nil
	}}

	pipeline := New(source, registryWith("gitlab", provider), 2, 50*time.Millisecond, zap.NewNop())
	entries, err := pipeline.Analyze(context.Background(), "https://gitlab.com/g/p", ".")
	require.NoError(t, err)

	assert.Nil(t, entries["slow.py:1"].Blame, "a timed-out lookup degrades to unknown")
	assert.NotNil(t, entries["fast.py:2"].Blame, "other entries are unaffected")
}

func TestAnalyzeWithNoFindings(t *testing.T) {
	pipeline := New(&fakeSource{}, registryWith("", nil), 3, time.Second, zap.NewNop())
	entries, err := pipeline.Analyze(context.Background(), "https://gitlab.com/g/p", ".")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
