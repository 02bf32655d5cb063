package vcs

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"go.uber.org/zap"

	"github.com/hackarada/sast-blame/api/schemas"
)

// LocalProvider resolves blame against a git clone on the local
// filesystem, for runs where no hosting backend is reachable or
// configured. go-git annotates per line; consecutive lines attributed to
// the same commit are coalesced into ranges before matching.
type LocalProvider struct {
	log *zap.Logger
}

// NewLocalProvider builds the on-disk provider.
func NewLocalProvider(logger *zap.Logger) *LocalProvider {
	return &LocalProvider{log: logger.Named("local")}
}

// Name implements schemas.BlameProvider.
func (p *LocalProvider) Name() string {
	return "local"
}

// MatchesLocalPath reports whether the locator names an on-disk repository:
// a file:// URL or an existing directory.
func MatchesLocalPath(locator string) bool {
	path := localPath(locator)
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// localPath strips the file scheme, if any, from a locator.
func localPath(locator string) string {
	if strings.HasPrefix(strings.ToLower(locator), "file://") {
		if u, err := url.Parse(locator); err == nil {
			return u.Path
		}
	}
	return locator
}

// Lookup opens the repository, blames the file at HEAD, and scans the
// coalesced ranges for line.
func (p *LocalProvider) Lookup(ctx context.Context, repoLocator, file string, line int) (*schemas.BlameRecord, error) {
	if err := validateLookup(file, line); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := localPath(repoLocator)
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %q: %w", path, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD of %q: %w", path, err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to load HEAD commit: %w", err)
	}

	result, err := git.Blame(commit, file)
	if err != nil {
		return nil, fmt.Errorf("blame of %q failed: %w", file, err)
	}

	return ResolveLine(coalesceLines(result), line)
}

// coalesceLines folds go-git's per-line annotations into contiguous
// same-commit ranges.
func coalesceLines(result *git.BlameResult) []BlameRange {
	var ranges []BlameRange
	for i, ln := range result.Lines {
		lineNo := i + 1
		commit := ln.Hash.String()
		if n := len(ranges); n > 0 && ranges[n-1].Commit == commit && ranges[n-1].EndLine == lineNo-1 {
			ranges[n-1].EndLine = lineNo
			continue
		}
		ranges = append(ranges, BlameRange{
			StartLine: lineNo,
			EndLine:   lineNo,
			Author:    ln.AuthorName,
			Commit:    commit,
			Date:      ln.Date.UTC().Format(time.RFC3339),
		})
	}
	return ranges
}
