package vcs

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"go.uber.org/zap"

	"github.com/hackarada/sast-blame/api/schemas"
	"github.com/hackarada/sast-blame/internal/config"
)

// GitLabProvider resolves blame through the GitLab REST API.
//
// GitLab's blame endpoint returns ordered ranges carrying the annotated
// line contents rather than explicit line numbers, so the inclusive
// start/end of each range is reconstructed by accumulating range lengths.
type GitLabProvider struct {
	client *gitlab.Client
	log    *zap.Logger
}

// NewGitLabProvider builds a provider from the GitLab configuration and the
// shared HTTP client.
func NewGitLabProvider(cfg config.GitLabConfig, httpClient *http.Client, logger *zap.Logger) (*GitLabProvider, error) {
	opts := []gitlab.ClientOptionFunc{gitlab.WithHTTPClient(httpClient)}
	if cfg.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(cfg.BaseURL))
	}

	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}

	return &GitLabProvider{
		client: client,
		log:    logger.Named("gitlab"),
	}, nil
}

// Name implements schemas.BlameProvider.
func (p *GitLabProvider) Name() string {
	return "gitlab"
}

// Lookup fetches the full blame annotation set for the file on the
// project's default branch and scans it for the range containing line.
func (p *GitLabProvider) Lookup(ctx context.Context, repoLocator, file string, line int) (*schemas.BlameRecord, error) {
	if err := validateLookup(file, line); err != nil {
		return nil, err
	}

	projectPath, err := repoPath(repoLocator)
	if err != nil {
		return nil, err
	}

	project, _, err := p.client.Projects.GetProject(projectPath, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project %q: %w", projectPath, err)
	}
	if project.DefaultBranch == "" {
		return nil, fmt.Errorf("project %q has no default branch", projectPath)
	}

	opts := &gitlab.GetFileBlameOptions{Ref: gitlab.Ptr(project.DefaultBranch)}
	blame, _, err := p.client.RepositoryFiles.GetFileBlame(projectPath, file, opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("blame request for %q failed: %w", file, err)
	}

	return ResolveLine(normalizeGitLabRanges(blame), line)
}

// normalizeGitLabRanges converts GitLab blame ranges into the shared
// representation. Ranges arrive in file order; a running cursor recovers
// the line numbers from the per-range contents.
func normalizeGitLabRanges(blame []*gitlab.FileBlameRange) []BlameRange {
	ranges := make([]BlameRange, 0, len(blame))
	cursor := 1
	for _, entry := range blame {
		if len(entry.Lines) == 0 {
			continue
		}
		start := cursor
		end := cursor + len(entry.Lines) - 1
		cursor = end + 1

		// Commit is a plain struct on the SDK's blame range; a range whose
		// commit never materialized comes back zero-valued.
		if entry.Commit.ID == "" {
			continue
		}
		var date string
		if entry.Commit.CommittedDate != nil {
			date = entry.Commit.CommittedDate.UTC().Format(time.RFC3339)
		}
		ranges = append(ranges, BlameRange{
			StartLine: start,
			EndLine:   end,
			Author:    entry.Commit.AuthorName,
			Commit:    entry.Commit.ID,
			Date:      date,
		})
	}
	return ranges
}
