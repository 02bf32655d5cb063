package vcs

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v58/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/hackarada/sast-blame/api/schemas"
	"github.com/hackarada/sast-blame/internal/config"
)

const defaultGitHubGraphQLURL = "https://api.github.com/graphql"

// GitHubProvider resolves blame through the GitHub APIs: the REST API for
// repository metadata (default branch) and the GraphQL API for the blame
// annotation set, which REST does not expose.
type GitHubProvider struct {
	rest *github.Client
	gql  *githubv4.Client
	log  *zap.Logger
}

// NewGitHubProvider builds a provider from the GitHub configuration and the
// shared HTTP client.
func NewGitHubProvider(cfg config.GitHubConfig, httpClient *http.Client, logger *zap.Logger) (*GitHubProvider, error) {
	rest := github.NewClient(httpClient).WithAuthToken(cfg.Token)
	if cfg.BaseURL != "" {
		var err error
		rest, err = rest.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL %q: %w", cfg.BaseURL, err)
		}
	}

	endpoint := cfg.GraphQLURL
	if endpoint == "" {
		endpoint = defaultGitHubGraphQLURL
	}

	// oauth2 wraps the shared client so the GraphQL requests reuse the same
	// transport as everything else.
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	oauthCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	gql := githubv4.NewEnterpriseClient(endpoint, oauth2.NewClient(oauthCtx, src))

	return &GitHubProvider{
		rest: rest,
		gql:  gql,
		log:  logger.Named("github"),
	}, nil
}

// Name implements schemas.BlameProvider.
func (p *GitHubProvider) Name() string {
	return "github"
}

// blameQuery fetches the blame ranges for one file at one ref.
type blameQuery struct {
	Repository struct {
		Object struct {
			Commit struct {
				Blame struct {
					Ranges []struct {
						StartingLine int
						EndingLine   int
						Commit       struct {
							OID           githubv4.GitObjectID
							CommittedDate githubv4.DateTime
							Author        struct {
								Name string
							}
						}
					}
				} `graphql:"blame(path: $path)"`
			} `graphql:"... on Commit"`
		} `graphql:"object(expression: $expression)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// Lookup resolves the repository's default branch, fetches the blame
// annotation set for the file at that ref, and scans it for line.
func (p *GitHubProvider) Lookup(ctx context.Context, repoLocator, file string, line int) (*schemas.BlameRecord, error) {
	if err := validateLookup(file, line); err != nil {
		return nil, err
	}

	owner, name, err := splitOwnerRepo(repoLocator)
	if err != nil {
		return nil, err
	}

	repo, _, err := p.rest.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository %s/%s: %w", owner, name, err)
	}
	ref := repo.GetDefaultBranch()
	if ref == "" {
		return nil, fmt.Errorf("repository %s/%s has no default branch", owner, name)
	}

	var q blameQuery
	vars := map[string]interface{}{
		"owner":      githubv4.String(owner),
		"name":       githubv4.String(name),
		"expression": githubv4.String(ref),
		"path":       githubv4.String(file),
	}
	if err := p.gql.Query(ctx, &q, vars); err != nil {
		return nil, fmt.Errorf("blame query for %q failed: %w", file, err)
	}

	raw := q.Repository.Object.Commit.Blame.Ranges
	ranges := make([]BlameRange, 0, len(raw))
	for _, r := range raw {
		ranges = append(ranges, BlameRange{
			StartLine: r.StartingLine,
			EndLine:   r.EndingLine,
			Author:    r.Commit.Author.Name,
			Commit:    string(r.Commit.OID),
			Date:      r.Commit.CommittedDate.UTC().Format(time.RFC3339),
		})
	}

	return ResolveLine(ranges, line)
}

// splitOwnerRepo extracts owner and repository name from a locator such as
// https://github.com/owner/repo.
func splitOwnerRepo(locator string) (string, string, error) {
	path, err := repoPath(locator)
	if err != nil {
		return "", "", err
	}
	parts := strings.SplitN(path, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository locator %q does not name owner/repo", locator)
	}
	return parts[0], parts[1], nil
}
