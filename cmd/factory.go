package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hackarada/sast-blame/internal/config"
	"github.com/hackarada/sast-blame/internal/enrich"
	"github.com/hackarada/sast-blame/internal/network"
	"github.com/hackarada/sast-blame/internal/observability"
	"github.com/hackarada/sast-blame/internal/semgrep"
	"github.com/hackarada/sast-blame/internal/vcs"
)

// ComponentFactory builds the set of services an analysis run needs. The
// abstraction keeps the analyze command's logic testable with a fake
// factory.
type ComponentFactory interface {
	Create(cfg *config.Config) (*enrich.Pipeline, error)
}

// concreteFactory is the production implementation of ComponentFactory.
type concreteFactory struct{}

// NewComponentFactory creates the production component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create performs the dependency wiring: shared HTTP client, the provider
// registry (one registration per configured backend), the semgrep runner,
// and the pipeline on top.
func (f *concreteFactory) Create(cfg *config.Config) (*enrich.Pipeline, error) {
	logger := observability.GetLogger()

	httpClient, err := network.NewClient(cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP client: %w", err)
	}

	registry := vcs.NewRegistry(logger)

	if cfg.Providers.GitLab.Token != "" {
		provider, err := vcs.NewGitLabProvider(cfg.Providers.GitLab, httpClient, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize GitLab provider: %w", err)
		}
		registry.Register("gitlab", provider)
	}

	if cfg.Providers.GitHub.Token != "" {
		provider, err := vcs.NewGitHubProvider(cfg.Providers.GitHub, httpClient, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize GitHub provider: %w", err)
		}
		registry.Register("github", provider)
	}

	if cfg.Providers.Local.Enabled {
		registry.RegisterFunc("local", vcs.MatchesLocalPath, vcs.NewLocalProvider(logger))
	}

	logger.Debug("Provider registry assembled", zap.Int("providers", registry.Len()))

	runner := semgrep.NewRunner(cfg.Semgrep, logger)

	return enrich.New(runner, registry, cfg.Engine.Concurrency, cfg.Engine.LookupTimeout, logger), nil
}
