// Package enrich orchestrates the enrichment flow: obtain findings from
// the analysis tool, resolve blame for each one through the provider
// registry, and assemble the keyed result collection.
package enrich

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hackarada/sast-blame/api/schemas"
	"github.com/hackarada/sast-blame/internal/vcs"
)

// Pipeline wires a findings source to the blame provider registry.
type Pipeline struct {
	source        schemas.FindingsSource
	registry      *vcs.Registry
	concurrency   int
	lookupTimeout time.Duration
	log           *zap.Logger
}

// New creates a pipeline. Concurrency caps the number of blame lookups in
// flight; lookupTimeout bounds each individual lookup.
func New(source schemas.FindingsSource, registry *vcs.Registry, concurrency int, lookupTimeout time.Duration, logger *zap.Logger) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		source:        source,
		registry:      registry,
		concurrency:   concurrency,
		lookupTimeout: lookupTimeout,
		log:           logger.Named("pipeline"),
	}
}

// job carries one finding plus its position in the analysis output, which
// decides who wins when two findings share a file:line key.
type job struct {
	index   int
	finding schemas.Finding
}

// Analyze runs the full enrichment for one repository locator and target
// path. The returned map holds exactly one entry per distinct file:line in
// the analysis output; entries whose blame could not be resolved carry nil
// blame. The only fatal failure is the findings source itself — a failed
// blame lookup never escapes the entry it belongs to.
func (p *Pipeline) Analyze(ctx context.Context, repoLocator, path string) (map[string]schemas.EnrichmentEntry, error) {
	findings, err := p.source.Findings(ctx, path)
	if err != nil {
		return nil, err
	}

	p.log.Info("Enriching findings",
		zap.Int("findings", len(findings)),
		zap.String("repository", repoLocator))

	collector := newCollector()
	jobs := make(chan job)
	var wg sync.WaitGroup

	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				blame := p.resolve(ctx, repoLocator, j.finding)
				collector.put(j.index, schemas.EnrichmentEntry{
					Finding: j.finding,
					Blame:   blame,
				})
			}
		}()
	}

	for i, f := range findings {
		jobs <- job{index: i, finding: f}
	}
	close(jobs)
	wg.Wait()

	return collector.results(), nil
}

// resolve performs one blame lookup with total isolation: any failure —
// no configured provider, timeout, transport error, unmatched range —
// degrades to nil blame for this finding alone.
func (p *Pipeline) resolve(ctx context.Context, repoLocator string, f schemas.Finding) *schemas.BlameRecord {
	provider, ok := p.registry.Select(repoLocator)
	if !ok {
		p.log.Debug("No blame provider for locator",
			zap.String("repository", repoLocator),
			zap.String("finding", f.Key()))
		return nil
	}

	lookupCtx := ctx
	if p.lookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, p.lookupTimeout)
		defer cancel()
	}

	record, err := provider.Lookup(lookupCtx, repoLocator, f.File, f.Line)
	if err != nil {
		p.log.Debug("Blame lookup degraded to unknown",
			zap.String("provider", provider.Name()),
			zap.String("finding", f.Key()),
			zap.Error(err))
		return nil
	}
	return record
}

// collector is the synchronized result map. Writes carry the finding's
// input index so that last-write-wins follows analysis-output order even
// when workers finish out of order.
type collector struct {
	mu      sync.Mutex
	entries map[string]schemas.EnrichmentEntry
	order   map[string]int
}

func newCollector() *collector {
	return &collector{
		entries: make(map[string]schemas.EnrichmentEntry),
		order:   make(map[string]int),
	}
}

func (c *collector) put(index int, entry schemas.EnrichmentEntry) {
	key := entry.Finding.Key()
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.order[key]; ok && prev > index {
		return
	}
	c.order[key] = index
	c.entries[key] = entry
}

func (c *collector) results() map[string]schemas.EnrichmentEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries
}
