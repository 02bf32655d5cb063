package vcs

import (
	"strings"

	"go.uber.org/zap"

	"github.com/hackarada/sast-blame/api/schemas"
)

// matchFunc reports whether a provider applies to a repository locator.
type matchFunc func(locator string) bool

type registration struct {
	name     string
	match    matchFunc
	provider schemas.BlameProvider
}

// Registry selects the blame provider for a repository locator. Providers
// are evaluated in registration order, one match attempt per backend; a
// backend whose client was never configured is simply never registered.
// Selection is a pure function of (registrations, locator).
type Registry struct {
	entries []registration
	log     *zap.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{log: logger.Named("registry")}
}

// Register adds a provider keyed by a case-insensitive substring marker.
// Adding a backend is exactly one such registration.
func (r *Registry) Register(marker string, provider schemas.BlameProvider) {
	needle := strings.ToLower(marker)
	r.RegisterFunc(provider.Name(), func(locator string) bool {
		return strings.Contains(strings.ToLower(locator), needle)
	}, provider)
}

// RegisterFunc adds a provider with an arbitrary locator predicate, for
// backends that are not recognizable by a hostname substring.
func (r *Registry) RegisterFunc(name string, match matchFunc, provider schemas.BlameProvider) {
	r.entries = append(r.entries, registration{name: name, match: match, provider: provider})
	r.log.Debug("Registered blame provider", zap.String("provider", name))
}

// Select returns the first registered provider whose predicate matches the
// locator, or false when no configured backend applies.
func (r *Registry) Select(locator string) (schemas.BlameProvider, bool) {
	for _, entry := range r.entries {
		if entry.match(locator) {
			return entry.provider, true
		}
	}
	return nil, false
}

// Len reports the number of registered providers.
func (r *Registry) Len() int {
	return len(r.entries)
}
