// Package schemas defines the shared data model and the capability
// contracts the rest of the application is wired against.
package schemas

import (
	"context"
	"fmt"
)

// Finding is a single static-analysis result. It is produced once per
// analysis run and never mutated afterwards.
type Finding struct {
	// File is the repository-relative path the tool reported.
	File string `json:"file"`
	// Line is 1-based.
	Line int `json:"line"`
	// Message is the tool's free-text description.
	Message string `json:"message"`
	// Severity is the tool's own label. It is treated as opaque here;
	// canonical mapping happens in the reporting layer.
	Severity string `json:"severity"`
	// RuleID identifies the rule that fired.
	RuleID string `json:"rule_id"`
}

// Key returns the identity of the finding in the result collection.
func (f Finding) Key() string {
	return fmt.Sprintf("%s:%d", f.File, f.Line)
}

// BlameRecord holds the authorship of the most recent change touching a
// single line, as reported by a version-control backend at lookup time.
type BlameRecord struct {
	Author string `json:"author"`
	// Commit is a backend-specific revision identifier (a hash for every
	// supported backend).
	Commit string `json:"commit"`
	// Date is the commit timestamp, normalized to ISO-8601.
	Date string `json:"date"`
}

// EnrichmentEntry pairs one finding with its resolved blame. Blame is nil
// when resolution degraded to "unknown"; the entry itself always exists.
type EnrichmentEntry struct {
	Finding Finding      `json:"finding"`
	Blame   *BlameRecord `json:"blame,omitempty"`
}

// BlameProvider is the capability a version-control backend implements.
// Lookup resolves the blame for one line of one file in the repository the
// locator names, against the repository's current default branch (no ref
// pinning). Implementations return an error for every failure mode (auth,
// network, missing file, line outside every annotated range); callers
// decide how to degrade.
type BlameProvider interface {
	// Name identifies the backend in logs.
	Name() string
	Lookup(ctx context.Context, repoLocator, file string, line int) (*BlameRecord, error)
}

// FindingsSource produces the findings for a target path. Implementations
// wrap an external analysis tool; a source failure is fatal for the whole
// run, unlike blame failures.
type FindingsSource interface {
	Findings(ctx context.Context, path string) ([]Finding, error)
}
