// Package reporting assembles the enrichment results into a serializable
// report.
package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/hackarada/sast-blame/api/schemas"
)

// Report is the final output of one analysis run.
type Report struct {
	RunID       string                             `json:"run_id"`
	Repository  string                             `json:"repository"`
	GeneratedAt time.Time                          `json:"generated_at"`
	Summary     Summary                            `json:"summary"`
	Entries     map[string]schemas.EnrichmentEntry `json:"entries"`
}

// Summary carries the aggregate counters for a run.
type Summary struct {
	TotalFindings int `json:"total_findings"`
	WithBlame     int `json:"with_blame"`
	// BySeverity counts entries per canonical severity level.
	BySeverity map[StandardSeverity]int `json:"by_severity"`
	// ByAuthor counts attributed entries per blame author.
	ByAuthor map[string]int `json:"by_author,omitempty"`
}

// Build assembles a report from the enrichment result collection.
func Build(repository string, entries map[string]schemas.EnrichmentEntry) *Report {
	summary := Summary{
		TotalFindings: len(entries),
		BySeverity:    make(map[StandardSeverity]int),
		ByAuthor:      make(map[string]int),
	}
	for _, entry := range entries {
		summary.BySeverity[NormalizeSeverity(entry.Finding.Severity)]++
		if entry.Blame != nil {
			summary.WithBlame++
			summary.ByAuthor[entry.Blame.Author]++
		}
	}

	return &Report{
		RunID:       uuid.NewString(),
		Repository:  repository,
		GeneratedAt: time.Now().UTC(),
		Summary:     summary,
		Entries:     entries,
	}
}

// ToJSON serializes the report, optionally indented.
func (r *Report) ToJSON(pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(r, "", "  ")
	}
	return json.Marshal(r)
}

// Write serializes the report to the destination path; "-" means stdout.
func (r *Report) Write(path string, pretty bool) error {
	data, err := r.ToJSON(pretty)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	data = append(data, '\n')

	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %q: %w", path, err)
	}
	return nil
}
