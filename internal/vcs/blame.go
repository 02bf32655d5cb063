// Package vcs implements blame lookups against version-control hosting
// backends, normalized to a single range representation so the matching
// logic exists exactly once.
package vcs

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hackarada/sast-blame/api/schemas"
)

// ErrLineNotAnnotated is returned when a line falls outside every blame
// range the backend reported for the file.
var ErrLineNotAnnotated = errors.New("line not covered by any blame range")

// BlameRange is the normalized form of one backend blame annotation: an
// inclusive line span attributed to a single commit. Every backend response
// is mapped into this shape at the provider boundary before matching.
type BlameRange struct {
	StartLine int
	EndLine   int
	Author    string
	Commit    string
	// Date is already normalized to ISO-8601.
	Date string
}

// ResolveLine scans ranges for the one containing line. Containment is
// inclusive on both ends: StartLine <= line <= EndLine.
func ResolveLine(ranges []BlameRange, line int) (*schemas.BlameRecord, error) {
	for _, r := range ranges {
		if r.StartLine <= line && line <= r.EndLine {
			return &schemas.BlameRecord{
				Author: r.Author,
				Commit: r.Commit,
				Date:   r.Date,
			}, nil
		}
	}
	return nil, ErrLineNotAnnotated
}

// validateLookup enforces the shared lookup preconditions.
func validateLookup(file string, line int) error {
	if strings.TrimSpace(file) == "" {
		return errors.New("file path must not be empty")
	}
	if line < 1 {
		return fmt.Errorf("line must be >= 1, got %d", line)
	}
	return nil
}

// repoPath extracts the repository path ("group/project" or "owner/repo")
// from a locator such as https://gitlab.example.com/group/project or a bare
// host/path reference.
func repoPath(locator string) (string, error) {
	raw := strings.TrimSpace(locator)
	if raw == "" {
		return "", errors.New("repository locator must not be empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("unparseable repository locator %q: %w", locator, err)
	}

	path := strings.Trim(u.Path, "/")
	path = strings.TrimSuffix(path, ".git")
	if path == "" {
		return "", fmt.Errorf("repository locator %q carries no project path", locator)
	}
	return path, nil
}
