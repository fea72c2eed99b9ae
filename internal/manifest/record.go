// Package manifest holds the documentation manifest: one record per
// documented component, keyed by source path. The freshness classifier
// consumes records read-only; only the documentation side (the `record`
// command, or an external drafter) writes them.
package manifest

import (
	"fmt"
	"path"
	"strings"
	"time"

	"docdrift/internal/merkle"
)

// Status tracks where a component's documentation stands in its lifecycle.
type Status string

const (
	// StatusGenerated means docs were produced but not human-verified.
	StatusGenerated Status = "generated"
	// StatusVerified means a human signed off on the generated docs.
	StatusVerified Status = "verified"
)

// ComponentRecord links one documented component to the source it covers
// and the source fingerprint captured when the docs were last generated.
// SourcePath may name a directory, in which case the docs cover the whole
// subtree.
type ComponentRecord struct {
	ComponentID string
	SourcePath  string
	SourceHash  string
	DocPath     string
	Status      Status
	GeneratedAt time.Time
}

// NewComponentRecord validates and builds a record. Records are fixed-shape
// values: an empty id, an empty or escaping path, or a malformed fingerprint
// is rejected at construction instead of tolerated until it corrupts a
// report.
func NewComponentRecord(id, sourcePath, sourceHash, docPath string) (ComponentRecord, error) {
	if strings.TrimSpace(id) == "" {
		return ComponentRecord{}, fmt.Errorf("component id must not be empty")
	}
	cleaned, err := CleanSourcePath(sourcePath)
	if err != nil {
		return ComponentRecord{}, fmt.Errorf("component %q: %w", id, err)
	}
	if sourceHash != "" && !merkle.ValidFingerprint(sourceHash) {
		return ComponentRecord{}, fmt.Errorf("component %q: malformed source hash %q", id, sourceHash)
	}
	return ComponentRecord{
		ComponentID: id,
		SourcePath:  cleaned,
		SourceHash:  sourceHash,
		DocPath:     docPath,
		Status:      StatusGenerated,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// CleanSourcePath normalizes a project-relative path to forward slashes and
// rejects absolute paths and anything traversing out of the project root.
func CleanSourcePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("source path must not be empty")
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("source path must be project-relative: %q", p)
	}
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("source path escapes project root: %q", p)
	}
	if cleaned == "." {
		return "", fmt.Errorf("source path must name an entry, not the root: %q", p)
	}
	return cleaned, nil
}
