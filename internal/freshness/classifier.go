// Package freshness turns a tree diff plus the documentation manifest into
// a per-component verdict. The one contract everything else leans on: stale
// is never reported as fresh. Every ambiguous case resolves toward Stale or
// Uncovered.
package freshness

import (
	"path"
	"sort"

	"docdrift/internal/manifest"
	"docdrift/internal/merkle"
)

// State is the freshness verdict for one tracked path.
type State string

const (
	// Fresh: source unchanged since docs were generated.
	Fresh State = "fresh"
	// Stale: source changed after the last doc generation.
	Stale State = "stale"
	// Uncovered: source exists with no documentation record.
	Uncovered State = "uncovered"
	// Orphaned: a record points at source that no longer exists.
	Orphaned State = "orphaned"
)

// Entry is the verdict for one path, with the hashes that justify it when
// the verdict is Stale.
type Entry struct {
	SourcePath   string
	ComponentID  string
	State        State
	CurrentHash  string
	RecordedHash string
}

// Report maps every tracked path to its verdict.
type Report struct {
	Entries map[string]Entry

	TotalFiles      int
	TotalComponents int
}

// Paths returns the sorted paths currently in the given state.
func (r *Report) Paths(state State) []string {
	var out []string
	for p, e := range r.Entries {
		if e.State == state {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Classify assigns a state to every component record and every file in the
// current snapshot.
//
// Per record: a source path absent from the tree is Orphaned; a path in the
// diff's modified or added set is Stale (added covers a record whose path
// previously failed to build); a recorded generation hash that disagrees
// with the current tree hash is Stale even when the diff is empty, which
// protects the verdict if the baseline was refreshed without regenerating
// docs. Directory-level records go stale when any path under them changed,
// checked by walking each changed path's ancestor chain, not by string
// prefixes (so "foo" never covers "foobar").
//
// Files with neither their own record nor a directory record above them are
// Uncovered.
func Classify(current *merkle.Snapshot, diff *merkle.DiffResult, records []manifest.ComponentRecord) *Report {
	report := &Report{
		Entries:         make(map[string]Entry),
		TotalComponents: len(records),
	}

	changed := diff.Changed()
	touched := make(map[string]bool, len(changed)+len(diff.Removed))
	for p := range changed {
		touched[p] = true
	}
	for _, p := range diff.Removed {
		touched[p] = true
	}

	byPath := make(map[string]manifest.ComponentRecord, len(records))
	for _, rec := range records {
		byPath[rec.SourcePath] = rec
	}

	// Ancestor directories touched by at least one change.
	touchedDirs := make(map[string]bool)
	for p := range touched {
		for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
			touchedDirs[dir] = true
		}
	}

	for _, rec := range records {
		node := current.Lookup(rec.SourcePath)
		if node == nil {
			report.Entries[rec.SourcePath] = Entry{
				SourcePath:   rec.SourcePath,
				ComponentID:  rec.ComponentID,
				State:        Orphaned,
				RecordedHash: rec.SourceHash,
			}
			continue
		}

		stale := false
		switch {
		case node.IsDir():
			stale = touchedDirs[rec.SourcePath] || touched[rec.SourcePath]
		default:
			stale = changed[rec.SourcePath]
		}
		if rec.SourceHash != node.Hash {
			stale = true
		}

		state := Fresh
		if stale {
			state = Stale
		}
		report.Entries[rec.SourcePath] = Entry{
			SourcePath:   rec.SourcePath,
			ComponentID:  rec.ComponentID,
			State:        state,
			CurrentHash:  node.Hash,
			RecordedHash: rec.SourceHash,
		}
	}

	files := current.Files()
	report.TotalFiles = len(files)
	for _, p := range files {
		if _, tracked := report.Entries[p]; tracked {
			continue
		}
		if coveredByDirRecord(p, byPath) {
			continue
		}
		report.Entries[p] = Entry{SourcePath: p, State: Uncovered}
	}

	return report
}

// coveredByDirRecord reports whether some ancestor directory of p has its
// own component record.
func coveredByDirRecord(p string, byPath map[string]manifest.ComponentRecord) bool {
	for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if _, ok := byPath[dir]; ok {
			return true
		}
	}
	return false
}
