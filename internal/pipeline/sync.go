package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"docdrift/internal/config"
	"docdrift/internal/freshness"
	"docdrift/internal/ignore"
	"docdrift/internal/manifest"
	"docdrift/internal/merkle"
	"docdrift/internal/store"
)

// Sync runs one freshness pass: load the baseline snapshot, build the
// current tree, diff, classify against the manifest, and persist the new
// baseline. Everything is passed explicitly; there is no ambient state.
type Sync struct {
	Root         string
	Rules        *ignore.RuleSet
	Workers      int
	Snapshots    *store.Store
	ManifestPath string
}

// Result bundles the artifacts of one pass for callers that want the raw
// diff (e.g. to re-trigger dependent doc hashing) alongside the report.
type Result struct {
	Current  *merkle.Snapshot
	Diff     *merkle.DiffResult
	Report   *freshness.Report
	Warnings []merkle.BuildWarning
	FirstRun bool
}

// NewSync wires a Sync from loaded configuration.
func NewSync(cfg *config.Config) (*Sync, error) {
	rules, err := ignore.NewRuleSet(append(ignore.DefaultPatterns, cfg.Ignore...))
	if err != nil {
		return nil, fmt.Errorf("invalid ignore configuration: %w", err)
	}
	return &Sync{
		Root:         cfg.Project.Root,
		Rules:        rules,
		Workers:      cfg.Snapshot.Workers,
		Snapshots:    store.New(cfg.Snapshot.Path),
		ManifestPath: cfg.Manifest.Path,
	}, nil
}

// Run executes the pass. With persist=false the baseline is left untouched,
// for read-only callers like a status view.
func (s *Sync) Run(ctx context.Context, persist bool) (*Result, error) {
	baseline, firstRun := s.baselineStage()

	current, warnings, err := s.buildStage(baseline)
	if err != nil {
		return nil, err
	}

	diff := merkle.Diff(baseline, current)

	report, err := s.classifyStage(ctx, current, diff)
	if err != nil {
		return nil, err
	}

	if persist {
		if err := s.Snapshots.Save(current); err != nil {
			return nil, fmt.Errorf("failed to persist snapshot: %w", err)
		}
	}

	return &Result{
		Current:  current,
		Diff:     diff,
		Report:   report,
		Warnings: warnings,
		FirstRun: firstRun,
	}, nil
}

// baselineStage loads the previous snapshot. Any load failure, and a
// baseline built under different ignore rules, degrade to a first-run full
// rebuild — stale exclusions could otherwise hide now-included files as
// falsely fresh.
func (s *Sync) baselineStage() (*merkle.Snapshot, bool) {
	baseline, err := s.Snapshots.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Warning: baseline snapshot unusable, rebuilding: %v", err)
		}
		return nil, true
	}
	if baseline.RulesFingerprint != s.Rules.Fingerprint() {
		log.Printf("Ignore rules changed (was %s, now %s), forcing full rescan",
			baseline.RulesFingerprint, s.Rules.Fingerprint())
		return nil, true
	}
	return baseline, false
}

func (s *Sync) buildStage(baseline *merkle.Snapshot) (*merkle.Snapshot, []merkle.BuildWarning, error) {
	builder := merkle.NewBuilder(s.Rules)
	builder.Baseline = baseline
	if s.Workers > 0 {
		builder.Workers = s.Workers
	}
	current, warnings, err := builder.Build(s.Root)
	if err != nil {
		return nil, nil, fmt.Errorf("tree build failed: %w", err)
	}
	for _, w := range warnings {
		log.Printf("Warning: skipped %s: %v", w.Path, w.Err)
	}
	return current, warnings, nil
}

func (s *Sync) classifyStage(ctx context.Context, current *merkle.Snapshot, diff *merkle.DiffResult) (*freshness.Report, error) {
	db, err := manifest.NewSQLiteStore(s.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer db.Close()

	records, err := db.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return freshness.Classify(current, diff, records), nil
}
