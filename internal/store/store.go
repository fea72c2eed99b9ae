// Package store persists tree snapshots between runs.
//
// The on-disk form is a versioned JSON document. Writes go through a temp
// file and an atomic rename so a reader can never observe a half-written
// snapshot. Loads are fail-open: a missing, truncated, malformed or
// version-mismatched snapshot yields ErrNoSnapshot, which callers treat as
// a first run. Losing the cache must never be mistaken for "nothing changed".
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"docdrift/internal/merkle"
)

// SchemaVersion is bumped whenever the persisted format changes shape, so an
// old binary never misreads a new snapshot (or the reverse) — it rebuilds.
const SchemaVersion = 1

const algorithm = "sha256/12"

// ErrNoSnapshot means no usable baseline exists at the store's path.
var ErrNoSnapshot = errors.New("no usable snapshot")

// Store reads and writes snapshots at a fixed path. No ambient global state:
// the pipeline receives a Store explicitly.
type Store struct {
	path string
}

// New returns a store persisting at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

type snapshotFile struct {
	SchemaVersion    int       `json:"schema_version"`
	Algorithm        string    `json:"algorithm"`
	RulesFingerprint string    `json:"rules_fingerprint"`
	CapturedAt       time.Time `json:"captured_at"`
	Root             *nodeFile `json:"root"`
}

type nodeFile struct {
	Name     string      `json:"name"`
	Kind     string      `json:"kind"`
	Hash     string      `json:"hash"`
	Children []*nodeFile `json:"children,omitempty"`
}

// Save writes the snapshot atomically: encode to a temp file in the target
// directory, then rename over the destination.
func (s *Store) Save(snap *merkle.Snapshot) error {
	if snap == nil || snap.Root == nil {
		return fmt.Errorf("refusing to save empty snapshot")
	}

	doc := snapshotFile{
		SchemaVersion:    SchemaVersion,
		Algorithm:        algorithm,
		RulesFingerprint: snap.RulesFingerprint,
		CapturedAt:       snap.CapturedAt,
		Root:             encodeNode(snap.Root),
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&doc); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads the persisted baseline. Every failure mode that would leave the
// caller with an untrustworthy tree maps to ErrNoSnapshot (wrapped with the
// reason); the caller's correct response is always a full rebuild.
func (s *Store) Load() (*merkle.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			// Joined so callers can tell a clean first run from corruption.
			return nil, errors.Join(ErrNoSnapshot, err)
		}
		return nil, fmt.Errorf("%s unreadable (%v): %w", s.path, err, ErrNoSnapshot)
	}

	if err := validateSnapshotJSON(data); err != nil {
		return nil, fmt.Errorf("%s malformed (%v): %w", s.path, err, ErrNoSnapshot)
	}

	var doc snapshotFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s corrupt (%v): %w", s.path, err, ErrNoSnapshot)
	}
	if doc.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%s schema v%d, want v%d: %w",
			s.path, doc.SchemaVersion, SchemaVersion, ErrNoSnapshot)
	}
	if doc.Algorithm != algorithm {
		return nil, fmt.Errorf("%s algorithm %q, want %q: %w",
			s.path, doc.Algorithm, algorithm, ErrNoSnapshot)
	}

	root, err := decodeTree(doc.Root)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", s.path, err, ErrNoSnapshot)
	}

	return &merkle.Snapshot{
		Root:             root,
		CapturedAt:       doc.CapturedAt,
		RulesFingerprint: doc.RulesFingerprint,
	}, nil
}

// encodeNode converts the node tree to its persisted form iteratively.
func encodeNode(root *merkle.Node) *nodeFile {
	out := make(map[*merkle.Node]*nodeFile)
	stack := []*merkle.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		if _, done := out[n]; done {
			stack = stack[:len(stack)-1]
			continue
		}
		ready := true
		for _, c := range n.Children {
			if _, done := out[c]; !done {
				ready = false
				stack = append(stack, c)
			}
		}
		if !ready {
			continue
		}
		stack = stack[:len(stack)-1]
		nf := &nodeFile{Name: n.Name, Kind: string(n.Kind), Hash: n.Hash}
		for _, c := range n.Children {
			nf.Children = append(nf.Children, out[c])
		}
		out[n] = nf
	}
	return out[root]
}

// decodeTree rebuilds the node tree, rejecting anything that does not hold
// the in-memory invariants: known kinds, valid fingerprints, file nodes
// without children. Children are re-sorted by name so lookups and diffs can
// rely on ordering even if the file was hand-edited.
func decodeTree(root *nodeFile) (*merkle.Node, error) {
	if root == nil {
		return nil, fmt.Errorf("missing root node")
	}
	if root.Kind != string(merkle.KindDir) {
		return nil, fmt.Errorf("root is not a directory node")
	}

	out := make(map[*nodeFile]*merkle.Node)
	stack := []*nodeFile{root}
	for len(stack) > 0 {
		nf := stack[len(stack)-1]
		if _, done := out[nf]; done {
			stack = stack[:len(stack)-1]
			continue
		}
		if !merkle.ValidFingerprint(nf.Hash) {
			return nil, fmt.Errorf("node %q: malformed fingerprint %q", nf.Name, nf.Hash)
		}

		switch merkle.Kind(nf.Kind) {
		case merkle.KindFile:
			if len(nf.Children) > 0 {
				return nil, fmt.Errorf("file node %q has children", nf.Name)
			}
			stack = stack[:len(stack)-1]
			out[nf] = &merkle.Node{Name: nf.Name, Kind: merkle.KindFile, Hash: nf.Hash}
		case merkle.KindDir:
			ready := true
			for _, c := range nf.Children {
				if c == nil {
					return nil, fmt.Errorf("directory %q has null child", nf.Name)
				}
				if _, done := out[c]; !done {
					ready = false
					stack = append(stack, c)
				}
			}
			if !ready {
				continue
			}
			stack = stack[:len(stack)-1]
			n := &merkle.Node{Name: nf.Name, Kind: merkle.KindDir, Hash: nf.Hash}
			for _, c := range nf.Children {
				n.Children = append(n.Children, out[c])
			}
			sort.Slice(n.Children, func(a, b int) bool {
				return n.Children[a].Name < n.Children[b].Name
			})
			out[nf] = n
		default:
			return nil, fmt.Errorf("node %q: unknown kind %q", nf.Name, nf.Kind)
		}
	}
	return out[root], nil
}
