package merkle

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"docdrift/internal/ignore"
)

// BuildWarning records a path that was dropped from a snapshot and why.
// A single unreadable file must not block freshness reporting for the rest
// of the project, so the builder collects warnings instead of failing.
type BuildWarning struct {
	Path string
	Err  error
}

// Builder constructs snapshots of a directory tree. A Builder holds no
// per-build state, so one instance can serve successive builds.
type Builder struct {
	rules *ignore.RuleSet

	// Workers bounds concurrent file hashing. Defaults to NumCPU.
	Workers int

	// Baseline enables structural sharing: any subtree whose hash matches
	// the baseline node at the same path reuses that node value instead of
	// allocating an identical one.
	Baseline *Snapshot

	readFile func(string) ([]byte, error)
}

// NewBuilder returns a builder honoring the given ignore rules.
func NewBuilder(rules *ignore.RuleSet) *Builder {
	return &Builder{
		rules:    rules,
		Workers:  runtime.NumCPU(),
		readFile: os.ReadFile,
	}
}

// scanDir is one directory discovered during the scan phase, with the names
// of its direct children. Child names, not nodes: nodes are built bottom-up
// in a later phase once file hashes are in.
type scanDir struct {
	rel     string
	subdirs []string
	files   []string
}

// Build walks the tree under root and returns an immutable snapshot.
//
// The walk is iterative (explicit stack), never follows symlinks, and skips
// anything the ignore rules match. File hashing fans out across Workers
// goroutines; directory hashes are then folded bottom-up, since a parent
// fingerprint depends on every child. Per-entry read failures become
// warnings and the entry is excluded from the snapshot.
func (b *Builder) Build(root string) (*Snapshot, []BuildWarning, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	var warnings []BuildWarning

	// Phase 1: discover directories and files. Parents land in visited
	// before their children, so a reverse sweep is bottom-up.
	var visited []*scanDir
	failed := make(map[string]bool)
	stack := []string{""}
	for len(stack) > 0 {
		rel := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(filepath.Join(absRoot, filepath.FromSlash(rel)))
		if err != nil {
			if rel == "" {
				return nil, nil, fmt.Errorf("read root: %w", err)
			}
			warnings = append(warnings, BuildWarning{Path: rel, Err: err})
			failed[rel] = true
			visited = append(visited, &scanDir{rel: rel})
			continue
		}

		d := &scanDir{rel: rel}
		for _, e := range entries {
			name := e.Name()
			// Entry names from ReadDir cannot normally traverse out of the
			// tree; reject anything that could, it is a security boundary.
			if name == ".." || strings.ContainsAny(name, `/\`) {
				warnings = append(warnings, BuildWarning{
					Path: joinRel(rel, name),
					Err:  fmt.Errorf("entry escapes project root"),
				})
				continue
			}
			childRel := joinRel(rel, name)
			if e.Type()&fs.ModeSymlink != 0 {
				// Never followed: symlinks can point outside the root or
				// form cycles.
				continue
			}
			if b.rules.Match(childRel) {
				continue
			}
			switch {
			case e.IsDir():
				d.subdirs = append(d.subdirs, name)
				stack = append(stack, childRel)
			case e.Type().IsRegular():
				d.files = append(d.files, name)
			default:
				// Sockets, devices, pipes: not content.
			}
		}
		visited = append(visited, d)
	}

	// Phase 2: hash file content in parallel. Independent files have no
	// ordering constraints; aggregation waits for all of them.
	var fileRels []string
	for _, d := range visited {
		for _, name := range d.files {
			fileRels = append(fileRels, joinRel(d.rel, name))
		}
	}
	hashes := make([]string, len(fileRels))
	readErrs := make([]error, len(fileRels))
	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i, rel := range fileRels {
		i, rel := i, rel
		g.Go(func() error {
			data, err := b.readFile(filepath.Join(absRoot, filepath.FromSlash(rel)))
			if err != nil {
				readErrs[i] = err
				return nil
			}
			hashes[i] = Compute(data)
			return nil
		})
	}
	_ = g.Wait() // per-file errors are collected, never returned

	fileHash := make(map[string]string, len(fileRels))
	for i, rel := range fileRels {
		if readErrs[i] != nil {
			warnings = append(warnings, BuildWarning{Path: rel, Err: readErrs[i]})
			continue
		}
		fileHash[rel] = hashes[i]
	}

	// Phase 3: fold directory nodes bottom-up.
	dirNodes := make(map[string]*Node, len(visited))
	for i := len(visited) - 1; i >= 0; i-- {
		d := visited[i]
		children := make([]*Node, 0, len(d.files)+len(d.subdirs))
		for _, name := range d.files {
			childRel := joinRel(d.rel, name)
			h, ok := fileHash[childRel]
			if !ok {
				continue // unreadable, already warned
			}
			children = append(children, b.fileNode(childRel, name, h))
		}
		for _, name := range d.subdirs {
			childRel := joinRel(d.rel, name)
			if failed[childRel] {
				continue
			}
			children = append(children, dirNodes[childRel])
		}
		sort.Slice(children, func(a, b int) bool {
			return children[a].Name < children[b].Name
		})
		dirNodes[d.rel] = b.dirNode(d.rel, children)
	}

	return &Snapshot{
		Root:             dirNodes[""],
		CapturedAt:       time.Now().UTC(),
		RulesFingerprint: b.rules.Fingerprint(),
	}, warnings, nil
}

func (b *Builder) fileNode(rel, name, hash string) *Node {
	if prev := b.Baseline.Lookup(rel); prev != nil && !prev.IsDir() && prev.Hash == hash {
		return prev
	}
	return &Node{Name: name, Kind: KindFile, Hash: hash}
}

func (b *Builder) dirNode(rel string, children []*Node) *Node {
	hash := HashChildren(children)
	if prev := b.Baseline.Lookup(rel); prev != nil && prev.IsDir() && prev.Hash == hash {
		return prev
	}
	name := rel
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		name = rel[i+1:]
	}
	return &Node{Name: name, Kind: KindDir, Hash: hash, Children: children}
}
