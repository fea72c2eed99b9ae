package merkle

import (
	"sort"
	"strings"
	"time"
)

// Kind distinguishes file nodes from directory nodes.
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "directory"
)

// Node is one file-system entry in a snapshot. Nodes are values: once built
// they are never mutated. A rebuild produces fresh nodes and may share
// unchanged subtrees with the previous snapshot, so two nodes with equal
// hashes are interchangeable regardless of identity.
type Node struct {
	// Name is the path segment relative to the parent, never a full path.
	Name string
	Kind Kind
	Hash string
	// Children is sorted by name. Nil for files.
	Children []*Node
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool {
	return n.Kind == KindDir
}

// Child returns the direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	i := sort.Search(len(n.Children), func(i int) bool {
		return n.Children[i].Name >= name
	})
	if i < len(n.Children) && n.Children[i].Name == name {
		return n.Children[i]
	}
	return nil
}

// Snapshot is a complete immutable tree captured at one point in time,
// together with the fingerprint of the ignore rules it was built under.
type Snapshot struct {
	Root             *Node
	CapturedAt       time.Time
	RulesFingerprint string
}

// RootHash returns the root fingerprint, or "" for a nil snapshot.
func (s *Snapshot) RootHash() string {
	if s == nil || s.Root == nil {
		return ""
	}
	return s.Root.Hash
}

// Lookup resolves a slash-separated project-relative path to its node.
// Returns nil if the path is absent. "" and "." resolve to the root.
func (s *Snapshot) Lookup(rel string) *Node {
	if s == nil || s.Root == nil {
		return nil
	}
	rel = strings.Trim(rel, "/")
	if rel == "" || rel == "." {
		return s.Root
	}
	cur := s.Root
	for _, seg := range strings.Split(rel, "/") {
		if !cur.IsDir() {
			return nil
		}
		cur = cur.Child(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Files returns the project-relative path of every file node. The walk uses
// an explicit stack so tree depth never translates into call depth.
func (s *Snapshot) Files() []string {
	if s == nil || s.Root == nil {
		return nil
	}
	return collectFiles("", s.Root)
}

// collectFiles gathers file paths under n, prefixing each with base.
func collectFiles(base string, n *Node) []string {
	type frame struct {
		path string
		node *Node
	}
	var out []string
	stack := []frame{{path: base, node: n}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !f.node.IsDir() {
			out = append(out, f.path)
			continue
		}
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			c := f.node.Children[i]
			stack = append(stack, frame{path: joinRel(f.path, c.Name), node: c})
		}
	}
	sort.Strings(out)
	return out
}

func joinRel(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}
