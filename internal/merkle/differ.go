package merkle

import "sort"

// DiffResult holds the file paths that differ between two snapshots, as
// three disjoint sets. Directory nodes never appear; a changed directory
// shows up through the files beneath it.
type DiffResult struct {
	Added    []string
	Removed  []string
	Modified []string

	// Visited counts node pairs the walk examined. An unchanged subtree
	// costs exactly one visit, which is what makes diffing proportional to
	// the change set rather than the tree size.
	Visited int
}

// Empty reports whether the two snapshots were content-equal.
func (d *DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// Changed returns the union of Added and Modified as a set.
func (d *DiffResult) Changed() map[string]bool {
	out := make(map[string]bool, len(d.Added)+len(d.Modified))
	for _, p := range d.Added {
		out[p] = true
	}
	for _, p := range d.Modified {
		out[p] = true
	}
	return out
}

type diffFrame struct {
	path string
	old  *Node
	new  *Node
}

// Diff compares two snapshots in lock-step by path.
//
// At any shared path, equal hashes prove the entire subtrees identical and
// the walk skips them. Unequal directory hashes recurse into children;
// unequal file hashes mean modified. A kind change (file became directory or
// the reverse) is reported as removed + added, not modified. A nil snapshot
// acts as an empty tree, so diffing against a missing baseline reports every
// current file as added — failing toward "stale", never toward "fresh".
func Diff(previous, current *Snapshot) *DiffResult {
	res := &DiffResult{}

	var oldRoot, newRoot *Node
	if previous != nil {
		oldRoot = previous.Root
	}
	if current != nil {
		newRoot = current.Root
	}

	stack := []diffFrame{{path: "", old: oldRoot, new: newRoot}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		res.Visited++

		switch {
		case f.old == nil && f.new == nil:
			continue
		case f.old == nil:
			res.Added = append(res.Added, collectFiles(f.path, f.new)...)
			continue
		case f.new == nil:
			res.Removed = append(res.Removed, collectFiles(f.path, f.old)...)
			continue
		}

		if f.old.Hash == f.new.Hash && f.old.Kind == f.new.Kind {
			continue // identical subtree, skip all descendants
		}
		if f.old.Kind != f.new.Kind {
			// A type change is not a content edit.
			res.Removed = append(res.Removed, collectFiles(f.path, f.old)...)
			res.Added = append(res.Added, collectFiles(f.path, f.new)...)
			continue
		}
		if !f.old.IsDir() {
			res.Modified = append(res.Modified, f.path)
			continue
		}

		// Both directories: merge the sorted child lists by name.
		oldKids, newKids := f.old.Children, f.new.Children
		i, j := 0, 0
		for i < len(oldKids) || j < len(newKids) {
			switch {
			case j >= len(newKids) || (i < len(oldKids) && oldKids[i].Name < newKids[j].Name):
				c := oldKids[i]
				stack = append(stack, diffFrame{path: joinRel(f.path, c.Name), old: c})
				i++
			case i >= len(oldKids) || oldKids[i].Name > newKids[j].Name:
				c := newKids[j]
				stack = append(stack, diffFrame{path: joinRel(f.path, c.Name), new: c})
				j++
			default:
				stack = append(stack, diffFrame{
					path: joinRel(f.path, oldKids[i].Name),
					old:  oldKids[i],
					new:  newKids[j],
				})
				i++
				j++
			}
		}
	}

	sort.Strings(res.Added)
	sort.Strings(res.Removed)
	sort.Strings(res.Modified)
	return res
}
