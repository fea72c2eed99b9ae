package freshness

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdrift/internal/manifest"
	"docdrift/internal/merkle"
)

func file(name, content string) *merkle.Node {
	return &merkle.Node{Name: name, Kind: merkle.KindFile, Hash: merkle.Compute([]byte(content))}
}

func dir(name string, children ...*merkle.Node) *merkle.Node {
	sort.Slice(children, func(a, b int) bool { return children[a].Name < children[b].Name })
	return &merkle.Node{
		Name:     name,
		Kind:     merkle.KindDir,
		Hash:     merkle.HashChildren(children),
		Children: children,
	}
}

func snap(root *merkle.Node) *merkle.Snapshot {
	return &merkle.Snapshot{Root: root, CapturedAt: time.Now().UTC()}
}

func record(t *testing.T, id, sourcePath, sourceHash string) manifest.ComponentRecord {
	t.Helper()
	rec, err := manifest.NewComponentRecord(id, sourcePath, sourceHash, "docs/"+id+".md")
	require.NoError(t, err)
	return rec
}

func TestClassify_Scenarios(t *testing.T) {
	oldHash := merkle.Compute([]byte("package auth"))
	current := snap(dir("",
		dir("src",
			file("auth.go", "package auth // edited"),
			file("new.go", "package fresh"),
			file("stable.go", "package stable"),
		),
	))
	newHash := current.Lookup("src/auth.go").Hash
	require.NotEqual(t, oldHash, newHash)

	diff := &merkle.DiffResult{Modified: []string{"src/auth.go"}}

	records := []manifest.ComponentRecord{
		record(t, "auth", "src/auth.go", oldHash),
		record(t, "stable", "src/stable.go", current.Lookup("src/stable.go").Hash),
		record(t, "legacy", "src/old.go", merkle.Compute([]byte("deleted long ago"))),
	}

	report := Classify(current, diff, records)

	t.Run("Edited source is stale", func(t *testing.T) {
		e := report.Entries["src/auth.go"]
		assert.Equal(t, Stale, e.State)
		assert.Equal(t, "auth", e.ComponentID)
		assert.Equal(t, newHash, e.CurrentHash)
		assert.Equal(t, oldHash, e.RecordedHash)
	})

	t.Run("Untouched documented source is fresh", func(t *testing.T) {
		assert.Equal(t, Fresh, report.Entries["src/stable.go"].State)
	})

	t.Run("Record without source is orphaned", func(t *testing.T) {
		assert.Equal(t, Orphaned, report.Entries["src/old.go"].State)
	})

	t.Run("Source without record is uncovered", func(t *testing.T) {
		assert.Equal(t, Uncovered, report.Entries["src/new.go"].State)
	})

	t.Run("Totals", func(t *testing.T) {
		assert.Equal(t, 3, report.TotalFiles)
		assert.Equal(t, 3, report.TotalComponents)
	})
}

func TestClassify_HashMismatchBeatsEmptyDiff(t *testing.T) {
	// A refreshed baseline can produce an empty diff while the docs still
	// describe older content. The recorded hash catches that: stale must
	// never be reported as fresh.
	current := snap(dir("", file("main.go", "v2")))
	records := []manifest.ComponentRecord{
		record(t, "main", "main.go", merkle.Compute([]byte("v1"))),
	}

	report := Classify(current, &merkle.DiffResult{}, records)
	assert.Equal(t, Stale, report.Entries["main.go"].State)
}

func TestClassify_AddedPathWithRecordIsStale(t *testing.T) {
	// The record referenced a path that previously failed to build; now it
	// appeared, so the docs need a refresh pass.
	current := snap(dir("", file("flaky.go", "recovered")))
	records := []manifest.ComponentRecord{
		record(t, "flaky", "flaky.go", current.Lookup("flaky.go").Hash),
	}

	report := Classify(current, &merkle.DiffResult{Added: []string{"flaky.go"}}, records)
	assert.Equal(t, Stale, report.Entries["flaky.go"].State)
}

func TestClassify_DirectoryComponents(t *testing.T) {
	current := snap(dir("",
		dir("src",
			dir("api", file("handler.go", "h2")),
			file("util.go", "u1"),
		),
		dir("srcextra", file("other.go", "o1")),
	))

	t.Run("Stale when any path underneath changed", func(t *testing.T) {
		records := []manifest.ComponentRecord{
			record(t, "src-module", "src", merkle.Compute([]byte("old dir state"))),
		}
		diff := &merkle.DiffResult{Modified: []string{"src/api/handler.go"}}

		report := Classify(current, diff, records)
		assert.Equal(t, Stale, report.Entries["src"].State)
	})

	t.Run("Stale on removals underneath", func(t *testing.T) {
		records := []manifest.ComponentRecord{
			record(t, "src-module", "src", current.Lookup("src").Hash),
		}
		diff := &merkle.DiffResult{Removed: []string{"src/gone.go"}}

		report := Classify(current, diff, records)
		assert.Equal(t, Stale, report.Entries["src"].State)
	})

	t.Run("Prefix matching is per segment, not per string", func(t *testing.T) {
		records := []manifest.ComponentRecord{
			record(t, "src-module", "src", current.Lookup("src").Hash),
		}
		diff := &merkle.DiffResult{Modified: []string{"srcextra/other.go"}}

		report := Classify(current, diff, records)
		assert.Equal(t, Fresh, report.Entries["src"].State,
			"a change in srcextra must not staleify the src component")
	})

	t.Run("Files under a directory component are covered", func(t *testing.T) {
		records := []manifest.ComponentRecord{
			record(t, "src-module", "src", current.Lookup("src").Hash),
		}
		report := Classify(current, &merkle.DiffResult{}, records)

		assert.NotContains(t, report.Paths(Uncovered), "src/util.go")
		assert.NotContains(t, report.Paths(Uncovered), "src/api/handler.go")
		assert.Contains(t, report.Paths(Uncovered), "srcextra/other.go")
	})
}

func TestClassify_EmptyManifest(t *testing.T) {
	current := snap(dir("", file("a.go", "a"), file("b.go", "b")))
	report := Classify(current, &merkle.DiffResult{Added: []string{"a.go", "b.go"}}, nil)

	assert.ElementsMatch(t, []string{"a.go", "b.go"}, report.Paths(Uncovered))
	assert.Empty(t, report.Paths(Fresh))
	assert.Empty(t, report.Paths(Stale))
}
