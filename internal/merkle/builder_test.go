package merkle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdrift/internal/ignore"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func testRules(t *testing.T, patterns ...string) *ignore.RuleSet {
	t.Helper()
	rs, err := ignore.NewRuleSet(append(ignore.DefaultPatterns, patterns...))
	require.NoError(t, err)
	return rs
}

func seedProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "README.md", "hello")
	writeFile(t, root, "src/auth.go", "package auth")
	writeFile(t, root, "src/db/conn.go", "package db")
	writeFile(t, root, "docs/guide.md", "guide")
	return root
}

func TestBuilder_Build(t *testing.T) {
	root := seedProject(t)
	b := NewBuilder(testRules(t))

	snap, warnings, err := b.Build(root)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	t.Run("Captures all files", func(t *testing.T) {
		assert.Equal(t, []string{
			"README.md",
			"docs/guide.md",
			"src/auth.go",
			"src/db/conn.go",
		}, snap.Files())
	})

	t.Run("Nodes carry valid fingerprints", func(t *testing.T) {
		assert.True(t, ValidFingerprint(snap.RootHash()))
		assert.True(t, ValidFingerprint(snap.Lookup("src/auth.go").Hash))
		assert.True(t, ValidFingerprint(snap.Lookup("src").Hash))
	})

	t.Run("Records the rules fingerprint", func(t *testing.T) {
		assert.Equal(t, testRules(t).Fingerprint(), snap.RulesFingerprint)
	})
}

func TestBuilder_Determinism(t *testing.T) {
	root := seedProject(t)
	b := NewBuilder(testRules(t))

	first, _, err := b.Build(root)
	require.NoError(t, err)
	second, _, err := b.Build(root)
	require.NoError(t, err)

	assert.Equal(t, first.RootHash(), second.RootHash())

	// Same content in a different directory must fingerprint identically:
	// nothing machine-specific leaks into the hashes.
	other := t.TempDir()
	writeFile(t, other, "README.md", "hello")
	writeFile(t, other, "src/auth.go", "package auth")
	writeFile(t, other, "src/db/conn.go", "package db")
	writeFile(t, other, "docs/guide.md", "guide")

	third, _, err := b.Build(other)
	require.NoError(t, err)
	assert.Equal(t, first.RootHash(), third.RootHash())
}

func TestBuilder_ChangePropagation(t *testing.T) {
	root := seedProject(t)
	b := NewBuilder(testRules(t))

	before, _, err := b.Build(root)
	require.NoError(t, err)

	writeFile(t, root, "src/auth.go", "package auth // edited")

	after, _, err := b.Build(root)
	require.NoError(t, err)

	t.Run("Leaf and ancestors change", func(t *testing.T) {
		assert.NotEqual(t, before.Lookup("src/auth.go").Hash, after.Lookup("src/auth.go").Hash)
		assert.NotEqual(t, before.Lookup("src").Hash, after.Lookup("src").Hash)
		assert.NotEqual(t, before.RootHash(), after.RootHash())
	})

	t.Run("Siblings keep their hashes", func(t *testing.T) {
		assert.Equal(t, before.Lookup("src/db").Hash, after.Lookup("src/db").Hash)
		assert.Equal(t, before.Lookup("docs").Hash, after.Lookup("docs").Hash)
		assert.Equal(t, before.Lookup("README.md").Hash, after.Lookup("README.md").Hash)
	})
}

func TestBuilder_IgnoreRules(t *testing.T) {
	root := seedProject(t)
	b := NewBuilder(testRules(t, "**/*.md"))

	snap, _, err := b.Build(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"src/auth.go", "src/db/conn.go"}, snap.Files())

	// Content inside a default-ignored directory never affects the hash.
	withGit, _, err := b.Build(root)
	require.NoError(t, err)
	writeFile(t, root, ".git/objects/ab", "blob")
	again, _, err := b.Build(root)
	require.NoError(t, err)
	assert.Equal(t, withGit.RootHash(), again.RootHash())
}

func TestBuilder_SymlinksNeverFollowed(t *testing.T) {
	outside := t.TempDir()
	writeFile(t, outside, "secret.txt", "outside the root")

	root := seedProject(t)
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))
	require.NoError(t, os.Symlink(
		filepath.Join(root, "src"), filepath.Join(root, "cycle")))

	snap, warnings, err := NewBuilder(testRules(t)).Build(root)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	for _, p := range snap.Files() {
		assert.False(t, strings.HasPrefix(p, "escape"), "symlink target leaked: %s", p)
		assert.False(t, strings.HasPrefix(p, "cycle"), "symlink cycle leaked: %s", p)
	}
}

func TestBuilder_UnreadableFileBecomesWarning(t *testing.T) {
	root := seedProject(t)

	b := NewBuilder(testRules(t))
	realRead := b.readFile
	b.readFile = func(path string) ([]byte, error) {
		if filepath.Base(path) == "auth.go" {
			return nil, fmt.Errorf("permission denied")
		}
		return realRead(path)
	}

	snap, warnings, err := b.Build(root)
	require.NoError(t, err, "one unreadable file must not abort the build")

	require.Len(t, warnings, 1)
	assert.Equal(t, "src/auth.go", warnings[0].Path)
	assert.NotContains(t, snap.Files(), "src/auth.go")
	assert.Contains(t, snap.Files(), "src/db/conn.go")
}

func TestBuilder_BaselineReuse(t *testing.T) {
	root := seedProject(t)
	b := NewBuilder(testRules(t))

	baseline, _, err := b.Build(root)
	require.NoError(t, err)

	writeFile(t, root, "src/auth.go", "package auth // v2")

	b.Baseline = baseline
	rebuilt, _, err := b.Build(root)
	require.NoError(t, err)

	t.Run("Unchanged subtrees share node values", func(t *testing.T) {
		assert.Same(t, baseline.Lookup("docs"), rebuilt.Lookup("docs"))
		assert.Same(t, baseline.Lookup("src/db"), rebuilt.Lookup("src/db"))
		assert.Same(t, baseline.Lookup("README.md"), rebuilt.Lookup("README.md"))
	})

	t.Run("Changed chain gets fresh nodes", func(t *testing.T) {
		assert.NotSame(t, baseline.Lookup("src"), rebuilt.Lookup("src"))
		assert.NotSame(t, baseline.Root, rebuilt.Root)
	})
}

func TestBuilder_RootMustExist(t *testing.T) {
	_, _, err := NewBuilder(testRules(t)).Build(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
