package ignore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsvault/lsvault/internal/ignore"
)

func TestMatcherBuiltins(t *testing.T) {
	m := ignore.NewMatcher(nil, "")

	tests := []struct {
		path string
		want bool
	}{
		{"notes/.DS_Store", true},
		{"notes/keep.md", false},
		{".git/config", true},
		{"sub/.git/HEAD", true},
		{"notes/draft.tmp", true},
		{"notes/.file.md.swp", true},
		{"notes/backup.md~", true},
		{".lsvault/state/work.json", true},
		{".lsvault-ignore", true},
		{"Thumbs.db", true},
		{"daily/2024-01-01.md", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.path))
		})
	}
}

func TestMatcherExtraPatterns(t *testing.T) {
	m := ignore.NewMatcher([]string{"drafts/", "*.bak"}, "")

	assert.True(t, m.Match("drafts/wip.md"))
	assert.True(t, m.Match("notes/old.bak"))
	assert.False(t, m.Match("published/done.md"))
}

func TestMatcherIgnoreFile(t *testing.T) {
	root := t.TempDir()
	content := `# personal notes stay local
private/

secrets.md
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ignore.IgnoreFileName), []byte(content), 0644))

	m := ignore.NewMatcher(nil, root)

	assert.True(t, m.Match("private/journal.md"))
	assert.True(t, m.Match("secrets.md"))
	assert.False(t, m.Match("public.md"))
}

func TestMatcherMissingIgnoreFile(t *testing.T) {
	m := ignore.NewMatcher(nil, t.TempDir())

	// Builtins still apply, nothing else is excluded
	assert.True(t, m.Match("notes/.DS_Store"))
	assert.False(t, m.Match("notes/keep.md"))
}

func TestMatcherCaseSensitive(t *testing.T) {
	m := ignore.NewMatcher(nil, "")

	assert.True(t, m.Match("notes/a.tmp"))
	assert.False(t, m.Match("notes/A.TMP"))
}

func TestResolvePatternsOrder(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ignore.IgnoreFileName), []byte("local-only/\n"), 0644))

	patterns := ignore.ResolvePatterns([]string{"extra/"}, root)

	// Built-ins first, then session patterns, then the ignore file
	assert.Equal(t, ".git/", patterns[0])
	assert.Contains(t, patterns, "extra/")
	assert.Equal(t, "local-only/", patterns[len(patterns)-1])
}

func TestResolvePatternsDeduplicates(t *testing.T) {
	patterns := ignore.ResolvePatterns([]string{".DS_Store", "custom/", "custom/"}, "")

	counts := make(map[string]int)
	for _, p := range patterns {
		counts[p]++
	}

	assert.Equal(t, 1, counts[".DS_Store"])
	assert.Equal(t, 1, counts["custom/"])
}

func TestResolvePatternsSkipsBlankAndComment(t *testing.T) {
	root := t.TempDir()
	content := "\n# comment\n  \nreal-pattern.md\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ignore.IgnoreFileName), []byte(content), 0644))

	patterns := ignore.ResolvePatterns(nil, root)

	assert.Contains(t, patterns, "real-pattern.md")
	assert.NotContains(t, patterns, "# comment")
}
