// Package ignore decides whether a path takes part in sync at all.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName is the per-root pattern file, one glob per line.
const IgnoreFileName = ".lsvault-ignore"

// builtinPatterns are always excluded: version-control directories,
// OS cruft, editor temp files, and the engine's own state directory.
var builtinPatterns = []string{
	".git/",
	".svn/",
	".hg/",
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	"*.tmp",
	"*.swp",
	"*~",
	".lsvault/",
	IgnoreFileName,
}

// Matcher reports whether vault-relative paths are excluded from sync.
// Matching is case-sensitive and a path is excluded if any resolved
// pattern matches it; pattern order never changes the outcome.
type Matcher struct {
	patterns []string
	ignore   *gitignore.GitIgnore
}

// NewMatcher compiles the built-in patterns, the session's extra
// patterns, and the root's ignore file into one matcher.
func NewMatcher(extraPatterns []string, localRoot string) *Matcher {
	patterns := ResolvePatterns(extraPatterns, localRoot)
	return &Matcher{
		patterns: patterns,
		ignore:   gitignore.CompileIgnoreLines(patterns...),
	}
}

// ResolvePatterns merges three sources in order: built-ins, the
// session's patterns, and the root's ignore file. Duplicates keep
// their first position. A missing or unreadable ignore file
// contributes nothing.
func ResolvePatterns(extraPatterns []string, localRoot string) []string {
	merged := make([]string, 0, len(builtinPatterns)+len(extraPatterns))
	seen := make(map[string]bool)

	add := func(pattern string) {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" || seen[pattern] {
			return
		}
		seen[pattern] = true
		merged = append(merged, pattern)
	}

	for _, p := range builtinPatterns {
		add(p)
	}
	for _, p := range extraPatterns {
		add(p)
	}
	for _, p := range readIgnoreFile(localRoot) {
		add(p)
	}

	return merged
}

// Match reports whether the given vault-relative path is excluded.
func (m *Matcher) Match(path string) bool {
	return m.ignore.MatchesPath(path)
}

// Patterns returns the resolved pattern list in merge order.
func (m *Matcher) Patterns() []string {
	return m.patterns
}

// readIgnoreFile reads one glob per line from the root's ignore file,
// skipping blank lines and '#' comments. Read failures yield no
// patterns rather than an error.
func readIgnoreFile(localRoot string) []string {
	if localRoot == "" {
		return nil
	}

	file, err := os.Open(filepath.Join(localRoot, IgnoreFileName))
	if err != nil {
		return nil
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}

	if scanner.Err() != nil {
		return nil
	}

	return patterns
}
