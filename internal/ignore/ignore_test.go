package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIgnoreFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestParseProject_ReadsIgnoreFiles(t *testing.T) {
	dir := t.TempDir()
	writeIgnoreFile(t, dir, ".gitignore", `
# build output
/dist/
*.log

!keep.log
node_modules
`)

	p := NewParser([]string{".gitignore"}, DefaultExcludePatterns)
	patterns, err := p.ParseProject(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"dist", "*.log", "node_modules"}, patterns)
}

func TestParseProject_CombinesAndDeduplicates(t *testing.T) {
	dir := t.TempDir()
	writeIgnoreFile(t, dir, ".gitignore", "vendor\n*.log\n")
	writeIgnoreFile(t, dir, ".swarmdignore", "*.log\ntmp\n")

	p := NewParser([]string{".gitignore", ".swarmdignore"}, nil)
	patterns, err := p.ParseProject(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor", "*.log", "tmp"}, patterns)
}

func TestParseProject_FallbackWithoutIgnoreFiles(t *testing.T) {
	p := NewParser([]string{".gitignore"}, DefaultExcludePatterns)
	patterns, err := p.ParseProject(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultExcludePatterns, patterns)
}

func TestMatches(t *testing.T) {
	patterns := []string{"node_modules", "*.log", "cmd/*.gen.go"}

	assert.True(t, Matches(patterns, "node_modules"))
	assert.True(t, Matches(patterns, "pkg/node_modules"))
	assert.True(t, Matches(patterns, "server/debug.log"))
	assert.True(t, Matches(patterns, "cmd/api.gen.go"))

	assert.False(t, Matches(patterns, "cmd/api.go"))
	assert.False(t, Matches(patterns, "internal/server.go"))
}
