package alias

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tywa/internal/config"
)

func TestNewTable(t *testing.T) {
	cfg := &config.Config{
		OutDir:  "dist",
		RootDir: "src",
		Aliases: []config.Alias{
			{Pattern: "@/*", Targets: []string{"src/*", "lib/*"}},
			{Pattern: "~src/*", Targets: []string{"./src/shared/*"}},
			{Pattern: "#config", Targets: []string{"src/config/index"}},
		},
	}

	table, warnings := NewTable(cfg)
	assert.Empty(t, warnings)
	assert.Equal(t, []Entry{
		{Pattern: "@/*", Prefix: "@/", Target: "dist/"},
		{Pattern: "~src/*", Prefix: "~src/", Target: "dist/shared/"},
		{Pattern: "#config", Prefix: "#config", Target: "dist/config/index"},
	}, table.Entries())
}

func TestNewTable_SkipsUnsafeEntries(t *testing.T) {
	cfg := &config.Config{
		OutDir:  "dist",
		RootDir: "src",
		Aliases: []config.Alias{
			{Pattern: "*", Targets: []string{"src/*"}},
			{Pattern: "./*", Targets: []string{"src/*"}},
			{Pattern: "/abs/*", Targets: []string{"src/*"}},
			{Pattern: "@empty/*"},
			{Pattern: "@/*", Targets: []string{"src/*"}},
		},
	}

	table, warnings := NewTable(cfg)
	assert.Len(t, warnings, 4)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, "@/", table.Entries()[0].Prefix)
}

func TestTable_MatchFirstWins(t *testing.T) {
	table := &Table{entries: []Entry{
		{Pattern: "@/*", Prefix: "@/", Target: "dist/"},
		{Pattern: "@/lib/*", Prefix: "@/lib/", Target: "dist/vendor/"},
	}}

	e, ok := table.Match("@/lib/x")
	require.True(t, ok)
	assert.Equal(t, "@/*", e.Pattern)

	_, ok = table.Match("lodash")
	assert.False(t, ok)
}

func TestReplaceRoot(t *testing.T) {
	tests := []struct {
		in, root, out string
		want          string
	}{
		{"src/", "src", "dist", "dist/"},
		{"src", "src", "dist", "dist"},
		{"packages/src/", "src", "dist", "packages/dist/"},
		{"srcs/", "src", "dist", "srcs/"},
		{"@src/", "src", "dist", "@src/"},
		{"resources/src/", "src", "dist", "resources/dist/"},
		{"app/src/", "app/src", "build", "build/"},
		{"src/", ".", "dist", "src/"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, replaceRoot(tt.in, tt.root, tt.out), "replaceRoot(%q, %q, %q)", tt.in, tt.root, tt.out)
	}
}
