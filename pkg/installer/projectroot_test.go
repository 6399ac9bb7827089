package installer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(d)), 0o755))
	}
}

func TestResolveProjectRoot(t *testing.T) {
	tests := []struct {
		name  string
		dirs  []string
		files []string
		home  string
		cwd   string
		want  string
	}{
		{
			name: "inside a config directory",
			dirs: []string{"repo/.git", "repo/.claude/skills/foo"},
			cwd:  "repo/.claude/skills/foo",
			want: "repo",
		},
		{
			name: "nearest git repository",
			dirs: []string{"repo/.git", "repo/src/pkg"},
			cwd:  "repo/src/pkg",
			want: "repo",
		},
		{
			name:  "package.json marker",
			dirs:  []string{"web/app/components"},
			files: []string{"web/app/package.json"},
			cwd:   "web/app/components",
			want:  "web/app",
		},
		{
			name:  "go.mod marker",
			dirs:  []string{"svc/internal"},
			files: []string{"svc/go.mod"},
			cwd:   "svc/internal",
			want:  "svc",
		},
		{
			name: "directory holding a config directory",
			dirs: []string{"plain/.copilot", "plain/docs"},
			cwd:  "plain/docs",
			want: "plain",
		},
		{
			name: "home config directory is ignored",
			dirs: []string{"home/.claude", "home/scratch"},
			home: "home",
			cwd:  "home/scratch",
			want: "home/scratch",
		},
		{
			name: "falls back to cwd",
			dirs: []string{"loose/dir"},
			cwd:  "loose/dir",
			want: "loose/dir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			mkdirs(t, root, tt.dirs...)
			for _, f := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(root, filepath.FromSlash(f)), []byte("{}"), 0o644))
			}

			home := filepath.Join(root, "nohome")
			if tt.home != "" {
				home = filepath.Join(root, tt.home)
			}

			got := ResolveProjectRoot(filepath.Join(root, filepath.FromSlash(tt.cwd)), home)
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.want)), got)
		})
	}
}
