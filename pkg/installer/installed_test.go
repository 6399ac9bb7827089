package installer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent/skillsmarket/pkg/catalog"
	"github.com/emergent/skillsmarket/pkg/presenter"
)

func writeSkill(t *testing.T, dir, manifest string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if manifest != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(manifest), 0o644))
	}
}

func TestInstalled(t *testing.T) {
	root := t.TempDir()
	home := filepath.Join(root, "home")
	project := filepath.Join(root, "work", "app")
	require.NoError(t, os.MkdirAll(filepath.Join(project, ".git"), 0o755))

	writeSkill(t, filepath.Join(project, ".claude", "foo"), fooManifest)
	writeSkill(t, filepath.Join(project, ".claude", "agents"), "")
	writeSkill(t, filepath.Join(home, ".copilot", "skills", "bar"), "---\nname: bar\ndescription: bar skill\n---\n")
	writeSkill(t, filepath.Join(home, ".claude", "broken"), "no frontmatter here\n")

	out := &bytes.Buffer{}
	p := presenter.NewWithOptions(out, out, presenter.ColorNever)
	inst, err := New(NewClient("http://127.0.0.1:1"), p, &scriptedPrompter{}, WithDirs(home, project))
	require.NoError(t, err)

	skills := inst.Installed()
	require.Len(t, skills, 3)

	assert.Equal(t, "foo", skills[0].Name)
	assert.Equal(t, catalog.ScopeProject, skills[0].Scope)
	assert.Equal(t, catalog.TargetClaude, skills[0].Provider.Target)
	assert.Empty(t, skills[0].Problems)

	assert.Equal(t, "broken", skills[1].Name)
	assert.Equal(t, catalog.ScopeGlobal, skills[1].Scope)
	assert.NotEmpty(t, skills[1].Problems)

	assert.Equal(t, "bar", skills[2].Name)
	assert.Equal(t, catalog.TargetCopilot, skills[2].Provider.Target)
	assert.Equal(t, "bar skill", skills[2].Description)

	inst.PrintInstalled(skills)
	assert.Contains(t, out.String(), "GitHub Copilot")
	assert.Contains(t, out.String(), filepath.Join(home, ".copilot", "skills", "bar"))
}

func TestInstalled_Empty(t *testing.T) {
	home := t.TempDir()
	out := &bytes.Buffer{}
	p := presenter.NewWithOptions(out, out, presenter.ColorNever)
	inst, err := New(NewClient("http://127.0.0.1:1"), p, &scriptedPrompter{}, WithDirs(home, home))
	require.NoError(t, err)

	skills := inst.Installed()
	assert.Empty(t, skills)
	inst.PrintInstalled(skills)
	assert.Contains(t, out.String(), "No skills installed.")
}
