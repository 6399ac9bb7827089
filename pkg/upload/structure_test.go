package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func files(paths ...string) []File {
	out := make([]File, len(paths))
	for i, p := range paths {
		out[i] = File{Path: p, Content: []byte("content of " + p)}
	}
	return out
}

func paths(fs []File) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Path
	}
	return out
}

const skillManifest = "---\nname: foo\ndescription: bar\n---\n# Foo\n"

func TestStripRoot(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "shared root is removed",
			input: []string{"my-skill/SKILL.md", "my-skill/scripts/run.sh"},
			want:  []string{"SKILL.md", "scripts/run.sh"},
		},
		{
			name:  "nested wrappers are removed until files diverge",
			input: []string{"export/claude/skills/a/SKILL.md", "export/claude/agents/b.md"},
			want:  []string{"skills/a/SKILL.md", "agents/b.md"},
		},
		{
			name:  "reserved folder is kept",
			input: []string{"skills/a/SKILL.md", "skills/b/SKILL.md"},
			want:  []string{"skills/a/SKILL.md", "skills/b/SKILL.md"},
		},
		{
			name:  "single file is never stripped",
			input: []string{"root/file.txt"},
			want:  []string{"root/file.txt"},
		},
		{
			name:  "top level file blocks stripping",
			input: []string{"SKILL.md", "docs/readme.md"},
			want:  []string{"SKILL.md", "docs/readme.md"},
		},
		{
			name:  "different roots are kept",
			input: []string{"a/SKILL.md", "b/SKILL.md"},
			want:  []string{"a/SKILL.md", "b/SKILL.md"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, paths(StripRoot(files(tt.input...))))
		})
	}
}

func TestStripRoot_Idempotent(t *testing.T) {
	inputs := [][]string{
		{"wrap/inner/SKILL.md", "wrap/inner/a.txt"},
		{"wrap/skills/a/SKILL.md", "wrap/skills/b/SKILL.md"},
		{"root/file.txt"},
		{"x/y", "x/z/w"},
		{"a", "b/c"},
	}

	for _, input := range inputs {
		once := StripRoot(files(input...))
		twice := StripRoot(once)
		assert.Equal(t, paths(once), paths(twice), "input %v", input)
	}
}

func TestStripRoot_DoesNotModifyInput(t *testing.T) {
	input := files("wrap/SKILL.md", "wrap/a.txt")
	StripRoot(input)
	assert.Equal(t, []string{"wrap/SKILL.md", "wrap/a.txt"}, paths(input))
}

func TestDetectStructure_SingleBundle(t *testing.T) {
	input := []File{
		{Path: "foo/SKILL.md", Content: []byte(skillManifest)},
		{Path: "foo/helper.py", Content: []byte("print(1)")},
	}

	got := DetectStructure(input)

	bundle, ok := got.(SingleBundle)
	require.True(t, ok, "expected a single bundle, got %T", got)
	assert.Equal(t, []string{"SKILL.md", "helper.py"}, paths(bundle.Files))
}

func TestDetectStructure_Batch(t *testing.T) {
	input := []File{
		{Path: ".claude/skills/foo/SKILL.md", Content: []byte(skillManifest)},
		{Path: ".claude/skills/foo/scripts/run.sh", Content: []byte("echo")},
		{Path: ".claude/skills/loose.md", Content: []byte("dropped")},
		{Path: ".claude/skills/bar/SKILL.md", Content: []byte(skillManifest)},
		{Path: ".claude/agents/reviewer.md", Content: []byte("---\nname: reviewer\ndescription: x\n---\n")},
		{Path: ".claude/agents/nested/ignored.md", Content: []byte("x")},
		{Path: ".claude/agents/notes.txt", Content: []byte("x")},
		{Path: ".claude/rules/Style.MD", Content: []byte("---\nname: style\ndescription: x\n---\n")},
	}

	got := DetectStructure(input)

	batch, ok := got.(Batch)
	require.True(t, ok, "expected a batch, got %T", got)

	require.Len(t, batch.Skills, 2)
	assert.Equal(t, "foo", batch.Skills[0].Name)
	assert.Equal(t, []string{"SKILL.md", "scripts/run.sh"}, paths(batch.Skills[0].Files))
	assert.True(t, batch.Skills[0].Frontmatter.Valid)
	assert.Equal(t, "bar", batch.Skills[1].Name)

	require.Len(t, batch.Agents, 1)
	assert.Equal(t, "reviewer", batch.Agents[0].Name)
	assert.Equal(t, []string{"reviewer.md"}, paths(batch.Agents[0].Files))
	assert.True(t, batch.Agents[0].Frontmatter.Valid)

	require.Len(t, batch.Rules, 1)
	assert.Equal(t, "Style", batch.Rules[0].Name)
	assert.Equal(t, []string{"Style.MD"}, paths(batch.Rules[0].Files))

	assert.Equal(t, 4, batch.Len())
}

func TestDetectStructure_SkillWithoutManifest(t *testing.T) {
	got := DetectStructure(files("skills/foo/readme.txt", "agents/a.md"))

	batch, ok := got.(Batch)
	require.True(t, ok)
	require.Len(t, batch.Skills, 1)
	assert.False(t, batch.Skills[0].Frontmatter.Valid)
	assert.Equal(t, []string{"Missing SKILL.md file"}, batch.Skills[0].Frontmatter.Errors)
}

func TestDetectStructure_Deterministic(t *testing.T) {
	input := []File{
		{Path: "pack/skills/b/SKILL.md", Content: []byte(skillManifest)},
		{Path: "pack/skills/a/SKILL.md", Content: []byte(skillManifest)},
		{Path: "pack/rules/r.md", Content: []byte("no frontmatter")},
	}

	first := DetectStructure(input)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, DetectStructure(input))
	}
}
