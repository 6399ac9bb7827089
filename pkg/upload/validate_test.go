package upload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent/skillsmarket/pkg/catalog"
)

func skillItem(name, manifest string, extra ...File) GroupedItem {
	fs := []File{{Path: "SKILL.md", Content: []byte(manifest)}}
	return GroupedItem{Name: name, Files: append(fs, extra...)}
}

func flatItem(name, manifest string) GroupedItem {
	return GroupedItem{Name: name, Files: []File{{Path: name + ".md", Content: []byte(manifest)}}}
}

func TestValidate_Success(t *testing.T) {
	batch := Batch{
		Skills: []GroupedItem{skillItem("My Cool Skill!!", skillManifest, File{Path: "ref.txt", Content: []byte("r")})},
		Agents: []GroupedItem{flatItem("reviewer", "---\nname: reviewer\ndescription: Reviews code\nmodel: opus\ntools: Read, Grep\n---\n")},
		Rules:  []GroupedItem{flatItem("go-style", "---\nname: go-style\ndescription: Go style\npaths:\n  - \"**/*.go\"\n---\n")},
	}

	items, err := Validate(batch)
	require.NoError(t, err)
	require.Len(t, items, 3)

	skill := items[0]
	assert.Equal(t, catalog.KindSkill, skill.Kind)
	assert.Equal(t, "My Cool Skill!!", skill.DeclaredName)
	assert.Equal(t, "my-cool-skill", skill.Name)
	assert.Equal(t, "skills/global/my-cool-skill", skill.StoragePath)
	assert.Equal(t, "bar", skill.Description)
	assert.Equal(t, catalog.DefaultCategory, skill.Category)
	assert.Len(t, skill.Files, 2)

	agent := items[1]
	assert.Equal(t, "agents/global/reviewer", agent.StoragePath)
	assert.Equal(t, "opus", agent.Manifest.Model)
	assert.Equal(t, []string{"Read", "Grep"}, agent.Manifest.Tools)
	assert.Empty(t, agent.Category)

	rule := items[2]
	assert.Equal(t, "rules/global/go-style", rule.StoragePath)
	assert.Equal(t, []string{"**/*.go"}, rule.Manifest.Paths)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name  string
		batch Batch
		want  string
	}{
		{
			name:  "empty batch",
			batch: Batch{},
			want:  "at least one skill, agent, or rule must be provided",
		},
		{
			name:  "skill without manifest",
			batch: Batch{Skills: []GroupedItem{{Name: "foo", Files: []File{{Path: "readme.txt", Content: []byte("x")}}}}},
			want:  `Skill "foo" (index 0) is missing a SKILL.md file`,
		},
		{
			name:  "agent without markdown",
			batch: Batch{Agents: []GroupedItem{{Name: "bar", Files: []File{{Path: "bar.txt", Content: []byte("x")}}}}},
			want:  `Agent "bar" (index 0) is missing a .md file`,
		},
		{
			name: "agent missing description",
			batch: Batch{
				Skills: []GroupedItem{skillItem("foo", skillManifest)},
				Agents: []GroupedItem{flatItem("bar", "---\nname: bar\n---\n")},
			},
			want: `Agent "bar" (index 0): AGENT.md frontmatter validation failed: description: Required`,
		},
		{
			name:  "rule without frontmatter",
			batch: Batch{Rules: []GroupedItem{flatItem("style", "# Style")}},
			want:  `Rule "style" (index 0): RULE.md is missing YAML frontmatter (must start with ---)`,
		},
		{
			name:  "second skill invalid",
			batch: Batch{Skills: []GroupedItem{skillItem("a", skillManifest), skillItem("b", "---\nname: b\n---\n")}},
			want:  `Skill "b" (index 1): SKILL.md frontmatter validation failed: description: Required`,
		},
		{
			name:  "name without letters",
			batch: Batch{Skills: []GroupedItem{skillItem("!!!", skillManifest)}},
			want:  `Skill "!!!" (index 0): name must contain at least one letter or digit`,
		},
		{
			name:  "duplicate storage name",
			batch: Batch{Skills: []GroupedItem{skillItem("Foo", skillManifest), skillItem("foo", skillManifest)}},
			want:  `Skill "foo" (index 1): another skill in this upload is also named "foo"`,
		},
		{
			name: "unknown category",
			batch: Batch{Skills: []GroupedItem{{
				Name:     "foo",
				Category: "cooking",
				Files:    []File{{Path: "SKILL.md", Content: []byte(skillManifest)}},
			}}},
			want: `Skill "foo" (index 0): unknown category "cooking"`,
		},
		{
			name: "description too long",
			batch: Batch{Skills: []GroupedItem{{
				Name:        "foo",
				Description: strings.Repeat("x", 501),
				Files:       []File{{Path: "SKILL.md", Content: []byte(skillManifest)}},
			}}},
			want: `Skill "foo" (index 0): description must be at most 500 characters`,
		},
		{
			name:  "path traversal",
			batch: Batch{Skills: []GroupedItem{skillItem("foo", skillManifest, File{Path: "../x", Content: nil})}},
			want:  `Skill "foo" (index 0): file path "../x" escapes the upload root`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := Validate(tt.batch)
			require.Error(t, err)
			assert.Nil(t, items)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestValidate_ErrorIdentifiesItem(t *testing.T) {
	batch := Batch{Agents: []GroupedItem{flatItem("ok", "---\nname: ok\ndescription: x\n---\n"), {Name: "bar", Files: []File{{Path: "x.txt"}}}}}

	_, err := Validate(batch)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, catalog.KindAgent, verr.Kind)
	assert.Equal(t, 1, verr.Index)
	assert.Equal(t, "bar", verr.Name)
	assert.True(t, verr.MissingManifest)
}

func TestValidate_IgnoresClientFrontmatter(t *testing.T) {
	item := skillItem("foo", skillManifest)
	item.Frontmatter.Valid = false
	item.Frontmatter.Errors = []string{"stale client-side result"}

	items, err := Validate(Batch{Skills: []GroupedItem{item}})
	require.NoError(t, err)
	assert.True(t, items[0].Manifest.Valid)
}
