package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent/skillsmarket/pkg/catalog"
)

func TestParseManifest_Skill(t *testing.T) {
	content := `---
name: code-review
description: Reviews pull requests
---

# Code Review

Follow the checklist.
`

	parsed, err := ParseManifest(catalog.KindSkill, []byte(content))
	require.NoError(t, err)

	assert.True(t, parsed.Valid)
	assert.Equal(t, "code-review", parsed.Name)
	assert.Equal(t, "Reviews pull requests", parsed.Description)
	assert.Equal(t, "# Code Review\n\nFollow the checklist.", parsed.Body)
	assert.Empty(t, parsed.Errors)
}

func TestParseManifest_LeadingWhitespace(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "blank lines and spaces", content: "\n\n  ---\nname: foo\ndescription: bar\n---\n"},
		{name: "byte order mark", content: "\uFEFF---\nname: foo\ndescription: bar\n---\n"},
		{name: "byte order mark then newline", content: "\xEF\xBB\xBF\r\n---\nname: foo\ndescription: bar\n---\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseManifest(catalog.KindSkill, []byte(tt.content))
			require.NoError(t, err)
			assert.Equal(t, "foo", parsed.Name)
			assert.Equal(t, "bar", parsed.Description)
		})
	}
}

func TestParseManifest_MissingDelimiter(t *testing.T) {
	tests := []struct {
		kind catalog.Kind
		want string
	}{
		{kind: catalog.KindSkill, want: "SKILL.md is missing YAML frontmatter (must start with ---)"},
		{kind: catalog.KindAgent, want: "AGENT.md is missing YAML frontmatter (must start with ---)"},
		{kind: catalog.KindRule, want: "RULE.md is missing YAML frontmatter (must start with ---)"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			_, err := ParseManifest(tt.kind, []byte("# Just markdown\nname: foo\n"))
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestParseManifest_ReportsAllFieldIssues(t *testing.T) {
	_, err := ParseManifest(catalog.KindSkill, []byte("---\ntitle: nothing useful\n---\nbody\n"))
	require.Error(t, err)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, []string{"name: Required", "description: Required"}, fe.Issues)
	assert.Equal(t, "SKILL.md frontmatter validation failed: name: Required, description: Required", err.Error())
}

func TestParseManifest_FieldTypes(t *testing.T) {
	tests := []struct {
		name    string
		kind    catalog.Kind
		content string
		issues  []string
	}{
		{
			name:    "whitespace-only description",
			kind:    catalog.KindSkill,
			content: "---\nname: foo\ndescription: \"  \"\n---\n",
			issues:  []string{"description: String must contain at least 1 character(s)"},
		},
		{
			name:    "whitespace-only name",
			kind:    catalog.KindAgent,
			content: "---\nname: \"\\t \"\ndescription: bar\n---\n",
			issues:  []string{"name: String must contain at least 1 character(s)"},
		},
		{
			name:    "numeric name",
			kind:    catalog.KindSkill,
			content: "---\nname: 42\ndescription: bar\n---\n",
			issues:  []string{"name: Expected string, received number"},
		},
		{
			name:    "agent model must be a string",
			kind:    catalog.KindAgent,
			content: "---\nname: foo\ndescription: bar\nmodel: [a, b]\n---\n",
			issues:  []string{"model: Expected string, received array"},
		},
		{
			name:    "agent tools must hold strings",
			kind:    catalog.KindAgent,
			content: "---\nname: foo\ndescription: bar\ntools: [Read, 3]\n---\n",
			issues:  []string{"tools.1: Expected string, received number"},
		},
		{
			name:    "rule paths must be valid globs",
			kind:    catalog.KindRule,
			content: "---\nname: foo\ndescription: bar\npaths: \"src/**/*.go, [z-a].ts\"\n---\n",
			issues:  []string{"paths.1: Invalid glob \"[z-a].ts\""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := Parse(tt.kind, []byte(tt.content))
			assert.False(t, parsed.Valid)
			assert.Equal(t, tt.issues, parsed.Errors)
		})
	}
}

func TestParseManifest_AgentFields(t *testing.T) {
	tests := []struct {
		name  string
		tools string
		want  []string
	}{
		{name: "yaml list", tools: "tools:\n  - Read\n  - Grep\n", want: []string{"Read", "Grep"}},
		{name: "comma separated", tools: "tools: Read, Grep , ,Bash\n", want: []string{"Read", "Grep", "Bash"}},
		{name: "absent", tools: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "---\nname: reviewer\ndescription: Reviews code\nmodel: sonnet\ncolor: blue\n" + tt.tools + "---\nYou review code.\n"

			parsed, err := ParseManifest(catalog.KindAgent, []byte(content))
			require.NoError(t, err)
			assert.Equal(t, "sonnet", parsed.Model)
			assert.Equal(t, "blue", parsed.Color)
			assert.Equal(t, tt.want, parsed.Tools)
			assert.Equal(t, "You review code.", parsed.Body)
		})
	}
}

func TestParseManifest_RulePaths(t *testing.T) {
	content := "---\nname: go-style\ndescription: Go conventions\npaths:\n  - \"**/*.go\"\n  - go.mod\n---\n"

	parsed, err := ParseManifest(catalog.KindRule, []byte(content))
	require.NoError(t, err)
	assert.Equal(t, []string{"**/*.go", "go.mod"}, parsed.Paths)
}

func TestParse_InvalidYAML(t *testing.T) {
	parsed := Parse(catalog.KindSkill, []byte("---\nname: [unclosed\n---\n"))

	assert.False(t, parsed.Valid)
	require.Len(t, parsed.Errors, 1)
	assert.Contains(t, parsed.Errors[0], "SKILL.md frontmatter is not valid YAML")
}

func TestParse_Deterministic(t *testing.T) {
	content := []byte("---\nname: foo\n---\n")

	first := Parse(catalog.KindAgent, content)
	second := Parse(catalog.KindAgent, content)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"description: Required"}, first.Errors)
	assert.Equal(t, "foo", first.Name)
}
