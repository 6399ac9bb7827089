package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "My Cool Skill!!", want: "my-cool-skill"},
		{input: "already-clean", want: "already-clean"},
		{input: "  --Leading and trailing--  ", want: "leading-and-trailing"},
		{input: "snake_case_name", want: "snake-case-name"},
		{input: "React Native 2.0", want: "react-native-2-0"},
		{input: "!!!", want: ""},
		{input: "Ünïcode Name", want: "n-code-name"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := SanitizeName(tt.input)
			assert.Equal(t, tt.want, got)
			if got != "" {
				assert.NoError(t, ValidateName(got))
			}
		})
	}
}

func TestSanitizeName_Truncates(t *testing.T) {
	long := strings.Repeat("a", 99) + " b"

	got := SanitizeName(long)

	assert.LessOrEqual(t, len(got), MaxNameLength)
	assert.False(t, strings.HasSuffix(got, "-"))
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr string
	}{
		{name: "code-review"},
		{name: "", wantErr: "required"},
		{name: "Code-Review", wantErr: "lowercase"},
		{name: "code review", wantErr: "lowercase"},
		{name: strings.Repeat("x", 101), wantErr: "at most 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.name)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStoragePaths(t *testing.T) {
	assert.Equal(t, "skills/global/foo", GlobalPath(KindSkill, "foo"))
	assert.Equal(t, "agents/global/bar", GlobalPath(KindAgent, "bar"))
	assert.Equal(t, "rules/global/baz", GlobalPath(KindRule, "baz"))
	assert.Equal(t, "skills/projects/acme-web-portal/foo", ProjectPath("Acme  Web\tPortal", "foo"))
}

func TestKindLabels(t *testing.T) {
	assert.Equal(t, "SKILL.md", KindSkill.ManifestLabel())
	assert.Equal(t, "AGENT.md", KindAgent.ManifestLabel())
	assert.Equal(t, "Rule", KindRule.Title())
	assert.Equal(t, "agents", KindAgent.Dir())
}

func TestParseScopeAndTarget(t *testing.T) {
	scope, err := ParseScope("project")
	require.NoError(t, err)
	assert.Equal(t, ScopeProject, scope)

	_, err = ParseScope("team")
	assert.Error(t, err)

	target, err := ParseTarget("copilot")
	require.NoError(t, err)
	assert.Equal(t, TargetCopilot, target)

	_, err = ParseTarget("cursor")
	assert.Error(t, err)
}

func TestIsCategory(t *testing.T) {
	assert.True(t, IsCategory("react-native"))
	assert.False(t, IsCategory("cobol"))
}

func TestStringList(t *testing.T) {
	var list StringList
	require.NoError(t, list.Scan(`["Read","Grep"]`))
	assert.Equal(t, StringList{"Read", "Grep"}, list)

	require.NoError(t, list.Scan([]byte(`["Write"]`)))
	assert.Equal(t, StringList{"Write"}, list)

	require.NoError(t, list.Scan(nil))
	assert.Nil(t, list)

	assert.Error(t, list.Scan(42))

	v, err := StringList{"src/**/*.go"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["src/**/*.go"]`, v)

	v, err = StringList(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
