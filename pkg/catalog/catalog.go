// Package catalog defines the marketplace vocabulary shared by the service,
// the upload pipeline and the installer: item kinds, scopes, install targets,
// categories, the persisted record types, and the naming rules that turn
// user-supplied names into storage identifiers.
package catalog

import (
	"path"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Kind is the type of a marketplace item.
type Kind string

const (
	KindSkill Kind = "skill"
	KindAgent Kind = "agent"
	KindRule  Kind = "rule"
)

// Kinds lists every kind in upload order.
var Kinds = []Kind{KindSkill, KindAgent, KindRule}

// Dir is the top-level folder for the kind, both in batch uploads and in the
// file store.
func (k Kind) Dir() string {
	return string(k) + "s"
}

// ManifestLabel names the manifest in user-facing messages.
func (k Kind) ManifestLabel() string {
	return strings.ToUpper(string(k)) + ".md"
}

// Title is the capitalized kind, e.g. "Skill".
func (k Kind) Title() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Scope selects where a skill is visible or installed.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeProject Scope = "project"
)

// Scopes lists every scope.
var Scopes = []Scope{ScopeGlobal, ScopeProject}

// ParseScope validates s.
func ParseScope(s string) (Scope, error) {
	for _, scope := range Scopes {
		if string(scope) == s {
			return scope, nil
		}
	}
	return "", errors.Errorf("invalid scope %q (expected global or project)", s)
}

// Target is an install target on the developer machine.
type Target string

const (
	TargetClaude  Target = "claude"
	TargetCopilot Target = "copilot"
)

// Targets lists every install target.
var Targets = []Target{TargetClaude, TargetCopilot}

// ParseTarget validates s.
func ParseTarget(s string) (Target, error) {
	for _, target := range Targets {
		if string(target) == s {
			return target, nil
		}
	}
	return "", errors.Errorf("invalid provider %q (expected claude or copilot)", s)
}

// Categories a skill may be filed under.
var Categories = []string{
	"devops",
	"dotnet",
	"general",
	"react",
	"react-native",
	"security",
	"sql",
	"testing",
	"typescript",
}

// DefaultCategory is used when an upload does not name one.
const DefaultCategory = "general"

// IsCategory reports whether c is a known category.
func IsCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}

// DefaultVersion is assigned to new skills.
const DefaultVersion = "1.0.0"

// MaxNameLength bounds item names.
const MaxNameLength = 100

var (
	namePattern    = regexp.MustCompile(`^[a-z0-9-]+$`)
	nonNameRunes   = regexp.MustCompile(`[^a-z0-9]+`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// SanitizeName lowercases s, collapses every run of characters outside
// [a-z0-9] into one hyphen and trims hyphens from both ends.
func SanitizeName(s string) string {
	name := nonNameRunes.ReplaceAllString(strings.ToLower(s), "-")
	name = strings.Trim(name, "-")
	if len(name) > MaxNameLength {
		name = strings.TrimRight(name[:MaxNameLength], "-")
	}
	return name
}

// ValidateName checks that name is already in canonical form.
func ValidateName(name string) error {
	switch {
	case name == "":
		return errors.New("name is required")
	case len(name) > MaxNameLength:
		return errors.Errorf("name must be at most %d characters", MaxNameLength)
	case !namePattern.MatchString(name):
		return errors.New("name must be lowercase alphanumeric with hyphens")
	}
	return nil
}

// ProjectSlug derives the storage folder for a project from its display name.
func ProjectSlug(projectName string) string {
	return whitespaceRuns.ReplaceAllString(strings.ToLower(projectName), "-")
}

// GlobalPath is the storage path of a global item, e.g. skills/global/foo.
func GlobalPath(kind Kind, name string) string {
	return path.Join(kind.Dir(), string(ScopeGlobal), name)
}

// ProjectPath is the storage path of a project skill,
// e.g. skills/projects/acme-portal/foo.
func ProjectPath(projectName, name string) string {
	return path.Join(KindSkill.Dir(), "projects", ProjectSlug(projectName), name)
}
