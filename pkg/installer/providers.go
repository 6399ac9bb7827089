package installer

import (
	"path"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/catalog"
)

// Provider describes where one coding assistant keeps its skills.
type Provider struct {
	Target catalog.Target
	Name   string
	// segments below the home directory or project root
	segments []string
}

var providers = []Provider{
	{Target: catalog.TargetClaude, Name: "Claude Code", segments: []string{".claude"}},
	{Target: catalog.TargetCopilot, Name: "GitHub Copilot", segments: []string{".copilot", "skills"}},
}

// Providers returns every known provider in display order.
func Providers() []Provider {
	out := make([]Provider, len(providers))
	copy(out, providers)
	return out
}

// ProviderFor looks up the provider for target.
func ProviderFor(target catalog.Target) (Provider, error) {
	for _, p := range providers {
		if p.Target == target {
			return p, nil
		}
	}
	return Provider{}, errors.Errorf("no provider registered for target: %s", target)
}

// Dir returns the absolute directory the skill is installed into. base is
// the home directory for the global scope and the project root otherwise.
func (p Provider) Dir(base, skillName string) string {
	parts := append([]string{base}, p.segments...)
	return filepath.Join(append(parts, skillName)...)
}

// DisplayPath is the short form of Dir shown to the user.
func (p Provider) DisplayPath(scope catalog.Scope, skillName string) string {
	rel := path.Join(append(append([]string{}, p.segments...), skillName)...)
	if scope == catalog.ScopeGlobal {
		return "~/" + rel
	}
	return rel
}
