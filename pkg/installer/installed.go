package installer

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/emergent/skillsmarket/pkg/catalog"
	"github.com/emergent/skillsmarket/pkg/frontmatter"
)

// InstalledSkill is a skill directory found under a provider's skills
// directory.
type InstalledSkill struct {
	Name        string
	Description string
	Provider    Provider
	Scope       catalog.Scope
	Directory   string
	// Problems lists frontmatter issues of the SKILL.md file.
	Problems []string
}

// Installed lists the skills present for every provider, project scope
// first. Directories without a SKILL.md are ignored.
func (i *Installer) Installed() []InstalledSkill {
	bases := []struct {
		scope catalog.Scope
		dir   string
	}{
		{catalog.ScopeProject, ResolveProjectRoot(i.cwd, i.home)},
		{catalog.ScopeGlobal, i.home},
	}

	var found []InstalledSkill
	for _, base := range bases {
		if base.scope == catalog.ScopeProject && base.dir == i.home {
			continue
		}
		for _, p := range providers {
			found = append(found, discover(p, base.scope, p.Dir(base.dir, ""))...)
		}
	}
	return found
}

func discover(p Provider, scope catalog.Scope, dir string) []InstalledSkill {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var skills []InstalledSkill
	for _, entry := range entries {
		skillDir := filepath.Join(dir, entry.Name())
		if info, err := os.Stat(skillDir); err != nil || !info.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(skillDir, catalog.KindSkill.ManifestLabel()))
		if err != nil {
			continue
		}

		parsed := frontmatter.Parse(catalog.KindSkill, content)
		name := parsed.Name
		if name == "" {
			name = entry.Name()
		}
		skills = append(skills, InstalledSkill{
			Name:        name,
			Description: parsed.Description,
			Provider:    p,
			Scope:       scope,
			Directory:   skillDir,
			Problems:    parsed.Errors,
		})
	}
	sort.Slice(skills, func(a, b int) bool { return skills[a].Name < skills[b].Name })
	return skills
}

// PrintInstalled writes the installed skills as a table.
func (i *Installer) PrintInstalled(skills []InstalledSkill) {
	if len(skills) == 0 {
		i.presenter.Info("No skills installed.")
		return
	}
	rows := make([][]string, 0, len(skills))
	for _, s := range skills {
		status := "ok"
		if len(s.Problems) > 0 {
			status = s.Problems[0]
		}
		rows = append(rows, []string{s.Name, string(s.Scope), s.Provider.Name, s.Directory, status})
	}
	i.presenter.Table([]string{"NAME", "SCOPE", "PROVIDER", "DIRECTORY", "STATUS"}, rows)
}
