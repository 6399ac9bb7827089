// Package upload turns an arbitrary uploaded file tree into validated
// marketplace items and persists them.
//
// The pipeline has three strictly ordered stages. DetectStructure classifies
// the files, Validate checks every item of a batch without touching any
// external system, and Orchestrator.Upload commits all validated files to the
// file store in one commit before writing any index rows.
package upload

import (
	"path"
	"strings"

	"github.com/emergent/skillsmarket/pkg/catalog"
	"github.com/emergent/skillsmarket/pkg/frontmatter"
)

// File is one uploaded file. Content is base64 encoded on the wire.
type File struct {
	Path    string `json:"path"`
	Content []byte `json:"content"`
}

// GroupedItem is one skill, agent or rule extracted from a batch upload.
// Description and Category are optional caller-supplied overrides.
type GroupedItem struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Category    string             `json:"category,omitempty"`
	Files       []File             `json:"files"`
	Frontmatter frontmatter.Parsed `json:"frontmatter"`
}

// Structure is the result of classifying an upload. It is either a
// SingleBundle or a Batch; callers switch on the concrete type.
type Structure interface {
	structure()
}

// SingleBundle is an upload that holds exactly one skill.
type SingleBundle struct {
	Files []File
}

// Batch is an upload organised into skills/, agents/ and rules/ folders.
type Batch struct {
	Skills []GroupedItem `json:"skills"`
	Agents []GroupedItem `json:"agents"`
	Rules  []GroupedItem `json:"rules"`
}

func (SingleBundle) structure() {}
func (Batch) structure()        {}

// Items returns the items of the given kind.
func (b Batch) Items(kind catalog.Kind) []GroupedItem {
	switch kind {
	case catalog.KindSkill:
		return b.Skills
	case catalog.KindAgent:
		return b.Agents
	case catalog.KindRule:
		return b.Rules
	}
	return nil
}

// Len is the number of items across all kinds.
func (b Batch) Len() int {
	return len(b.Skills) + len(b.Agents) + len(b.Rules)
}

func isReservedDir(segment string) bool {
	for _, kind := range catalog.Kinds {
		if segment == kind.Dir() {
			return true
		}
	}
	return false
}

// DetectStructure classifies files as a SingleBundle or a Batch. It is a
// pure function of its input.
func DetectStructure(files []File) Structure {
	stripped := StripRoot(files)

	if !hasBatchPrefix(stripped) {
		return SingleBundle{Files: stripped}
	}

	return Batch{
		Skills: groupSkills(stripped),
		Agents: groupFlat(catalog.KindAgent, stripped),
		Rules:  groupFlat(catalog.KindRule, stripped),
	}
}

// StripRoot removes wrapping folders shared by every file. It repeats until
// the files no longer share a root, never strips a reserved skills/, agents/
// or rules/ folder and leaves single-file uploads untouched, so applying it
// twice gives the same result as applying it once.
func StripRoot(files []File) []File {
	if len(files) < 2 {
		return files
	}

	for {
		root, ok := sharedRoot(files)
		if !ok || isReservedDir(root) {
			return files
		}

		prefix := root + "/"
		next := make([]File, len(files))
		for i, f := range files {
			next[i] = File{Path: strings.TrimPrefix(f.Path, prefix), Content: f.Content}
		}
		files = next
	}
}

// sharedRoot returns the first path segment when every file lives strictly
// below the same folder.
func sharedRoot(files []File) (string, bool) {
	var root string
	for i, f := range files {
		idx := strings.IndexByte(f.Path, '/')
		if idx <= 0 || idx == len(f.Path)-1 {
			return "", false
		}
		segment := f.Path[:idx]
		if i == 0 {
			root = segment
		} else if segment != root {
			return "", false
		}
	}
	return root, root != ""
}

func hasBatchPrefix(files []File) bool {
	for _, f := range files {
		for _, kind := range catalog.Kinds {
			if strings.HasPrefix(f.Path, kind.Dir()+"/") {
				return true
			}
		}
	}
	return false
}

// groupFlat turns each .md file sitting directly under agents/ or rules/
// into one item.
func groupFlat(kind catalog.Kind, files []File) []GroupedItem {
	prefix := kind.Dir() + "/"
	items := []GroupedItem{}

	for _, f := range files {
		if !strings.HasPrefix(f.Path, prefix) {
			continue
		}
		rest := f.Path[len(prefix):]
		if strings.Contains(rest, "/") || !isMarkdown(rest) {
			continue
		}

		items = append(items, GroupedItem{
			Name:        rest[:len(rest)-len(path.Ext(rest))],
			Files:       []File{{Path: rest, Content: f.Content}},
			Frontmatter: frontmatter.Parse(kind, f.Content),
		})
	}
	return items
}

// groupSkills turns each immediate subfolder of skills/ into one item.
// Loose files directly under skills/ are dropped.
func groupSkills(files []File) []GroupedItem {
	prefix := catalog.KindSkill.Dir() + "/"
	var order []string
	groups := map[string][]File{}

	for _, f := range files {
		if !strings.HasPrefix(f.Path, prefix) {
			continue
		}
		rest := f.Path[len(prefix):]
		idx := strings.IndexByte(rest, '/')
		if idx <= 0 || idx == len(rest)-1 {
			continue
		}

		name, rel := rest[:idx], rest[idx+1:]
		if _, seen := groups[name]; !seen {
			order = append(order, name)
		}
		groups[name] = append(groups[name], File{Path: rel, Content: f.Content})
	}

	items := make([]GroupedItem, 0, len(order))
	for _, name := range order {
		items = append(items, GroupedItem{
			Name:        name,
			Files:       groups[name],
			Frontmatter: skillFrontmatter(groups[name]),
		})
	}
	return items
}

func skillFrontmatter(files []File) frontmatter.Parsed {
	manifest, ok := findManifest(catalog.KindSkill, files)
	if !ok {
		return frontmatter.Parsed{Errors: []string{"Missing SKILL.md file"}}
	}
	return frontmatter.Parse(catalog.KindSkill, manifest.Content)
}

// findManifest locates the manifest of an item: SKILL.md for skills and the
// first markdown file for agents and rules.
func findManifest(kind catalog.Kind, files []File) (File, bool) {
	for _, f := range files {
		if kind == catalog.KindSkill {
			if f.Path == catalog.KindSkill.ManifestLabel() {
				return f, true
			}
			continue
		}
		if isMarkdown(f.Path) {
			return f, true
		}
	}
	return File{}, false
}

func isMarkdown(name string) bool {
	return strings.EqualFold(path.Ext(name), ".md")
}
