package upload

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/catalog"
	"github.com/emergent/skillsmarket/pkg/frontmatter"
)

// ValidatedItem is an item that passed validation. The orchestrator only
// reads it.
type ValidatedItem struct {
	Kind         catalog.Kind
	DeclaredName string
	Name         string
	Description  string
	Category     string
	StoragePath  string
	Files        []File
	Manifest     frontmatter.Parsed
}

// ValidationError identifies the item that stopped a batch.
type ValidationError struct {
	Kind   catalog.Kind
	Index  int
	Name   string
	Reason string
	// MissingManifest is set when the item had no manifest file at all.
	MissingManifest bool
}

func (e *ValidationError) Error() string {
	if e.MissingManifest {
		manifest := "a .md file"
		if e.Kind == catalog.KindSkill {
			manifest = "a " + catalog.KindSkill.ManifestLabel() + " file"
		}
		return fmt.Sprintf("%s %q (index %d) is missing %s", e.Kind.Title(), e.Name, e.Index, manifest)
	}
	return fmt.Sprintf("%s %q (index %d): %s", e.Kind.Title(), e.Name, e.Index, e.Reason)
}

// ErrEmptyBatch is returned for a batch without any item.
var ErrEmptyBatch = errors.New("at least one skill, agent, or rule must be provided")

// Validate checks every item of the batch, in kind order and then item
// order, and stops at the first failure. It has no side effects.
func Validate(batch Batch) ([]ValidatedItem, error) {
	if batch.Len() == 0 {
		return nil, ErrEmptyBatch
	}

	validated := make([]ValidatedItem, 0, batch.Len())
	seen := map[string]bool{}

	for _, kind := range catalog.Kinds {
		for i, item := range batch.Items(kind) {
			v, err := ValidateItem(kind, i, item)
			if err != nil {
				return nil, err
			}
			if seen[v.StoragePath] {
				return nil, &ValidationError{
					Kind:   kind,
					Index:  i,
					Name:   item.Name,
					Reason: fmt.Sprintf("another %s in this upload is also named %q", kind, v.Name),
				}
			}
			seen[v.StoragePath] = true
			validated = append(validated, v)
		}
	}
	return validated, nil
}

// ValidateItem checks a single item and derives its storage path.
func ValidateItem(kind catalog.Kind, index int, item GroupedItem) (ValidatedItem, error) {
	fail := func(reason string) (ValidatedItem, error) {
		return ValidatedItem{}, &ValidationError{Kind: kind, Index: index, Name: item.Name, Reason: reason}
	}

	if len(item.Files) == 0 {
		return fail("no files were provided")
	}

	files, err := Clean(item.Files)
	if err != nil {
		return fail(err.Error())
	}

	manifest, ok := findManifest(kind, files)
	if !ok {
		return ValidatedItem{}, &ValidationError{Kind: kind, Index: index, Name: item.Name, MissingManifest: true}
	}

	parsed, err := frontmatter.ParseManifest(kind, manifest.Content)
	if err != nil {
		return fail(err.Error())
	}

	name := catalog.SanitizeName(item.Name)
	if name == "" {
		return fail("name must contain at least one letter or digit")
	}

	description := item.Description
	if description == "" {
		description = parsed.Description
	}
	if len(description) > 500 {
		return fail("description must be at most 500 characters")
	}

	category := ""
	if kind == catalog.KindSkill {
		category = item.Category
		if category == "" {
			category = catalog.DefaultCategory
		}
		if !catalog.IsCategory(category) {
			return fail(fmt.Sprintf("unknown category %q", category))
		}
	}

	return ValidatedItem{
		Kind:         kind,
		DeclaredName: item.Name,
		Name:         name,
		Description:  description,
		Category:     category,
		StoragePath:  catalog.GlobalPath(kind, name),
		Files:        files,
		Manifest:     parsed,
	}, nil
}
