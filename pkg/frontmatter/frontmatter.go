// Package frontmatter parses the YAML metadata block at the top of skill,
// agent and rule manifests and validates the fields each kind requires.
//
// Parsing is pure: the same input always yields the same Parsed value, and
// every field problem is reported at once instead of stopping at the first.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/emergent/skillsmarket/pkg/catalog"
)

const delimiter = "---"

// Parsed is the outcome of parsing one manifest. When Valid is false, Errors
// lists every problem found and the other fields hold whatever could be read.
type Parsed struct {
	Valid       bool     `json:"valid"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Errors      []string `json:"errors,omitempty"`

	// Agent fields.
	Model string   `json:"model,omitempty"`
	Color string   `json:"color,omitempty"`
	Tools []string `json:"tools,omitempty"`

	// Rule fields.
	Paths []string `json:"paths,omitempty"`

	Body string `json:"-"`
}

// Error is returned by ParseManifest when a manifest is rejected.
type Error struct {
	Kind   catalog.Kind
	Issues []string
	msg    string
}

func (e *Error) Error() string { return e.msg }

// FieldIssue is a single field-level validation problem.
type FieldIssue struct {
	Field   string
	Message string
}

func (f FieldIssue) Error() string {
	return f.Field + ": " + f.Message
}

var md = goldmark.New(goldmark.WithExtensions(meta.Meta))

// Parse decodes content as a manifest of the given kind.
func Parse(kind catalog.Kind, content []byte) Parsed {
	parsed, err := ParseManifest(kind, content)
	if err != nil {
		var fe *Error
		if errors.As(err, &fe) {
			parsed.Errors = fe.Issues
		} else {
			parsed.Errors = []string{err.Error()}
		}
		parsed.Valid = false
	}
	return parsed
}

// ParseManifest decodes content as a manifest of the given kind and returns
// an *Error describing every problem when it is not acceptable.
func ParseManifest(kind catalog.Kind, content []byte) (Parsed, error) {
	label := kind.ManifestLabel()
	source := bytes.TrimLeft(content, "\uFEFF \t\r\n")

	if !bytes.HasPrefix(source, []byte(delimiter)) {
		msg := fmt.Sprintf("%s is missing YAML frontmatter (must start with ---)", label)
		return Parsed{}, &Error{Kind: kind, Issues: []string{msg}, msg: msg}
	}

	fields, err := extract(source)
	if err != nil {
		msg := fmt.Sprintf("%s frontmatter is not valid YAML: %s", label, err)
		return Parsed{}, &Error{Kind: kind, Issues: []string{msg}, msg: msg}
	}

	parsed := Parsed{Body: extractBody(source)}
	var merr *multierror.Error

	parsed.Name, err = requiredString(fields, "name")
	merr = multierror.Append(merr, err)
	parsed.Description, err = requiredString(fields, "description")
	merr = multierror.Append(merr, err)

	switch kind {
	case catalog.KindAgent:
		parsed.Model, err = optionalString(fields, "model")
		merr = multierror.Append(merr, err)
		parsed.Color, err = optionalString(fields, "color")
		merr = multierror.Append(merr, err)
		parsed.Tools, err = stringList(fields, "tools")
		merr = multierror.Append(merr, err)
	case catalog.KindRule:
		parsed.Paths, err = stringList(fields, "paths")
		merr = multierror.Append(merr, err)
		merr = multierror.Append(merr, validateGlobs(parsed.Paths))
	}

	if err := merr.ErrorOrNil(); err != nil {
		issues := make([]string, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			issues = append(issues, e.Error())
		}
		merr.ErrorFormat = func([]error) string {
			return fmt.Sprintf("%s frontmatter validation failed: %s", label, strings.Join(issues, ", "))
		}
		return parsed, &Error{Kind: kind, Issues: issues, msg: merr.Error()}
	}

	parsed.Valid = true
	return parsed, nil
}

func extract(source []byte) (map[string]interface{}, error) {
	pctx := parser.NewContext()
	md.Parser().Parse(text.NewReader(source), parser.WithContext(pctx))

	fields, err := meta.TryGet(pctx)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return fields, nil
}

// extractBody returns the markdown following the closing delimiter.
func extractBody(source []byte) string {
	lines := strings.Split(string(source), "\n")
	for i := 1; i < len(lines); i++ {
		if isDelimiter(lines[i]) {
			return strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		}
	}
	return ""
}

func isDelimiter(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && strings.Trim(trimmed, "-") == ""
}

func requiredString(fields map[string]interface{}, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return "", FieldIssue{Field: key, Message: "Required"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", FieldIssue{Field: key, Message: fmt.Sprintf("Expected string, received %s", typeName(raw))}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", FieldIssue{Field: key, Message: "String must contain at least 1 character(s)"}
	}
	return s, nil
}

func optionalString(fields map[string]interface{}, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", FieldIssue{Field: key, Message: fmt.Sprintf("Expected string, received %s", typeName(raw))}
	}
	return strings.TrimSpace(s), nil
}

// stringList accepts either a YAML sequence of strings or a single
// comma-separated string.
func stringList(fields map[string]interface{}, key string) ([]string, error) {
	switch v := fields[key].(type) {
	case nil:
		return nil, nil
	case string:
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result, nil
	case []interface{}:
		result := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, FieldIssue{
					Field:   fmt.Sprintf("%s.%d", key, i),
					Message: fmt.Sprintf("Expected string, received %s", typeName(item)),
				}
			}
			result = append(result, strings.TrimSpace(s))
		}
		return result, nil
	default:
		return nil, FieldIssue{Field: key, Message: fmt.Sprintf("Expected array, received %s", typeName(v))}
	}
}

func validateGlobs(patterns []string) error {
	var merr *multierror.Error
	for i, pattern := range patterns {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			merr = multierror.Append(merr, FieldIssue{
				Field:   fmt.Sprintf("paths.%d", i),
				Message: fmt.Sprintf("Invalid glob %q", pattern),
			})
		}
	}
	return merr.ErrorOrNil()
}

func typeName(v interface{}) string {
	switch v.(type) {
	case bool:
		return "boolean"
	case int, int64, uint64, float64:
		return "number"
	case []interface{}:
		return "array"
	case map[interface{}]interface{}, map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
