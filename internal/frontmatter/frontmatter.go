// Package frontmatter handles YAML frontmatter parsing, stringification and
// the event wire-schema codec.
package frontmatter

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/taigrr/vaultcal/internal/types"
	"gopkg.in/yaml.v3"
)

// Handler handles frontmatter parsing and validation.
type Handler struct{}

// New creates a new frontmatter Handler.
func New() *Handler {
	return &Handler{}
}

// Parse parses a note's content and extracts frontmatter.
func (h *Handler) Parse(content string) types.ParsedNote {
	result := types.ParsedNote{
		Frontmatter:     make(map[string]any),
		Content:         content,
		OriginalContent: content,
	}

	if !strings.HasPrefix(content, "---\n") {
		return result
	}

	// Find the closing delimiter
	endIndex := strings.Index(content[4:], "\n---\n")
	if endIndex == -1 {
		// Try finding --- at the very end
		if strings.HasSuffix(content, "\n---") {
			endIndex = len(content) - 4 - 4
		} else {
			return result
		}
	}

	yamlContent := content[4 : endIndex+4]

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &fm); err != nil {
		// If parsing fails, treat as content without frontmatter
		return result
	}

	result.Frontmatter = fm
	if fm == nil {
		result.Frontmatter = make(map[string]any)
	}

	// Content starts after the closing delimiter
	result.Content = content[endIndex+4+5:] // +5 for "\n---\n"

	return result
}

// Stringify converts frontmatter and content back to a note string.
func (h *Handler) Stringify(frontmatter map[string]any, content string) (string, error) {
	if len(frontmatter) == 0 {
		return content, nil
	}

	yamlBytes, err := yaml.Marshal(frontmatter)
	if err != nil {
		return "", fmt.Errorf("failed to stringify frontmatter: %w", err)
	}

	return "---\n" + string(yamlBytes) + "---\n" + content, nil
}

// Validate validates frontmatter data before it is written out.
func (h *Handler) Validate(frontmatter map[string]any) types.FrontmatterValidationResult {
	result := types.FrontmatterValidationResult{
		IsValid:  true,
		Errors:   []string{},
		Warnings: []string{},
	}

	// Check for unserializable values first; yaml.Marshal panics on funcs.
	checkForProblematicValues(frontmatter, &result, "")

	if result.IsValid {
		if _, err := yaml.Marshal(frontmatter); err != nil {
			result.IsValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Invalid YAML structure: %v", err))
		}
	}

	return result
}

func checkForProblematicValues(obj any, result *types.FrontmatterValidationResult, path string) {
	if obj == nil {
		return
	}

	v := reflect.ValueOf(obj)

	switch v.Kind() {
	case reflect.Func:
		result.Errors = append(result.Errors, fmt.Sprintf("Functions are not allowed in frontmatter at path: %s", path))
		result.IsValid = false

	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			checkForProblematicValues(v.Index(i).Interface(), result, fmt.Sprintf("%s[%d]", path, i))
		}

	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			key := iter.Key()

			currentPath := fmt.Sprintf("%v", key.Interface())
			if path != "" {
				currentPath = fmt.Sprintf("%s.%v", path, key.Interface())
			}

			if key.Kind() != reflect.String {
				result.Errors = append(result.Errors, fmt.Sprintf("Non-string keys are not allowed: %v", key.Interface()))
				result.IsValid = false
			}

			checkForProblematicValues(iter.Value().Interface(), result, currentPath)
		}
	}
}
