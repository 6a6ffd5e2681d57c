package types

type (
	// ParsedNote represents a parsed markdown note with frontmatter.
	ParsedNote struct {
		Frontmatter     map[string]any `json:"frontmatter"`
		Content         string         `json:"content"`
		OriginalContent string         `json:"originalContent"`
	}

	// FrontmatterValidationResult contains the result of frontmatter validation.
	FrontmatterValidationResult struct {
		IsValid  bool     `json:"isValid"`
		Errors   []string `json:"errors"`
		Warnings []string `json:"warnings"`
	}
)
