// Package pathfilter decides which vault paths the engine may scan or write.
package pathfilter

import (
	"regexp"
	"strings"

	"github.com/taigrr/vaultcal/internal/types"
)

// PathFilter filters allowed paths and file types.
type PathFilter struct {
	ignoredPatterns   []string
	allowedExtensions []string
}

// New creates a new PathFilter with the given configuration.
func New(config *types.PathFilterConfig) *PathFilter {
	pf := &PathFilter{
		ignoredPatterns: []string{
			".obsidian/**",
			".git/**",
			".trash/**",
			"node_modules/**",
			".DS_Store",
			"Thumbs.db",
		},
		allowedExtensions: []string{
			".md",
			".markdown",
		},
	}

	if config != nil {
		pf.ignoredPatterns = append(pf.ignoredPatterns, config.IgnoredPatterns...)
		pf.allowedExtensions = append(pf.allowedExtensions, config.AllowedExtensions...)
	}

	return pf
}

// globMatch converts a glob pattern to regex and tests against the path.
func globMatch(pattern, path string) bool {
	normalized := strings.ReplaceAll(pattern, "\\", "/")

	// Escape regex special chars, then unescape the glob operators.
	regexPattern := regexp.QuoteMeta(normalized)
	regexPattern = strings.ReplaceAll(regexPattern, `\*\*`, ".*")  // ** matches any
	regexPattern = strings.ReplaceAll(regexPattern, `\*`, "[^/]*") // * matches non-slash
	regexPattern = strings.ReplaceAll(regexPattern, `\?`, "[^/]")  // ? matches single char
	regexPattern = "^" + regexPattern + "$"

	re, err := regexp.Compile(regexPattern)
	if err != nil {
		return false
	}

	return re.MatchString(path)
}

// IsAllowed checks if a path is allowed based on the filter rules.
// Directory paths (trailing slash) are only checked against ignore patterns.
func (pf *PathFilter) IsAllowed(path string) bool {
	normalized := strings.ReplaceAll(path, "\\", "/")

	for _, pattern := range pf.ignoredPatterns {
		if globMatch(pattern, normalized) {
			return false
		}
	}

	if strings.HasSuffix(normalized, "/") {
		return true
	}

	lowerPath := strings.ToLower(normalized)
	for _, ext := range pf.allowedExtensions {
		if strings.HasSuffix(lowerPath, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// FilterPaths filters a slice of paths to only include allowed ones.
func (pf *PathFilter) FilterPaths(paths []string) []string {
	var allowed []string
	for _, path := range paths {
		if pf.IsAllowed(path) {
			allowed = append(allowed, path)
		}
	}
	return allowed
}
