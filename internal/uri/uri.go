// Package uri provides Obsidian URI generation for event locations.
package uri

import (
	"net/url"
	"strings"
)

// ForNote generates an Obsidian URI for a given note path.
// Uses the absolute path format: obsidian:///absolute/path/to/note
func ForNote(vaultPath, notePath string) string {
	cleanPath := strings.TrimPrefix(notePath, "/")

	absolutePath := vaultPath + "/" + cleanPath

	// Obsidian resolves notes without the .md extension.
	absolutePath = strings.TrimSuffix(absolutePath, ".md")

	// URI encode the path, but keep slashes as slashes.
	parts := strings.Split(absolutePath, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	encodedPath := strings.Join(parts, "/")
	encodedPath = strings.TrimPrefix(encodedPath, "/")

	return "obsidian:///" + encodedPath
}
