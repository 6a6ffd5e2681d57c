// Package filesystem provides vault-rooted file operations for the sync
// engine. All writes against a given path are serialized so that two
// operations targeting the same note cannot interleave.
package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/taigrr/vaultcal/internal/frontmatter"
	"github.com/taigrr/vaultcal/internal/pathfilter"
	"github.com/taigrr/vaultcal/internal/types"
)

// Service provides file system operations for the vault.
type Service struct {
	vaultPath          string
	pathFilter         *pathfilter.PathFilter
	frontmatterHandler *frontmatter.Handler

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a new vault filesystem Service.
func New(vaultPath string, pf *pathfilter.PathFilter, fh *frontmatter.Handler) *Service {
	absPath, _ := filepath.Abs(vaultPath)
	if pf == nil {
		pf = pathfilter.New(nil)
	}
	if fh == nil {
		fh = frontmatter.New()
	}
	return &Service{
		vaultPath:          absPath,
		pathFilter:         pf,
		frontmatterHandler: fh,
		locks:              make(map[string]*sync.Mutex),
	}
}

// lockPath returns the mutex serializing writes for one vault path.
func (s *Service) lockPath(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

// ResolvePath resolves a relative path within the vault and validates it.
func (s *Service) ResolvePath(relativePath string) (string, error) {
	relativePath = strings.TrimSpace(relativePath)
	normalizedPath := strings.TrimPrefix(relativePath, "/")

	fullPath := filepath.Join(s.vaultPath, normalizedPath)
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}

	// Security check: ensure path is within vault
	relPath, err := filepath.Rel(s.vaultPath, absPath)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(relPath, "..") {
		return "", fmt.Errorf("path traversal not allowed: %s", relativePath)
	}

	return absPath, nil
}

// ReadNote reads and parses a note from the vault.
func (s *Service) ReadNote(path string) (types.ParsedNote, error) {
	fullPath, err := s.ResolvePath(path)
	if err != nil {
		return types.ParsedNote{}, fmt.Errorf("%w: %v", types.ErrNotFound, err)
	}

	if !s.pathFilter.IsAllowed(path) {
		return types.ParsedNote{}, fmt.Errorf("%w: access denied: %s", types.ErrNotFound, path)
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.ParsedNote{}, fmt.Errorf("%w: file not found: %s", types.ErrNotFound, path)
		}
		return types.ParsedNote{}, fmt.Errorf("%w: read %s: %v", types.ErrIO, path, err)
	}

	return s.frontmatterHandler.Parse(string(content)), nil
}

// WriteNote serializes frontmatter plus content and writes the note,
// creating parent directories as needed.
func (s *Service) WriteNote(path string, fm map[string]any, content string) error {
	fullPath, err := s.ResolvePath(path)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrIO, err)
	}

	if !s.pathFilter.IsAllowed(path) {
		return fmt.Errorf("%w: access denied: %s", types.ErrIO, path)
	}

	if fm != nil {
		validation := s.frontmatterHandler.Validate(fm)
		if !validation.IsValid {
			return fmt.Errorf("%w: invalid frontmatter: %s", types.ErrIO, strings.Join(validation.Errors, ", "))
		}
	}

	finalContent, err := s.frontmatterHandler.Stringify(fm, content)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrIO, err)
	}

	lock := s.lockPath(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir for %s: %v", types.ErrIO, path, err)
	}

	if err := os.WriteFile(fullPath, []byte(finalContent), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", types.ErrIO, path, err)
	}

	return nil
}

// WriteRaw writes pre-assembled note content without re-serializing
// frontmatter. Used for line-level edits where the rest of the note must be
// preserved byte for byte.
func (s *Service) WriteRaw(path, content string) error {
	fullPath, err := s.ResolvePath(path)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrIO, err)
	}

	if !s.pathFilter.IsAllowed(path) {
		return fmt.Errorf("%w: access denied: %s", types.ErrIO, path)
	}

	lock := s.lockPath(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir for %s: %v", types.ErrIO, path, err)
	}

	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", types.ErrIO, path, err)
	}

	return nil
}

// DeleteNote deletes a note from the vault.
func (s *Service) DeleteNote(path string) error {
	fullPath, err := s.ResolvePath(path)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrIO, err)
	}

	if !s.pathFilter.IsAllowed(path) {
		return fmt.Errorf("%w: access denied: %s", types.ErrIO, path)
	}

	lock := s.lockPath(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: file not found: %s", types.ErrNotFound, path)
		}
		return fmt.Errorf("%w: delete %s: %v", types.ErrIO, path, err)
	}

	return nil
}

// MoveNote moves or renames a note within the vault. The target must not
// already exist.
func (s *Service) MoveNote(oldPath, newPath string) error {
	if !s.pathFilter.IsAllowed(oldPath) || !s.pathFilter.IsAllowed(newPath) {
		return fmt.Errorf("%w: access denied: %s -> %s", types.ErrIO, oldPath, newPath)
	}

	oldFullPath, err := s.ResolvePath(oldPath)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrIO, err)
	}
	newFullPath, err := s.ResolvePath(newPath)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrIO, err)
	}

	// Lock both paths in a stable order to avoid deadlock.
	first, second := oldPath, newPath
	if second < first {
		first, second = second, first
	}
	firstLock := s.lockPath(first)
	firstLock.Lock()
	defer firstLock.Unlock()
	if first != second {
		secondLock := s.lockPath(second)
		secondLock.Lock()
		defer secondLock.Unlock()
	}

	if _, err := os.Stat(newFullPath); err == nil {
		return fmt.Errorf("%w: target already exists: %s", types.ErrIO, newPath)
	}

	if err := os.MkdirAll(filepath.Dir(newFullPath), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir for %s: %v", types.ErrIO, newPath, err)
	}

	if err := os.Rename(oldFullPath, newFullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: source file not found: %s", types.ErrNotFound, oldPath)
		}
		return fmt.Errorf("%w: move %s -> %s: %v", types.ErrIO, oldPath, newPath, err)
	}

	return nil
}

// Exists checks if a path exists in the vault.
func (s *Service) Exists(path string) bool {
	fullPath, err := s.ResolvePath(path)
	if err != nil {
		return false
	}

	if !s.pathFilter.IsAllowed(path) {
		return false
	}

	_, err = os.Stat(fullPath)
	return err == nil
}

// ListNotes walks the vault below root ("" for the whole vault) and returns
// the vault-relative paths of every allowed markdown note, sorted.
func (s *Service) ListNotes(root string) ([]string, error) {
	fullRoot, err := s.ResolvePath(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrNotFound, err)
	}

	var notes []string
	err = filepath.WalkDir(fullRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) && p == fullRoot {
				return filepath.SkipAll
			}
			return walkErr
		}
		rel, relErr := filepath.Rel(s.vaultPath, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if p != fullRoot && !s.pathFilter.IsAllowed(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if s.pathFilter.IsAllowed(rel) {
			notes = append(notes, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %v", types.ErrIO, root, err)
	}

	sort.Strings(notes)
	return notes, nil
}

// GetVaultPath returns the vault path.
func (s *Service) GetVaultPath() string {
	return s.vaultPath
}
