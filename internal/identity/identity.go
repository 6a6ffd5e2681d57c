// Package identity assigns stable event ids and repairs collisions.
package identity

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Assigner hands out event ids that are unique across the whole index.
// Ids are stable for the lifetime of a cache entry and independent of the
// event's location; they are not persisted to the backing store.
type Assigner struct {
	taken map[string]bool
}

// New creates an Assigner with no ids reserved.
func New() *Assigner {
	return &Assigner{taken: make(map[string]bool)}
}

// Assign reserves and returns a unique id derived from the given hint
// (typically the backing file path). Collisions after external edits are
// repaired by suffixing a counter; an empty hint falls back to a UUID.
func (a *Assigner) Assign(hint string) string {
	base := slug(hint)
	if base == "" {
		base = uuid.NewString()
	}

	id := base
	for n := 2; a.taken[id]; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	a.taken[id] = true
	return id
}

// Release returns an id to the pool when its entry leaves the index.
func (a *Assigner) Release(id string) {
	delete(a.taken, id)
}

// Reserved reports whether an id is currently assigned.
func (a *Assigner) Reserved(id string) bool {
	return a.taken[id]
}

func slug(hint string) string {
	base := path.Base(strings.TrimSuffix(strings.TrimSpace(hint), "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.ToLower(strings.ReplaceAll(base, " ", "-"))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
