// Package cache holds the live settings of connected players. It is owned by
// the main loop and is not safe for concurrent use.
package cache

import (
	"sort"

	"github.com/mcoot/ingamehud/internal/model"
)

// Cache maps player ids to their live settings. Values are cloned on the way
// in and out so callers never share state with an entry.
type Cache struct {
	entries         map[model.PlayerID]model.PlayerSettings
	defaultLanguage string
}

// New creates an empty Cache. defaultLanguage is used for entries created by
// GetOrDefault.
func New(defaultLanguage string) *Cache {
	return &Cache{
		entries:         make(map[model.PlayerID]model.PlayerSettings),
		defaultLanguage: defaultLanguage,
	}
}

// Get returns a copy of the entry for id
func (c *Cache) Get(id model.PlayerID) (model.PlayerSettings, bool) {
	s, ok := c.entries[id]
	if !ok {
		return model.PlayerSettings{}, false
	}
	return s.Clone(), true
}

// GetOrDefault returns the entry for id, inserting defaults first if absent
func (c *Cache) GetOrDefault(id model.PlayerID) model.PlayerSettings {
	if s, ok := c.entries[id]; ok {
		return s.Clone()
	}
	s := model.DefaultSettings(id, c.defaultLanguage)
	c.entries[id] = s
	return s.Clone()
}

// Put replaces the entry for settings.ID
func (c *Cache) Put(settings model.PlayerSettings) {
	c.entries[settings.ID] = settings.Clone()
}

// Remove deletes the entry for id, reporting whether one existed
func (c *Cache) Remove(id model.PlayerID) bool {
	_, ok := c.entries[id]
	delete(c.entries, id)
	return ok
}

// Contains reports whether id has an entry
func (c *Cache) Contains(id model.PlayerID) bool {
	_, ok := c.entries[id]
	return ok
}

// ForEach calls fn with a copy of every entry in id order. fn must not
// modify the cache.
func (c *Cache) ForEach(fn func(model.PlayerSettings)) {
	for _, id := range c.IDs() {
		fn(c.entries[id].Clone())
	}
}

// IDs returns the cached ids in sorted order
func (c *Cache) IDs() []model.PlayerID {
	ids := make([]model.PlayerID, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot returns copies of every entry in id order
func (c *Cache) Snapshot() []model.PlayerSettings {
	out := make([]model.PlayerSettings, 0, len(c.entries))
	c.ForEach(func(s model.PlayerSettings) {
		out = append(out, s)
	})
	return out
}

// Len returns the number of entries
func (c *Cache) Len() int {
	return len(c.entries)
}

// Clear removes every entry
func (c *Cache) Clear() {
	clear(c.entries)
}
