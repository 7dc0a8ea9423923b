// Package imagecache holds the in-memory input and output payloads for every
// photo in the running session. The photo list stays lightweight by keeping
// payloads here, joined by photo id.
package imagecache

import (
	"sort"
	"sync"
)

// Kind selects which payload of a photo to read.
type Kind string

const (
	Input  Kind = "input"
	Output Kind = "output"
)

type entry struct {
	input  string
	output string
}

// Cache maps photo ids to their captured input and generated output.
// It is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

func (c *Cache) entryLocked(id string) *entry {
	e, ok := c.entries[id]
	if !ok {
		e = &entry{}
		c.entries[id] = e
	}
	return e
}

// SetInput stores the captured frame for id.
func (c *Cache) SetInput(id, payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entryLocked(id).input = payload
}

// SetOutput stores the generated result for id.
func (c *Cache) SetOutput(id, payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entryLocked(id).output = payload
}

// Get returns the payload of the given kind for id.
func (c *Cache) Get(kind Kind, id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok {
		return "", false
	}
	var v string
	switch kind {
	case Input:
		v = e.input
	case Output:
		v = e.output
	}
	return v, v != ""
}

// Delete removes both payloads of id.
func (c *Cache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Load merges bulk-loaded payloads into the cache, as read at startup from
// the durable inputs and outputs stores.
func (c *Cache) Load(inputs, outputs map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, v := range inputs {
		c.entryLocked(id).input = v
	}
	for id, v := range outputs {
		c.entryLocked(id).output = v
	}
}

// IDs returns the sorted ids that have at least one payload.
func (c *Cache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of photos with cached payloads.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
