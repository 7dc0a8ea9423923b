// Package styles holds the booth's style catalog: the ordered list of modes a
// photo can be generated in, and the resolution of a mode to a prompt.
package styles

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fpang/claw-cam/internal/assets"
)

// Sentinel mode ids.
const (
	Random = "random"
	Custom = "custom"
)

// Style is one catalog entry.
type Style struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Emoji  string `json:"emoji"`
	Prompt string `json:"prompt"`
}

// Catalog is an ordered, read-only set of styles.
type Catalog struct {
	styles []Style
	byID   map[string]int
	// cycle lists the indexes random mode draws from, in catalog order.
	cycle []int
}

// Default is the embedded catalog.
var Default = MustLoad(assets.StylesJSON)

// Load parses a JSON array of styles. Ids must be unique and non-empty.
func Load(data []byte) (*Catalog, error) {
	var list []Style
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse style catalog: %w", err)
	}
	return New(list)
}

// MustLoad is Load that panics on error, for embedded catalogs.
func MustLoad(data []byte) *Catalog {
	c, err := Load(data)
	if err != nil {
		panic(err)
	}
	return c
}

// New builds a catalog from list.
func New(list []Style) (*Catalog, error) {
	c := &Catalog{styles: list, byID: make(map[string]int, len(list))}
	for i, s := range list {
		if s.ID == "" {
			return nil, fmt.Errorf("style %d has no id", i)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate style id %q", s.ID)
		}
		c.byID[s.ID] = i
		if s.ID != Random && s.ID != Custom {
			c.cycle = append(c.cycle, i)
		}
	}
	return c, nil
}

// All returns the styles in catalog order.
func (c *Catalog) All() []Style {
	return append([]Style(nil), c.styles...)
}

// Get looks up a style by id.
func (c *Catalog) Get(id string) (Style, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Style{}, false
	}
	return c.styles[i], true
}

// Has reports whether id is a catalog mode.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// CycleLen is the number of styles random mode rotates through.
func (c *Catalog) CycleLen() int {
	return len(c.cycle)
}

// Next returns the style random mode uses at cursor, and the cursor for the
// following pick. Cursors wrap, so any non-negative value is accepted.
func (c *Catalog) Next(cursor int) (Style, int) {
	if len(c.cycle) == 0 {
		return Style{}, 0
	}
	if cursor < 0 {
		cursor = 0
	}
	i := cursor % len(c.cycle)
	return c.styles[c.cycle[i]], (i + 1) % len(c.cycle)
}

// Resolve returns the prompt for mode. customPrompt is used for the custom
// mode. The random mode cannot be resolved here; callers pick a concrete
// style with Next first.
func (c *Catalog) Resolve(mode, customPrompt string) (string, error) {
	switch mode {
	case Custom:
		p := strings.TrimSpace(customPrompt)
		if p == "" {
			return "", fmt.Errorf("custom mode needs a prompt")
		}
		return p, nil
	case Random:
		return "", fmt.Errorf("random mode must be resolved to a concrete style")
	}
	s, ok := c.Get(mode)
	if !ok {
		return "", fmt.Errorf("unknown mode %q", mode)
	}
	return s.Prompt, nil
}
