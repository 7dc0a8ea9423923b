package generation

import (
	"slices"
	"strings"
	"sync"
)

// MaxKeySlots is the number of API key slots the booth exposes.
const MaxKeySlots = 5

// KeyPool is an ordered set of API keys plus a rotation cursor. The cursor
// names the key tried first on the next request and only moves when a
// request succeeds, to the key that succeeded. It is safe for concurrent use.
type KeyPool struct {
	mu     sync.Mutex
	keys   []string
	cursor int
}

// NewKeyPool builds a pool from key slots; blank slots are dropped.
func NewKeyPool(slots []string) *KeyPool {
	p := &KeyPool{}
	p.Set(slots)
	return p
}

// Set replaces the keys. The cursor follows the key it pointed at to its
// new position, or resets to 0 when that key is gone.
func (p *KeyPool) Set(slots []string) {
	keys := CompactKeys(slots)
	p.mu.Lock()
	defer p.mu.Unlock()
	cursor := 0
	if p.cursor < len(p.keys) {
		if i := slices.Index(keys, p.keys[p.cursor]); i >= 0 {
			cursor = i
		}
	}
	p.keys = keys
	p.cursor = cursor
}

// CompactKeys trims keys and drops blank slots, keeping order.
func CompactKeys(slots []string) []string {
	keys := make([]string, 0, len(slots))
	for _, k := range slots {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Len returns the number of usable keys.
func (p *KeyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Keys returns a copy of the keys in pool order.
func (p *KeyPool) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

// Cursor returns the index of the key that will be tried first.
func (p *KeyPool) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// SetCursor moves the cursor, e.g. when restoring persisted state.
// Out-of-range values reset it to 0.
func (p *KeyPool) SetCursor(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.keys) {
		i = 0
	}
	p.cursor = i
}

// poolKey is a key together with its index in the pool.
type poolKey struct {
	index int
	key   string
}

// rotation returns the keys in the order one request tries them: starting at
// the cursor and wrapping around.
func (p *KeyPool) rotation() []poolKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.keys)
	out := make([]poolKey, 0, n)
	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		out = append(out, poolKey{index: idx, key: p.keys[idx]})
	}
	return out
}

// markSuccess moves the cursor to the key at index, if it is still the same
// key (the pool may have been replaced mid-request).
func (p *KeyPool) markSuccess(k poolKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if k.index < len(p.keys) && p.keys[k.index] == k.key {
		p.cursor = k.index
	}
}

// MaskKey hides all but the last four characters of a key.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("•", len(key))
	}
	return strings.Repeat("•", 4) + key[len(key)-4:]
}
