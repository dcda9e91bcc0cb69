// Package cache persists the set of tiles the upstream service has
// confirmed absent, so later runs never ask for them again.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Negative is a durable set of "x/y" tile keys confirmed not to exist
// upstream. It only ever grows during a run; Flush rewrites the whole
// backing file when something was added.
type Negative struct {
	path  string
	keys  map[string]struct{}
	dirty bool
}

// Load reads the cache from path. A missing or unreadable backing file
// is non-fatal: the returned cache is empty and usable, and the error
// tells the caller what to warn about.
func Load(path string) (*Negative, error) {
	n := &Negative{
		path: path,
		keys: make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return n, nil
	}
	if err != nil {
		return n, fmt.Errorf("reading negative cache: %w", err)
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return n, fmt.Errorf("parsing negative cache: %w", err)
	}

	for _, k := range keys {
		n.keys[k] = struct{}{}
	}
	return n, nil
}

// Contains reports whether key was previously confirmed absent.
func (n *Negative) Contains(key string) bool {
	_, ok := n.keys[key]
	return ok
}

// Add records key as confirmed absent. Adding a known key is a no-op
// and does not dirty the cache.
func (n *Negative) Add(key string) {
	if _, ok := n.keys[key]; ok {
		return
	}
	n.keys[key] = struct{}{}
	n.dirty = true
}

// Len returns the number of cached keys.
func (n *Negative) Len() int {
	return len(n.keys)
}

// Keys returns all cached keys in sorted order.
func (n *Negative) Keys() []string {
	keys := make([]string, 0, len(n.keys))
	for k := range n.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flush rewrites the backing file if anything was added since the last
// flush, and is a no-op otherwise.
func (n *Negative) Flush() error {
	if !n.dirty {
		return nil
	}

	data, err := json.Marshal(n.Keys())
	if err != nil {
		return fmt.Errorf("encoding negative cache: %w", err)
	}
	if err := os.WriteFile(n.path, data, 0o644); err != nil {
		return fmt.Errorf("writing negative cache: %w", err)
	}

	n.dirty = false
	return nil
}
