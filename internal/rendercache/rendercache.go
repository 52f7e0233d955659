// Package rendercache stores rendered output of templates that declare a
// `cache` directive. Entries are keyed by template identifier and a
// structural hash of either the root object or the template's key
// expression.
package rendercache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/vk/jsonshape/internal/ctxlog"
	"github.com/vk/jsonshape/internal/node"
	"github.com/vk/jsonshape/internal/scope"
	"github.com/vk/jsonshape/internal/template"
)

// DefaultSize is the number of rendered results kept when none is configured.
const DefaultSize = 1024

// ErrUnhashable is returned by Key when the key value cannot be hashed.
var ErrUnhashable = errors.New("cache key cannot be hashed")

// RenderFunc produces the value to cache.
type RenderFunc func() (any, error)

// Stats counts cache lookups.
type Stats struct {
	Hits   uint64
	Misses uint64
	Skips  uint64
}

// Cache is a bounded LRU of rendered values. Cached values are shared
// between callers and must not be modified. It is safe for concurrent use.
type Cache struct {
	entries *lru.Cache[string, any]

	hits   atomic.Uint64
	misses atomic.Uint64
	skips  atomic.Uint64
}

// New returns a cache holding up to size entries. A size of zero or less
// selects DefaultSize.
func New(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, any](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create render cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Key computes the cache key of rendering tmpl against obj. ok is false when
// the template does not enable caching. Without a key expression only obj is
// hashed; scope variables are not part of the default key.
func Key(ctx context.Context, tmpl *template.Template, obj any, s scope.Scope) (key string, ok bool, err error) {
	if !tmpl.Cache.Enabled {
		return "", false, nil
	}

	keyValue := obj
	if tmpl.Cache.Key != nil {
		keyValue, err = tmpl.Cache.Key(ctx, node.NewEnv(obj, s))
		if err != nil {
			return "", false, fmt.Errorf("failed to evaluate cache key of %s: %w", tmpl.Identifier, err)
		}
	}

	hash, err := hashstructure.Hash(keyValue, hashstructure.FormatV2, &hashstructure.HashOptions{ZeroNil: true})
	if err != nil {
		return "", false, fmt.Errorf("%w: %s: %v", ErrUnhashable, tmpl.Identifier, err)
	}
	return tmpl.Identifier + "#" + strconv.FormatUint(hash, 16), true, nil
}

// Fetch returns the cached result for rendering tmpl against obj, calling
// render on a miss. Templates without caching, and objects that cannot be
// hashed, always render. Errors from a key expression are returned.
func (c *Cache) Fetch(ctx context.Context, tmpl *template.Template, obj any, s scope.Scope, render RenderFunc) (any, error) {
	logger := ctxlog.FromContext(ctx).With("template", tmpl.Identifier)

	key, ok, err := Key(ctx, tmpl, obj, s)
	if errors.Is(err, ErrUnhashable) {
		logger.Debug("Render cache skipped.", "error", err)
		c.skips.Add(1)
		return render()
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return render()
	}

	if v, found := c.entries.Get(key); found {
		c.hits.Add(1)
		logger.Debug("Render cache hit.", "key", key)
		return v, nil
	}

	c.misses.Add(1)
	v, err := render()
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, v)
	logger.Debug("Render cache stored.", "key", key)
	return v, nil
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.entries.Purge()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Stats returns the lookup counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Skips: c.skips.Load()}
}
