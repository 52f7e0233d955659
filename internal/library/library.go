// Package library resolves template identifiers to compiled templates. It
// loads sources through a Loader, compiles them once and keeps the results
// in a bounded LRU cache shared by every render.
package library

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vk/jsonshape/internal/compiler"
	"github.com/vk/jsonshape/internal/ctxlog"
	"github.com/vk/jsonshape/internal/scope"
	"github.com/vk/jsonshape/internal/template"
	"golang.org/x/sync/singleflight"
)

// DefaultSize is the cache size used when none is configured.
const DefaultSize = 256

// Library compiles and caches templates. It is safe for concurrent use and
// compiles each identifier at most once until it is invalidated.
type Library struct {
	loader   Loader
	compiler *compiler.Compiler
	cache    *lru.Cache[string, *template.Template]
	group    singleflight.Group

	// waits maps a template being compiled to the template its compilation
	// is blocked on. Guarded by mu.
	mu    sync.Mutex
	waits map[string]string
}

// New returns a Library loading sources from loader and caching up to size
// compiled templates. A size of zero or less selects DefaultSize.
func New(loader Loader, size int) (*Library, error) {
	if loader == nil {
		return nil, errors.New("library requires a loader")
	}
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[string, *template.Template](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create template cache: %w", err)
	}
	l := &Library{loader: loader, cache: cache, waits: make(map[string]string)}
	l.compiler = compiler.New(l)
	return l, nil
}

// Compiler returns the compiler the library uses, wired back to the library
// for extends and partials.
func (l *Library) Compiler() *compiler.Compiler {
	return l.compiler
}

// Fetch returns the compiled template for identifier. Templates are cached
// by identifier; the scope of the first caller supplies the helper
// functions the template is compiled with.
func (l *Library) Fetch(ctx context.Context, identifier string, s scope.Scope) (*template.Template, error) {
	logger := ctxlog.FromContext(ctx).With("template", identifier)

	if tmpl, ok := l.cache.Get(identifier); ok {
		logger.Debug("Template cache hit.")
		return tmpl, nil
	}

	chain := compiler.Chain(ctx)
	if compiler.InProgress(ctx, identifier) {
		cycle := append(chain[slices.Index(chain, identifier):], identifier)
		return nil, compiler.CycleError(chain, cycle, nil)
	}
	if len(chain) > 0 {
		release, err := l.wait(chain, identifier)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	v, err, shared := l.group.Do(identifier, func() (any, error) {
		if tmpl, ok := l.cache.Get(identifier); ok {
			return tmpl, nil
		}
		src, origin, err := l.loader.Load(ctx, identifier)
		if err != nil {
			return nil, &template.MissingTemplateError{Identifier: identifier, Err: err}
		}
		logger.Debug("Compiling template from source.", "origin", origin, "bytes", len(src))

		tmpl, err := l.compiler.Compile(ctx, identifier, src, s)
		if err != nil {
			return nil, err
		}
		l.cache.Add(identifier, tmpl)
		return tmpl, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("Template compilation shared with a concurrent caller.")
	}
	return v.(*template.Template), nil
}

// wait records that the compilation at the end of chain is about to block on
// identifier. Compilations of a cyclic pair started from different callers
// would otherwise wait on each other's flights forever, so the wait is
// refused when identifier already waits, directly or transitively, on a
// template of chain.
func (l *Library) wait(chain []string, identifier string) (func(), error) {
	current := chain[len(chain)-1]

	l.mu.Lock()
	defer l.mu.Unlock()

	path := []string{current, identifier}
	// Follow the waits-for edges starting at identifier.
	for next, seen := identifier, map[string]bool{}; !seen[next]; {
		seen[next] = true
		if i := slices.Index(chain, next); i >= 0 {
			cycle := append(slices.Clone(chain[i:]), path[1:]...)
			return nil, compiler.CycleError(chain, cycle, nil)
		}
		blocked, ok := l.waits[next]
		if !ok {
			break
		}
		path = append(path, blocked)
		next = blocked
	}

	l.waits[current] = identifier
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.waits, current)
	}, nil
}

// Invalidate drops identifier from the cache.
func (l *Library) Invalidate(identifier string) {
	l.cache.Remove(identifier)
}

// Purge drops every cached template. Templates embed the nodes of the
// templates they extend, so a change to one source can affect many entries.
func (l *Library) Purge() {
	l.cache.Purge()
}

// Cached reports whether identifier is currently cached.
func (l *Library) Cached(identifier string) bool {
	return l.cache.Contains(identifier)
}

// Len returns the number of cached templates.
func (l *Library) Len() int {
	return l.cache.Len()
}
