package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/jsonshape/internal/node"
	"github.com/vk/jsonshape/internal/template"
)

func writeViews(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// countingLoader counts loads per identifier.
type countingLoader struct {
	Loader
	loads atomic.Int32
}

func (c *countingLoader) Load(ctx context.Context, identifier string) ([]byte, string, error) {
	c.loads.Add(1)
	return c.Loader.Load(ctx, identifier)
}

func TestSource_PathAndIdentifier(t *testing.T) {
	dir := writeViews(t, nil)
	src, err := NewSource(dir)
	require.NoError(t, err)

	p, err := src.Path("users/show")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "users", "show.hcl"), p)

	p, err = src.Path("users/show.hcl")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "users", "show.hcl"), p)

	for _, bad := range []string{"", ".", "..", "../secret", "/etc/passwd", "users/../../x"} {
		_, err := src.Path(bad)
		assert.Error(t, err, bad)
	}

	id, ok := src.Identifier(filepath.Join(dir, "users", "show.hcl"))
	assert.True(t, ok)
	assert.Equal(t, "users/show", id)

	_, ok = src.Identifier(filepath.Join(dir, "users", "notes.txt"))
	assert.False(t, ok)
}

func TestSource_NewSourceErrors(t *testing.T) {
	_, err := NewSource(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorContains(t, err, "views path not found")

	dir := writeViews(t, map[string]string{"file.hcl": ""})
	_, err = NewSource(filepath.Join(dir, "file.hcl"))
	assert.ErrorContains(t, err, "not a directory")
}

func TestSource_List(t *testing.T) {
	dir := writeViews(t, map[string]string{
		"users/show.hcl":   `attribute "id" {}`,
		"users/index.hcl":  `collection "@users" {}`,
		"base.hcl":         `attribute "id" {}`,
		"README.md":        "not a template",
		".hidden/skip.hcl": `attribute "x" {}`,
	})
	src, err := NewSource(dir)
	require.NoError(t, err)

	ids, err := src.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "users/index", "users/show"}, ids)
}

func TestLibrary_FetchCachesCompiledTemplates(t *testing.T) {
	dir := writeViews(t, map[string]string{
		"users/base.hcl": `attributes "id" "name" {}`,
		"users/show.hcl": `object "@user" {}
extends "users/base" {}
attribute "email" {}`,
	})
	src, err := NewSource(dir)
	require.NoError(t, err)
	loader := &countingLoader{Loader: src}
	lib, err := New(loader, 8)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := lib.Fetch(ctx, "users/show", nil)
	require.NoError(t, err)
	assert.Len(t, first.Nodes(), 3)
	assert.Equal(t, node.Named("user", false), first.Root)
	assert.True(t, lib.Cached("users/base"))
	assert.Equal(t, 2, lib.Len())

	second, err := lib.Fetch(ctx, "users/show", nil)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.EqualValues(t, 2, loader.loads.Load())

	lib.Invalidate("users/show")
	assert.False(t, lib.Cached("users/show"))
	third, err := lib.Fetch(ctx, "users/show", nil)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.EqualValues(t, 3, loader.loads.Load())
}

func TestLibrary_FetchConcurrentCompilesOnce(t *testing.T) {
	dir := writeViews(t, map[string]string{"show.hcl": `attribute "id" {}`})
	src, err := NewSource(dir)
	require.NoError(t, err)
	loader := &countingLoader{Loader: src}
	lib, err := New(loader, 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*template.Template, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tmpl, err := lib.Fetch(context.Background(), "show", nil)
			assert.NoError(t, err)
			results[i] = tmpl
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, loader.loads.Load())
	for _, tmpl := range results {
		assert.Same(t, results[0], tmpl)
	}
}

// barrierLoader holds the first parties loads until all of them have
// started, so each caller owns its compilation before any continues.
type barrierLoader struct {
	Loader
	parties int32
	started atomic.Int32
	ready   chan struct{}
}

func (b *barrierLoader) Load(ctx context.Context, identifier string) ([]byte, string, error) {
	if n := b.started.Add(1); n <= b.parties {
		if n == b.parties {
			close(b.ready)
		}
		<-b.ready
	}
	return b.Loader.Load(ctx, identifier)
}

func TestLibrary_FetchConcurrentCycleFails(t *testing.T) {
	dir := writeViews(t, map[string]string{
		"a.hcl": `extends "b" {}`,
		"b.hcl": `extends "a" {}`,
	})
	src, err := NewSource(dir)
	require.NoError(t, err)
	lib, err := New(&barrierLoader{Loader: src, parties: 2, ready: make(chan struct{})}, 4)
	require.NoError(t, err)

	errs := make(chan error, 2)
	for _, id := range []string{"a", "b"} {
		go func() {
			_, err := lib.Fetch(context.Background(), id, nil)
			errs <- err
		}()
	}

	for range 2 {
		select {
		case err := <-errs:
			var compileErr *template.CompileError
			require.ErrorAs(t, err, &compileErr)
			assert.Equal(t, "Template inheritance cycle", compileErr.Diags[0].Summary)
		case <-time.After(5 * time.Second):
			t.Fatal("concurrent fetches of a cyclic pair did not return")
		}
	}
	assert.Equal(t, 0, lib.Len())
	assert.Empty(t, lib.waits)
}

func TestLibrary_FetchErrors(t *testing.T) {
	dir := writeViews(t, map[string]string{
		"broken.hcl":  `bogus {}`,
		"a.hcl":       `extends "b" {}`,
		"b.hcl":       `extends "a" {}`,
		"partial.hcl": `child "@x" { partial = "missing" }`,
	})
	src, err := NewSource(dir)
	require.NoError(t, err)
	lib, err := New(src, 4)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = lib.Fetch(ctx, "nope", nil)
	var missing *template.MissingTemplateError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "nope", missing.Identifier)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = lib.Fetch(ctx, "partial", nil)
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "missing", missing.Identifier)

	var compileErr *template.CompileError
	_, err = lib.Fetch(ctx, "broken", nil)
	require.ErrorAs(t, err, &compileErr)
	assert.False(t, lib.Cached("broken"))

	_, err = lib.Fetch(ctx, "a", nil)
	require.ErrorAs(t, err, &compileErr)
	assert.Equal(t, "Template inheritance cycle", compileErr.Diags[0].Summary)
}

func TestLibrary_NewRequiresLoader(t *testing.T) {
	_, err := New(nil, 1)
	assert.Error(t, err)
}

func TestLibrary_WatchPurgesOnChange(t *testing.T) {
	dir := writeViews(t, map[string]string{"show.hcl": `attribute "id" {}`})
	src, err := NewSource(dir)
	require.NoError(t, err)
	lib, err := New(src, 4)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan string, 8)
	w, err := lib.Watch(ctx, src, func(identifier string, _ fsnotify.Op) {
		select {
		case changed <- identifier:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()

	tmpl, err := lib.Fetch(ctx, "show", nil)
	require.NoError(t, err)
	assert.Len(t, tmpl.Nodes(), 1)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "show.hcl"), []byte(`attributes "id" "name" {}`), 0o644))

	select {
	case id := <-changed:
		assert.Equal(t, "show", id)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}

	require.Eventually(t, func() bool {
		tmpl, err := lib.Fetch(ctx, "show", nil)
		return err == nil && len(tmpl.Nodes()) == 2
	}, 5*time.Second, 20*time.Millisecond)
}
