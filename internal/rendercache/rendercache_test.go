package rendercache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/jsonshape/internal/compiler"
	"github.com/vk/jsonshape/internal/scope"
	"github.com/vk/jsonshape/internal/template"
)

type withFunc struct {
	ID int
	Fn func()
}

func compile(t *testing.T, id, src string) *template.Template {
	t.Helper()
	tmpl, err := compiler.New(nil).Compile(context.Background(), id, []byte(src), nil)
	require.NoError(t, err)
	return tmpl
}

func counter(n *int, v any) RenderFunc {
	return func() (any, error) {
		*n++
		return v, nil
	}
}

func TestKey(t *testing.T) {
	ctx := context.Background()

	plain := compile(t, "plain", `attribute "id" {}`)
	_, ok, err := Key(ctx, plain, map[string]any{"id": 1}, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	byObject := compile(t, "by_object", `cache {}`)
	k1, ok, err := Key(ctx, byObject, map[string]any{"id": 1, "name": "a"}, nil)
	require.NoError(t, err)
	require.True(t, ok)
	k2, _, err := Key(ctx, byObject, map[string]any{"name": "a", "id": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "equal objects must share a key")
	k3, _, err := Key(ctx, byObject, map[string]any{"id": 2, "name": "a"}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
	assert.Contains(t, k1, "by_object#")

	byExpr := compile(t, "by_expr", `cache { key = ["v1", object.id] }`)
	k4, _, err := Key(ctx, byExpr, map[string]any{"id": 1, "name": "a"}, nil)
	require.NoError(t, err)
	k5, _, err := Key(ctx, byExpr, map[string]any{"id": 1, "name": "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, k4, k5, "only the key expression matters")
}

func TestKey_DefaultIgnoresScopeVariables(t *testing.T) {
	ctx := context.Background()
	obj := map[string]any{"id": 1}

	byObject := compile(t, "by_object", `cache {}`)
	k1, _, err := Key(ctx, byObject, obj, scope.New(map[string]any{"viewer": "admin"}))
	require.NoError(t, err)
	k2, _, err := Key(ctx, byObject, obj, scope.New(map[string]any{"viewer": "guest"}))
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	byVar := compile(t, "by_var", `cache { key = [object.id, var.viewer] }`)
	k3, _, err := Key(ctx, byVar, obj, scope.New(map[string]any{"viewer": "admin"}))
	require.NoError(t, err)
	k4, _, err := Key(ctx, byVar, obj, scope.New(map[string]any{"viewer": "guest"}))
	require.NoError(t, err)
	assert.NotEqual(t, k3, k4)
}

func TestCache_Fetch(t *testing.T) {
	ctx := context.Background()
	c, err := New(4)
	require.NoError(t, err)
	tmpl := compile(t, "cached", `cache { key = object.id }`)

	renders := 0
	v, err := c.Fetch(ctx, tmpl, map[string]any{"id": 1}, nil, counter(&renders, "first"))
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	v, err = c.Fetch(ctx, tmpl, map[string]any{"id": 1}, nil, counter(&renders, "second"))
	require.NoError(t, err)
	assert.Equal(t, "first", v)
	assert.Equal(t, 1, renders)

	_, err = c.Fetch(ctx, tmpl, map[string]any{"id": 2}, nil, counter(&renders, "third"))
	require.NoError(t, err)
	assert.Equal(t, 2, renders)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, Stats{Hits: 1, Misses: 2}, c.Stats())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCache_FetchSkipsAndErrors(t *testing.T) {
	ctx := context.Background()
	c, err := New(0)
	require.NoError(t, err)

	uncached := compile(t, "uncached", `attribute "id" {}`)
	renders := 0
	for range 2 {
		_, err := c.Fetch(ctx, uncached, map[string]any{"id": 1}, nil, counter(&renders, nil))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, renders)

	byObject := compile(t, "by_object", `cache {}`)
	renders = 0
	for range 2 {
		_, err := c.Fetch(ctx, byObject, withFunc{ID: 1, Fn: func() {}}, nil, counter(&renders, nil))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, renders)
	assert.EqualValues(t, 2, c.Stats().Skips)

	boom := errors.New("boom")
	_, err = c.Fetch(ctx, byObject, map[string]any{"id": 1}, nil, func() (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len(), "failed renders are not cached")

	badKey := compile(t, "bad_key", `cache { key = object.missing.deeper }`)
	_, err = c.Fetch(ctx, badKey, map[string]any{"id": 1}, nil, counter(&renders, nil))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnhashable)
}
