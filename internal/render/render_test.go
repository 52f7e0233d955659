package render

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/jsonshape/internal/compiler"
	"github.com/vk/jsonshape/internal/node"
	"github.com/vk/jsonshape/internal/scope"
	"github.com/vk/jsonshape/internal/template"
)

type account struct {
	Plan string `json:"plan"`
}

type post struct {
	ID    int
	Title string
}

type author struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Secret  string `json:"secret"`
	Admin   bool   `json:"admin"`
	Posts   []post
	Account *account
}

func (a author) Initials() string {
	if a.Name == "" {
		return ""
	}
	return a.Name[:1]
}

func compile(t *testing.T, src string) *template.Template {
	t.Helper()
	tmpl, err := compiler.New(nil).Compile(context.Background(), "test", []byte(src), nil)
	require.NoError(t, err)
	return tmpl
}

func renderPlain(t *testing.T, tmpl *template.Template, s scope.Scope) any {
	t.Helper()
	out, err := New().Render(context.Background(), tmpl, s)
	require.NoError(t, err)
	return Plain(out)
}

func TestRender_RoundTrip(t *testing.T) {
	tmpl := compile(t, `object "@item" {}
attribute "id" {}`)

	first := renderPlain(t, tmpl, scope.New(map[string]any{"item": map[string]any{"id": 5}}))
	assert.Equal(t, map[string]any{"id": 5}, first)

	second := renderPlain(t, tmpl, scope.New(map[string]any{"item": map[string]any{"id": 7, "extra": true}}))
	assert.Equal(t, map[string]any{"id": 7}, second)

	again := renderPlain(t, tmpl, scope.New(map[string]any{"item": map[string]any{"id": 5}}))
	assert.Equal(t, first, again)
}

func TestRender_NaNFieldDoesNotBreakExpressions(t *testing.T) {
	type metric struct {
		Name  string  `json:"name"`
		Ratio float64 `json:"ratio"`
	}
	tmpl := compile(t, `object "@m" {}
node "label" { value = upper(object.name) }
node "ratio" { value = object.ratio }`)

	got := renderPlain(t, tmpl, scope.New(map[string]any{"m": metric{Name: "x", Ratio: math.NaN()}}))
	assert.Equal(t, map[string]any{"label": "X", "ratio": nil}, got)
}

func TestRender_Resource(t *testing.T) {
	tmpl := compile(t, `object "@user" {}
attributes "id" "name" {}
attribute "initials" { as = "short" }
node "display" { value = "${object.name} (${object.id})" }
child "posts" {
  as = "articles"
  attribute "title" {}
}
glue "account" {
  attribute "plan" {}
}`)

	user := &author{ID: 1, Name: "Ada", Posts: []post{{ID: 1, Title: "One"}, {ID: 2, Title: "Two"}}, Account: &account{Plan: "pro"}}
	out, err := New().Render(context.Background(), tmpl, scope.New(map[string]any{"user": user}))
	require.NoError(t, err)

	m, ok := out.(*Mapping)
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name", "short", "display", "articles", "plan"}, Keys(m))

	want := map[string]any{
		"id":      1,
		"name":    "Ada",
		"short":   "A",
		"display": "Ada (1)",
		"articles": []any{
			map[string]any{"title": "One"},
			map[string]any{"title": "Two"},
		},
		"plan": "pro",
	}
	if diff := cmp.Diff(want, Plain(out)); diff != "" {
		t.Errorf("unexpected render (-want +got):\n%s", diff)
	}
}

func TestRender_Glue(t *testing.T) {
	tmpl := compile(t, `object "@user" {}
attribute "id" {}
glue "@owner" {
  attribute "name" {}
}`)

	got := renderPlain(t, tmpl, scope.New(map[string]any{
		"user":  map[string]any{"id": 1},
		"owner": map[string]any{"name": "X"},
	}))
	assert.Equal(t, map[string]any{"id": 1, "name": "X"}, got)
}

func TestRender_Condition(t *testing.T) {
	tmpl := compile(t, `object "@user" {}
attribute "name" {}
condition {
  if = object.admin
  attributes "secret" {}
}`)

	admin := renderPlain(t, tmpl, scope.New(map[string]any{"user": author{Name: "a", Secret: "s", Admin: true}}))
	assert.Equal(t, map[string]any{"name": "a", "secret": "s"}, admin)

	guest := renderPlain(t, tmpl, scope.New(map[string]any{"user": author{Name: "g", Secret: "s"}}))
	assert.Equal(t, map[string]any{"name": "g"}, guest)
	assert.NotContains(t, guest, "secret")
}

func TestRender_CollectionDetection(t *testing.T) {
	tmpl := compile(t, `object "@data" {}
attribute "id" {}`)

	list := renderPlain(t, tmpl, scope.New(map[string]any{"data": []map[string]any{{"id": 1}, {"id": 2}}}))
	assert.Equal(t, []any{map[string]any{"id": 1}, map[string]any{"id": 2}}, list)

	single := renderPlain(t, tmpl, scope.New(map[string]any{"data": map[string]any{"id": 3}}))
	assert.Equal(t, map[string]any{"id": 3}, single)

	empty := renderPlain(t, tmpl, scope.New(map[string]any{"data": []author(nil)}))
	assert.Equal(t, []any{}, empty)
}

func TestRender_NilRoot(t *testing.T) {
	tmpl := compile(t, `object "@missing" {}
attribute "id" {}`)

	out, err := New().Render(context.Background(), tmpl, scope.New(nil))
	require.NoError(t, err)
	assert.Nil(t, out)

	var nobody *author
	out, err = New().RenderObject(context.Background(), tmpl, nobody, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestRender_ObjectFalse(t *testing.T) {
	tmpl := compile(t, `object = false
node "version" { value = 2 }
child "@user" {
  attribute "name" {}
}`)

	got := renderPlain(t, tmpl, scope.New(map[string]any{"user": map[string]any{"name": "Ada"}}))
	assert.Equal(t, map[string]any{"version": int64(2), "user": map[string]any{"name": "Ada"}}, got)

	tmpl = compile(t, `object = false
attribute "name" {}`)
	_, err := New().Render(context.Background(), tmpl, nil)
	var typeErr *template.RenderTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, []string{"name"}, typeErr.Path)
}

func TestRender_MethodRoot(t *testing.T) {
	tmpl := compile(t, `collection "users" {}
attribute "name" {}`)

	s := &scope.Map{Methods: map[string]func() (any, error){
		"users": func() (any, error) {
			return []author{{Name: "a"}, {Name: "b"}}, nil
		},
	}}
	got := renderPlain(t, tmpl, s)
	assert.Equal(t, []any{map[string]any{"name": "a"}, map[string]any{"name": "b"}}, got)

	_, err := New().Render(context.Background(), tmpl, &scope.Map{})
	assert.ErrorIs(t, err, scope.ErrNoMethod)
}

func TestRender_ExpressionData(t *testing.T) {
	tmpl := compile(t, `object "@user" {}
child {
  data = element(object.posts, length(object.posts) - 1)
  as   = "latest"
  attribute "title" {}
}
node "greeting" { value = "${var.greeting}, ${object.name}" }`)

	got := renderPlain(t, tmpl, scope.New(map[string]any{
		"greeting": "Hi",
		"user": map[string]any{
			"name":  "Ada",
			"posts": []any{map[string]any{"title": "old"}, map[string]any{"title": "new"}},
		},
	}))
	assert.Equal(t, map[string]any{
		"latest":   map[string]any{"title": "new"},
		"greeting": "Hi, Ada",
	}, got)
}

func TestRender_NilAssociationOmitted(t *testing.T) {
	tmpl := compile(t, `object "@user" {}
attribute "name" {}
child "account" {
  attribute "plan" {}
}
glue "account" {
  attribute "plan" {}
}`)

	got := renderPlain(t, tmpl, scope.New(map[string]any{"user": author{Name: "Ada"}}))
	assert.Equal(t, map[string]any{"name": "Ada"}, got)
}

func TestRender_DuplicateAttributesLastWriteWins(t *testing.T) {
	tmpl := compile(t, `object "@user" {}
attribute "id" { as = "key" }
attribute "name" {}
attribute "name" { as = "key" }`)

	out, err := New().Render(context.Background(), tmpl, scope.New(map[string]any{"user": author{ID: 9, Name: "Ada"}}))
	require.NoError(t, err)
	m := out.(*Mapping)
	assert.Equal(t, []string{"key", "name"}, Keys(m))
	v, _ := m.Get("key")
	assert.Equal(t, "Ada", v)
}

func TestRender_Merge(t *testing.T) {
	tmpl := compile(t, `object "@user" {}
attribute "id" {}
merge {
  value = { id = 100, role = "admin" }
  if    = object.id > 0
}`)

	got := renderPlain(t, tmpl, scope.New(map[string]any{"user": map[string]any{"id": 1}}))
	assert.Equal(t, map[string]any{"id": int64(100), "role": "admin"}, got)

	skipped := renderPlain(t, tmpl, scope.New(map[string]any{"user": map[string]any{"id": 0}}))
	assert.Equal(t, map[string]any{"id": 0}, skipped)
}

func TestRender_MergeKeyOrder(t *testing.T) {
	tmpl := compile(t, `merge { value = { z = 1, a = 2 } }`)
	out, err := New().Render(context.Background(), tmpl, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "z"}, Keys(out.(*Mapping)))

	ordered := NewMapping()
	ordered.Set("z", 1)
	ordered.Set("a", 2)
	nodes := []node.Node{&node.Code{Merge: true, Block: func(context.Context, *node.Env) (any, error) {
		return ordered, nil
	}}}
	m, err := New().RenderNodes(context.Background(), nodes, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a"}, Keys(m))
}

func TestRender_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		src      string
		vars     map[string]any
		wantPath []string
	}{
		{
			name:     "missing struct field",
			src:      "object \"@user\" {}\nattribute \"nope\" {}",
			vars:     map[string]any{"user": author{}},
			wantPath: []string{"nope"},
		},
		{
			name:     "merge of a scalar",
			src:      "object \"@user\" {}\nmerge { value = 1 }",
			vars:     map[string]any{"user": author{}},
			wantPath: nil,
		},
		{
			name:     "non-bool condition",
			src:      "object \"@user\" {}\ncondition {\n  if = object.id\n}",
			vars:     map[string]any{"user": map[string]any{"id": 3}},
			wantPath: nil,
		},
		{
			name:     "collection template with single object",
			src:      "collection \"@users\" {}\nattribute \"id\" {}",
			vars:     map[string]any{"users": map[string]any{"id": 1}},
			wantPath: nil,
		},
		{
			name:     "nested path",
			src:      "object \"@user\" {}\nchild \"posts\" {\n  attribute \"body\" {}\n}",
			vars:     map[string]any{"user": author{Posts: []post{{ID: 1}}}},
			wantPath: []string{"posts", "0", "body"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tmpl := compile(t, tc.src)
			_, err := New().Render(context.Background(), tmpl, scope.New(tc.vars))
			require.Error(t, err)

			var typeErr *template.RenderTypeError
			require.ErrorAs(t, err, &typeErr)
			if len(tc.wantPath) > 0 {
				assert.Equal(t, tc.wantPath, typeErr.Path)
			}
		})
	}
}

func TestRender_UserErrorsPropagateUnmodified(t *testing.T) {
	boom := errors.New("boom")
	nodes := []node.Node{
		&node.Attribute{Source: "id", Output: "id"},
		&node.Code{Name: "fails", Block: func(context.Context, *node.Env) (any, error) {
			return nil, boom
		}},
	}

	_, err := New().RenderNodes(context.Background(), nodes, map[string]any{"id": 1}, nil)
	assert.Equal(t, boom, err)

	cond := []node.Node{&node.Condition{Predicate: func(context.Context, *node.Env) (bool, error) {
		return false, boom
	}}}
	_, err = New().RenderNodes(context.Background(), cond, nil, nil)
	assert.Equal(t, boom, err)
}

func TestRender_GoBlocks(t *testing.T) {
	nodes := []node.Node{
		&node.Code{Name: "kind", Block: func(_ context.Context, env *node.Env) (any, error) {
			return fmt.Sprintf("%T", env.Object), nil
		}},
		&node.Code{Merge: true, Block: func(context.Context, *node.Env) (any, error) {
			m := NewMapping()
			m.Set("b", 2)
			m.Set("a", 1)
			return m, nil
		}},
	}

	m, err := New().RenderNodes(context.Background(), nodes, author{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"kind", "b", "a"}, Keys(m))
	assert.Equal(t, map[string]any{"kind": "render.author", "b": 2, "a": 1}, Plain(m))
}

func TestRender_ConcurrentRendersShareTemplate(t *testing.T) {
	tmpl := compile(t, `object "@user" {}
attribute "id" {}
node "label" { value = "user-${object.id}" }`)

	var wg sync.WaitGroup
	errs := make([]error, 32)
	results := make([]any, 32)
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := New().Render(context.Background(), tmpl, scope.New(map[string]any{"user": map[string]any{"id": i}}))
			errs[i] = err
			results[i] = Plain(out)
		}()
	}
	wg.Wait()

	for i := range 32 {
		require.NoError(t, errs[i])
		assert.Equal(t, map[string]any{"id": i, "label": fmt.Sprintf("user-%d", i)}, results[i])
	}
}

func TestRender_CollectionProperty(t *testing.T) {
	tmpl := compile(t, `collection "@items" {}
attribute "id" {}`)

	properties := gopter.NewProperties(nil)
	properties.Property("each element renders independently and in order", prop.ForAll(
		func(ids []int) bool {
			items := make([]map[string]any, len(ids))
			for i, id := range ids {
				items[i] = map[string]any{"id": id, "ignored": "x"}
			}
			out, err := New().Render(context.Background(), tmpl, scope.New(map[string]any{"items": items}))
			if err != nil {
				return false
			}
			list, ok := out.([]any)
			if !ok || len(list) != len(ids) {
				return false
			}
			for i, id := range ids {
				m := list[i].(*Mapping)
				v, _ := m.Get("id")
				if v != id || m.Len() != 1 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int()),
	))

	properties.TestingRun(t)
}
