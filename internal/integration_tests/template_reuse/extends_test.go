package integration_tests

import (
	"bytes"
	"testing"

	"github.com/vk/jsonshape/internal/scope"
	"github.com/vk/jsonshape/internal/testutil"
)

// Test for: extends splices the parent's nodes at the directive's position
func TestTemplateReuse_Extends(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := map[string]string{
		"users/base.hcl": `
			attributes "id" "name" {}
		`,
		"users/show.hcl": `
			object "@user" {}
			attribute "role" {}
			extends "users/base" {}
			attribute "email" {}
		`,
	}
	vars := map[string]any{"user": map[string]any{
		"id": 3, "name": "grace", "role": "admin", "email": "g@example.com",
	}}

	// --- Act ---
	result := testutil.RunRenderTest(t, files, nil, "users/show", vars)

	// --- Assert ---
	if result.Err != nil {
		t.Fatalf("render failed: %v", result.Err)
	}
	want := `{"role":"admin","id":3,"name":"grace","email":"g@example.com"}` + "\n"
	if result.Output != want {
		t.Errorf("expected %q, got %q", want, result.Output)
	}
}

// Test for: a child rendered through a partial template
func TestTemplateReuse_ChildPartial(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"posts/item.hcl": `
			attributes "title" {}
			node "slug" { value = lower(object.title) }
		`,
		"users/show.hcl": `
			object "@user" {}
			attribute "name" {}
			child "@posts" {
				as      = "posts"
				partial = "posts/item"
			}
		`,
	}
	vars := map[string]any{
		"user":  map[string]any{"name": "ada"},
		"posts": []any{map[string]any{"title": "Hello"}},
	}

	result := testutil.RunRenderTest(t, files, nil, "users/show", vars)

	testutil.AssertJSON(t, result, `{"name": "ada", "posts": [{"title": "Hello", "slug": "hello"}]}`)
}

// Test for: a partial shared by two templates is compiled once
func TestTemplateReuse_SharedPartialCompiledOnce(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"shared/stamp.hcl": `node "stamp" { value = "v1" }`,
		"a.hcl":            `extends "shared/stamp" {}`,
		"b.hcl":            `glue "@x" { partial = "shared/stamp" }`,
	}
	vars := map[string]any{"x": map[string]any{}}

	testApp, _, _ := testutil.NewTestApp(t, files, nil)
	for _, id := range []string{"a", "b"} {
		var out bytes.Buffer
		_, err := testApp.Render(t.Context(), &out, id, scope.New(vars))
		testutil.AssertJSON(t, &testutil.HarnessResult{Output: out.String(), Err: err}, `{"stamp": "v1"}`)
	}

	if got := testApp.Library().Len(); got != 3 {
		t.Errorf("expected 3 cached templates, got %d", got)
	}
}
