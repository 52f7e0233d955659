package node

import (
	"github.com/vk/jsonshape/internal/scope"
)

// Env is the evaluation environment of one object during one render. It is
// created by the renderer per object and is not shared between goroutines.
type Env struct {
	Object any
	Scope  scope.Scope

	memo map[string]any
}

// NewEnv returns an environment for obj.
func NewEnv(obj any, s scope.Scope) *Env {
	return &Env{Object: obj, Scope: s}
}

// Memo returns the value cached under key, computing it with fn on first
// use. Failed computations are not cached.
func (e *Env) Memo(key string, fn func() (any, error)) (any, error) {
	if v, ok := e.memo[key]; ok {
		return v, nil
	}
	v, err := fn()
	if err != nil {
		return nil, err
	}
	if e.memo == nil {
		e.memo = make(map[string]any)
	}
	e.memo[key] = v
	return v, nil
}
