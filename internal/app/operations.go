package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vk/jsonshape/internal/format"
	"github.com/vk/jsonshape/internal/node"
	"github.com/vk/jsonshape/internal/scope"
)

// RenderValue compiles the template identifier (through the cache), renders
// it against s and applies the configured root wrapping.
func (a *App) RenderValue(ctx context.Context, identifier string, s scope.Scope) (any, error) {
	ctx = a.Context(ctx)
	logger := a.logger.With("template", identifier)
	started := time.Now()

	tmpl, err := a.library.Fetch(ctx, identifier, s)
	if err != nil {
		return nil, err
	}

	obj, err := a.renderer.Root(ctx, tmpl, s)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root object of %s: %w", identifier, err)
	}
	v, err := a.cache.Fetch(ctx, tmpl, obj, s, func() (any, error) {
		return a.renderer.RenderObject(ctx, tmpl, obj, s)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", identifier, err)
	}

	wrapped := format.Wrap(v, tmpl, format.Options{
		IncludeRoot:      a.config.IncludeRoot,
		IncludeChildRoot: a.config.IncludeChildRoot,
	})
	logger.Debug("Template rendered.", "duration", time.Since(started))
	return wrapped, nil
}

// Render renders the template identifier against s and writes it to w in
// the configured format. It returns the number of bytes written.
func (a *App) Render(ctx context.Context, w io.Writer, identifier string, s scope.Scope) (int64, error) {
	v, err := a.RenderValue(ctx, identifier, s)
	if err != nil {
		return 0, err
	}
	cw := &countingWriter{w: w}
	if err := a.encoder.Encode(cw, v); err != nil {
		return cw.n, err
	}
	a.logger.Debug("Output written.", "template", identifier, "size", humanize.Bytes(uint64(cw.n)))
	return cw.n, nil
}

// Compile compiles the template identifier and writes an outline of its
// nodes to w.
func (a *App) Compile(ctx context.Context, w io.Writer, identifier string, s scope.Scope) error {
	ctx = a.Context(ctx)
	tmpl, err := a.library.Fetch(ctx, identifier, s)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "template %s\n  data %s\n  root %s\n", identifier, tmpl.Data, tmpl.Root); err != nil {
		return err
	}
	if tmpl.Collection {
		if _, err := fmt.Fprintf(w, "  collection, object root %s\n", tmpl.ObjectRoot); err != nil {
			return err
		}
	}
	if tmpl.Cache.Enabled {
		if _, err := fmt.Fprintln(w, "  cached"); err != nil {
			return err
		}
	}
	return node.Describe(w, tmpl.Nodes())
}

// List writes the identifier of every template in the views directory to w,
// one per line.
func (a *App) List(ctx context.Context, w io.Writer) error {
	ids, err := a.source.List()
	if err != nil {
		return err
	}
	a.logger.Debug("Templates listed.", "count", len(ids))
	for _, id := range ids {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
