package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"github.com/vk/jsonshape/internal/app"
	"github.com/vk/jsonshape/internal/scope"
)

type renderOptions struct {
	data    string
	selects map[string]string
	vars    map[string]string
	out     string
	watch   bool
}

func newRenderCommand(e *env) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render TEMPLATE",
		Short: "Render a template against a JSON document",
		Long: `Render compiles TEMPLATE and renders it. Every top-level key of the --data
document becomes an instance variable ("@name" in templates, var.name in
expressions). --select binds the result of a JSONPath query to a name.`,
		Example: `  jsonshape render users/show --data fixtures/user.json
  jsonshape render users/index --data db.json --select users='$.users[*]' --format yaml
  jsonshape render users/show --data user.json --out build/user.json --watch`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cfg, err := e.newApp()
			if err != nil {
				return err
			}
			opts.watch = opts.watch || cfg.Watch
			return runRender(cmd.Context(), e, a, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.data, "data", "d", "", "JSON document providing instance variables; '-' reads stdin.")
	flags.StringToStringVarP(&opts.selects, "select", "s", nil, "Bind NAME=JSONPATH, evaluated against the data document.")
	flags.StringToStringVar(&opts.vars, "var", nil, "Bind NAME=VALUE as a string instance variable.")
	flags.StringVarP(&opts.out, "out", "o", "", "Write output to this file atomically instead of stdout.")
	flags.BoolVarP(&opts.watch, "watch", "w", false, "Re-render whenever a template in the views directory changes.")
	return cmd
}

func runRender(ctx context.Context, e *env, a *app.App, identifier string, opts *renderOptions) error {
	s, err := buildScope(e.stdin, opts)
	if err != nil {
		return err
	}
	if err := renderOnce(ctx, e, a, identifier, s, opts); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}

	changes := make(chan string, 1)
	w, err := a.Watch(ctx, func(id string, _ fsnotify.Op) {
		select {
		case changes <- id:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()
	a.Logger().Info("Watching for template changes.", "template", identifier)

	for {
		select {
		case <-ctx.Done():
			return nil
		case changed := <-changes:
			a.Logger().Info("Re-rendering.", "template", identifier, "changed", changed)
			if err := renderOnce(ctx, e, a, identifier, s, opts); err != nil {
				a.Logger().Error("Render failed.", "template", identifier, "error", err)
			}
		}
	}
}

func renderOnce(ctx context.Context, e *env, a *app.App, identifier string, s scope.Scope, opts *renderOptions) error {
	if opts.out == "" {
		_, err := a.Render(ctx, e.stdout, identifier, s)
		return err
	}

	var buf bytes.Buffer
	n, err := a.Render(ctx, &buf, identifier, s)
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(opts.out, &buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.out, err)
	}
	a.Logger().Info("Output written.", "file", opts.out, "size", humanize.Bytes(uint64(n)))
	return nil
}

// buildScope loads the data document and applies --select and --var
// bindings.
func buildScope(stdin io.Reader, opts *renderOptions) (*scope.Map, error) {
	s := scope.New(map[string]any{})
	if opts.data != "" {
		data, err := readData(stdin, opts.data)
		if err != nil {
			return nil, err
		}
		if s, err = scope.FromJSON(data); err != nil {
			return nil, usageError("%v", err)
		}
	}

	names := make([]string, 0, len(opts.selects))
	for name := range opts.selects {
		names = append(names, name)
	}
	sort.Strings(names)
	selected := s
	for _, name := range names {
		v, err := scope.Select(s, opts.selects[name])
		if err != nil {
			return nil, usageError("--select %s: %v", name, err)
		}
		selected = selected.WithVar(name, v)
	}
	s = selected

	for name, value := range opts.vars {
		s = s.WithVar(name, value)
	}
	return s, nil
}

func readData(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read data from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, usageError("data file not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data file %s: %w", path, err)
	}
	return data, nil
}
