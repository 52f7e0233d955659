// Package testutil provides the integration test harness: it writes view
// templates into a temporary directory, builds an App around them and
// captures logs and output.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/jsonshape/internal/app"
	"github.com/vk/jsonshape/internal/scope"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Output    string
	Err       error
	App       *app.App
}

// WriteViews writes files (relative path to content) below a fresh temporary
// directory and returns the directory.
func WriteViews(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	}
	return dir
}

// NewTestApp builds an App over the given view files. cfg may be nil; its
// ViewsPath is always replaced and debug logging is forced.
func NewTestApp(t *testing.T, files map[string]string, cfg *app.Config) (*app.App, *SafeBuffer, string) {
	t.Helper()

	dir := WriteViews(t, files)
	if cfg == nil {
		cfg = &app.Config{}
	}
	c := *cfg
	c.ViewsPath = dir
	c.LogLevel = "debug"
	c.LogFormat = "text"

	validated, err := app.NewConfig(c)
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}
	testApp, err := app.NewApp(logBuffer, validated)
	require.NoError(t, err)

	t.Cleanup(func() {
		if os.Getenv("JSONSHAPE_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})
	return testApp, logBuffer, dir
}

// RunRenderTest renders identifier against vars with a fresh App built over
// files.
func RunRenderTest(t *testing.T, files map[string]string, cfg *app.Config, identifier string, vars map[string]any) *HarnessResult {
	t.Helper()
	return RunRenderTestWithContext(context.Background(), t, files, cfg, identifier, vars)
}

// RunRenderTestWithContext is RunRenderTest with a caller supplied context.
func RunRenderTestWithContext(ctx context.Context, t *testing.T, files map[string]string, cfg *app.Config, identifier string, vars map[string]any) *HarnessResult {
	t.Helper()

	testApp, logBuffer, _ := NewTestApp(t, files, cfg)

	var out bytes.Buffer
	_, err := testApp.Render(ctx, &out, identifier, scope.New(vars))

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Output:    out.String(),
		Err:       err,
		App:       testApp,
	}
}
