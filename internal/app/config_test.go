package app

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig(Config{ViewsPath: "views"})
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestNewConfig_Normalizes(t *testing.T) {
	cfg, err := NewConfig(Config{ViewsPath: "views", Format: "YAML", LogFormat: "JSON", LogLevel: "Debug"})
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.Format)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestNewConfig_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      Config
		contains string
	}{
		{name: "missing views", cfg: Config{}, contains: "ViewsPath"},
		{name: "unknown format", cfg: Config{ViewsPath: "v", Format: "xml"}, contains: "unknown format"},
		{name: "negative indent", cfg: Config{ViewsPath: "v", Indent: -1}, contains: "indent"},
		{name: "negative cache size", cfg: Config{ViewsPath: "v", CacheSize: -1}, contains: "CacheSize"},
		{name: "negative render cache size", cfg: Config{ViewsPath: "v", RenderCacheSize: -2}, contains: "RenderCacheSize"},
		{name: "bad log format", cfg: Config{ViewsPath: "v", LogFormat: "xml"}, contains: "LogFormat"},
		{name: "bad log level", cfg: Config{ViewsPath: "v", LogLevel: "loud"}, contains: "LogLevel"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfig(tc.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}

func TestNewApp_MissingViews(t *testing.T) {
	cfg, err := NewConfig(Config{ViewsPath: t.TempDir() + "/missing"})
	require.NoError(t, err)
	_, err = NewApp(io.Discard, cfg)
	assert.ErrorContains(t, err, "views path not found")
}
