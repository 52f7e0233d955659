package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/vk/jsonshape/internal/ctxlog"
	"github.com/vk/jsonshape/internal/format"
	"github.com/vk/jsonshape/internal/library"
	"github.com/vk/jsonshape/internal/render"
	"github.com/vk/jsonshape/internal/rendercache"
)

// App encapsulates the application's dependencies and configuration.
type App struct {
	logger   *slog.Logger
	config   *Config
	source   *library.Source
	library  *library.Library
	renderer *render.Renderer
	cache    *rendercache.Cache
	encoder  format.Encoder
}

// NewApp is the constructor for the main application. Logs go to logW; the
// rendered output is written wherever the caller of Render asks.
func NewApp(logW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	source, err := library.NewSource(cfg.ViewsPath)
	if err != nil {
		return nil, err
	}
	lib, err := library.New(source, cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	cache, err := rendercache.New(cfg.RenderCacheSize)
	if err != nil {
		return nil, err
	}
	encoder, err := format.Lookup(cfg.Format, cfg.Indent)
	if err != nil {
		return nil, err
	}
	logger.Debug("Application wired.", "views", cfg.ViewsPath, "format", cfg.Format)

	return &App{
		logger:   logger,
		config:   cfg,
		source:   source,
		library:  lib,
		renderer: render.New(),
		cache:    cache,
		encoder:  encoder,
	}, nil
}

// Logger returns the application's logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Context returns ctx carrying the application's logger.
func (a *App) Context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// Library returns the template library. This is primarily for testing.
func (a *App) Library() *library.Library {
	return a.library
}

// Encoder returns the configured output encoder.
func (a *App) Encoder() format.Encoder {
	return a.encoder
}

// Watch purges compiled templates whenever the views directory changes.
// The watcher stops when ctx is done.
func (a *App) Watch(ctx context.Context, onChange library.ChangeHandler) (*library.Watcher, error) {
	ctx = a.Context(ctx)
	w, err := a.library.Watch(ctx, a.source, func(identifier string, op fsnotify.Op) {
		a.cache.Purge()
		a.logger.Info("Template changed.", "template", identifier, "op", op.String())
		if onChange != nil {
			onChange(identifier, op)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to watch views: %w", err)
	}
	return w, nil
}
