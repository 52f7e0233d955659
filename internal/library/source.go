package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/vk/jsonshape/internal/ctxlog"
	"github.com/vk/jsonshape/internal/fsutil"
)

// Extension is the file extension of template sources.
const Extension = ".hcl"

// ErrNotFound is returned by Load when no template has the identifier.
var ErrNotFound = errors.New("no such template")

// Loader resolves a template identifier to its source. The second return
// value names where the source came from and is used in diagnostics.
type Loader interface {
	Load(ctx context.Context, identifier string) ([]byte, string, error)
}

// Source loads templates from a views directory. The identifier
// "users/show" maps to <dir>/users/show.hcl.
type Source struct {
	dir string
}

// NewSource returns a Source rooted at dir. The directory must exist.
func NewSource(dir string) (*Source, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("views path not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("error accessing views path %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("views path is not a directory: %s", dir)
	}
	return &Source{dir: dir}, nil
}

// Dir returns the views directory.
func (s *Source) Dir() string {
	return s.dir
}

// Path returns the file an identifier maps to. Identifiers are slash
// separated, relative, and may not leave the views directory.
func (s *Source) Path(identifier string) (string, error) {
	identifier = strings.TrimSuffix(identifier, Extension)
	clean := path.Clean(identifier)
	if identifier == "" || clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid template identifier %q", identifier)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)+Extension), nil
}

// Identifier maps a file path under the views directory back to its
// identifier. ok is false for paths outside the directory or without the
// template extension.
func (s *Source) Identifier(file string) (string, bool) {
	if filepath.Ext(file) != Extension {
		return "", false
	}
	rel, err := filepath.Rel(s.dir, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return strings.TrimSuffix(filepath.ToSlash(rel), Extension), true
}

// Load implements Loader.
func (s *Source) Load(ctx context.Context, identifier string) ([]byte, string, error) {
	file, err := s.Path(identifier)
	if err != nil {
		return nil, "", err
	}
	ctxlog.FromContext(ctx).Debug("Loading template source.", "template", identifier, "file", file)

	data, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return nil, file, fmt.Errorf("%w: %s", ErrNotFound, file)
	}
	if err != nil {
		return nil, file, fmt.Errorf("error reading template %s: %w", file, err)
	}
	return data, file, nil
}

// List returns the identifiers of every template in the views directory,
// sorted.
func (s *Source) List() ([]string, error) {
	files, err := fsutil.FindFilesByExtension(s.dir, Extension)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates in %s: %w", s.dir, err)
	}
	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = strings.TrimSuffix(f, Extension)
	}
	return ids, nil
}
