package bundle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	stagingPrefix = ".staging-"
	trashPrefix   = ".trash-"
)

// FSStore keeps each bundle in its own directory under a root directory:
//
//	<root>/<name>/model.json
//	<root>/<name>/transformer.json
//	<root>/<name>/config.json
//
// Writes are staged in a hidden sibling directory and renamed into place, and
// deletes rename the bundle away before removing it, so List never observes a
// half-written or half-removed bundle. Entries starting with '.' are ignored.
type FSStore struct {
	root string
}

// NewFSStore creates a store rooted at dir, creating dir if needed.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, errors.New("model directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create model directory: %w", err)
	}
	return &FSStore{root: dir}, nil
}

// Backend returns BackendFS.
func (s *FSStore) Backend() string { return BackendFS }

// Root returns the store's directory.
func (s *FSStore) Root() string {
	return s.root
}

// List implements Store.
func (s *FSStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list model directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if s.complete(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (s *FSStore) complete(name string) bool {
	for _, f := range RequiredArtifacts {
		info, err := os.Stat(filepath.Join(s.root, name, f))
		if err != nil || !info.Mode().IsRegular() {
			return false
		}
	}
	return true
}

// Exists implements Store.
func (s *FSStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	info, err := os.Stat(filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// Read implements Store.
func (s *FSStore) Read(ctx context.Context, name, filename string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, name, filepath.Base(filename)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrBundleNotFound, name, filename)
		}
		return nil, fmt.Errorf("failed to read %s/%s: %w", name, filename, err)
	}
	return data, nil
}

// Write implements Store. An existing bundle of the same name is replaced;
// between moving the old directory out and the new one in, the name is
// briefly absent.
func (s *FSStore) Write(ctx context.Context, name string, artifacts []Artifact) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	staging := filepath.Join(s.root, stagingPrefix+uuid.New().String())
	if err := os.Mkdir(staging, 0o755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	cleanup := true
	defer func() {
		if cleanup {
			if err := os.RemoveAll(staging); err != nil {
				slog.Warn("failed to remove staging directory", "path", staging, "error", err)
			}
		}
	}()

	for _, a := range artifacts {
		if err := writeFileSync(filepath.Join(staging, filepath.Base(a.Filename)), a.Data); err != nil {
			return fmt.Errorf("failed to write %s: %w", a.Filename, err)
		}
	}

	target := filepath.Join(s.root, name)
	var trash string
	if _, err := os.Stat(target); err == nil {
		trash = filepath.Join(s.root, trashPrefix+uuid.New().String())
		if err := os.Rename(target, trash); err != nil {
			return fmt.Errorf("failed to replace model %s: %w", name, err)
		}
	}

	if err := os.Rename(staging, target); err != nil {
		if trash != "" {
			// put the previous bundle back
			if rerr := os.Rename(trash, target); rerr != nil {
				slog.Error("failed to restore model after write failure", "model", name, "error", rerr)
			}
		}
		return fmt.Errorf("failed to publish model %s: %w", name, err)
	}
	cleanup = false

	if trash != "" {
		if err := os.RemoveAll(trash); err != nil {
			slog.Warn("failed to remove replaced model", "path", trash, "error", err)
		}
	}
	return nil
}

// Delete implements Store.
func (s *FSStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	target := filepath.Join(s.root, name)
	if _, err := os.Stat(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrBundleNotFound, name)
		}
		return err
	}

	trash := filepath.Join(s.root, trashPrefix+uuid.New().String())
	if err := os.Rename(target, trash); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrBundleNotFound, name)
		}
		return fmt.Errorf("failed to delete model %s: %w", name, err)
	}
	if err := os.RemoveAll(trash); err != nil {
		slog.Warn("failed to remove deleted model", "path", trash, "error", err)
	}
	return nil
}

// Sweep removes staging and trash directories left behind by a crash.
// Call it at startup before serving traffic.
func (s *FSStore) Sweep() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	var errs []error
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), stagingPrefix) || strings.HasPrefix(e.Name(), trashPrefix) {
			if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
