package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type fileStorage struct {
	config FileConfig
}

type FileConfig struct {
	// Directory is the root every location is confined to. Absolute locations
	// are accepted when they lie inside it.
	Directory string
	// AllowOutsideDirectory lets absolute and parent-relative locations reach
	// the whole filesystem. Only for trusted callers such as a local CLI.
	AllowOutsideDirectory bool
}

// NewFileStorage creates a new file storage backend
func NewFileStorage(ctx context.Context, f FileConfig) (Storage, error) {
	if f.Directory == "" {
		f.Directory = "."
	}

	return &fileStorage{
		config: f,
	}, nil
}

// name returns location relative to Directory, or ErrInvalidLocation when it
// would leave it.
func (a *fileStorage) name(location string) (string, error) {
	name := location
	if filepath.IsAbs(location) {
		directory, err := filepath.Abs(a.config.Directory)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", a.config.Directory, err)
		}
		rel, err := filepath.Rel(directory, filepath.Clean(location))
		if err != nil {
			return "", fmt.Errorf("%w: %s is outside %s", ErrInvalidLocation, location, a.config.Directory)
		}
		name = rel
	}

	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %s is outside %s", ErrInvalidLocation, location, a.config.Directory)
	}
	return filepath.Clean(name), nil
}

func (a *fileStorage) Validate(location string) error {
	if location == "" {
		return fmt.Errorf("%w: empty location", ErrInvalidLocation)
	}
	if a.config.AllowOutsideDirectory {
		return nil
	}
	_, err := a.name(location)
	return err
}

func (a *fileStorage) Put(ctx context.Context, location string, data []byte) (string, error) {
	if a.config.AllowOutsideDirectory {
		return a.putUnconfined(location, data)
	}

	name, err := a.name(location)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(a.config.Directory, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	root, err := os.OpenRoot(a.config.Directory)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", a.config.Directory, err)
	}
	defer root.Close()

	if err := mkdirAllInRoot(root, filepath.Dir(name)); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return filepath.Join(a.config.Directory, name), nil
}

func (a *fileStorage) putUnconfined(location string, data []byte) (string, error) {
	filePath := location
	if !filepath.IsAbs(location) {
		filePath = filepath.Join(a.config.Directory, location)
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return filepath.Clean(filePath), nil
}

// mkdirAllInRoot creates dir and its parents one component at a time, so a
// symlink in the path cannot lead outside root.
func mkdirAllInRoot(root *os.Root, dir string) error {
	if dir == "." {
		return nil
	}

	current := ""
	for _, component := range strings.Split(dir, string(filepath.Separator)) {
		current = filepath.Join(current, component)
		if err := root.Mkdir(current, 0755); err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
	}
	return nil
}

func (a *fileStorage) Get(ctx context.Context, location string) ([]byte, error) {
	data, err := a.read(location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read file %s: %w", location, errors.Join(ErrNotExist, err))
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return data, nil
}

func (a *fileStorage) read(location string) ([]byte, error) {
	if a.config.AllowOutsideDirectory {
		if filepath.IsAbs(location) {
			return os.ReadFile(location)
		}
		return os.ReadFile(filepath.Join(a.config.Directory, location))
	}

	name, err := a.name(location)
	if err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(a.config.Directory)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	f, err := root.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func (a *fileStorage) Exists(ctx context.Context, location string) (bool, error) {
	info, err := a.stat(location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", location)
	}

	return true, nil
}

func (a *fileStorage) stat(location string) (fs.FileInfo, error) {
	if a.config.AllowOutsideDirectory {
		if filepath.IsAbs(location) {
			return os.Stat(location)
		}
		return os.Stat(filepath.Join(a.config.Directory, location))
	}

	name, err := a.name(location)
	if err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(a.config.Directory)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	return root.Stat(name)
}
