package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/R3E-Network/mode_orchestrator/pkg/logger"
)

// ErrCorrupt reports a backing document that cannot be decoded.
var ErrCorrupt = errors.New("storage: corrupt document")

// File persists key-value pairs as a single JSON document. Writes go to a
// temporary file that is renamed over the target.
type File struct {
	mu   sync.Mutex
	path string
	log  *logger.Logger
}

// FileOption configures a File.
type FileOption func(*File)

// WithFileLogger sets the logger used to report a replaced corrupt document.
func WithFileLogger(log *logger.Logger) FileOption {
	return func(f *File) {
		if log != nil {
			f.log = log
		}
	}
}

// NewFile returns a file-backed store rooted at path. The parent directory is
// created if missing; the file itself is created on first Set.
func NewFile(path string, opts ...FileOption) (*File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: create dir: %w", err)
		}
	}
	f := &File{path: path}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.NewDefault("storage")
	}
	return f, nil
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Get returns the stored value or ErrNotFound.
func (f *File) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.readLocked()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores a value, rewriting the document. A corrupt document is
// replaced by one holding only the new value.
func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.readLocked()
	if errors.Is(err, ErrCorrupt) {
		f.log.WithError(err).WithField("path", f.path).Warn("replacing corrupt mode document")
		values = make(map[string]string)
	} else if err != nil {
		return err
	}
	values[key] = value

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".mode-*.tmp")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}

func (f *File) readLocked() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read: %w", err)
	}

	values := make(map[string]string)
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, f.path, err)
	}
	return values, nil
}
