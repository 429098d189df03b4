package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// fileFormat is the layout of a SOURCES_FILE document.
type fileFormat struct {
	Sources []Descriptor `yaml:"sources"`
}

// Build turns descriptors into adapters. Disabled entries are skipped and
// duplicate names are rejected.
func Build(descs []Descriptor) ([]Adapter, error) {
	seen := make(map[string]struct{}, len(descs))
	adapters := make([]Adapter, 0, len(descs))
	var errs []error
	for _, d := range descs {
		if d.Disabled {
			continue
		}
		if _, dup := seen[d.Name]; dup {
			errs = append(errs, fmt.Errorf("source %s: duplicate name", d.Name))
			continue
		}
		seen[d.Name] = struct{}{}
		a, err := NewSelectorAdapter(d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		adapters = append(adapters, a)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return adapters, nil
}

// LoadFile reads a YAML source table.
func LoadFile(path string) ([]Adapter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}
	if len(f.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s: no sources defined", path)
	}
	return Build(f.Sources)
}

// Registry holds the current source table. Readers take an immutable
// snapshot per search; Reload swaps the table atomically.
type Registry struct {
	path    string
	current atomic.Pointer[[]Adapter]
}

// NewRegistry returns a registry holding adapters.
func NewRegistry(adapters []Adapter) *Registry {
	r := &Registry{}
	r.set(adapters)
	return r
}

// Open loads the table from path, or the built-in table when path is empty.
func Open(path string) (*Registry, error) {
	if path == "" {
		adapters, err := Build(Builtin)
		if err != nil {
			return nil, fmt.Errorf("builtin sources: %w", err)
		}
		return NewRegistry(adapters), nil
	}
	adapters, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	r := NewRegistry(adapters)
	r.path = path
	return r, nil
}

func (r *Registry) set(adapters []Adapter) {
	snap := make([]Adapter, len(adapters))
	copy(snap, adapters)
	r.current.Store(&snap)
}

// Snapshot returns the current table. Callers must not modify it.
func (r *Registry) Snapshot() []Adapter {
	if p := r.current.Load(); p != nil {
		return *p
	}
	return nil
}

// Reload re-reads the backing file. On error the previous table stays active.
func (r *Registry) Reload() error {
	if r.path == "" {
		return nil
	}
	adapters, err := LoadFile(r.path)
	if err != nil {
		return err
	}
	r.set(adapters)
	return nil
}

// Watch reloads the table whenever the backing file changes, until ctx is
// done. It watches the parent directory so editors that replace the file
// atomically are picked up too.
func (r *Registry) Watch(ctx context.Context, log *zap.Logger) error {
	if r.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	if err := w.Add(filepath.Dir(r.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", r.path, err)
	}

	target := filepath.Clean(r.path)
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				if err := r.Reload(); err != nil {
					log.Warn("source table reload failed, keeping previous table", zap.Error(err))
					continue
				}
				log.Info("source table reloaded", zap.Int("sources", len(r.Snapshot())))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("source watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
