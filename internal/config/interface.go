package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given paths and translates it into
	// the format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// DirKey is the Dispatch entry used for directory paths.
const DirKey = "/"

// Dispatch routes each path to the loader registered for its extension and
// merges the results in path order.
type Dispatch map[string]Loader

// Load implements Loader.
func (d Dispatch) Load(ctx context.Context, paths ...string) (*Model, error) {
	out := New()
	for _, p := range paths {
		key := strings.ToLower(filepath.Ext(p))
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			key = DirKey
		}
		l, ok := d[key]
		if !ok {
			return nil, fmt.Errorf("no configuration loader for %s", p)
		}
		m, err := l.Load(ctx, p)
		if err != nil {
			return nil, err
		}
		if err := out.Merge(m); err != nil {
			return nil, fmt.Errorf("merge %s: %w", p, err)
		}
	}
	return out, nil
}
