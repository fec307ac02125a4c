package app

import (
	"testing"

	"github.com/vk/stacgridgo/internal/config"
	"github.com/vk/stacgridgo/internal/registry"
	"github.com/vk/stacgridgo/internal/testutil"
	"github.com/vk/stacgridgo/modules/memraster"
)

// setupAppTest builds an App over an in-memory raster store, with model
// already loaded. Logs go to the returned buffer.
func setupAppTest(t *testing.T, cfg Config, model *config.Model) (*App, *memraster.Store, *testutil.SafeBuffer) {
	t.Helper()
	if cfg.ItemsPath == "" {
		cfg.ItemsPath = "unused"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	c, err := NewConfig(cfg)
	if err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	store := memraster.NewStore()
	buf := &testutil.SafeBuffer{}
	a := NewApp(buf, c, nil, []registry.Module{&memraster.Module{Store: store}}...)
	if model != nil {
		a.model = model
	}
	t.Cleanup(func() { testutil.DumpLogs(t, buf) })
	return a, store, buf
}

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func ptr[T any](v T) *T { return &v }
