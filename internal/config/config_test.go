package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoader struct {
	model *Model
	calls []string
}

func (s *stubLoader) Load(_ context.Context, paths ...string) (*Model, error) {
	s.calls = append(s.calls, paths...)
	m := New()
	if s.model != nil {
		*m = *s.model
	}
	m.Sources = paths
	return m, nil
}

func TestMerge(t *testing.T) {
	t.Parallel()
	zero := 0.0

	m := New()
	require.NoError(t, m.Merge(&Model{
		Load: &Load{Bands: []string{"red"}},
		Collections: map[string]*Collection{
			"s2": {Name: "s2", Assets: map[string]*Asset{"B04": {Name: "B04", DataType: "uint16"}}, Warnings: "all"},
		},
	}))
	require.NoError(t, m.Merge(&Model{
		Collections: map[string]*Collection{
			"s2": {Name: "s2", Assets: map[string]*Asset{"B04": {Name: "B04", DataType: "uint16", Nodata: &zero}}, IgnoreProj: true, Warnings: "ignore"},
			"*":  {Name: "*", Aliases: map[string][]string{"red": {"B04"}}},
		},
	}))

	assert.Equal(t, []string{"*", "s2"}, m.CollectionNames())
	s2 := m.Collections["s2"]
	assert.Equal(t, &zero, s2.Assets["B04"].Nodata, "later source wins per asset")
	assert.True(t, s2.IgnoreProj)
	assert.Equal(t, "ignore", s2.Warnings)

	err := m.Merge(&Model{Load: &Load{}})
	require.ErrorIs(t, err, ErrDuplicate)
	assert.EqualError(t, err, "load section defined more than once")
}

func TestDispatch(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	dir := t.TempDir()
	hclFile := filepath.Join(dir, "load.hcl")
	yamlFile := filepath.Join(dir, "cfg.YAML")
	for _, p := range []string{hclFile, yamlFile} {
		require.NoError(t, os.WriteFile(p, nil, 0o600))
	}
	hcl := &stubLoader{model: &Model{Load: &Load{CRS: "EPSG:3857"}}}
	yml := &stubLoader{}
	d := Dispatch{".hcl": hcl, DirKey: hcl, ".yaml": yml}

	// --- Act ---
	m, err := d.Load(context.Background(), hclFile, yamlFile)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "EPSG:3857", m.Load.CRS)
	assert.Equal(t, []string{hclFile, yamlFile}, m.Sources)
	assert.Equal(t, []string{hclFile}, hcl.calls)

	_, err = d.Load(context.Background(), dir)
	require.NoError(t, err, "directories go to the DirKey loader")

	_, err = d.Load(context.Background(), filepath.Join(dir, "x.toml"))
	assert.ErrorContains(t, err, "no configuration loader for")

	_, err = d.Load(context.Background(), hclFile, dir)
	assert.ErrorIs(t, err, ErrDuplicate)
}
