package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stacgridgo/internal/model"
)

func src(uri string) Source {
	return Source{ItemID: uri, Key: model.BandKey{Asset: "b", Index: 1}, Src: &model.RasterSource{URI: uri, Band: 1}}
}

func chunk(t *testing.T, p *Plan, time int, uris ...string) *Task {
	t.Helper()
	c := &Task{ID: ChunkID(time, "b", 0, 0), Kind: KindChunk, Time: time, Band: "b"}
	for _, u := range uris {
		s := src(u)
		p.AddOpen(&s)
		c.Sources = append(c.Sources, s)
	}
	require.NoError(t, p.AddChunk(c))
	return c
}

func TestPlan_SharedResourcesOpenedOnce(t *testing.T) {
	// --- Arrange ---
	p := NewPlan()

	// --- Act ---
	c0 := chunk(t, p, 0, "a.tif", "b.tif", "a.tif")
	c1 := chunk(t, p, 1, "b.tif")

	// --- Assert ---
	require.NoError(t, p.Validate())
	assert.Len(t, p.Opens, 2)
	assert.Equal(t, 4, p.Len())
	assert.Equal(t, []string{"open/a.tif", "open/b.tif"}, c0.Resources())
	assert.Equal(t, []string{"open/a.tif", "open/b.tif"}, p.Graph.Roots())

	dependents, err := p.Graph.Dependents("open/b.tif")
	require.NoError(t, err)
	assert.Equal(t, []string{c0.ID, c1.ID}, dependents)
}

func TestPlan_DuplicateChunk(t *testing.T) {
	p := NewPlan()
	chunk(t, p, 0, "a.tif")
	err := p.AddChunk(&Task{ID: ChunkID(0, "b", 0, 0), Kind: KindChunk})
	assert.ErrorContains(t, err, "duplicate task")
	assert.Error(t, p.AddChunk(&Task{ID: "x", Kind: KindOpen}))
}

func TestPlan_Subset(t *testing.T) {
	p := NewPlan()
	chunk(t, p, 0, "a.tif")
	c1 := chunk(t, p, 1, "b.tif", "c.tif")

	sub := p.Subset(func(c *Task) bool { return c.Time == 1 })
	require.NoError(t, sub.Validate())
	assert.Equal(t, []*Task{c1}, sub.Chunks)
	assert.Len(t, sub.Opens, 2)
	_, ok := sub.Task("open/a.tif")
	assert.False(t, ok)
}

func TestIDs(t *testing.T) {
	assert.Equal(t, "chunk/3/red/1/2", ChunkID(3, "red", 1, 2))
	assert.Equal(t, "open/s3://b/k.tif", OpenID("s3://b/k.tif"))
	assert.Equal(t, "chunk", KindChunk.String())
}
