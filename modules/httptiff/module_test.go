package httptiff

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/stacgridgo/internal/env"
	"github.com/vk/stacgridgo/internal/geo"
	"github.com/vk/stacgridgo/internal/geotiff"
	"github.com/vk/stacgridgo/internal/registry"
	"github.com/vk/stacgridgo/internal/retry"
)

func tiffBytes(t *testing.T) []byte {
	t.Helper()
	gb, err := geo.NewGeoBox(geo.WGS84, geo.Affine{A: 0.1, C: 10, E: -0.1, F: 50}, 2, 1)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, geotiff.Encode(&buf, &geotiff.Image{
		Width: 2, Height: 1, DataType: "uint8", GeoBox: &gb,
		Bands: [][]float64{{7, 9}},
	}))
	return buf.Bytes()
}

func TestDriver_OpenOverHTTP(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	data := tiffBytes(t)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	e := env.Default()
	e.Headers = map[string]string{"X-Test": "yes"}
	e.Retry = retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	r := registry.New(&Module{})

	// --- Act ---
	rd, err := r.Open(context.Background(), srv.URL+"/scene/b1.tif", e)

	// --- Assert ---
	require.NoError(t, err)
	defer rd.Close()
	assert.Equal(t, int32(2), calls.Load())
	p, err := rd.ReadWindow(context.Background(), 1, geo.Window{Rows: 1, Cols: 2}, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 9}, p.Data)
	assert.Equal(t, []string{"http", "https", "s3"}, r.Schemes())
}

func TestDriver_S3Endpoint(t *testing.T) {
	t.Parallel()
	data := tiffBytes(t)
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "AWS4-HMAC-SHA256")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	e := env.Default()
	e.AWS = env.AWS{AccessKeyID: "AKID", SecretAccessKey: "secret", Region: "us-east-1", Endpoint: srv.URL, PathStyle: true}

	rd, err := NewDriver().Open(context.Background(), "s3://bucket/key/b.tif", e)
	require.NoError(t, err)
	defer rd.Close()
	assert.Equal(t, "/bucket/key/b.tif", path.Load())
}

func TestDriver_Errors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/junk.tif" {
			_, _ = w.Write([]byte("<html>"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d := NewDriver()
	_, err := d.Open(context.Background(), srv.URL+"/missing.tif", env.Default())
	assert.ErrorContains(t, err, "404")

	_, err = d.Open(context.Background(), srv.URL+"/junk.tif", env.Default())
	assert.ErrorIs(t, err, geotiff.ErrNotTIFF)

	d.CloseIdleConnections()
}
