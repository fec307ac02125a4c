// Package jsonconfig loads the benchmark load-configuration document, a
// JSON file validated against an embedded JSON Schema before decoding.
package jsonconfig

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/vk/stacgridgo/internal/config"
	"github.com/vk/stacgridgo/internal/ctxlog"
)

// Method is the only loading method this implementation runs.
const Method = "stacgridgo"

//go:embed schema.json
var schemaJSON []byte

var compiled = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
})

// Document mirrors the benchmark configuration file.
type Document struct {
	Scenario   string           `json:"scenario"`
	Method     string           `json:"method"`
	Chunks     []int            `json:"chunks"`
	Bands      []string         `json:"bands"`
	Resolution *float64         `json:"resolution"`
	CRS        *string          `json:"crs"`
	Resampling *string          `json:"resampling"`
	PatchURL   *string          `json:"patch_url"`
	Extra      map[string]Extra `json:"extra"`
}

// Extra holds the per-method settings.
type Extra struct {
	GroupBy         string    `json:"groupby"`
	SortWithinGroup bool      `json:"sort_within_group"`
	DataType        string    `json:"dtype"`
	Nodata          *Number   `json:"nodata"`
	FillValue       *Number   `json:"fill_value"`
	Fuse            string    `json:"fuse"`
	FailOnError     *bool     `json:"fail_on_error"`
	UseOverviews    *bool     `json:"use_overviews"`
	Executor        string    `json:"executor"`
	Workers         int       `json:"workers"`
	Anchor          string    `json:"anchor"`
	BBox            []float64 `json:"bbox"`
}

// Number accepts a JSON number or one of the strings nan, inf and -inf.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", s)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

func (n *Number) ptr() *float64 {
	if n == nil {
		return nil
	}
	f := float64(*n)
	return &f
}

// Validate checks data against the embedded schema.
func Validate(data []byte) error {
	schema, err := compiled()
	if err != nil {
		return fmt.Errorf("compile load schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if res.Valid() {
		return nil
	}
	var b strings.Builder
	b.WriteString("load configuration does not match schema:")
	for _, desc := range res.Errors() {
		fmt.Fprintf(&b, "\n  - %s: %s", desc.Field(), desc.Description())
	}
	return fmt.Errorf("%s", b.String())
}

// Decode validates and decodes one document.
func Decode(data []byte) (*Document, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode load configuration: %w", err)
	}
	return &doc, nil
}

// Model translates the document into the agnostic configuration model.
func (d *Document) Model() *config.Model {
	ld := &config.Load{
		Scenario: d.Scenario,
		Method:   d.Method,
		Bands:    d.Bands,
	}
	if len(d.Chunks) == 2 {
		ld.Chunks = map[string]int{"y": d.Chunks[0], "x": d.Chunks[1]}
	}
	if d.Resolution != nil {
		ld.Resolution = []float64{*d.Resolution}
	}
	if d.CRS != nil {
		ld.CRS = *d.CRS
	}
	if d.Resampling != nil {
		ld.Resampling = map[string]string{"*": *d.Resampling}
	}
	if d.PatchURL != nil {
		ld.PatchURL = *d.PatchURL
	}

	method := d.Method
	if method == "" {
		method = Method
	}
	if x, ok := d.Extra[method]; ok {
		ld.GroupBy = x.GroupBy
		ld.SortWithinGroup = x.SortWithinGroup
		ld.DataType = x.DataType
		ld.Nodata = x.Nodata.ptr()
		ld.FillValue = x.FillValue.ptr()
		ld.Fuse = x.Fuse
		ld.FailOnError = x.FailOnError
		ld.UseOverviews = x.UseOverviews
		ld.Executor = x.Executor
		ld.Workers = x.Workers
		ld.Anchor = x.Anchor
		ld.BBox = x.BBox
	}

	m := config.New()
	m.Load = ld
	return m
}

// Loader is the JSON implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new JSON configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads each path as one benchmark document.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	out := config.New()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		doc, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("in %s: %w", p, err)
		}
		m := doc.Model()
		m.Sources = []string{p}
		if err := out.Merge(m); err != nil {
			return nil, fmt.Errorf("in %s: %w", p, err)
		}
		logger.Debug("Loaded JSON load configuration.", "path", p, "scenario", doc.Scenario)
	}
	return out, nil
}
