// Package staccfg reads the YAML collection configuration: per-collection
// asset metadata, band aliases, and parsing switches, with "*" matching
// every collection or every asset.
//
//	sentinel-2-l2a:
//	  assets:
//	    "*": {data_type: uint16, nodata: 0, unit: "1"}
//	    SCL: {data_type: uint8}
//	  aliases:
//	    red: B04
//	    rededge: [B05, B06]
//	  warnings: ignore
package staccfg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vk/stacgridgo/internal/config"
	"github.com/vk/stacgridgo/internal/ctxlog"
)

// Document is the decoded file, keyed by collection id.
type Document map[string]Collection

// Collection is one collection entry.
type Collection struct {
	Assets     map[string]Asset `yaml:"assets"`
	Aliases    map[string]Names `yaml:"aliases"`
	IgnoreProj bool             `yaml:"ignore_proj"`
	Warnings   string           `yaml:"warnings"`
	AliasOrder string           `yaml:"alias_order"`
}

// Asset overrides the metadata of one asset.
type Asset struct {
	DataType string  `yaml:"data_type"`
	Nodata   *Number `yaml:"nodata"`
	Unit     string  `yaml:"unit"`
}

// Names is a band name or a list of them.
type Names []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Names) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*n = Names{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*n = list
		return nil
	}
	return fmt.Errorf("line %d: alias must be a band name or a list of names", node.Line)
}

// Number is a float that also accepts nan, inf and -inf, the way YAML
// spells them (.nan, .inf) or as plain strings.
type Number float64

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Number) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: nodata must be a number", node.Line)
	}
	s := strings.ToLower(strings.TrimSpace(node.Value))
	switch s {
	case ".nan":
		s = "nan"
	case ".inf", "+.inf":
		s = "inf"
	case "-.inf":
		s = "-inf"
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid number %q", node.Line, node.Value)
	}
	*n = Number(f)
	return nil
}

// Decode reads one document, rejecting unknown keys.
func Decode(r io.Reader) (Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, nil
		}
		return nil, fmt.Errorf("decode collection configuration: %w", err)
	}
	for name, c := range doc {
		switch c.Warnings {
		case "", "all", "ignore":
		default:
			return nil, fmt.Errorf("collection %q: warnings must be \"all\" or \"ignore\", got %q", name, c.Warnings)
		}
	}
	return doc, nil
}

// Model translates the document into the agnostic configuration model.
func (d Document) Model() *config.Model {
	m := config.New()
	for name, c := range d {
		col := &config.Collection{
			Name:       name,
			Assets:     make(map[string]*config.Asset, len(c.Assets)),
			Aliases:    make(map[string][]string, len(c.Aliases)),
			IgnoreProj: c.IgnoreProj,
			Warnings:   c.Warnings,
			AliasOrder: c.AliasOrder,
		}
		for key, a := range c.Assets {
			var nd *float64
			if a.Nodata != nil {
				f := float64(*a.Nodata)
				nd = &f
			}
			col.Assets[key] = &config.Asset{Name: key, DataType: a.DataType, Nodata: nd, Unit: a.Unit}
		}
		for alias, names := range c.Aliases {
			col.Aliases[alias] = []string(names)
		}
		m.Collections[name] = col
	}
	return m
}

// Loader is the YAML implementation of config.Loader.
type Loader struct{}

// NewLoader creates a new YAML collection configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads each path as one collection configuration document; later
// files override earlier ones asset by asset.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	out := config.New()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		doc, err := Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("in %s: %w", p, err)
		}
		m := doc.Model()
		m.Sources = []string{p}
		if err := out.Merge(m); err != nil {
			return nil, fmt.Errorf("in %s: %w", p, err)
		}
		logger.Debug("Loaded collection configuration.", "path", p, "collections", len(doc))
	}
	return out, nil
}
