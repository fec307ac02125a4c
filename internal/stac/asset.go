package stac

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/vk/stacgridgo/internal/geo"
)

// Asset is one named resource of an Item.
type Asset struct {
	Href        string
	Type        string
	Title       string
	Description string
	Roles       []string
	Proj        Projection
	RasterBands []RasterBand
	EOBands     []EOBand
	Bands       []Band
	Raw         map[string]json.RawMessage
}

// RasterBand is one entry of raster:bands. Scale and Offset are carried
// but not applied to pixel values.
type RasterBand struct {
	DataType string   `json:"data_type,omitempty"`
	Nodata   *Nodata  `json:"nodata,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	Scale    *float64 `json:"scale,omitempty"`
	Offset   *float64 `json:"offset,omitempty"`
}

// EOBand is one entry of eo:bands.
type EOBand struct {
	Name       string `json:"name,omitempty"`
	CommonName string `json:"common_name,omitempty"`
}

// Band is one entry of the STAC 1.1 unified bands array.
type Band struct {
	Name       string   `json:"name,omitempty"`
	CommonName string   `json:"eo:common_name,omitempty"`
	DataType   string   `json:"data_type,omitempty"`
	Nodata     *Nodata  `json:"nodata,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	Scale      *float64 `json:"scale,omitempty"`
	Offset     *float64 `json:"offset,omitempty"`
}

// Nodata is a nodata value that may be written as a number or as one of
// the strings "nan", "inf", "-inf".
type Nodata float64

// UnmarshalJSON accepts numbers and the special-value strings.
func (n *Nodata) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = Nodata(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("nodata must be a number or string: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nan":
		*n = Nodata(math.NaN())
	case "inf", "+inf", "infinity":
		*n = Nodata(math.Inf(1))
	case "-inf", "-infinity":
		*n = Nodata(math.Inf(-1))
	default:
		return fmt.Errorf("unsupported nodata value %q", s)
	}
	return nil
}

// Float returns the nodata value as a *float64, nil when unset.
func (n *Nodata) Float() *float64 {
	if n == nil {
		return nil
	}
	v := float64(*n)
	return &v
}

// GCP ties a pixel position to a coordinate in the projection CRS.
type GCP struct {
	Row float64 `json:"row"`
	Col float64 `json:"col"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

// Projection holds the proj:* extension fields.
type Projection struct {
	EPSG      *int
	Code      string
	WKT2      string
	PROJJSON  json.RawMessage
	Shape     []int
	Transform []float64
	BBox      []float64
	GCPs      []GCP
}

// Empty reports whether no projection field is present.
func (p Projection) Empty() bool {
	return p.EPSG == nil && p.Code == "" && p.WKT2 == "" && len(p.PROJJSON) == 0 &&
		len(p.Shape) == 0 && len(p.Transform) == 0 && len(p.BBox) == 0 && len(p.GCPs) == 0
}

// HasCRS reports whether any CRS field is present.
func (p Projection) HasCRS() bool {
	return p.EPSG != nil || p.Code != "" || p.WKT2 != "" || len(p.PROJJSON) > 0
}

// CRS resolves the CRS in the order proj:code, proj:epsg, proj:wkt2, proj:projjson.
func (p Projection) CRS() (geo.CRS, error) {
	switch {
	case p.Code != "":
		return geo.ParseCRS(p.Code)
	case p.EPSG != nil:
		return geo.EPSG(*p.EPSG), nil
	case p.WKT2 != "":
		return geo.ParseCRS(p.WKT2)
	case len(p.PROJJSON) > 0:
		return geo.FromPROJJSON(p.PROJJSON)
	}
	return geo.CRS{}, fmt.Errorf("no CRS field")
}

// Merge returns p with missing fields filled from fallback.
func (p Projection) Merge(fallback Projection) Projection {
	if !p.HasCRS() {
		p.EPSG, p.Code, p.WKT2, p.PROJJSON = fallback.EPSG, fallback.Code, fallback.WKT2, fallback.PROJJSON
	}
	if len(p.Shape) == 0 {
		p.Shape = fallback.Shape
	}
	if len(p.Transform) == 0 {
		p.Transform = fallback.Transform
	}
	if len(p.BBox) == 0 {
		p.BBox = fallback.BBox
	}
	if len(p.GCPs) == 0 {
		p.GCPs = fallback.GCPs
	}
	return p
}

func decodeProjection(raw map[string]json.RawMessage) (Projection, error) {
	var p Projection
	fields := []struct {
		key string
		dst any
	}{
		{"proj:code", &p.Code},
		{"proj:wkt2", &p.WKT2},
		{"proj:shape", &p.Shape},
		{"proj:transform", &p.Transform},
		{"proj:bbox", &p.BBox},
		{"proj:gcps", &p.GCPs},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok || string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return p, fmt.Errorf("%s: %w", f.key, err)
		}
	}
	if v, ok := raw["proj:epsg"]; ok && string(v) != "null" {
		var code int
		if err := json.Unmarshal(v, &code); err != nil {
			return p, fmt.Errorf("proj:epsg: %w", err)
		}
		p.EPSG = &code
	}
	if v, ok := raw["proj:projjson"]; ok && string(v) != "null" {
		p.PROJJSON = v
	}
	return p, nil
}

// UnmarshalJSON decodes the core asset fields and the extension records.
func (a *Asset) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var core struct {
		Href        string       `json:"href"`
		Type        string       `json:"type"`
		Title       string       `json:"title"`
		Description string       `json:"description"`
		Roles       []string     `json:"roles"`
		RasterBands []RasterBand `json:"raster:bands"`
		EOBands     []EOBand     `json:"eo:bands"`
		Bands       []Band       `json:"bands"`
	}
	if err := json.Unmarshal(data, &core); err != nil {
		return err
	}
	proj, err := decodeProjection(raw)
	if err != nil {
		return err
	}
	*a = Asset{
		Href:        core.Href,
		Type:        core.Type,
		Title:       core.Title,
		Description: core.Description,
		Roles:       core.Roles,
		Proj:        proj,
		RasterBands: core.RasterBands,
		EOBands:     core.EOBands,
		Bands:       core.Bands,
		Raw:         raw,
	}
	return nil
}

// BandCount is the number of bands the asset declares, at least one.
func (a *Asset) BandCount() int {
	n := max(len(a.RasterBands), len(a.EOBands), len(a.Bands))
	return max(n, 1)
}

// RasterBand returns the raster metadata of band i (0-based).
func (a *Asset) RasterBand(i int) (RasterBand, bool) {
	if i < len(a.RasterBands) {
		return a.RasterBands[i], true
	}
	if i < len(a.Bands) {
		b := a.Bands[i]
		if b.DataType == "" && b.Nodata == nil && b.Unit == "" {
			return RasterBand{}, false
		}
		return RasterBand{DataType: b.DataType, Nodata: b.Nodata, Unit: b.Unit, Scale: b.Scale, Offset: b.Offset}, true
	}
	return RasterBand{}, false
}

// EOBand returns the electro-optical naming of band i (0-based).
func (a *Asset) EOBand(i int) (EOBand, bool) {
	if i < len(a.EOBands) {
		return a.EOBands[i], true
	}
	if i < len(a.Bands) {
		return EOBand{Name: a.Bands[i].Name, CommonName: a.Bands[i].CommonName}, true
	}
	return EOBand{}, false
}

// HasRole reports whether the asset carries the given role.
func (a *Asset) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Collection is the subset of a STAC Collection used for metadata extraction.
type Collection struct {
	Type        string                     `json:"type"`
	ID          string                     `json:"id"`
	Description string                     `json:"description,omitempty"`
	ItemAssets  map[string]*Asset          `json:"item_assets,omitempty"`
	Summaries   map[string]json.RawMessage `json:"summaries,omitempty"`
	Links       []Link                     `json:"links,omitempty"`
}

// ReadCollection decodes one collection document.
func ReadCollection(r io.Reader) (*Collection, error) {
	var c Collection
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	return &c, nil
}
