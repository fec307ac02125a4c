package geo

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/twpayne/go-proj/v10"
)

// CRS identifies a coordinate reference system, either by EPSG code or by
// an opaque WKT/PROJJSON definition whose authority code is unknown.
type CRS struct {
	EPSG int
	WKT  string
}

// EPSG:4326 is used for query bounds and item footprints.
var WGS84 = EPSG(4326)

// EPSG returns the CRS with the given EPSG code.
func EPSG(code int) CRS {
	return CRS{EPSG: code}
}

var (
	epsgRe    = regexp.MustCompile(`(?i)^\s*(?:epsg|urn:ogc:def:crs:epsg:(?:[0-9.]*)):+\s*(\d+)\s*$`)
	wktIDRe   = regexp.MustCompile(`(?i)(?:ID|AUTHORITY)\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)
	crs84Re   = regexp.MustCompile(`(?i)^\s*(?:OGC:CRS84|urn:ogc:def:crs:OGC:[0-9.]*:CRS84|CRS84)\s*$`)
	digitsRe  = regexp.MustCompile(`^\s*\d+\s*$`)
	wktHeadRe = regexp.MustCompile(`(?i)^\s*(GEOGCS|PROJCS|GEOGCRS|PROJCRS|GEODCRS|COMPOUNDCRS|BOUNDCRS)\s*\[`)
	geogWKTRe = regexp.MustCompile(`(?i)^\s*(GEOGCS|GEOGCRS)\s*\[`)
)

// ParseCRS accepts "EPSG:n", OGC URNs, bare codes, "OGC:CRS84" and WKT.
// WKT without a recognisable EPSG identifier is kept as an opaque CRS.
func ParseCRS(s string) (CRS, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return CRS{}, fmt.Errorf("empty CRS")
	case crs84Re.MatchString(s):
		return WGS84, nil
	case digitsRe.MatchString(s):
		code, _ := strconv.Atoi(strings.TrimSpace(s))
		return EPSG(code), nil
	}
	if m := epsgRe.FindStringSubmatch(s); m != nil {
		code, _ := strconv.Atoi(m[1])
		return EPSG(code), nil
	}
	if wktHeadRe.MatchString(s) {
		// The authority of the whole CRS is the last ID in the text.
		ids := wktIDRe.FindAllStringSubmatch(s, -1)
		if len(ids) > 0 {
			code, _ := strconv.Atoi(ids[len(ids)-1][1])
			return EPSG(code), nil
		}
		return CRS{WKT: s}, nil
	}
	return CRS{}, fmt.Errorf("unrecognised CRS %q", s)
}

// MustParseCRS is ParseCRS for literals known to be valid.
func MustParseCRS(s string) CRS {
	c, err := ParseCRS(s)
	if err != nil {
		panic(err)
	}
	return c
}

// FromPROJJSON extracts the EPSG identifier of a PROJJSON document. A
// document without one is kept as an opaque CRS.
func FromPROJJSON(raw []byte) (CRS, error) {
	var doc struct {
		ID *struct {
			Authority string          `json:"authority"`
			Code      json.RawMessage `json:"code"`
		} `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return CRS{}, fmt.Errorf("decode projjson: %w", err)
	}
	if doc.ID != nil && strings.EqualFold(doc.ID.Authority, "EPSG") {
		code := strings.Trim(string(doc.ID.Code), `"`)
		n, err := strconv.Atoi(code)
		if err != nil {
			return CRS{}, fmt.Errorf("projjson id code %q: %w", code, err)
		}
		return EPSG(n), nil
	}
	if doc.ID != nil && strings.EqualFold(doc.ID.Authority, "OGC") {
		return WGS84, nil
	}
	return CRS{WKT: string(raw)}, nil
}

// IsZero reports whether the CRS is unset.
func (c CRS) IsZero() bool {
	return c.EPSG == 0 && c.WKT == ""
}

// String renders the CRS as "EPSG:n" or its raw definition.
func (c CRS) String() string {
	if c.EPSG != 0 {
		return "EPSG:" + strconv.Itoa(c.EPSG)
	}
	return c.WKT
}

// Equal compares two CRSs by code, or by definition text when both are opaque.
func (c CRS) Equal(o CRS) bool {
	if c.EPSG != 0 || o.EPSG != 0 {
		return c.EPSG == o.EPSG
	}
	return c.WKT == o.WKT
}

// Geographic reports whether coordinates are degrees of lon/lat.
func (c CRS) Geographic() bool {
	if c.EPSG != 0 {
		return c.EPSG == 4326
	}
	return geogWKTRe.MatchString(c.WKT)
}

// Supported reports whether PROJ can build this CRS.
func (c CRS) Supported() bool {
	return checkCRS(proj.NewContext(), c) == nil
}

// Units returns the linear unit name of the CRS axes.
func (c CRS) Units() string {
	if c.Geographic() {
		return "degree"
	}
	return "metre"
}

// UTMZone returns the EPSG code of the WGS84 UTM zone containing lon/lat.
func UTMZone(lon, lat float64) int {
	zone := int((lon+180)/6) + 1
	if zone > 60 {
		zone = 60
	}
	if zone < 1 {
		zone = 1
	}
	if lat < 0 {
		return 32700 + zone
	}
	return 32600 + zone
}
