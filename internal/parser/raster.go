package parser

import (
	"path"
	"strings"

	"github.com/vk/stacgridgo/internal/stac"
)

var rasterExtensions = map[string]bool{
	"tif": true, "tiff": true, "jpeg": true, "jpg": true, "jp2": true, "img": true,
}

var thumbnailRoles = []string{"thumbnail", "overview"}

// IsRasterData guesses whether an asset points at pixel data: an image
// media type that is not a thumbnail, a "data" role when the type is
// unknown, or a raster file extension.
func IsRasterData(a *stac.Asset) bool {
	if a == nil {
		return false
	}
	switch {
	case a.Type == "":
		if a.HasRole("data") {
			return true
		}
		if a.HasRole("metadata") {
			return false
		}
	case strings.Contains(a.Type, "image/"):
		for _, r := range thumbnailRoles {
			if a.HasRole(r) {
				return false
			}
		}
		return true
	default:
		return false
	}

	href := a.Href
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(href)), ".")
	return rasterExtensions[ext]
}

// hasProjData reports whether the (merged) projection can describe a grid.
func hasProjData(p stac.Projection) bool {
	return len(p.Shape) == 2 && (len(p.Transform) >= 6 || len(p.BBox) == 4 || len(p.GCPs) >= 3)
}
