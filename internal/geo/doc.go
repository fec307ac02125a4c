// Package geo holds the geospatial primitives the loader needs: coordinate
// reference systems, point reprojection through PROJ, affine
// pixel transforms, pixel grids (GeoBox) and their tiling, and footprint
// reprojection with degeneracy detection.
//
// Coordinates in EPSG:4326 are always (lon, lat), matching the x/y order of
// every other CRS. Any CRS PROJ can build from an EPSG code, WKT or PROJJSON
// can be reprojected; others can still be carried around and compared, but
// reprojecting into or out of them reports an error.
package geo
