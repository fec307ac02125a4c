// Package geotiff reads and writes the GeoTIFF subset the loader needs.
// Gray, palette and RGB images with unsigned 8 or 16 bit samples are
// decoded by golang.org/x/image/tiff; signed, 32/64 bit and floating point
// samples, planar layouts and the floating point predictor are decoded
// block by block here, using the LZW reader from golang.org/x/image/tiff/lzw.
// The georeferencing tags (model transform, tie points, geo keys, GDAL
// nodata) are parsed from the first IFD.
package geotiff
