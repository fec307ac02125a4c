// Package registry provides the central "glue" for the driver modules.
//
// The Registry maps resource URI schemes ("file", "https", "s3", "mem") to
// the raster.Driver that opens them. Driver modules compiled into the
// binary register themselves at start-up through the Module interface, and
// a load validates that every resource it references has a driver before
// any pixel is read.
package registry
