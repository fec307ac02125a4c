// Package app wires configuration, raster drivers, the loader and the
// terminal output into one runnable application.
package app
