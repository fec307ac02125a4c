// Package loader is the load entry point. It parses items, plans the
// output grid, groups items into time slices, builds the task graph of
// resource opens and chunk composites, and hands it to an executor.
//
// All validation that can fail without touching pixels (parsing, band
// resolution, grid planning, driver coverage) happens before the first
// read. Reads are isolated per chunk task; with ContinueOnError a failing
// source is recorded on the dataset and treated as nodata.
package loader
