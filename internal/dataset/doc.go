// Package dataset holds the result of a load: one (time, y, x) array per
// band on a shared output grid, plus the records of what was skipped.
//
// Arrays are filled chunk by chunk. A chunk is written exactly once, so a
// chunk is either fully composited or still marked pending; a lazy dataset
// computes its pending chunks on Compute.
package dataset
