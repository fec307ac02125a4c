// Package dag holds the dependency graph of a load plan: resource "open"
// nodes feeding the chunk nodes that read from them. It only stores
// structure; scheduling and execution live in the scheduler and executor
// packages.
package dag
