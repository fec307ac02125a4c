// Package config defines the format-agnostic configuration model for a load
// run, along with the Loader interface implemented by each file format.
//
// The `config.Model` is the single source of truth for the `app` package,
// which translates it into loader options. Concrete loaders for HCL, the
// benchmark JSON document and the YAML collection file live in separate
// packages.
package config
