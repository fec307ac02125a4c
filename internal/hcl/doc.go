// Package hcl provides the HCL implementation of config.Loader. It parses
// `load`, `collection` and `env` blocks, evaluates the attributes that
// accept more than one shape, and translates everything into the
// format-agnostic config.Model.
package hcl
