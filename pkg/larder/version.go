// Package larder holds build metadata for the larder module.
package larder

// Version is the release version, without a leading "v".
const Version = "0.1.0"

// ModulePath is the Go module path.
const ModulePath = "github.com/mesh-intelligence/larder"
