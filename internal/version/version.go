// Package version exposes the module version for logs and usage output.
package version

// Current is the semantic version of this module, without a "v" prefix.
const Current = "1.0.0"
