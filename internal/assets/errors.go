package assets

import "errors"

var (
	// ErrBuildFailed indicates esbuild reported at least one error
	ErrBuildFailed = errors.New("esbuild failed with errors")
	// ErrNoEntryPoints indicates the configuration has nothing to build
	ErrNoEntryPoints = errors.New("no entry points found")
	// ErrUnknownStep indicates an asset rule names a step the builder does not provide
	ErrUnknownStep = errors.New("unknown pipeline step")
	// ErrUnknownPlugin indicates the configuration names a plugin the builder does not provide
	ErrUnknownPlugin = errors.New("unknown plugin")
	// ErrBundleNotFound indicates the last build produced no bundle with the requested name
	ErrBundleNotFound = errors.New("bundle not found in metadata")
	// ErrNotBuilt indicates assets were requested before a successful build
	ErrNotBuilt = errors.New("assets not built yet, call Build() first")
)
