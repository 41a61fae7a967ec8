package assets

type Config struct {
	// Directory relative catalog paths are resolved against
	BaseDir string
	// Directory for generated shim modules (relative to BaseDir)
	WorkDir string
	// Name of the metafile written into the output directory
	MetafileName string
	// Overrides the live-reload plugin url when set
	LiveReloadURL string
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		BaseDir:      ".",
		WorkDir:      "node_modules/.cache/assetpipe",
		MetafileName: "meta.json",
	}
}
