package commands

import (
	"github.com/wolfeidau/assetpipe/internal/buildconfig"
	"github.com/wolfeidau/assetpipe/internal/buildmode"
)

type Globals struct {
	Debug   bool
	Version string
	// Raw process arguments, inspected for the debug marker
	Args []string
}

// resolve detects the build mode and assembles the configuration from the
// catalog at path, or the default catalog when path is empty.
func resolve(globals *Globals, path string) (buildconfig.BuildConfig, error) {
	mode := buildmode.Detect(globals.Args)

	cat, err := buildconfig.LoadCatalog(path)
	if err != nil {
		return buildconfig.BuildConfig{}, err
	}

	cfg := buildconfig.Assemble(mode, cat)
	if err := cfg.Validate(); err != nil {
		return buildconfig.BuildConfig{}, err
	}
	return cfg, nil
}
