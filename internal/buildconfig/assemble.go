package buildconfig

import (
	"maps"
	"slices"

	"github.com/wolfeidau/assetpipe/internal/buildmode"
)

// Assemble produces the build configuration for mode from the catalog. The
// result shares no mutable state with the catalog; mode specific plugins
// follow the base plugins.
func Assemble(mode buildmode.Mode, cat Catalog) BuildConfig {
	extras := cat.Modes.For(mode)

	return BuildConfig{
		EntryPoints: maps.Clone(cat.Entry),
		Output:      cat.Output,
		Resolution: Resolution{
			Extensions: slices.Clone(cat.Resolve.Extensions),
			Roots:      slices.Clone(cat.Resolve.Roots),
			Alias:      maps.Clone(cat.Resolve.Alias),
		},
		Rules:     cat.Rules.clone(),
		Plugins:   slices.Concat(clonePlugins(cat.Plugins), clonePlugins(extras.Plugins)),
		Mode:      mode,
		SourceMap: extras.SourceMap,
	}
}

func clonePlugins(in []PluginSpec) []PluginSpec {
	out := make([]PluginSpec, len(in))
	for i, p := range in {
		out[i] = p.clone()
	}
	return out
}
