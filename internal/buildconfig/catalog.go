package buildconfig

import (
	"fmt"
	"os"

	"github.com/wolfeidau/assetpipe/internal/buildmode"
	"gopkg.in/yaml.v3"
)

// Catalog holds the static declarations a BuildConfig is assembled from.
type Catalog struct {
	Entry   map[string]string `yaml:"entry"`
	Output  Output            `yaml:"output"`
	Resolve Resolution        `yaml:"resolve"`
	Rules   Rules             `yaml:"rules"`
	Plugins []PluginSpec      `yaml:"plugins"`
	Modes   ModeSet           `yaml:"modes"`
}

// ModeExtras are the settings appended for one build mode.
type ModeExtras struct {
	SourceMap bool         `yaml:"sourceMap,omitempty"`
	Plugins   []PluginSpec `yaml:"plugins,omitempty"`
}

// ModeSet pairs each build mode with its extras.
type ModeSet struct {
	Development ModeExtras `yaml:"development"`
	Production  ModeExtras `yaml:"production"`
}

// For selects the extras for mode.
func (s ModeSet) For(mode buildmode.Mode) ModeExtras {
	if mode.IsDevelopment() {
		return s.Development
	}
	return s.Production
}

// DefaultLiveReloadURL is where the development server publishes rebuild events.
const DefaultLiveReloadURL = "http://localhost:35729/livereload"

// DefaultCatalog returns the built in catalog. Each call returns fresh values.
func DefaultCatalog() Catalog {
	return Catalog{
		Entry: map[string]string{
			"bundle": "src/index",
		},
		Output: Output{
			Dir:        "dist",
			Script:     NamePlaceholder + ".js",
			Stylesheet: NamePlaceholder + ".css",
		},
		Resolve: Resolution{
			Extensions: []string{".js", ".ts", ".pcss", ".css"},
			Roots:      []string{"src"},
			Alias: map[string]string{
				"jquery": "src/vendor/jquery.js",
			},
		},
		Rules: Rules{
			mustRule("script", `\.(ts|js)$`, `node_modules`,
				Step{Name: StepLint, Options: Options{"emitErrors": true, "failOnHint": true}},
				Step{Name: StepCompile},
			),
			mustRule("image", `\.(png|jpe?g|gif)$`, "",
				Step{Name: StepURL, Options: Options{"limit": 100000}},
			),
			mustRule("vector", `\.svg$`, "",
				Step{Name: StepOptimize, Options: Options{"precision": 0, "keepComments": false}},
				Step{Name: StepInline},
			),
			mustRule("stylesheet-source", `\.pcss$`, "",
				Step{Name: StepExtract, Use: []Step{
					{Name: StepPreprocess, Options: Options{"sourceMap": true}},
					{Name: StepPrefix, Options: Options{"browsers": []string{"chrome130", "edge130", "firefox132", "safari8", "ios8"}}},
					{Name: StepCSS},
				}},
			),
			mustRule("stylesheet", `\.css$`, "",
				Step{Name: StepCSS},
				Step{Name: StepStyle},
			),
			mustRule("template", `\.hbs$`, "",
				Step{Name: StepTemplate},
			),
		},
		Plugins: []PluginSpec{
			{Name: PluginExtractCSS, Options: Options{"filename": NamePlaceholder + ".css"}},
			{Name: PluginProvide, Options: Options{"identifier": "fetch", "module": "whatwg-fetch", "expression": "self.fetch"}},
			// the project ships its own localization wrapper for moment
			{Name: PluginIgnore, Options: Options{"resource": "locale", "context": `node_modules.+moment`}},
			{Name: PluginStyleLint, Options: Options{"files": []string{"**/*.pcss"}, "failOnError": false}},
		},
		Modes: ModeSet{
			Development: ModeExtras{
				SourceMap: true,
				Plugins: []PluginSpec{
					{Name: PluginLiveReload, Options: Options{"url": DefaultLiveReloadURL}},
				},
			},
			Production: ModeExtras{
				Plugins: []PluginSpec{
					{Name: PluginMinify, Options: Options{"treeShaking": true}},
				},
			},
		},
	}
}

// ParseCatalog decodes a YAML catalog and compiles its rules.
func ParseCatalog(data []byte) (Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return Catalog{}, fmt.Errorf("%w: %w", ErrCatalogRead, err)
	}
	if err := cat.Rules.Compile(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

// LoadCatalog reads a YAML catalog from path. An empty path yields the
// default catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path) // #nosec G304 - path is supplied by the operator
	if err != nil {
		return Catalog{}, fmt.Errorf("%w: %w", ErrCatalogRead, err)
	}

	return ParseCatalog(data)
}
