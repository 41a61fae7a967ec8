package buildconfig

import (
	"regexp"

	"github.com/wolfeidau/assetpipe/internal/buildmode"
)

// NamePlaceholder is substituted with the bundle name in output templates.
const NamePlaceholder = "[name]"

// Pipeline step names understood by the asset builder.
const (
	StepLint       = "lint"
	StepCompile    = "compile"
	StepURL        = "url"
	StepOptimize   = "optimize"
	StepInline     = "inline"
	StepExtract    = "extract"
	StepPreprocess = "preprocess"
	StepPrefix     = "prefix"
	StepCSS        = "css"
	StepStyle      = "style"
	StepTemplate   = "template"
)

// Cross-cutting plugin names.
const (
	PluginExtractCSS = "extract-css"
	PluginProvide    = "provide"
	PluginIgnore     = "ignore"
	PluginStyleLint  = "style-lint"
	PluginLiveReload = "live-reload"
	PluginMinify     = "minify"
)

// BuildConfig is the fully resolved configuration for a single build.
type BuildConfig struct {
	EntryPoints map[string]string `yaml:"entry" json:"entry"`
	Output      Output            `yaml:"output" json:"output"`
	Resolution  Resolution        `yaml:"resolve" json:"resolve"`
	Rules       Rules             `yaml:"rules" json:"rules"`
	Plugins     []PluginSpec      `yaml:"plugins" json:"plugins"`
	Mode        buildmode.Mode    `yaml:"mode" json:"mode"`
	SourceMap   bool              `yaml:"sourceMap" json:"sourceMap"`
}

// Plugin returns the first plugin with the given name.
func (c BuildConfig) Plugin(name string) (PluginSpec, bool) {
	for _, p := range c.Plugins {
		if p.Name == name {
			return p, true
		}
	}
	return PluginSpec{}, false
}

// HasPlugin reports whether a plugin with the given name is configured.
func (c BuildConfig) HasPlugin(name string) bool {
	_, ok := c.Plugin(name)
	return ok
}

// Output describes where bundles are written. Script and Stylesheet are
// file templates relative to Dir, each holding one NamePlaceholder.
type Output struct {
	Dir        string `yaml:"dir" json:"dir"`
	Script     string `yaml:"script" json:"script"`
	Stylesheet string `yaml:"stylesheet" json:"stylesheet"`
}

// Resolution controls how import paths are turned into files.
type Resolution struct {
	Extensions []string          `yaml:"extensions" json:"extensions"`
	Roots      []string          `yaml:"roots" json:"roots"`
	Alias      map[string]string `yaml:"alias,omitempty" json:"alias,omitempty"`
}

// Step is a named processing step in an asset pipeline. Use holds nested
// steps for steps that wrap others, such as extract.
type Step struct {
	Name    string  `yaml:"name" json:"name"`
	Options Options `yaml:"options,omitempty" json:"options,omitempty"`
	Use     []Step  `yaml:"use,omitempty" json:"use,omitempty"`
}

// PluginSpec is a cross-cutting build behaviour with its own options.
type PluginSpec struct {
	Name    string  `yaml:"name" json:"name"`
	Options Options `yaml:"options,omitempty" json:"options,omitempty"`
}

// AssetRule routes files whose path matches Pattern through Pipeline.
type AssetRule struct {
	Name     string `yaml:"name" json:"name"`
	Pattern  string `yaml:"test" json:"test"`
	Exclude  string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	Pipeline []Step `yaml:"use" json:"use"`

	test    *regexp.Regexp
	exclude *regexp.Regexp
}

// NewRule compiles a rule from its pattern.
func NewRule(name, pattern string, steps ...Step) (AssetRule, error) {
	r := AssetRule{Name: name, Pattern: pattern, Pipeline: steps}
	if err := r.compile(); err != nil {
		return AssetRule{}, err
	}
	return r, nil
}

func mustRule(name, pattern, exclude string, steps ...Step) AssetRule {
	r := AssetRule{Name: name, Pattern: pattern, Exclude: exclude, Pipeline: steps}
	if err := r.compile(); err != nil {
		panic(err)
	}
	return r
}

func (r *AssetRule) compile() error {
	test, err := regexp.Compile(r.Pattern)
	if err != nil {
		return err
	}
	r.test = test

	r.exclude = nil
	if r.Exclude != "" {
		exclude, err := regexp.Compile(r.Exclude)
		if err != nil {
			return err
		}
		r.exclude = exclude
	}
	return nil
}

// Matches reports whether path is claimed by the rule.
func (r AssetRule) Matches(path string) bool {
	if r.test == nil || !r.test.MatchString(path) {
		return false
	}
	return r.exclude == nil || !r.exclude.MatchString(path)
}

// Excludes reports whether path is matched by the rule's exclude pattern.
func (r AssetRule) Excludes(path string) bool {
	return r.exclude != nil && r.exclude.MatchString(path)
}

func (s Step) clone() Step {
	out := Step{Name: s.Name, Options: s.Options.clone()}
	if s.Use != nil {
		out.Use = make([]Step, len(s.Use))
		for i, sub := range s.Use {
			out.Use[i] = sub.clone()
		}
	}
	return out
}

func (p PluginSpec) clone() PluginSpec {
	return PluginSpec{Name: p.Name, Options: p.Options.clone()}
}
