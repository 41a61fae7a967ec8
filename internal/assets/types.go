package assets

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"maps"
	"sync"

	"github.com/wolfeidau/assetpipe/internal/buildconfig"
)

//go:embed templates/*.html
var templateFS embed.FS

type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	CSSBundle  string       `json:"cssBundle"`
	Bytes      int          `json:"bytes"`
	Imports    []ImportInfo `json:"imports"`
}

type ImportInfo struct {
	Path string `json:"path"`
}

// Bundle lists the files written for one named bundle, relative to the
// output directory.
type Bundle struct {
	Script     string `json:"script"`
	Stylesheet string `json:"stylesheet,omitempty"`
	Bytes      int    `json:"bytes"`
}

// Manifest maps bundle names to their output files.
type Manifest map[string]Bundle

// Pipeline turns a resolved build configuration into esbuild builds
type Pipeline struct {
	config   Config
	build    buildconfig.BuildConfig
	metadata *BuildMetadata
	manifest Manifest
	tmpl     *template.Template
	watchers []func(Manifest)
	mu       sync.RWMutex
}

// New creates a new asset pipeline for the given build configuration
func New(config Config, build buildconfig.BuildConfig) (*Pipeline, error) {
	return NewWithFuncs(config, build, nil)
}

// NewWithFuncs creates a new asset pipeline and loads the index template with custom functions
func NewWithFuncs(config Config, build buildconfig.BuildConfig, customFuncs template.FuncMap) (*Pipeline, error) {
	if err := build.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		config: config,
		build:  build,
	}

	funcs := template.FuncMap{
		"marshal": marshal,
		"js": func(s string) template.JS {
			return template.JS(s) //nolint:gosec
		},
	}

	// Merge custom functions
	maps.Copy(funcs, customFuncs)

	tmpl, err := template.New("templates").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	p.tmpl = tmpl
	return p, nil
}

// OnRebuild registers fn to be called with the manifest after every successful build
func (p *Pipeline) OnRebuild(fn func(Manifest)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watchers = append(p.watchers, fn)
}

// BuildConfig returns the configuration the pipeline builds.
func (p *Pipeline) BuildConfig() buildconfig.BuildConfig {
	return p.build
}

func marshal(value any) string {
	buf := new(bytes.Buffer)

	if err := json.NewEncoder(buf).Encode(value); err != nil {
		panic(errors.New("context can only be json serializable"))
	}

	return buf.String()
}
