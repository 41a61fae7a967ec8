package assets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/wolfeidau/assetpipe/internal/buildconfig"
)

// asset is the file state threaded through a rule's pipeline.
type asset struct {
	path     string
	contents []byte
	loader   api.Loader
	build    *buildconfig.BuildConfig
	warnings []api.Message

	// settings collected by stylesheet steps and applied by the css step
	lowerNesting bool
	sourceMap    bool
	engines      []api.Engine
}

type stepFunc func(a *asset) error

// diagnostics carries esbuild style messages out of a step so they are
// reported with their locations rather than as a single string.
type diagnostics struct {
	messages []api.Message
}

func (d *diagnostics) Error() string {
	if len(d.messages) == 0 {
		return "diagnostics"
	}
	if len(d.messages) == 1 {
		return d.messages[0].Text
	}
	return fmt.Sprintf("%s (and %d more)", d.messages[0].Text, len(d.messages)-1)
}

func fileDiagnostic(path string, err error) *diagnostics {
	return &diagnostics{messages: []api.Message{{
		Text:     err.Error(),
		Location: &api.Location{File: path},
	}}}
}

func compileSteps(steps []buildconfig.Step) ([]stepFunc, error) {
	out := make([]stepFunc, 0, len(steps))
	for _, step := range steps {
		fn, err := compileStep(step)
		if err != nil {
			return nil, err
		}
		out = append(out, fn)
	}
	return out, nil
}

func compileStep(step buildconfig.Step) (stepFunc, error) {
	switch step.Name {
	case buildconfig.StepLint:
		return lintStep(step.Options), nil
	case buildconfig.StepCompile:
		return compileScript, nil
	case buildconfig.StepURL:
		return urlStep(step.Options.Int("limit", 0)), nil
	case buildconfig.StepOptimize:
		return optimizeStep(step.Options), nil
	case buildconfig.StepInline:
		return inline, nil
	case buildconfig.StepExtract:
		sub, err := compileSteps(step.Use)
		if err != nil {
			return nil, err
		}
		return extractStep(sub), nil
	case buildconfig.StepPreprocess:
		return preprocessStep(step.Options.Bool("sourceMap", false)), nil
	case buildconfig.StepPrefix:
		engines, err := parseEngines(step.Options.Strings("browsers"))
		if err != nil {
			return nil, err
		}
		return prefixStep(engines), nil
	case buildconfig.StepCSS:
		return compileCSS, nil
	case buildconfig.StepStyle:
		return styleModule, nil
	case buildconfig.StepTemplate:
		return compileTemplate, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStep, step.Name)
	}
}

func runSteps(a *asset, steps []stepFunc) error {
	for _, step := range steps {
		if err := step(a); err != nil {
			return err
		}
	}
	return nil
}

// loadAsset reads path and runs it through steps, producing the result
// handed back to esbuild.
func loadAsset(build *buildconfig.BuildConfig, path string, steps []stepFunc) (api.OnLoadResult, error) {
	contents, err := os.ReadFile(path) // #nosec G304 - path comes from esbuild's resolver
	if err != nil {
		return api.OnLoadResult{}, err
	}

	a := &asset{path: path, contents: contents, build: build}
	if err := runSteps(a, steps); err != nil {
		if diag, ok := err.(*diagnostics); ok {
			return api.OnLoadResult{Errors: diag.messages, Warnings: a.warnings}, nil
		}
		return api.OnLoadResult{}, err
	}

	if a.loader == api.LoaderNone {
		return api.OnLoadResult{}, fmt.Errorf("no step selected a loader for %s", path)
	}

	text := string(a.contents)
	dir := filepath.Dir(path)
	return api.OnLoadResult{
		Contents:   &text,
		ResolveDir: dir,
		Loader:     a.loader,
		Warnings:   a.warnings,
	}, nil
}

func scriptLoader(path string) api.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	default:
		return api.LoaderJS
	}
}

// lintStep reports esbuild's diagnostics for a script. failOnHint turns
// warnings into build errors, emitErrors does the same for syntax errors.
func lintStep(opts buildconfig.Options) stepFunc {
	failOnHint := opts.Bool("failOnHint", true)
	emitErrors := opts.Bool("emitErrors", true)

	return func(a *asset) error {
		result := api.Transform(string(a.contents), api.TransformOptions{
			Loader:     scriptLoader(a.path),
			Sourcefile: a.path,
			LogLevel:   api.LogLevelSilent,
		})

		var fatal []api.Message
		if emitErrors {
			fatal = append(fatal, result.Errors...)
		} else {
			a.warnings = append(a.warnings, result.Errors...)
		}
		if failOnHint {
			fatal = append(fatal, result.Warnings...)
		} else {
			a.warnings = append(a.warnings, result.Warnings...)
		}

		if len(fatal) > 0 {
			return &diagnostics{messages: fatal}
		}
		return nil
	}
}

func compileScript(a *asset) error {
	a.loader = scriptLoader(a.path)
	return nil
}

// urlStep inlines files smaller than limit as data URLs and emits the rest
// as separate files. A limit of zero or less inlines everything.
func urlStep(limit int) stepFunc {
	return func(a *asset) error {
		if limit <= 0 || len(a.contents) < limit {
			a.loader = api.LoaderDataURL
			return nil
		}
		a.loader = api.LoaderFile
		return nil
	}
}

func optimizeStep(opts buildconfig.Options) stepFunc {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("image/svg+xml", &svg.Minifier{
		Precision:    opts.Int("precision", 0),
		KeepComments: opts.Bool("keepComments", false),
	})

	return func(a *asset) error {
		out, err := m.Bytes("image/svg+xml", a.contents)
		if err != nil {
			return fileDiagnostic(a.path, err)
		}
		a.contents = out
		return nil
	}
}

func inline(a *asset) error {
	a.loader = api.LoaderDataURL
	return nil
}

// extractStep runs the nested stylesheet steps and hands the result to
// esbuild as CSS, which esbuild writes to the bundle's stylesheet.
func extractStep(sub []stepFunc) stepFunc {
	return func(a *asset) error {
		if err := runSteps(a, sub); err != nil {
			return err
		}
		a.loader = api.LoaderCSS
		return nil
	}
}

func preprocessStep(sourceMap bool) stepFunc {
	return func(a *asset) error {
		a.lowerNesting = true
		a.sourceMap = sourceMap
		return nil
	}
}

func prefixStep(engines []api.Engine) stepFunc {
	return func(a *asset) error {
		a.engines = engines
		return nil
	}
}

func compileCSS(a *asset) error {
	minified := a.build.HasPlugin(buildconfig.PluginMinify)

	opts := api.TransformOptions{
		Loader:           api.LoaderCSS,
		Sourcefile:       a.path,
		Engines:          a.engines,
		MinifyWhitespace: minified,
		MinifySyntax:     minified,
		LogLevel:         api.LogLevelSilent,
	}
	if a.lowerNesting {
		opts.Supported = map[string]bool{"nesting": false}
	}
	if a.sourceMap && a.build.SourceMap {
		opts.Sourcemap = api.SourceMapInline
	}

	result := api.Transform(string(a.contents), opts)
	a.warnings = append(a.warnings, result.Warnings...)
	if len(result.Errors) > 0 {
		return &diagnostics{messages: result.Errors}
	}

	a.contents = result.Code
	a.loader = api.LoaderCSS
	return nil
}

// styleModule wraps compiled CSS in a script that adds it to the document
// when the bundle runs.
func styleModule(a *asset) error {
	literal, err := jsString(a.contents)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "const css = %s;\n", literal)
	buf.WriteString("if (typeof document !== \"undefined\") {\n")
	buf.WriteString("  const style = document.createElement(\"style\");\n")
	buf.WriteString("  style.textContent = css;\n")
	buf.WriteString("  document.head.appendChild(style);\n")
	buf.WriteString("}\n")
	buf.WriteString("export default css;\n")

	a.contents = buf.Bytes()
	a.loader = api.LoaderJS
	return nil
}

// compileTemplate checks Handlebars syntax at build time and exports the
// template source for the runtime to render.
func compileTemplate(a *asset) error {
	if _, err := raymond.Parse(string(a.contents)); err != nil {
		return fileDiagnostic(a.path, err)
	}

	literal, err := jsString(a.contents)
	if err != nil {
		return err
	}

	a.contents = []byte("export default " + literal + ";\n")
	a.loader = api.LoaderJS
	return nil
}

func jsString(b []byte) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(string(b)); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
