package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpipe/internal/buildconfig"
	"github.com/wolfeidau/assetpipe/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/wolfeidau/assetpipe/internal/assets")

// Options translates the build configuration into esbuild build options
func (p *Pipeline) Options() (api.BuildOptions, error) {
	cfg := &p.build

	if len(cfg.EntryPoints) == 0 {
		return api.BuildOptions{}, ErrNoEntryPoints
	}

	scriptStem := strings.TrimSuffix(cfg.Output.Script, filepath.Ext(cfg.Output.Script))

	names := make([]string, 0, len(cfg.EntryPoints))
	for name := range cfg.EntryPoints {
		names = append(names, name)
	}
	slices.Sort(names)

	entryPoints := make([]api.EntryPoint, 0, len(names))
	for _, name := range names {
		entryPoints = append(entryPoints, api.EntryPoint{
			InputPath:  p.path(cfg.EntryPoints[name]),
			OutputPath: strings.Replace(scriptStem, buildconfig.NamePlaceholder, name, 1),
		})
	}

	nodePaths := make([]string, 0, len(cfg.Resolution.Roots))
	for _, root := range cfg.Resolution.Roots {
		nodePaths = append(nodePaths, p.path(root))
	}

	alias := make(map[string]string, len(cfg.Resolution.Alias))
	for name, target := range cfg.Resolution.Alias {
		alias[name] = aliasTarget(target)
	}

	opts := api.BuildOptions{
		EntryPointsAdvanced: entryPoints,
		AbsWorkingDir:       p.path("."),
		Outdir:              p.path(cfg.Output.Dir),
		Bundle:              true,
		Write:               true,
		Metafile:            true,
		Format:              api.FormatIIFE,
		Platform:            api.PlatformBrowser,
		ResolveExtensions:   slices.Clone(cfg.Resolution.Extensions),
		NodePaths:           nodePaths,
		Alias:               alias,
		Sourcemap:           cond(cfg.SourceMap, api.SourceMapLinked, api.SourceMapNone),
		LogLevel:            api.LogLevelSilent,
	}

	rules, err := rulesPlugin(cfg)
	if err != nil {
		return api.BuildOptions{}, err
	}
	opts.Plugins = append(opts.Plugins, rules)

	for _, spec := range cfg.Plugins {
		apply, ok := pluginAppliers[spec.Name]
		if !ok {
			return api.BuildOptions{}, fmt.Errorf("%w: %q", ErrUnknownPlugin, spec.Name)
		}
		if err := apply(p, spec, &opts); err != nil {
			return api.BuildOptions{}, fmt.Errorf("plugin %q: %w", spec.Name, err)
		}
	}

	opts.Plugins = append(opts.Plugins, p.reportPlugin())

	return opts, nil
}

// Build runs esbuild once with the configured settings and loads metadata
func (p *Pipeline) Build(ctx context.Context) error {
	_, span := tracer.Start(ctx, "assets.Build")
	defer span.End()

	opts, err := p.Options()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	log.Info().
		Strs("entrypoints", entryNames(opts.EntryPointsAdvanced)).
		Str("mode", p.build.Mode.String()).
		Msg("Building assets")

	result := api.Build(opts)
	if err := buildError(result.Errors); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	for _, msg := range result.Warnings {
		logMessage(log.Warn(), msg).Msg("Build warning")
	}

	return nil
}

// Watch builds, then rebuilds on every source change until ctx is cancelled
func (p *Pipeline) Watch(ctx context.Context) error {
	opts, err := p.Options()
	if err != nil {
		return err
	}

	bctx, cerr := api.Context(opts)
	if cerr != nil {
		return buildError(cerr.Errors)
	}
	defer bctx.Dispose()

	if err := bctx.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	log.Info().Str("mode", p.build.Mode.String()).Msg("Watching for changes")

	<-ctx.Done()
	return nil
}

// Assets returns the output files for the named bundle
func (p *Pipeline) Assets(bundle string) (Bundle, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata == nil {
		return Bundle{}, ErrNotBuilt
	}

	b, ok := p.manifest[bundle]
	if !ok {
		return Bundle{}, fmt.Errorf("%w: %q", ErrBundleNotFound, bundle)
	}
	return b, nil
}

// Manifest returns a copy of the bundles produced by the last successful build
func (p *Pipeline) Manifest() Manifest {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return maps.Clone(p.manifest)
}

// Handler returns an http.HandlerFunc that renders the given template with every bundle
func (p *Pipeline) Handler(templateName, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.mu.RLock()
		built := p.metadata != nil
		p.mu.RUnlock()

		if !built {
			log.Error().Err(ErrNotBuilt).Msg("Failed to load bundles")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		data := map[string]any{
			"Title":   title,
			"Bundles": p.Manifest(),
		}

		if err := p.tmpl.ExecuteTemplate(w, templateName, data); err != nil {
			log.Error().Err(err).Msg("Failed to render template")
		}
	}
}

// reportPlugin records metrics and, on success, loads the metafile and
// notifies rebuild listeners. It runs for one-shot builds and watch rebuilds.
func (p *Pipeline) reportPlugin() api.Plugin {
	return api.Plugin{
		Name: "assetpipe-report",
		Setup: func(pb api.PluginBuild) {
			var started time.Time
			pb.OnStart(func() (api.OnStartResult, error) {
				started = time.Now()
				return api.OnStartResult{}, nil
			})
			pb.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				duration := time.Since(started)

				if len(result.Errors) > 0 {
					recordBuild(p.build.Mode.String(), false, duration, 0)
					for _, msg := range result.Errors {
						logMessage(log.Error(), msg).Msg("Build error")
					}
					return api.OnEndResult{}, nil
				}

				manifest, err := p.afterBuild(result)
				if err != nil {
					recordBuild(p.build.Mode.String(), false, duration, 0)
					return api.OnEndResult{Errors: []api.Message{{Text: err.Error()}}}, nil
				}

				total := 0
				for name, b := range manifest {
					total += b.Bytes
					log.Info().Str("bundle", name).Str("script", b.Script).Str("stylesheet", b.Stylesheet).Msg("Built bundle")
				}
				recordBuild(p.build.Mode.String(), true, duration, total)
				log.Info().Dur("duration", duration).Msg("Build finished")

				return api.OnEndResult{}, nil
			})
		},
	}
}

func (p *Pipeline) afterBuild(result *api.BuildResult) (Manifest, error) {
	outdir := p.path(p.build.Output.Dir)

	// Write metafile
	if err := os.WriteFile(filepath.Join(outdir, p.config.MetafileName), []byte(result.Metafile), 0o600); err != nil {
		return nil, err
	}

	// Parse and cache metadata
	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return nil, err
	}

	manifest, err := p.manifestFor(&metadata)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.metadata = &metadata
	p.manifest = manifest
	watchers := slices.Clone(p.watchers)
	p.mu.Unlock()

	for _, fn := range watchers {
		fn(manifest)
	}

	return manifest, nil
}

// manifestFor maps each entry point output back to its bundle name.
func (p *Pipeline) manifestFor(metadata *BuildMetadata) (Manifest, error) {
	outdir := p.path(p.build.Output.Dir)
	scriptStem := strings.TrimSuffix(p.build.Output.Script, filepath.Ext(p.build.Output.Script))

	byOutput := make(map[string]string, len(p.build.EntryPoints))
	for name := range p.build.EntryPoints {
		byOutput[strings.Replace(scriptStem, buildconfig.NamePlaceholder, name, 1)] = name
	}

	manifest := Manifest{}
	for outputPath, info := range metadata.Outputs {
		if info.EntryPoint == "" {
			continue
		}

		script, err := filepath.Rel(outdir, p.path(outputPath))
		if err != nil {
			return nil, err
		}
		script = filepath.ToSlash(script)

		name, ok := byOutput[strings.TrimSuffix(script, filepath.Ext(script))]
		if !ok {
			continue
		}

		b := Bundle{Script: script, Bytes: info.Bytes}
		if info.CSSBundle != "" {
			stylesheet, err := filepath.Rel(outdir, p.path(info.CSSBundle))
			if err != nil {
				return nil, err
			}
			b.Stylesheet = filepath.ToSlash(stylesheet)
			if css, ok := metadata.Outputs[info.CSSBundle]; ok {
				b.Bytes += css.Bytes
			}
		}
		manifest[name] = b
	}

	return manifest, nil
}

// path resolves a catalog path against the pipeline's base directory.
func (p *Pipeline) path(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	base, err := filepath.Abs(p.config.BaseDir)
	if err != nil {
		base = p.config.BaseDir
	}
	return filepath.Join(base, rel)
}

// aliasTarget makes a file path alias relative to the working directory, the
// form esbuild expects. Package names pass through.
func aliasTarget(target string) string {
	target = filepath.ToSlash(target)
	switch {
	case filepath.IsAbs(target), strings.HasPrefix(target, "."), strings.HasPrefix(target, "@"):
		return target
	case filepath.Ext(target) != "":
		return "./" + target
	}
	return target
}

func buildError(messages []api.Message) error {
	if len(messages) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrBuildFailed, messages[0].Text)
}

func logMessage(event *zerolog.Event, msg api.Message) *zerolog.Event {
	event = event.Str("text", msg.Text)
	if msg.PluginName != "" {
		event = event.Str("plugin", msg.PluginName)
	}
	if msg.Location != nil {
		event = event.Str("file", msg.Location.File).Int("line", msg.Location.Line)
	}
	return event
}

func entryNames(entryPoints []api.EntryPoint) []string {
	names := make([]string, len(entryPoints))
	for i, ep := range entryPoints {
		names[i] = ep.OutputPath
	}
	return names
}

func recordBuild(mode string, success bool, duration time.Duration, bytes int) {
	m := telemetry.GetMetrics()
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("mode", mode), attribute.Bool("success", success))

	m.BuildsTotal.Add(ctx, 1, attrs)
	m.BuildDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if success {
		m.OutputBytesTotal.Add(ctx, int64(bytes), attrs)
	}
}

func recordLintWarnings(n int) {
	if n == 0 {
		return
	}
	telemetry.GetMetrics().StyleLintWarningsTotal.Add(context.Background(), int64(n))
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
