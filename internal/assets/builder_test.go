package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetpipe/internal/buildconfig"
	"github.com/wolfeidau/assetpipe/internal/buildmode"
)

func TestPipeline_BuildProduction(t *testing.T) {
	dir := writeFixture(t, nil)
	p := newFixturePipeline(t, dir, buildmode.Production)

	var rebuilt Manifest
	p.OnRebuild(func(m Manifest) { rebuilt = m })

	require.NoError(t, p.Build(context.Background()))

	script := readOutput(t, dir, "bundle.js")
	require.Contains(t, script, "JQUERY_VENDOR_MARKER")
	require.Contains(t, script, "MOMENT_CORE_MARKER")
	require.NotContains(t, script, "GERMAN_LOCALE_MARKER")
	require.Contains(t, script, "FETCH_POLYFILL_MARKER")
	require.Contains(t, script, "data:image/png;base64,")
	require.Contains(t, script, "data:image/svg+xml")
	require.NotContains(t, script, "drawn by hand")
	require.Contains(t, script, "{{title}}")
	require.Contains(t, script, ".plain")
	require.NotContains(t, script, "EventSource")

	stylesheet := readOutput(t, dir, "bundle.css")
	require.Contains(t, stylesheet, ".header .title")
	require.Contains(t, stylesheet, "-webkit-user-select")
	require.NotContains(t, stylesheet, ".plain")

	require.NoFileExists(t, filepath.Join(dir, "dist", "bundle.js.map"))
	require.FileExists(t, filepath.Join(dir, "dist", "meta.json"))

	bundle, err := p.Assets("bundle")
	require.NoError(t, err)
	require.Equal(t, "bundle.js", bundle.Script)
	require.Equal(t, "bundle.css", bundle.Stylesheet)
	require.Positive(t, bundle.Bytes)
	require.Equal(t, bundle, rebuilt["bundle"])

	_, err = p.Assets("missing")
	require.ErrorIs(t, err, ErrBundleNotFound)
}

func TestPipeline_BuildDevelopment(t *testing.T) {
	dir := writeFixture(t, nil)
	p := newFixturePipeline(t, dir, buildmode.Development)

	require.NoError(t, p.Build(context.Background()))

	script := readOutput(t, dir, "bundle.js")
	require.Contains(t, script, "EventSource")
	require.Contains(t, script, buildconfig.DefaultLiveReloadURL)
	require.Contains(t, script, "sourceMappingURL=bundle.js.map")
	require.FileExists(t, filepath.Join(dir, "dist", "bundle.js.map"))
	require.FileExists(t, filepath.Join(dir, "dist", "bundle.css"))
}

func TestPipeline_ScriptLintIsFatal(t *testing.T) {
	dir := writeFixture(t, map[string]string{
		"src/index.ts": "export const broken = typeof window === \"undefned\";\n",
	})
	p := newFixturePipeline(t, dir, buildmode.Production)

	err := p.Build(context.Background())
	require.ErrorIs(t, err, ErrBuildFailed)
	require.NoFileExists(t, filepath.Join(dir, "dist", "bundle.js"))

	_, err = p.Assets("bundle")
	require.ErrorIs(t, err, ErrNotBuilt)
}

func TestPipeline_TemplateSyntaxError(t *testing.T) {
	dir := writeFixture(t, map[string]string{
		"src/views/result.hbs": "{{#if title}}<p>unterminated</p>\n",
	})
	p := newFixturePipeline(t, dir, buildmode.Production)

	require.ErrorIs(t, p.Build(context.Background()), ErrBuildFailed)
}

func TestPipeline_StyleLintIsNotFatal(t *testing.T) {
	dir := writeFixture(t, map[string]string{
		"src/styles/unused.pcss": ".broken {\n  color: red;\n",
		"src/styles/other.pcss":  "@@@ not css",
	})
	p := newFixturePipeline(t, dir, buildmode.Production)

	require.NoError(t, p.Build(context.Background()))
	require.FileExists(t, filepath.Join(dir, "dist", "bundle.js"))
}

func TestPipeline_Options(t *testing.T) {
	dir := t.TempDir()

	t.Run("production", func(t *testing.T) {
		p := newFixturePipeline(t, dir, buildmode.Production)
		opts, err := p.Options()
		require.NoError(t, err)

		require.True(t, opts.MinifyWhitespace)
		require.True(t, opts.MinifyIdentifiers)
		require.True(t, opts.MinifySyntax)
		require.Equal(t, api.TreeShakingTrue, opts.TreeShaking)
		require.Equal(t, api.SourceMapNone, opts.Sourcemap)
		require.Empty(t, opts.Banner["js"])

		require.Len(t, opts.EntryPointsAdvanced, 1)
		require.Equal(t, "bundle", opts.EntryPointsAdvanced[0].OutputPath)
		require.Equal(t, filepath.Join(dir, "src", "index"), opts.EntryPointsAdvanced[0].InputPath)
		require.Equal(t, filepath.Join(dir, "dist"), opts.Outdir)
		require.Equal(t, "./src/vendor/jquery.js", opts.Alias["jquery"])
		require.Equal(t, []string{filepath.Join(dir, "src")}, opts.NodePaths)

		require.Len(t, opts.Inject, 1)
		shim, err := os.ReadFile(opts.Inject[0])
		require.NoError(t, err)
		require.Contains(t, string(shim), `import "whatwg-fetch";`)
		require.Contains(t, string(shim), "export { provided as fetch };")
	})

	t.Run("development", func(t *testing.T) {
		p := newFixturePipeline(t, dir, buildmode.Development)
		opts, err := p.Options()
		require.NoError(t, err)

		require.False(t, opts.MinifyWhitespace)
		require.Equal(t, api.SourceMapLinked, opts.Sourcemap)
		require.Contains(t, opts.Banner["js"], buildconfig.DefaultLiveReloadURL)
	})

	t.Run("live reload url override", func(t *testing.T) {
		config := DefaultConfig()
		config.BaseDir = dir
		config.LiveReloadURL = "http://127.0.0.1:9999/livereload"

		p, err := New(config, buildconfig.Assemble(buildmode.Development, buildconfig.DefaultCatalog()))
		require.NoError(t, err)

		opts, err := p.Options()
		require.NoError(t, err)
		require.Contains(t, opts.Banner["js"], "127.0.0.1:9999")
	})
}

func TestPipeline_OptionsErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(cfg *buildconfig.BuildConfig)
		expected error
	}{
		{
			name: "unknown plugin",
			mutate: func(cfg *buildconfig.BuildConfig) {
				cfg.Plugins = append(cfg.Plugins, buildconfig.PluginSpec{Name: "banner"})
			},
			expected: ErrUnknownPlugin,
		},
		{
			name: "unknown step",
			mutate: func(cfg *buildconfig.BuildConfig) {
				cfg.Rules[0].Pipeline = append(cfg.Rules[0].Pipeline, buildconfig.Step{Name: "coffee"})
			},
			expected: ErrUnknownStep,
		},
		{
			name: "stylesheet name differs from script",
			mutate: func(cfg *buildconfig.BuildConfig) {
				cfg.Plugins[0].Options["filename"] = "styles/[name].css"
			},
			expected: buildconfig.ErrInvalidConfig,
		},
		{
			name: "provide without module",
			mutate: func(cfg *buildconfig.BuildConfig) {
				delete(cfg.Plugins[1].Options, "module")
			},
			expected: buildconfig.ErrInvalidConfig,
		},
		{
			name: "ignore with bad context",
			mutate: func(cfg *buildconfig.BuildConfig) {
				cfg.Plugins[2].Options["context"] = "("
			},
			expected: buildconfig.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := buildconfig.Assemble(buildmode.Production, buildconfig.DefaultCatalog())
			tt.mutate(&cfg)

			config := DefaultConfig()
			config.BaseDir = t.TempDir()
			p, err := New(config, cfg)
			require.NoError(t, err)

			_, err = p.Options()
			require.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := buildconfig.Assemble(buildmode.Production, buildconfig.DefaultCatalog())
	cfg.Output.Script = "bundle.js"

	_, err := New(DefaultConfig(), cfg)
	require.ErrorIs(t, err, buildconfig.ErrInvalidConfig)
}

func TestPipeline_Handler(t *testing.T) {
	dir := writeFixture(t, nil)
	p := newFixturePipeline(t, dir, buildmode.Production)
	handler := p.Handler("index", "Assets")

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	require.NoError(t, p.Build(context.Background()))

	w = httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	require.Contains(t, body, "<title>Assets</title>")
	require.Contains(t, body, `<script src="/bundle.js"></script>`)
	require.Contains(t, body, `<link rel="stylesheet" href="/bundle.css">`)
	require.Contains(t, body, `window.__ASSETS__ = {"bundle":{"script":"bundle.js","stylesheet":"bundle.css","bytes":`)
}

func TestAliasTarget(t *testing.T) {
	tests := map[string]string{
		"src/vendor/jquery.js":   "./src/vendor/jquery.js",
		"./src/vendor/jquery.js": "./src/vendor/jquery.js",
		"/abs/jquery.js":         "/abs/jquery.js",
		"preact/compat":          "preact/compat",
		"@scope/pkg":             "@scope/pkg",
		"zepto":                  "zepto",
	}

	for input, expected := range tests {
		t.Run(input, func(t *testing.T) {
			require.Equal(t, expected, aliasTarget(input))
		})
	}
}

func TestPipeline_WatchRebuildsOnChange(t *testing.T) {
	dir := writeFixture(t, nil)
	p := newFixturePipeline(t, dir, buildmode.Development)

	rebuilt := make(chan Manifest, 8)
	p.OnRebuild(func(m Manifest) { rebuilt <- m })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Watch(ctx) }()

	select {
	case m := <-rebuilt:
		require.Equal(t, "bundle.js", m["bundle"].Script)
	case <-time.After(10 * time.Second):
		t.Fatal("initial build did not finish")
	}
	require.NotContains(t, readOutput(t, dir, "bundle.js"), "SECOND_BUILD_MARKER")

	source := filepath.Join(dir, "src", "index.ts")
	require.NoError(t, os.WriteFile(source, []byte(fixtureFiles["src/index.ts"]+"console.log(\"SECOND_BUILD_MARKER\");\n"), 0o600))

	select {
	case <-rebuilt:
	case <-time.After(15 * time.Second):
		t.Fatal("no rebuild after source change")
	}
	require.Contains(t, readOutput(t, dir, "bundle.js"), "SECOND_BUILD_MARKER")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
