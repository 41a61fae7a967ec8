package assets

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetpipe/internal/buildconfig"
)

const ignoreNamespace = "assetpipe-ignore"

type pluginApplier func(p *Pipeline, spec buildconfig.PluginSpec, opts *api.BuildOptions) error

var pluginAppliers = map[string]pluginApplier{
	buildconfig.PluginExtractCSS: applyExtractCSS,
	buildconfig.PluginProvide:    applyProvide,
	buildconfig.PluginIgnore:     applyIgnore,
	buildconfig.PluginStyleLint:  applyStyleLint,
	buildconfig.PluginLiveReload: applyLiveReload,
	buildconfig.PluginMinify:     applyMinify,
}

// rulesPlugin routes every file through the first asset rule that matches it.
func rulesPlugin(build *buildconfig.BuildConfig) (api.Plugin, error) {
	type compiledRule struct {
		rule  buildconfig.AssetRule
		steps []stepFunc
	}

	compiled := make([]compiledRule, 0, len(build.Rules))
	for _, rule := range build.Rules {
		steps, err := compileSteps(rule.Pipeline)
		if err != nil {
			return api.Plugin{}, fmt.Errorf("rule %q: %w", rule.Name, err)
		}
		compiled = append(compiled, compiledRule{rule: rule, steps: steps})
	}

	return api.Plugin{
		Name: "assetpipe-rules",
		Setup: func(pb api.PluginBuild) {
			for _, c := range compiled {
				pb.OnLoad(api.OnLoadOptions{Filter: c.rule.Pattern, Namespace: "file"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					if c.rule.Excludes(args.Path) {
						return api.OnLoadResult{}, nil
					}
					return loadAsset(build, args.Path, c.steps)
				})
			}
		},
	}, nil
}

// applyExtractCSS checks that the extracted stylesheet shares the script's
// name template; esbuild writes the CSS imported by an entry point next to it.
func applyExtractCSS(p *Pipeline, spec buildconfig.PluginSpec, _ *api.BuildOptions) error {
	filename := spec.Options.String("filename", p.build.Output.Stylesheet)

	cssStem := strings.TrimSuffix(filename, filepath.Ext(filename))
	scriptStem := strings.TrimSuffix(p.build.Output.Script, filepath.Ext(p.build.Output.Script))
	if cssStem != scriptStem {
		return fmt.Errorf("%w: stylesheet template %q must share the script template %q", buildconfig.ErrInvalidConfig, filename, p.build.Output.Script)
	}
	return nil
}

// applyProvide injects a generated module that binds a global identifier to
// an expression exposed by a polyfill package.
func applyProvide(p *Pipeline, spec buildconfig.PluginSpec, opts *api.BuildOptions) error {
	identifier := spec.Options.String("identifier", "")
	module := spec.Options.String("module", "")
	expression := spec.Options.String("expression", identifier)
	if identifier == "" || module == "" {
		return fmt.Errorf("%w: provide plugin needs an identifier and a module", buildconfig.ErrInvalidConfig)
	}

	dir := p.path(p.config.WorkDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create shim directory: %w", err)
	}

	shim := fmt.Sprintf("import %q;\nconst provided = %s;\nexport { provided as %s };\n", module, expression, identifier)
	path := filepath.Join(dir, "provide-"+identifier+".js")
	if err := os.WriteFile(path, []byte(shim), 0o600); err != nil {
		return fmt.Errorf("failed to write shim: %w", err)
	}

	opts.Inject = append(opts.Inject, path)
	return nil
}

// applyIgnore replaces imports matching resource, made from files matching
// context, with empty modules.
func applyIgnore(_ *Pipeline, spec buildconfig.PluginSpec, opts *api.BuildOptions) error {
	resource := spec.Options.String("resource", "")
	if resource == "" {
		return fmt.Errorf("%w: ignore plugin needs a resource pattern", buildconfig.ErrInvalidConfig)
	}
	if _, err := regexp.Compile(resource); err != nil {
		return fmt.Errorf("%w: ignore resource: %w", buildconfig.ErrInvalidConfig, err)
	}

	var importer *regexp.Regexp
	if expr := spec.Options.String("context", ""); expr != "" {
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("%w: ignore context: %w", buildconfig.ErrInvalidConfig, err)
		}
		importer = re
	}

	opts.Plugins = append(opts.Plugins, api.Plugin{
		Name: "assetpipe-ignore",
		Setup: func(pb api.PluginBuild) {
			pb.OnResolve(api.OnResolveOptions{Filter: resource}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if importer != nil && !importer.MatchString(args.Importer) && !importer.MatchString(args.ResolveDir) {
					return api.OnResolveResult{}, nil
				}
				return api.OnResolveResult{Path: args.Path, Namespace: ignoreNamespace}, nil
			})
			pb.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: ignoreNamespace}, func(api.OnLoadArgs) (api.OnLoadResult, error) {
				empty := ""
				return api.OnLoadResult{Contents: &empty, Loader: api.LoaderJS}, nil
			})
		},
	})
	return nil
}

// applyStyleLint checks stylesheet sources at the start of every build.
// Findings are reported as warnings unless failOnError is set.
func applyStyleLint(p *Pipeline, spec buildconfig.PluginSpec, opts *api.BuildOptions) error {
	patterns := spec.Options.Strings("files")
	if len(patterns) == 0 {
		patterns = []string{"**/*.css"}
	}
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: style lint pattern %q", buildconfig.ErrInvalidConfig, pattern)
		}
	}
	failOnError := spec.Options.Bool("failOnError", false)
	root := p.path(".")
	skip := []string{"node_modules", filepath.ToSlash(filepath.Clean(p.build.Output.Dir))}

	opts.Plugins = append(opts.Plugins, api.Plugin{
		Name: "assetpipe-style-lint",
		Setup: func(pb api.PluginBuild) {
			pb.OnStart(func() (api.OnStartResult, error) {
				messages, err := lintStylesheets(root, patterns, skip)
				if err != nil {
					log.Warn().Err(err).Msg("Style lint skipped")
					return api.OnStartResult{}, nil
				}
				recordLintWarnings(len(messages))
				if failOnError {
					return api.OnStartResult{Errors: messages}, nil
				}
				return api.OnStartResult{Warnings: messages}, nil
			})
		},
	})
	return nil
}

// lintStylesheets parses every stylesheet under root matching patterns and
// returns the parser's findings.
func lintStylesheets(root string, patterns, skip []string) ([]api.Message, error) {
	fsys := os.DirFS(root)

	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			if skipped(match, skip) || slices.Contains(files, match) {
				continue
			}
			files = append(files, match)
		}
	}
	slices.Sort(files)

	var messages []api.Message
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, err
		}
		result := api.Transform(string(data), api.TransformOptions{
			Loader:     api.LoaderCSS,
			Sourcefile: file,
			LogLevel:   api.LogLevelSilent,
		})
		messages = append(messages, result.Errors...)
		messages = append(messages, result.Warnings...)
	}

	for i := range messages {
		messages[i].PluginName = buildconfig.PluginStyleLint
	}
	return messages, nil
}

func skipped(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix == "" || prefix == "." {
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") || strings.Contains(path, "/"+prefix+"/") {
			return true
		}
	}
	return false
}

// applyLiveReload adds a banner that reloads the page whenever the
// development server announces a rebuild.
func applyLiveReload(p *Pipeline, spec buildconfig.PluginSpec, opts *api.BuildOptions) error {
	url := p.config.LiveReloadURL
	if url == "" {
		url = spec.Options.String("url", buildconfig.DefaultLiveReloadURL)
	}

	if opts.Banner == nil {
		opts.Banner = map[string]string{}
	}
	opts.Banner["js"] = liveReloadSnippet(url)
	return nil
}

func liveReloadSnippet(url string) string {
	return fmt.Sprintf(`(() => { if (typeof EventSource === "undefined") return; new EventSource(%q).addEventListener("reload", () => location.reload()); })();`, url)
}

func applyMinify(_ *Pipeline, spec buildconfig.PluginSpec, opts *api.BuildOptions) error {
	opts.MinifyWhitespace = true
	opts.MinifyIdentifiers = true
	opts.MinifySyntax = true
	if spec.Options.Bool("treeShaking", true) {
		opts.TreeShaking = api.TreeShakingTrue
	}
	return nil
}
