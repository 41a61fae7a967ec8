package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetpipe/internal/buildconfig"
	"github.com/wolfeidau/assetpipe/internal/buildmode"
)

var fixtureFiles = map[string]string{
	"src/index.ts": `import $ from "jquery";
import moment from "moment";
import "./styles/main.pcss";
import "./styles/plain.css";
import logo from "./img/logo.png";
import icon from "./img/icon.svg";
import view from "./views/result.hbs";

console.log($("JQUERY_VENDOR_MARKER"), moment(), logo, icon, view);
fetch("/api");
`,
	"src/vendor/jquery.js": "export default function $(selector) {\n  return selector;\n}\n",
	"src/styles/main.pcss": ".header {\n  user-select: none;\n  .title {\n    color: red;\n  }\n}\n",
	"src/styles/plain.css": ".plain {\n  color: blue;\n}\n",
	// never imported, only seen by the style linter
	"src/styles/unused.pcss":                 ".broken {\n  color: red;\n",
	"src/img/logo.png":                       "\x89PNG\r\n\x1a\nfake",
	"src/img/icon.svg":                       `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><!-- drawn by hand --><rect width="10" height="10"/></svg>`,
	"src/views/result.hbs":                   "<p>{{title}}</p>\n",
	"node_modules/moment/package.json":       `{"name": "moment", "main": "index.js"}`,
	"node_modules/moment/index.js":           "import \"./locale/de\";\nexport default function moment() {\n  return \"MOMENT_CORE_MARKER\";\n}\n",
	"node_modules/moment/locale/de.js":       "console.log(\"GERMAN_LOCALE_MARKER\");\n",
	"node_modules/whatwg-fetch/package.json": `{"name": "whatwg-fetch", "main": "index.js"}`,
	"node_modules/whatwg-fetch/index.js":     "self.fetch = self.fetch || function polyfill() {\n  return \"FETCH_POLYFILL_MARKER\";\n};\n",
}

func writeFixture(t *testing.T, overrides map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{}
	for name, contents := range fixtureFiles {
		files[name] = contents
	}
	for name, contents := range overrides {
		files[name] = contents
	}

	for name, contents := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	}
	return dir
}

func newFixturePipeline(t *testing.T, dir string, mode buildmode.Mode) *Pipeline {
	t.Helper()

	config := DefaultConfig()
	config.BaseDir = dir

	p, err := New(config, buildconfig.Assemble(mode, buildconfig.DefaultCatalog()))
	require.NoError(t, err)
	return p
}

func readOutput(t *testing.T, dir, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, "dist", name))
	require.NoError(t, err)
	return string(data)
}
