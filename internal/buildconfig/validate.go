package buildconfig

import "strings"

// probeExtensions are checked alongside the resolution extensions when
// looking for rules that claim the same kind of file.
var probeExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".hbs"}

// Validate checks the structural invariants of a resolved configuration.
func (c BuildConfig) Validate() error {
	if len(c.EntryPoints) == 0 {
		return wrapInvalid("at least one entry point is required")
	}
	for name, src := range c.EntryPoints {
		if name == "" || src == "" {
			return wrapInvalid("entry point %q has an empty name or source", name)
		}
	}

	if len(c.Rules) == 0 {
		return wrapInvalid("at least one asset rule is required")
	}

	if c.Output.Dir == "" {
		return wrapInvalid("output directory is required")
	}
	templates := []struct{ kind, tmpl string }{
		{"script", c.Output.Script},
		{"stylesheet", c.Output.Stylesheet},
	}
	for _, t := range templates {
		if n := strings.Count(t.tmpl, NamePlaceholder); n != 1 {
			return wrapInvalid("%s output template %q must contain %s exactly once, found %d", t.kind, t.tmpl, NamePlaceholder, n)
		}
	}

	probes := append(append([]string{}, c.Resolution.Extensions...), probeExtensions...)
	for _, ext := range probes {
		if ext == "" {
			continue
		}
		matched := c.Rules.Match("probe"+ext, Compose)
		if len(matched) > 1 {
			return wrapInvalid("rules %q and %q both claim %s files", matched[0].Name, matched[1].Name, ext)
		}
	}

	return nil
}
