package assets

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"node":    api.EngineNode,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

// parseEngines converts browser targets such as "safari8" or "ios12.2"
// into esbuild engines.
func parseEngines(targets []string) ([]api.Engine, error) {
	engines := make([]api.Engine, 0, len(targets))
	for _, target := range targets {
		target = strings.ToLower(strings.TrimSpace(target))
		idx := strings.IndexFunc(target, func(r rune) bool { return r >= '0' && r <= '9' })
		if idx <= 0 {
			return nil, fmt.Errorf("invalid browser target %q", target)
		}

		name, ok := engineNames[target[:idx]]
		if !ok {
			return nil, fmt.Errorf("unsupported browser %q in target %q", target[:idx], target)
		}
		engines = append(engines, api.Engine{Name: name, Version: target[idx:]})
	}
	return engines, nil
}
