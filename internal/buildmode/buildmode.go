package buildmode

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// DebugMarker is the argument substring that switches a build into development mode.
const DebugMarker = "--debug"

// Mode selects which optional settings are appended to a build configuration.
type Mode int

const (
	Production Mode = iota
	Development
)

func (m Mode) String() string {
	switch m {
	case Development:
		return "development"
	default:
		return "production"
	}
}

// MarshalText renders the mode by name so printed configurations stay readable.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// IsDevelopment reports whether m is Development.
func (m Mode) IsDevelopment() bool {
	return m == Development
}

// Detect returns Development if any of the process arguments contains
// DebugMarker, otherwise Production.
func Detect(args []string) Mode {
	mode := Production
	for _, arg := range args {
		if strings.Contains(arg, DebugMarker) {
			mode = Development
			break
		}
	}

	log.Info().Str("mode", mode.String()).Msgf("development mode is %s", onOff(mode.IsDevelopment()))

	return mode
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
