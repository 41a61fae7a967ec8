package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wolfeidau/assetpipe/internal/buildconfig"
	"gopkg.in/yaml.v3"
)

type PrintCmd struct {
	Config string `help:"path to a YAML asset catalog" type:"existingfile" env:"ASSETPIPE_CONFIG"`
	Format string `help:"output format" default:"yaml" enum:"yaml,json"`
}

func (c *PrintCmd) Run(globals *Globals) error {
	cfg, err := resolve(globals, c.Config)
	if err != nil {
		return err
	}
	return render(os.Stdout, c.Format, cfg)
}

func render(w io.Writer, format string, cfg buildconfig.BuildConfig) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
