package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/assetpipe/cmd/bundler/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Development build with source maps, live reload and debug logging."`
		Version kong.VersionFlag
		Build   commands.BuildCmd `cmd:"" help:"Build the asset bundles"`
		Print   commands.PrintCmd `cmd:"" help:"Print the resolved build configuration"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Description("Bundles web assets with esbuild from a declarative asset catalog."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, Args: os.Args[1:]})
	cmd.FatalIfErrorf(err)
}
