package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/forgepack/cmd/forgepack/commands"
	ferrors "git.home.luguber.info/inful/forgepack/internal/foundation/errors"
	"git.home.luguber.info/inful/forgepack/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("forgepack"),
		kong.Description("Build orchestrator for desktop applications with one main process and many renderer windows."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	globals := &commands.Global{Out: os.Stdout}
	if err := ctx.Run(globals, &cli); err != nil {
		ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
