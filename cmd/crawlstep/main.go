package main

import (
	"github.com/alecthomas/kong"

	"github.com/arnavsurve/crawlstep/cmd/cli"
)

var CLI struct {
	Run  cli.RunCmd  `cmd:"" help:"Run the configured crawler steps in a browser."`
	Lint cli.LintCmd `cmd:"" help:"Load, resolve and build the configuration without starting a browser."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("crawlstep"),
		kong.Description("Declarative browser automation: configured steps of actions over a WebDriver or DevTools session."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
