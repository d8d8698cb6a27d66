package main

import (
	"os"

	"github.com/alecthomas/kong"

	"github.com/lab5e/partfunk/pkg/ctrlc"
)

func main() {
	var params ctrlc.Parameters
	ctx := kong.Parse(&params,
		kong.Name("partctl"),
		kong.Description("Command line client for the partitioned key/value store"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}))

	if err := ctx.Run(ctrlc.NewRunContext(params)); err != nil {
		// The commands print their own error messages
		os.Exit(1)
	}
}
