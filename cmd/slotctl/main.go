package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/noah-isme/slotswap-availability/internal/cli"
)

func main() {
	var root cli.Root
	ctx := kong.Parse(&root,
		kong.Name("slotctl"),
		kong.Description("Inspect availability over a file of busy ranges."),
		kong.UsageOnError(),
	)

	appCtx, err := root.NewContext(os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := ctx.Run(appCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
