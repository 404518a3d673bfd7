package main

import (
	"github.com/alecthomas/kong"

	"github.com/block/sortedview/pkg/viewctl"
)

var cli struct {
	Update  viewctl.Update  `cmd:"" help:"Apply a source-updates file to a stage and print the resulting Content."`
	Inspect viewctl.Inspect `cmd:"" help:"Dump a persisted stream of a stage without applying anything."`
}

func main() {
	ctx := kong.Parse(&cli)
	ctx.FatalIfErrorf(ctx.Run())
}
