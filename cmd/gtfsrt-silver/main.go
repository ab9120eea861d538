package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:        "gtfsrt-silver",
		Usage:       "flatten GTFS-realtime feed snapshots into silver-layer rows",
		Description: "Runs the bronze-to-silver pipeline and offers local tools for inspecting feed files.",
		Commands: []*cli.Command{
			serveCommand(),
			flattenCommand(),
			dumpCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Send()
	}
}
