package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/illmade-knight/gtfsrt-silver/pkg/gtfsrt"
	"github.com/illmade-knight/gtfsrt-silver/pkg/silverstore"
	"github.com/urfave/cli/v2"
)

func flattenCommand() *cli.Command {
	return &cli.Command{
		Name:      "flatten",
		Usage:     "decode a local .pb feed file and write its rows",
		ArgsUsage: "<feed.pb>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "kind",
				Aliases:  []string{"k"},
				Usage:    "feed kind: tripupdates or vehiclepositions",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "output format: parquet or jsonl",
				Value:   "jsonl",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "output file (default stdout)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one feed file", 2)
			}
			payload, err := os.ReadFile(c.Args().First())
			if err != nil {
				return err
			}

			out := io.Writer(c.App.Writer)
			if path := c.String("out"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				out = f
			}

			n, err := flatten(payload, gtfsrt.FeedKind(c.String("kind")), c.String("format"), out)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.App.ErrWriter, "%d rows\n", n)
			return nil
		},
	}
}

// flatten decodes payload as kind and writes the rows to out in format.
func flatten(payload []byte, kind gtfsrt.FeedKind, format string, out io.Writer) (int, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("unknown feed kind %q", kind)
	}
	set, err := gtfsrt.NewDecoder().Decode(kind, payload)
	if err != nil {
		return 0, err
	}

	switch format {
	case "parquet":
		err = silverstore.Encode(out, set, "")
	case "jsonl":
		err = writeJSONLines(out, set)
	default:
		return 0, fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return 0, err
	}
	return set.Len(), nil
}

func writeJSONLines(w io.Writer, set gtfsrt.RowSet) error {
	enc := json.NewEncoder(w)
	for _, r := range set.TripUpdates {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	for _, r := range set.VehiclePositions {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
