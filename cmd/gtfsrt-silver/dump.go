package main

import (
	"fmt"
	"os"

	"github.com/illmade-knight/gtfsrt-silver/pkg/gtfsrt"
	"github.com/urfave/cli/v2"
	"google.golang.org/protobuf/encoding/protojson"
)

func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "print a local .pb feed file as JSON",
		ArgsUsage: "<feed.pb>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "summary",
				Usage: "print entity counts per kind instead of the feed",
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
			out, err := dump(payload, c.Bool("summary"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, out)
			return err
		},
	}
}

func dump(payload []byte, summary bool) (string, error) {
	feed, err := gtfsrt.DecodeFeed(payload)
	if err != nil {
		return "", err
	}
	if summary {
		counts := gtfsrt.CountKinds(feed)
		s := fmt.Sprintf("version=%s entities=%d", feed.GetHeader().GetGtfsRealtimeVersion(), len(feed.GetEntity()))
		for _, k := range gtfsrt.EntityKinds {
			s += fmt.Sprintf(" %s=%d", k, counts[k])
		}
		return s, nil
	}
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(feed)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
