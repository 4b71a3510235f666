package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli"

	"meetprep/internal/ics"
)

var ExportCmd = cli.Command{
	Name:  "export",
	Usage: "Connect and write the meetings as an iCalendar file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "out",
			Usage: "Output file, stdout when empty",
		},
		&cli.BoolFlag{
			Name:  "no-delay",
			Usage: "Skip the simulated connection latency",
		},
	},
	Action: exportMeetings,
}

func exportMeetings(c *cli.Context) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	latency := cfg.ConnectLatency()
	if c.Bool("no-delay") {
		latency = 0
	}

	store := newStore(cfg, latency)
	if err := store.Connect(context.Background()); err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if path := c.String("out"); path != "" {
		f, cerr := os.Create(path)
		if cerr != nil {
			return fmt.Errorf("create %s: %w", path, cerr)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	return ics.WriteCalendar(w, store.Meetings(), ics.ExportOptions{Name: "Meetings", Now: store.Now()})
}
