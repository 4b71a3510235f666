package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli"

	"meetprep/internal/config"
	"meetprep/internal/fixture"
	"meetprep/internal/graph"
	appLog "meetprep/internal/log"
	"meetprep/internal/session"
)

const appName = "meetprep"

var appVersion = "0.1.0-dev"

func main() {
	app := cli.App{
		Name:    appName,
		Usage:   "Prepare for your calendar meetings: notes, checklists and join links",
		Version: appVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to the YAML config file",
				Value: config.DefaultPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Output debug messages",
			},
		},
		Commands: []cli.Command{
			ServeCmd,
			ListCmd,
			ExportCmd,
			JoinCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config named by the global --config flag and applies
// the log level. --debug wins over log_level.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.GlobalString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	level := appLog.ParseLevel(cfg.LogLevel)
	if c.GlobalBool("debug") {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	appLog.Debug("effective config",
		"config_path", path,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"connect_latency_ms", cfg.ConnectLatencyMs,
		"simulate_connect_failure", cfg.SimulateConnectFailure,
		"fixture", cfg.Fixture,
		"refresh", cfg.RefreshCron,
		"clock", cfg.ClockCron,
	)
	return cfg, nil
}

func newStore(cfg *config.Config, latency time.Duration) *session.Store {
	loc := cfg.Location()
	return session.New(session.Options{
		Connector: session.SimulatedConnector{
			Latency: latency,
			Fail:    cfg.SimulateConnectFailure,
		},
		Source:     fixture.FromPath(cfg.Fixture),
		Normalizer: &graph.Normalizer{Location: loc},
		Now:        func() time.Time { return time.Now().In(loc) },
	})
}
