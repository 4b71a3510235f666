package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	appLog "meetprep/internal/log"
	"meetprep/internal/schedule"
	"meetprep/internal/web"
)

var ServeCmd = cli.Command{
	Name:  "serve",
	Usage: "Serve the meeting prep JSON API",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Usage: "Listen address, overrides the config file",
		},
		&cli.BoolFlag{
			Name:  "connect",
			Usage: "Connect to the calendar on startup",
		},
	},
	Action: serve,
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if l := c.String("listen"); l != "" {
		cfg.Listen = l
	}

	appLog.Info("meetprep starting", "version", appVersion, "listen", cfg.Listen)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	store := newStore(cfg, cfg.ConnectLatency())

	sched, err := schedule.New(store, schedule.Config{
		Clock:    cfg.ClockCron,
		Refresh:  cfg.RefreshCron,
		Location: cfg.Location(),
	})
	if err != nil {
		return err
	}
	sched.Start()
	defer func() {
		<-sched.Stop().Done()
	}()

	if c.Bool("connect") {
		go func() {
			// Failures are kept in the store's error message for the client.
			if err := store.Connect(ctx); err != nil {
				appLog.Error("startup connect failed", err)
			}
		}()
	}

	err = web.NewServer(cfg, store).ListenAndServe(ctx)
	appLog.Info("meetprep exiting")
	return err
}
