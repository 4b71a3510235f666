package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli"
)

var JoinCmd = cli.Command{
	Name:      "join",
	Usage:     "Print the link to join a meeting",
	ArgsUsage: "<meeting id>",
	Action:    joinMeeting,
}

func joinMeeting(c *cli.Context) error {
	id, err := strconv.Atoi(c.Args().First())
	if err != nil || id <= 0 {
		return errors.New("a numeric meeting id is required (see `meetprep list`)")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	store := newStore(cfg, 0)
	if err := store.Connect(context.Background()); err != nil {
		return err
	}
	url, err := store.Join(id)
	if err != nil {
		return fmt.Errorf("meeting %d: %w", id, err)
	}
	fmt.Println(url)
	return nil
}
