package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"meetprep/internal/ics"
	"meetprep/internal/model"
)

var ListCmd = cli.Command{
	Name:  "list",
	Usage: "Connect and list meetings sorted by start time",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "no-delay",
			Usage: "Skip the simulated connection latency",
		},
		&cli.BoolFlag{
			Name:  "checklist",
			Usage: "Print every checklist item",
		},
	},
	Action: listMeetings,
}

func listMeetings(c *cli.Context) error {
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
		if msg := store.Snapshot().Error; msg != "" {
			return fmt.Errorf("%s (%w)", msg, err)
		}
		return err
	}

	snap := store.Snapshot()
	printMeetings(os.Stdout, snap.Meetings, snap.Now, c.Bool("checklist"))
	return nil
}

func printMeetings(w io.Writer, meetings []model.Meeting, now time.Time, withChecklist bool) {
	headerColor := color.New(color.FgCyan, color.Bold).SprintFunc()
	warnColor := color.New(color.FgRed, color.Bold).SprintFunc()
	subtle := color.New(color.FgHiBlack).SprintFunc()
	summaryColor := color.New(color.FgYellow, color.Bold).SprintFunc()
	highlight := color.New(color.FgGreen).SprintFunc()

	fmt.Fprintf(w, "Meetings as of %s [tz: %s]\n",
		headerColor(now.Format("2006-01-02 15:04")),
		headerColor(now.Location().String()),
	)

	if len(meetings) == 0 {
		fmt.Fprintln(w, warnColor("No meetings found in your calendar."))
		return
	}

	for _, m := range meetings {
		var markers []string
		if m.IsCancelled {
			markers = append(markers, warnColor("CANCELLED"))
		}
		if m.Importance == model.ImportanceHigh {
			markers = append(markers, warnColor("!"))
		}
		if m.IsOrganizer {
			markers = append(markers, subtle("(organizer)"))
		}

		fmt.Fprintf(w, " %d. %s %s [%s --> %s] %s\n",
			m.ID,
			summaryColor(m.Subject),
			strings.Join(markers, " "),
			highlight(m.Start.Format("Mon 15:04")),
			highlight(m.End.Format("15:04")),
			headerColor(model.TimeRemaining(m, now)),
		)
		fmt.Fprintf(w, "    %s %s\n", m.Location, subtle("["+strings.Join(m.Attendees, ", ")+"]"))
		if url, err := model.JoinTarget(m); err == nil {
			fmt.Fprintf(w, "    join: %s\n", url)
		}
		if m.Recurrence != "" {
			if occ, ok := ics.NextOccurrence(m, now); ok {
				fmt.Fprintf(w, "    repeats: %s, next %s\n", subtle(m.Recurrence), occ.Start.Format("Mon Jan 2 15:04"))
			}
		}
		fmt.Fprintf(w, "    checklist: %d/%d done\n", m.CompletedCount(), len(m.ChecklistItems))
		if withChecklist {
			for _, it := range m.ChecklistItems {
				mark := " "
				if it.Completed {
					mark = "x"
				}
				fmt.Fprintf(w, "      [%s] %s\n", mark, it.Text)
			}
		}
	}
}
