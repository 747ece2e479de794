package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"go.yaml.in/yaml/v3"

	"salmonrun-notifier/internal/ledger"
	"salmonrun-notifier/internal/schedule"
	"salmonrun-notifier/internal/service"
	"salmonrun-notifier/internal/storage"
)

const listTimeLayout = "Mon 02 Jan 15:04 MST"

// rotationView is the listing shape shared by every output format.
type rotationView struct {
	Category string    `json:"category" yaml:"category"`
	Stage    string    `json:"stage" yaml:"stage"`
	Start    time.Time `json:"start_time" yaml:"start_time"`
	End      time.Time `json:"end_time" yaml:"end_time"`
	AlertAt  time.Time `json:"alert_at" yaml:"alert_at"`
	Boss     string    `json:"boss" yaml:"boss"`
	Weapons  []string  `json:"weapons" yaml:"weapons"`
}

func (a *App) views(svc *service.Service, rotations []schedule.Rotation, limit int) []rotationView {
	now := a.Now().In(a.Config.Location())
	if limit > 0 && len(rotations) > limit {
		rotations = rotations[:limit]
	}
	views := make([]rotationView, 0, len(rotations))
	for _, r := range rotations {
		views = append(views, rotationView{
			Category: string(r.Category),
			Stage:    r.Stage,
			Start:    r.StartTime,
			End:      r.EndTime,
			AlertAt:  svc.FireTime(r, now),
			Boss:     r.Boss,
			Weapons:  r.Weapons,
		})
	}
	return views
}

// Schedule prints upcoming, not yet announced rotations.
func (a *App) Schedule(ctx context.Context, opts ScheduleOptions) error {
	return a.withService(ctx, nil, false, func(svc *service.Service, _ *ledger.Ledger) error {
		rotations, err := svc.Upcoming(ctx)
		if err != nil {
			return err
		}
		views := a.views(svc, rotations, opts.Limit)

		switch strings.ToLower(opts.Format) {
		case "json":
			enc := json.NewEncoder(a.Out)
			enc.SetIndent("", "  ")
			return enc.Encode(views)
		case "yaml", "yml":
			enc := yaml.NewEncoder(a.Out)
			enc.SetIndent(2)
			if err := enc.Encode(views); err != nil {
				return err
			}
			return enc.Close()
		case "", "table":
			return a.printScheduleTable(views)
		default:
			return fmt.Errorf("unknown format %q (want table, json or yaml)", opts.Format)
		}
	})
}

func (a *App) printScheduleTable(views []rotationView) error {
	if len(views) == 0 {
		fmt.Fprintln(a.Out, "no upcoming rotations")
		return nil
	}

	now := a.Now()
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Type\tMap\tStart\tEnd\tAlert\tBoss\tWeapons")
	for _, v := range views {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.Category,
			v.Stage,
			v.Start.Format(listTimeLayout),
			v.End.Format(listTimeLayout),
			humanize.RelTime(v.AlertAt, now, "ago", "from now"),
			v.Boss,
			strings.Join(v.Weapons, ", "),
		)
	}
	return writer.Flush()
}

// Ledger prints the announced rotation starts, oldest first.
func (a *App) Ledger(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if peeker, ok := store.(storage.LedgerPeeker); ok {
		records, err := peeker.PeekLedger(ctx)
		if err != nil {
			return fmt.Errorf("list ledger: %w", err)
		}
		return a.printLedger(records)
	}
	return a.printLedger(ledger.Open(ctx, store, a.Logger).Records())
}

func (a *App) printLedger(records []storage.AlertRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "no alerts recorded")
		return nil
	}

	loc := a.Config.Location()
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Rotation start\tLocal\tAge")
	for _, r := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\n",
			r.StartTime.UTC().Format(time.RFC3339),
			r.StartTime.In(loc).Format(listTimeLayout),
			humanize.RelTime(r.StartTime, a.Now(), "ago", "from now"),
		)
	}
	return writer.Flush()
}
