package app

import (
	"context"
	"fmt"

	"salmonrun-notifier/internal/ledger"
	"salmonrun-notifier/internal/schedule"
	"salmonrun-notifier/internal/service"
)

// Ack marks rotations that are already running as announced, so the
// notifier does not alert them late on its next start. A running notifier
// keeps its own copy of the ledger; with the file and sqlite drivers Ack must
// run while it is stopped. The postgres driver refuses with ErrLockHeld.
func (a *App) Ack(ctx context.Context, opts AckOptions) error {
	return a.withService(ctx, nil, !opts.DryRun, func(svc *service.Service, l *ledger.Ledger) error {
		var acked []schedule.Rotation
		if opts.DryRun {
			a.Logger.Warn().Msg("ack dry-run: ledger will not be written")
			rotations, err := svc.Upcoming(ctx)
			if err != nil {
				return err
			}
			for _, r := range rotations {
				if r.Started() {
					acked = append(acked, r)
				}
			}
		} else {
			var err error
			acked, err = svc.Acknowledge(ctx)
			if err != nil {
				return err
			}
		}

		if len(acked) == 0 {
			fmt.Fprintln(a.Out, "nothing to acknowledge")
			return nil
		}
		for _, r := range acked {
			fmt.Fprintf(a.Out, "acknowledged %s rotation on %s starting %s\n",
				r.Category, r.Stage, r.StartTime.Format(listTimeLayout))
		}
		a.Logger.Info().Int("acknowledged", len(acked)).Int("ledger_size", len(l.Records())).Bool("dry_run", opts.DryRun).Msg("ack complete")
		return nil
	})
}
