package app

import (
	"context"
	"errors"

	"salmonrun-notifier/internal/alerting"
	"salmonrun-notifier/internal/ledger"
	"salmonrun-notifier/internal/service"
)

// SimulateAlert sends a rendered alert to every destination without
// touching the ledger. With Escalation set the failure notice is sent
// instead of the next rotation.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}

	if opts.Escalation {
		return notifier.Notify(ctx, alerting.RenderEscalation(a.Config.FailureThreshold()))
	}

	return a.withService(ctx, nil, false, func(svc *service.Service, _ *ledger.Ledger) error {
		rotations, err := svc.Upcoming(ctx)
		if err != nil {
			return err
		}
		if len(rotations) == 0 {
			return errors.New("no upcoming rotation to simulate")
		}
		body := alerting.RenderRotation(rotations[0])
		a.Logger.Info().Str("stage", rotations[0].Stage).Msg("sending simulated alert")
		return notifier.Notify(ctx, body)
	})
}
