package cron

import (
	"context"
	"fmt"

	action "github.com/goliatone/go-action"
	"github.com/goliatone/go-action/controller"
)

// ActionJob invokes the named action for owner on every tick and waits
// for its result. A false result fails the run with
// controller.ErrActionFailed.
func ActionJob(ctrl *controller.Controller, owner action.Owner, name string, entries ...action.Entry) Job {
	return func(ctx context.Context) error {
		if ctrl == nil {
			return fmt.Errorf("action job %s: controller is nil", name)
		}
		ok, err := ctrl.InvokeActionAsync(ctx, owner, name, entries...).Wait(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return controller.ErrActionFailed.Clone().WithMetadata(map[string]any{
				"action": name,
				"owner":  ownerKey(owner),
			})
		}
		return nil
	}
}

func ownerKey(owner action.Owner) string {
	if owner == nil {
		return ""
	}
	return owner.OwnerKey()
}
