package cliapp

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/dev-protocol/send-transactions/common/opio"
)

type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Stopped() bool
}

// LifecycleAction instantiates a Lifecycle from the CLI context. The close
// callback lets the service request its own shutdown on a critical error.
type LifecycleAction func(ctx *cli.Context, close context.CancelCauseFunc) (Lifecycle, error)

// LifecycleCmd turns a LifecycleAction into a cli action that starts the
// service, waits for an interrupt or an internal shutdown request, then
// stops it.
func LifecycleCmd(fn LifecycleAction) cli.ActionFunc {
	return func(cliCtx *cli.Context) error {
		hostCtx := cliCtx.Context
		appCtx, appCancel := context.WithCancelCause(hostCtx)
		cliCtx.Context = appCtx

		go func() {
			opio.BlockOnInterruptsContext(appCtx)
			appCancel(errors.New("interrupt signal"))
		}()

		appLifecycle, err := fn(cliCtx, appCancel)
		if err != nil {
			return errors.Join(
				fmt.Errorf("failed to setup: %w", err),
				context.Cause(appCtx),
			)
		}

		if err := appLifecycle.Start(appCtx); err != nil {
			return fmt.Errorf("failed to start: %w", err)
		}

		<-appCtx.Done()
		log.Info("received shutdown", "cause", context.Cause(appCtx))

		stopCtx, stopCancel := context.WithCancelCause(hostCtx)
		go func() {
			opio.BlockOnInterruptsContext(stopCtx)
			stopCancel(errors.New("interrupt signal"))
		}()
		defer stopCancel(nil)

		stopErr := appLifecycle.Stop(stopCtx)
		if stopErr != nil {
			return fmt.Errorf("failed to stop app: %w", stopErr)
		}
		return nil
	}
}
