package sync

import (
	"context"
	"fmt"
	"log/slog"
)

// maxResyncPasses bounds how many times a single notification can rerun
// the cycle to drain changes that arrived mid-run.
const maxResyncPasses = 3

// LockStore is the distributed lock and resync flag. Satisfied by
// *state.Store.
type LockStore interface {
	AcquireLock(ctx context.Context) (bool, error)
	ReleaseLock(ctx context.Context) error
	ResyncNeeded(ctx context.Context) (bool, error)
	SetResyncNeeded(ctx context.Context) error
	ClearResyncNeeded(ctx context.Context) error
}

// Runner runs one sync cycle. Satisfied by *Engine.
type Runner interface {
	RunOnce(ctx context.Context) (int, error)
}

// Coordinator serializes sync cycles across instances. A notification that
// finds the lock held is not lost: it sets the resync flag, and the
// current holder reruns before releasing.
type Coordinator struct {
	locks  LockStore
	runner Runner
	logger *slog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(locks LockStore, runner Runner, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{locks: locks, runner: runner, logger: logger}
}

// HandleNotification runs a sync cycle under the lock. When the lock is
// busy it flags a resync for the holder and returns without error.
//
// The resync flag is cleared before each pass, so notifications landing
// mid-cycle re-arm it and trigger another pass, up to maxResyncPasses.
func (co *Coordinator) HandleNotification(ctx context.Context) error {
	acquired, err := co.locks.AcquireLock(ctx)
	if err != nil {
		return fmt.Errorf("sync: acquiring lock: %w", err)
	}

	if !acquired {
		co.logger.Info("sync already running, flagging resync")

		if err := co.locks.SetResyncNeeded(ctx); err != nil {
			return fmt.Errorf("sync: flagging resync: %w", err)
		}

		return nil
	}

	defer func() {
		if err := co.locks.ReleaseLock(ctx); err != nil {
			co.logger.Error("failed to release sync lock", "error", err)
		}
	}()

	for pass := 0; pass < maxResyncPasses; pass++ {
		if err := co.locks.ClearResyncNeeded(ctx); err != nil {
			return fmt.Errorf("sync: clearing resync flag: %w", err)
		}

		applied, err := co.runner.RunOnce(ctx)
		if err != nil {
			return err
		}

		co.logger.Debug("sync pass finished", "pass", pass+1, "applied", applied)

		needed, err := co.locks.ResyncNeeded(ctx)
		if err != nil {
			return fmt.Errorf("sync: reading resync flag: %w", err)
		}

		if !needed {
			return nil
		}
	}

	co.logger.Warn("resync limit reached, deferring to next notification",
		"passes", maxResyncPasses)

	return nil
}
