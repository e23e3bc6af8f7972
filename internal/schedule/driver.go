package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kanabot/internal/domain"
	"kanabot/pkg/logx"
)

// UserLister is the slice of the user repository the driver needs.
type UserLister interface {
	ListAll(ctx context.Context) ([]*domain.User, error)
}

// Registrar is the periodic substrate the driver registers standing actions
// with. The trigger service implements it.
type Registrar interface {
	AddDaily(name, atHHMM string, timeout time.Duration, job func(ctx context.Context) error) error
	AddInterval(name string, every time.Duration, timeout time.Duration, job func(ctx context.Context) error) error
}

// DriverConfig declares when the standing actions run.
type DriverConfig struct {
	DailyAt    string        // HH:MM for the global reconcile pass
	SweepEvery time.Duration // period of both sweep passes
}

// Driver orchestrates per-user reconciliation across all users once per day
// and owns no business logic itself.
type Driver struct {
	users UserLister
	coord *Coordinator
	log   logx.Logger
}

func NewDriver(users UserLister, coord *Coordinator, log logx.Logger) *Driver {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Driver{users: users, coord: coord, log: log}
}

// RunDaily reconciles every user's trigger set. A failure for one user never
// aborts the others; per-user errors are logged and joined into the result.
func (d *Driver) RunDaily(ctx context.Context) error {
	users, err := d.users.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	var errs []error
	done := 0
	for _, u := range users {
		select {
		case <-ctx.Done():
			d.log.Warn("daily reconcile cancelled", logx.Int("done", done), logx.Int("total", len(users)))
			return errors.Join(append(errs, ctx.Err())...)
		default:
		}
		if err := d.coord.Reconcile(ctx, u); err != nil {
			d.log.Error("reconcile failed", logx.Int64("user", u.ID), logx.Err(err))
			errs = append(errs, err)
			continue
		}
		done++
	}
	d.log.Info("daily reconcile finished", logx.Int("ok", done), logx.Int("failed", len(errs)))
	return errors.Join(errs...)
}

// Register attaches the three standing periodic actions to the substrate:
// the daily reconcile pass and the two sweep passes.
func (d *Driver) Register(reg Registrar, cfg DriverConfig, acceptSweep, answerSweep func(ctx context.Context) error) error {
	dailyAt := cfg.DailyAt
	if dailyAt == "" {
		dailyAt = "04:00"
	}
	every := cfg.SweepEvery
	if every <= 0 {
		every = time.Minute
	}

	if err := reg.AddDaily("schedule.reconcile", dailyAt, 10*time.Minute, d.RunDaily); err != nil {
		return err
	}
	if err := reg.AddInterval("sweep.acceptance", every, every, acceptSweep); err != nil {
		return err
	}
	if err := reg.AddInterval("sweep.answer", every, every, answerSweep); err != nil {
		return err
	}
	return nil
}
