// Package runner drives one instance's state machine until it is stopped.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/slotchaser/internal/bot"
	"github.com/example/slotchaser/internal/domain/reservation"
	"github.com/example/slotchaser/internal/driver"
	"github.com/example/slotchaser/internal/journal"
	"github.com/example/slotchaser/internal/wait"
)

// ErrPanic wraps a panic recovered from a step.
var ErrPanic = errors.New("step panicked")

type Journal interface {
	Record(ctx context.Context, a journal.Attempt) error
}

type Cooldowns struct {
	Login   time.Duration
	Reserve time.Duration
	Error   time.Duration
}

func DefaultCooldowns() Cooldowns {
	return Cooldowns{Login: 5 * time.Second, Reserve: time.Second, Error: 5 * time.Second}
}

// Config is shared by every runner in a fleet.
type Config struct {
	Profile   bot.Profile
	Waiter    wait.Waiter
	Timing    bot.Timing
	Cooldowns Cooldowns
	Ack       bot.Acknowledger
	Journal   Journal
	// StopAfterAck ends the runner once a purchase is acknowledged instead
	// of prompting again.
	StopAfterAck bool
}

// Runner owns one session and one machine. It is not safe for concurrent
// use; each instance goroutine builds its own.
type Runner struct {
	Machine      *bot.Machine
	Cooldowns    Cooldowns
	Journal      Journal
	StopAfterAck bool
	Log          *slog.Logger
}

func New(id string, req reservation.Request, s driver.Session, cfg Config, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	j := cfg.Journal
	if j == nil {
		j = journal.Discard{}
	}
	return &Runner{
		Machine: &bot.Machine{
			ID:      id,
			Request: req,
			Session: s,
			Profile: cfg.Profile,
			Waiter:  cfg.Waiter,
			Timing:  cfg.Timing,
			Ack:     cfg.Ack,
			Log:     log,
		},
		Cooldowns:    cfg.Cooldowns,
		Journal:      j,
		StopAfterAck: cfg.StopAfterAck,
		Log:          log,
	}
}

// Run steps the machine until ctx ends, the session is lost, or (with
// StopAfterAck) the purchase is acknowledged. Every other failure is
// logged, cooled down, and retried. The session is closed on return.
func (r *Runner) Run(ctx context.Context) error {
	defer func() {
		if err := r.Machine.Session.Close(); err != nil {
			r.Log.Warn("close session", "err", err)
		}
	}()

	for {
		if ctx.Err() != nil {
			r.Log.Info("runner stopped", "phase", r.Machine.Phase().String())
			return nil
		}

		from := r.Machine.Phase()
		to, err := r.step(ctx)
		r.record(ctx, from, to, err)

		if err == nil {
			if from == bot.Purchasing && r.StopAfterAck {
				r.Log.Info("purchase acknowledged, runner done")
				return nil
			}
			continue
		}

		if ctx.Err() != nil {
			r.Log.Info("runner stopped", "phase", to.String())
			return nil
		}
		if errors.Is(err, driver.ErrSessionLost) {
			r.Log.Error("session lost, runner giving up", "phase", to.String(), "err", err)
			return err
		}

		d := r.cooldownFor(err)
		if transient(err) {
			r.Log.Info("attempt missed", "phase", to.String(), "reason", err.Error(), "retry_in", d)
		} else {
			r.Log.Error("attempt failed", "phase", to.String(), "err", err, "retry_in", d)
		}
		if !sleep(ctx, d) {
			r.Log.Info("runner stopped", "phase", to.String())
			return nil
		}
	}
}

func (r *Runner) step(ctx context.Context) (phase bot.Phase, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			phase = r.Machine.Phase()
			err = fmt.Errorf("%w: %v", ErrPanic, rec)
		}
	}()
	return r.Machine.Step(ctx)
}

func (r *Runner) cooldownFor(err error) time.Duration {
	c := r.Cooldowns
	switch {
	case errors.Is(err, bot.ErrLoginFailed):
		return c.Login
	case transient(err):
		return c.Reserve
	default:
		return c.Error
	}
}

func transient(err error) bool {
	return errors.Is(err, bot.ErrSlotUnavailable) || errors.Is(err, bot.ErrRaceTimeout)
}

func (r *Runner) record(ctx context.Context, from, to bot.Phase, stepErr error) {
	if r.Journal == nil {
		return
	}
	a := journal.Attempt{
		Instance:  r.Machine.ID,
		URL:       r.Machine.Request.URL,
		Date:      r.Machine.Request.Date.String(),
		Phase:     from.String(),
		NextPhase: to.String(),
		Outcome:   bot.Succeeded.String(),
	}
	if stepErr != nil {
		a.Outcome = bot.Failed.String()
		a.Detail = stepErr.Error()
	}
	// Record even when ctx is already cancelled.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := r.Journal.Record(wctx, a); err != nil {
		r.Log.Warn("journal write failed", "err", err)
	}
}

// sleep reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
