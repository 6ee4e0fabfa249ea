// Package fleet starts one isolated runner per requested instance and waits
// for all of them.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/example/slotchaser/internal/domain/reservation"
	"github.com/example/slotchaser/internal/driver"
	"github.com/example/slotchaser/internal/runner"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var ErrNoRequests = errors.New("fleet: no requests")

// Overflow decides what an instance does when the session ceiling is full.
type Overflow string

const (
	OverflowQueue Overflow = "queue"
	OverflowFail  Overflow = "fail"
)

func ParseOverflow(s string) (Overflow, error) {
	switch o := Overflow(s); o {
	case OverflowQueue, OverflowFail:
		return o, nil
	case "":
		return OverflowQueue, nil
	}
	return "", fmt.Errorf("unknown overflow policy %q (want queue or fail)", s)
}

type Instance struct {
	ID      string
	Request reservation.Request
}

// Expand repeats every request n times in place, so [a b] with n=2 becomes
// [a a b b]. IDs are "<request>-<copy>", both counted from 1.
func Expand(reqs []reservation.Request, n int) []Instance {
	if n < 1 {
		n = 1
	}
	out := make([]Instance, 0, len(reqs)*n)
	for i, r := range reqs {
		for c := 1; c <= n; c++ {
			out = append(out, Instance{ID: fmt.Sprintf("%d-%d", i+1, c), Request: r})
		}
	}
	return out
}

type Supervisor struct {
	Launcher driver.Launcher
	Runner   runner.Config

	// MaxSessions caps live browser sessions; 0 means no cap.
	MaxSessions int
	Overflow    Overflow
	// LaunchRate is session starts per second; 0 means no pacing.
	LaunchRate float64

	Log *slog.Logger
}

// Launch runs every expanded instance in its own goroutine and returns once
// all of them have finished. A failing instance never affects the others.
func (s *Supervisor) Launch(ctx context.Context, reqs []reservation.Request, replication int) error {
	if len(reqs) == 0 {
		return ErrNoRequests
	}
	instances := Expand(reqs, replication)
	log := s.log()
	log.Info("launching fleet", "requests", len(reqs), "instances", len(instances), "max_sessions", s.MaxSessions)

	var sem *semaphore.Weighted
	if s.MaxSessions > 0 {
		sem = semaphore.NewWeighted(int64(s.MaxSessions))
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if s.LaunchRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.LaunchRate), 1)
	}

	var wg sync.WaitGroup
	for _, inst := range instances {
		inst := inst
		ilog := log.With("instance", inst.ID, "url", inst.Request.URL, "date", inst.Request.Date.String())

		held := false
		if sem != nil && s.Overflow == OverflowFail {
			if !sem.TryAcquire(1) {
				ilog.Error("session ceiling reached, instance not started", "max_sessions", s.MaxSessions)
				continue
			}
			held = true
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.recoverPanic(ilog)
			if sem != nil {
				if !held {
					if err := sem.Acquire(ctx, 1); err != nil {
						ilog.Info("instance cancelled while queued")
						return
					}
				}
				defer sem.Release(1)
			}
			s.runInstance(ctx, inst, limiter, ilog)
		}()
	}
	wg.Wait()
	log.Info("fleet finished", "instances", len(instances))
	return nil
}

func (s *Supervisor) runInstance(ctx context.Context, inst Instance, limiter *rate.Limiter, log *slog.Logger) {
	if err := limiter.Wait(ctx); err != nil {
		log.Info("instance cancelled before start")
		return
	}
	sess, err := s.Launcher.NewSession(ctx)
	if err != nil {
		log.Error("start session", "err", err)
		return
	}
	log.Info("instance started")

	r := runner.New(inst.ID, inst.Request, sess, s.Runner, log)
	if err := r.Run(ctx); err != nil {
		log.Error("instance ended", "err", err)
		return
	}
	log.Info("instance ended")
}

func (s *Supervisor) recoverPanic(log *slog.Logger) {
	if r := recover(); r != nil {
		log.Error("instance panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
	}
}

func (s *Supervisor) log() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}
