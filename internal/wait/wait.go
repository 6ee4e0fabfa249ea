// Package wait polls a driver session until an element condition holds.
package wait

import (
	"context"
	"errors"
	"time"

	"github.com/example/slotchaser/internal/driver"
)

const DefaultInterval = 250 * time.Millisecond

var ErrNoConditions = errors.New("wait: no conditions")

// Condition reports whether it holds right now and, if so, the element it
// matched. It must not block.
type Condition func(ctx context.Context, s driver.Session) (driver.Element, bool, error)

type Named struct {
	Name string
	Cond Condition
}

type Match struct {
	Name    string
	Element driver.Element
}

// Present holds once an element matching sel exists.
func Present(sel driver.Selector) Condition {
	return func(ctx context.Context, s driver.Session) (driver.Element, bool, error) {
		return s.Find(ctx, sel)
	}
}

// Clickable holds once an element matching sel exists and is not disabled.
func Clickable(sel driver.Selector) Condition {
	return func(ctx context.Context, s driver.Session) (driver.Element, bool, error) {
		el, ok, err := s.Find(ctx, sel)
		if err != nil || !ok {
			return nil, false, err
		}
		disabled, err := el.Disabled(ctx)
		if err != nil {
			return nil, false, err
		}
		if disabled {
			return nil, false, nil
		}
		return el, true, nil
	}
}

type Waiter struct {
	Interval time.Duration
}

func (w Waiter) interval() time.Duration {
	if w.Interval <= 0 {
		return DefaultInterval
	}
	return w.Interval
}

// Await polls cond until it holds or timeout passes. Running out of time is
// reported as found == false with a nil error.
func (w Waiter) Await(ctx context.Context, s driver.Session, cond Condition, timeout time.Duration) (driver.Element, bool, error) {
	m, ok, err := w.AwaitAny(ctx, s, []Named{{Cond: cond}}, timeout)
	return m.Element, ok, err
}

// AwaitAny polls every condition, in order, until one holds or timeout
// passes. The first poll happens immediately. Lost sessions and context
// cancellation end the wait with an error; other driver errors count as
// "not yet".
func (w Waiter) AwaitAny(ctx context.Context, s driver.Session, conds []Named, timeout time.Duration) (Match, bool, error) {
	if len(conds) == 0 {
		return Match{}, false, ErrNoConditions
	}

	deadline := time.Now().Add(timeout)
	timer := time.NewTimer(w.interval())
	timer.Stop()
	defer timer.Stop()

	for {
		for _, c := range conds {
			el, ok, err := c.Cond(ctx, s)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return Match{}, false, ctxErr
				}
				if errors.Is(err, driver.ErrSessionLost) {
					return Match{}, false, err
				}
				continue
			}
			if ok {
				return Match{Name: c.Name, Element: el}, true, nil
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Match{}, false, nil
		}
		timer.Reset(min(w.interval(), remaining))
		select {
		case <-ctx.Done():
			return Match{}, false, ctx.Err()
		case <-timer.C:
		}
	}
}
