// Package bot runs the reservation workflow for a single instance: sign in,
// try for a slot on the target date, then hold for a manual purchase.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/slotchaser/internal/domain/reservation"
	"github.com/example/slotchaser/internal/driver"
	"github.com/example/slotchaser/internal/wait"
)

var (
	ErrLoginFailed     = errors.New("login failed")
	ErrSlotUnavailable = errors.New("no slot available")
	ErrRaceTimeout     = errors.New("timed out waiting for availability")
	ErrPageUnexpected  = errors.New("unexpected page state")
)

const (
	signalConfirm = "confirm"
	signalNoTimes = "no-times"
)

// Acknowledger blocks until an operator confirms the purchase for an
// instance, or ctx ends.
type Acknowledger interface {
	Await(ctx context.Context, instance string) error
}

type Timing struct {
	// Element bounds each wait for a form element.
	Element time.Duration
	// PostLogin bounds the wait for the signed-in marker.
	PostLogin time.Duration
	// Settle is a pause after submitting credentials. Zero skips it.
	Settle time.Duration
	// Race bounds the wait for either availability signal.
	Race time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		Element:   10 * time.Second,
		PostLogin: 10 * time.Second,
		Settle:    2 * time.Second,
		Race:      10 * time.Second,
	}
}

// Machine holds one instance's phase. It is not safe for concurrent use;
// the owning runner is the only caller.
type Machine struct {
	ID      string
	Request reservation.Request
	Session driver.Session
	Profile Profile
	Waiter  wait.Waiter
	Timing  Timing
	Ack     Acknowledger
	Log     *slog.Logger

	phase Phase
}

func (m *Machine) Phase() Phase { return m.phase }

// Step runs the action for the current phase once and applies the
// transition table. The returned error explains a Failed outcome.
func (m *Machine) Step(ctx context.Context) (Phase, error) {
	from := m.phase

	var err error
	switch from {
	case LoggedOut:
		err = m.authenticate(ctx)
	case Reserving:
		err = m.attemptReservation(ctx)
	case Purchasing:
		err = m.purchase(ctx)
	default:
		err = fmt.Errorf("%w: phase %s", ErrPageUnexpected, from)
	}

	outcome := Succeeded
	if err != nil {
		outcome = Failed
	}
	m.phase = Next(from, outcome)
	if m.phase != from {
		m.log().Info("phase changed", "from", from.String(), "to", m.phase.String())
	}
	return m.phase, err
}

func (m *Machine) authenticate(ctx context.Context) error {
	p := m.Profile
	if err := m.Session.Navigate(ctx, m.Request.URL); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}

	entry, err := m.locate(ctx, "login entry", p.LoginEntry, ErrLoginFailed)
	if err != nil {
		return err
	}
	if err := entry.Click(ctx); err != nil {
		return fmt.Errorf("open login: %w", err)
	}

	email, err := m.locate(ctx, "email field", p.Email, ErrLoginFailed)
	if err != nil {
		return err
	}
	if err := email.SendKeys(ctx, m.Request.Credentials.Email); err != nil {
		return fmt.Errorf("type email: %w", err)
	}

	pw, err := m.locate(ctx, "password field", p.Password, ErrLoginFailed)
	if err != nil {
		return err
	}
	if err := pw.SendKeys(ctx, m.Request.Credentials.Password.Reveal()); err != nil {
		return fmt.Errorf("type password: %w", err)
	}
	if err := pw.Press(ctx, driver.KeyEnter); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}

	if err := sleep(ctx, m.timing().Settle); err != nil {
		return err
	}

	_, ok, err := m.Waiter.Await(ctx, m.Session, wait.Present(p.UserMarker), m.timing().PostLogin)
	if err != nil {
		return fmt.Errorf("wait for sign-in: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: signed-in marker not shown", ErrLoginFailed)
	}
	m.log().Info("logged in")
	return nil
}

func (m *Machine) attemptReservation(ctx context.Context) error {
	p := m.Profile
	month, day, year := m.Request.Date.Parts()

	fields := []struct {
		name  string
		sel   driver.Selector
		value string
	}{
		{"month input", p.Month, month},
		{"day input", p.Day, day},
		{"year input", p.Year, year},
	}
	for _, f := range fields {
		el, err := m.locate(ctx, f.name, f.sel, ErrPageUnexpected)
		if err != nil {
			return err
		}
		if err := el.SendKeys(ctx, f.value); err != nil {
			return fmt.Errorf("type %s: %w", f.name, err)
		}
		if err := el.Press(ctx, driver.KeyTab); err != nil {
			return fmt.Errorf("leave %s: %w", f.name, err)
		}
	}

	if _, err := m.locate(ctx, "confirm control", p.Confirm, ErrPageUnexpected); err != nil {
		return err
	}

	match, ok, err := m.Waiter.AwaitAny(ctx, m.Session, []wait.Named{
		{Name: signalConfirm, Cond: wait.Clickable(p.Confirm)},
		{Name: signalNoTimes, Cond: wait.Present(p.NoTimes)},
	}, m.timing().Race)
	if err != nil {
		return fmt.Errorf("wait for availability: %w", err)
	}
	if !ok {
		return ErrRaceTimeout
	}
	if match.Name == signalNoTimes {
		return fmt.Errorf("%w: site reports no available times", ErrSlotUnavailable)
	}

	// The control can go disabled between the poll and now.
	disabled, err := match.Element.Disabled(ctx)
	if err != nil {
		return fmt.Errorf("read confirm control: %w", err)
	}
	if disabled {
		return fmt.Errorf("%w: confirm control disabled", ErrSlotUnavailable)
	}
	if err := match.Element.Click(ctx); err != nil {
		return fmt.Errorf("click confirm: %w", err)
	}
	m.log().Info("slot requested", "date", m.Request.Date.String())
	return nil
}

func (m *Machine) purchase(ctx context.Context) error {
	m.log().Info("purchasing: finish checkout in the browser, then acknowledge")
	if m.Ack == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := m.Ack.Await(ctx, m.ID); err != nil {
		return fmt.Errorf("await acknowledgment: %w", err)
	}
	m.log().Info("purchase acknowledged")
	return nil
}

// locate waits for a required element; absence is reported as missing.
func (m *Machine) locate(ctx context.Context, name string, sel driver.Selector, missing error) (driver.Element, error) {
	el, ok, err := m.Waiter.Await(ctx, m.Session, wait.Present(sel), m.timing().Element)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s not found (%s)", missing, name, sel)
	}
	return el, nil
}

func (m *Machine) timing() Timing {
	t := m.Timing
	d := DefaultTiming()
	if t.Element <= 0 {
		t.Element = d.Element
	}
	if t.PostLogin <= 0 {
		t.PostLogin = d.PostLogin
	}
	if t.Race <= 0 {
		t.Race = d.Race
	}
	if t.Settle < 0 {
		t.Settle = 0
	}
	return t
}

func (m *Machine) log() *slog.Logger {
	if m.Log == nil {
		return slog.Default()
	}
	return m.Log
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
