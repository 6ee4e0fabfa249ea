package wait

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/slotchaser/internal/driver"
	"github.com/example/slotchaser/internal/driver/fakesite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	confirm = driver.Selector{CSS: "#request-tickets"}
	noTimes = driver.Selector{CSS: "h2.h6", Text: "No available times"}
)

func newSite(t *testing.T, body string, onLoad fakesite.Handler) *fakesite.Site {
	t.Helper()
	s := fakesite.New().Page("u", "<html><body>"+body+"</body></html>")
	if onLoad != nil {
		s.OnLoad("u", onLoad)
	}
	require.NoError(t, s.Navigate(context.Background(), "u"))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAwaitPresentImmediately(t *testing.T) {
	s := newSite(t, `<button id="request-tickets">Request</button>`, nil)
	w := Waiter{Interval: 5 * time.Millisecond}

	start := time.Now()
	el, ok, err := w.Await(context.Background(), s, Present(confirm), time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, el)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestAwaitNotFoundIsNotAnError(t *testing.T) {
	s := newSite(t, `<p>empty</p>`, nil)
	w := Waiter{Interval: 5 * time.Millisecond}

	start := time.Now()
	el, ok, err := w.Await(context.Background(), s, Present(confirm), 40*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, el)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestAwaitSeesLateElement(t *testing.T) {
	s := newSite(t, ``, func(d *fakesite.Doc) {
		d.After(30*time.Millisecond, func(d *fakesite.Doc) {
			d.Append(`<button id="request-tickets">Request</button>`)
		})
	})
	w := Waiter{Interval: 5 * time.Millisecond}

	_, ok, err := w.Await(context.Background(), s, Present(confirm), time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClickableSkipsDisabled(t *testing.T) {
	s := newSite(t, `<button id="request-tickets" disabled>Request</button>`, func(d *fakesite.Doc) {
		d.After(30*time.Millisecond, func(d *fakesite.Doc) {
			d.RemoveAttr("#request-tickets", "disabled")
		})
	})
	w := Waiter{Interval: 5 * time.Millisecond}

	_, ok, err := w.Await(context.Background(), s, Clickable(confirm), 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	el, ok, err := w.Await(context.Background(), s, Clickable(confirm), time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	d, err := el.Disabled(context.Background())
	require.NoError(t, err)
	assert.False(t, d)
}

// The negative signal appears well before the timeout; AwaitAny must return
// when it appears, not when the timeout runs out.
func TestAwaitAnyReturnsOnFirstSignal(t *testing.T) {
	s := newSite(t, `<button id="request-tickets" disabled>Request</button>`, func(d *fakesite.Doc) {
		d.After(30*time.Millisecond, func(d *fakesite.Doc) {
			d.Append(`<h2 class="h6">No available times</h2>`)
		})
	})
	w := Waiter{Interval: 5 * time.Millisecond}

	start := time.Now()
	m, ok, err := w.AwaitAny(context.Background(), s, []Named{
		{Name: "confirm", Cond: Clickable(confirm)},
		{Name: "no-times", Cond: Present(noTimes)},
	}, time.Second)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "no-times", m.Name)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestAwaitAnyPrefersEarlierConditionInSamePoll(t *testing.T) {
	s := newSite(t, `<button id="request-tickets">Request</button><h2 class="h6">No available times</h2>`, nil)
	w := Waiter{Interval: 5 * time.Millisecond}

	m, ok, err := w.AwaitAny(context.Background(), s, []Named{
		{Name: "confirm", Cond: Clickable(confirm)},
		{Name: "no-times", Cond: Present(noTimes)},
	}, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "confirm", m.Name)
}

func TestAwaitAnyTimeout(t *testing.T) {
	s := newSite(t, ``, nil)
	w := Waiter{Interval: 5 * time.Millisecond}

	m, ok, err := w.AwaitAny(context.Background(), s, []Named{
		{Name: "confirm", Cond: Clickable(confirm)},
		{Name: "no-times", Cond: Present(noTimes)},
	}, 30*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, m.Name)
}

func TestAwaitAnyNoConditions(t *testing.T) {
	s := newSite(t, ``, nil)
	_, _, err := Waiter{}.AwaitAny(context.Background(), s, nil, time.Second)
	assert.ErrorIs(t, err, ErrNoConditions)
}

func TestSessionLostPropagates(t *testing.T) {
	s := newSite(t, ``, nil)
	s.Lose()

	_, ok, err := Waiter{Interval: 5 * time.Millisecond}.Await(context.Background(), s, Present(confirm), time.Second)
	assert.False(t, ok)
	assert.ErrorIs(t, err, driver.ErrSessionLost)
}

func TestTransientErrorsAreRetried(t *testing.T) {
	s := newSite(t, ``, nil)
	var calls atomic.Int32
	flaky := func(ctx context.Context, _ driver.Session) (driver.Element, bool, error) {
		if calls.Add(1) < 3 {
			return nil, false, errors.New("element is not attached to the DOM")
		}
		return nil, true, nil
	}

	_, ok, err := Waiter{Interval: 2 * time.Millisecond}.Await(context.Background(), s, flaky, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCancelStopsWaiting(t *testing.T) {
	s := newSite(t, ``, nil)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	_, ok, err := Waiter{Interval: 5 * time.Millisecond}.Await(ctx, s, Present(confirm), 5*time.Second)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
