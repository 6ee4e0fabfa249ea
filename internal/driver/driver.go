// Package driver is the browser contract the reservation workflow runs on.
// Adapters live in subpackages.
package driver

import (
	"context"
	"errors"
)

// ErrSessionLost marks a fault after which the session cannot be used again
// (browser crashed, page closed). Callers check it with errors.Is.
var ErrSessionLost = errors.New("driver: session lost")

const (
	KeyEnter = "Enter"
	KeyTab   = "Tab"
)

// Selector locates an element by CSS, optionally narrowed to elements whose
// text contains Text.
type Selector struct {
	CSS  string
	Text string
}

func (s Selector) String() string {
	if s.Text == "" {
		return s.CSS
	}
	return s.CSS + ` with text "` + s.Text + `"`
}

type Element interface {
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Press(ctx context.Context, key string) error
	// Attribute reports ok == false when the element has no such attribute.
	Attribute(ctx context.Context, name string) (value string, ok bool, err error)
	Disabled(ctx context.Context) (bool, error)
}

// Session is one isolated browser page. Find does not wait: it reports
// whether the element is present right now.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Find(ctx context.Context, sel Selector) (Element, bool, error)
	Close() error
}

type Launcher interface {
	NewSession(ctx context.Context) (Session, error)
}
