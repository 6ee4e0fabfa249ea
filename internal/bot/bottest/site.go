// Package bottest builds fake recreation.gov ticket pages for exercising the
// workflow without a browser.
package bottest

import (
	"fmt"
	"time"

	"github.com/example/slotchaser/internal/driver"
	"github.com/example/slotchaser/internal/driver/fakesite"
)

type Availability int

const (
	// Open: the confirm control is (or becomes) enabled.
	Open Availability = iota
	// SoldOut: the "No available times" heading appears.
	SoldOut
	// Silent: the control stays disabled and nothing else is shown.
	Silent
)

type Scenario struct {
	URL      string
	Email    string
	Password string

	// RejectLogins is how many correct credential submissions are refused
	// before one is accepted.
	RejectLogins int
	// NoLoginLink leaves the login entry point off the page.
	NoLoginLink bool
	// NoDateForm leaves the date inputs off the page.
	NoDateForm bool

	Availability Availability
	// SignalAfter delays the availability signal after each page load.
	SignalAfter time.Duration
}

const (
	UserButton  = "#user-menu"
	CheckoutDiv = "#checkout"
)

// Site returns a fresh page set for sc.
func (sc Scenario) Site() *fakesite.Site {
	s := fakesite.New().Page(sc.URL, sc.html())

	s.OnClick("#ga-global-nav-log-in-link", func(d *fakesite.Doc) {
		d.Remove("#login-form")
		d.Append(`<form id="login-form"><input id="email"><input id="rec-acct-sign-in-password" type="password"></form>`)
	})

	rejected := 0
	s.OnPress("#rec-acct-sign-in-password", driver.KeyEnter, func(d *fakesite.Doc) {
		if d.Typed("#email") != sc.Email || d.Typed("#rec-acct-sign-in-password") != sc.Password {
			return
		}
		if rejected < sc.RejectLogins {
			rejected++
			return
		}
		d.Remove("#login-form")
		d.AppendTo("#user-slot", `<button id="user-menu">Signed in</button>`)
	})

	s.OnClick("#request-tickets", func(d *fakesite.Doc) {
		d.Append(`<div id="checkout">Checkout</div>`)
	})

	s.OnLoad(sc.URL, func(d *fakesite.Doc) {
		signal := func(d *fakesite.Doc) {
			switch sc.Availability {
			case Open:
				d.RemoveAttr("#request-tickets", "disabled")
			case SoldOut:
				d.Append(`<h2 class="h6">No available times</h2>`)
			}
		}
		if sc.SignalAfter <= 0 {
			signal(d)
			return
		}
		d.After(sc.SignalAfter, signal)
	})
	return s
}

// Launcher hands out a fresh Site for sc per session.
func (sc Scenario) Launcher() *fakesite.Launcher {
	return &fakesite.Launcher{Build: func(int) *fakesite.Site { return sc.Site() }}
}

func (sc Scenario) html() string {
	login := `<a id="ga-global-nav-log-in-link" href="#">Log In</a>`
	if sc.NoLoginLink {
		login = ""
	}
	form := `<div aria-label="month, ">MM</div><div aria-label="day, ">DD</div><div aria-label="year, ">YYYY</div>`
	if sc.NoDateForm {
		form = ""
	}
	return fmt.Sprintf(`<html><body>
<div id="nav-header-container"><div><nav><div>
<div></div>
<div><div></div><div><div><div><div><div id="user-slot"></div></div></div></div></div></div>
</div></nav></div></div>
%s
<main>%s<button id="request-tickets" disabled>Request Tickets</button></main>
</body></html>`, login, form)
}
