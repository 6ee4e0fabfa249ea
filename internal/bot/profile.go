package bot

import "github.com/example/slotchaser/internal/driver"

// Profile is the set of page elements the workflow looks for on one site.
type Profile struct {
	Name string

	LoginEntry driver.Selector
	Email      driver.Selector
	Password   driver.Selector
	// UserMarker only renders once the account is signed in.
	UserMarker driver.Selector

	Month driver.Selector
	Day   driver.Selector
	Year  driver.Selector

	Confirm driver.Selector
	NoTimes driver.Selector
}

// RecreationGov targets the timed-entry ticket pages on recreation.gov.
func RecreationGov() Profile {
	return Profile{
		Name:       "recreation.gov",
		LoginEntry: driver.Selector{CSS: "#ga-global-nav-log-in-link"},
		Email:      driver.Selector{CSS: "#email"},
		Password:   driver.Selector{CSS: "#rec-acct-sign-in-password"},
		UserMarker: driver.Selector{CSS: "#nav-header-container > div > nav > div > div:nth-of-type(2) > div:nth-of-type(2) > div > div > div > div > button"},
		Month:      driver.Selector{CSS: `div[aria-label="month, "]`},
		Day:        driver.Selector{CSS: `div[aria-label="day, "]`},
		Year:       driver.Selector{CSS: `div[aria-label="year, "]`},
		Confirm:    driver.Selector{CSS: "#request-tickets"},
		NoTimes:    driver.Selector{CSS: "h2.h6", Text: "No available times"},
	}
}
