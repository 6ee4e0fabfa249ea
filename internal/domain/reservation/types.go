package reservation

import (
	"log/slog"
)

// Credentials identify the account an instance signs in with.
type Credentials struct {
	Email    string
	Password Secret
}

// Request is one reservation target: where to book, as whom, and for which
// day. It is a value; every instance gets its own copy.
type Request struct {
	URL         string
	Credentials Credentials
	Date        Date
}

func (r Request) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", r.URL),
		slog.String("email", r.Credentials.Email),
		slog.String("date", r.Date.String()),
	)
}
