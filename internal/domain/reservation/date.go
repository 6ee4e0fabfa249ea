package reservation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDate = errors.New("invalid date")

// Date is a calendar day written as month/day/year, e.g. 3/4/2025.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate accepts month/day/year with unpadded or zero-padded decimal
// fields and rejects days that do not exist on the calendar.
func ParseDate(s string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("%w %q: want month/day/year", ErrInvalidDate, s)
	}

	var nums [3]int
	for i, p := range parts {
		if p == "" || strings.TrimLeft(p, "0123456789") != "" {
			return Date{}, fmt.Errorf("%w %q: %q is not a number", ErrInvalidDate, s, p)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return Date{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, s, err)
		}
		nums[i] = n
	}

	d := Date{Month: time.Month(nums[0]), Day: nums[1], Year: nums[2]}
	if d.Year < 1 || d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return Date{}, fmt.Errorf("%w %q: out of range", ErrInvalidDate, s)
	}
	t := d.Time()
	if t.Year() != d.Year || t.Month() != d.Month || t.Day() != d.Day {
		return Date{}, fmt.Errorf("%w %q: no such day", ErrInvalidDate, s)
	}
	return d, nil
}

func (d Date) IsZero() bool { return d == Date{} }

// Time returns midnight UTC on d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d/%d/%d", int(d.Month), d.Day, d.Year)
}

// Parts returns the month, day and year fields as they are typed into the
// booking form, without padding.
func (d Date) Parts() (month, day, year string) {
	return strconv.Itoa(int(d.Month)), strconv.Itoa(d.Day), strconv.Itoa(d.Year)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
