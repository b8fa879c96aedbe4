package businessday

import (
	"fmt"
	"time"
)

// DateLayout is the ISO 8601 calendar date accepted for engagement dates.
const DateLayout = "2006-01-02"

// ParseError is returned when an engagement date does not match DateLayout.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid date %q (expected YYYY-MM-DD): %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseDate parses a YYYY-MM-DD string into a UTC midnight time. Surrounding
// whitespace is rejected like any other malformed input.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &ParseError{Input: s, Err: err}
	}
	return t, nil
}

// IsBusinessDay reports whether t falls on Monday through Friday.
func IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// Offset moves offset business days away from anchor.
// A positive offset walks backward (T-minus), a negative one walks forward.
// Weekends are stepped over and never counted. Zero returns anchor untouched,
// even when anchor is itself a weekend day.
func Offset(anchor time.Time, offset int) time.Time {
	step := 1
	if offset > 0 {
		step = -1
	}
	remaining := offset
	if remaining < 0 {
		remaining = -remaining
	}

	result := anchor
	for remaining > 0 {
		result = result.AddDate(0, 0, step)
		if IsBusinessDay(result) {
			remaining--
		}
	}
	return result
}

// Between counts the business days in the half-open range (from, to].
// It returns a negative count when to is before from.
func Between(from, to time.Time) int {
	sign := 1
	if to.Before(from) {
		from, to = to, from
		sign = -1
	}
	n := 0
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		if IsBusinessDay(d) {
			n++
		}
	}
	return sign * n
}
