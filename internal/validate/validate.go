// Package validate parses single user replies into typed search fields.
// Parsers never perform I/O; Apply functions mutate the session only on success.
package validate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/hotelbot/internal/search"
)

// ErrInvalid marks a reply that does not match the expected shape.
var ErrInvalid = errors.New("invalid input")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// HotelCount accepts one of the offered choices "1".."9".
func HotelCount(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if len(s) != 1 || s[0] < '1' || s[0] > '0'+search.MaxHotels {
		return 0, invalid("hotel count %q", raw)
	}
	return int(s[0] - '0'), nil
}

// DateRange parses "YYYY-MM-DD - YYYY-MM-DD" and rejects check-out before check-in.
func DateRange(raw string) (time.Time, time.Time, error) {
	parts := strings.Split(strings.TrimSpace(raw), " - ")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, invalid("date range %q", raw)
	}
	in, err := time.Parse(search.DateLayout, strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, time.Time{}, invalid("check-in %q", parts[0])
	}
	out, err := time.Parse(search.DateLayout, strings.TrimSpace(parts[1]))
	if err != nil {
		return time.Time{}, time.Time{}, invalid("check-out %q", parts[1])
	}
	if out.Before(in) {
		return time.Time{}, time.Time{}, invalid("check-out before check-in")
	}
	return in, out, nil
}

// PhotoPref accepts "no" or "yes N" with N in [1, search.MaxPhotos].
// It returns search.PhotoNone for "no".
func PhotoPref(raw string) (int, error) {
	fields := strings.Fields(raw)
	switch {
	case len(fields) == 1 && strings.EqualFold(fields[0], "no"):
		return search.PhotoNone, nil
	case len(fields) == 2 && strings.EqualFold(fields[0], "yes"):
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > search.MaxPhotos {
			return 0, invalid("photo count %q", fields[1])
		}
		return n, nil
	}
	return 0, invalid("photo preference %q", raw)
}

// Amount parses a non-negative number with either a comma or a dot as decimal separator.
func Amount(raw string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v != v {
		return 0, invalid("amount %q", raw)
	}
	if v > 1e12 {
		return 0, invalid("amount %q out of range", raw)
	}
	return v, nil
}
