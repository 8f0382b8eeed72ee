// Package search holds the domain types shared by the dialog, the API client,
// result processing and history.
package search

import (
	"strings"
	"time"
)

// Command selects the ranking and filtering strategy of a search.
type Command string

const (
	// Lowprice returns the cheapest hotels first.
	Lowprice Command = "Lowprice"
	// Highprice returns the most expensive hotels first.
	Highprice Command = "Highprice"
	// Bestdeal filters by distance and price caps and ranks by proximity, then price.
	Bestdeal Command = "Bestdeal"
)

// ParseCommand maps a bot command name ("/lowprice", "bestdeal") to a Command.
func ParseCommand(name string) (Command, bool) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/")) {
	case "lowprice":
		return Lowprice, true
	case "highprice":
		return Highprice, true
	case "bestdeal":
		return Bestdeal, true
	}
	return "", false
}

// State identifies a dialog step.
type State string

const (
	StateAwaitCity       State = "await_city"
	StateAwaitHotelCount State = "await_hotel_count"
	StateAwaitDates      State = "await_dates"
	StateAwaitPhotoPref  State = "await_photo_pref"
	StateAwaitDistance   State = "await_distance"
	StateAwaitPrice      State = "await_price"
	StateExecuting       State = "executing"
	StateDone            State = "done"
)

// PhotoNone means the user does not want photos.
const PhotoNone = 0

// MaxPhotos bounds the number of photos per hotel.
const MaxPhotos = 6

// MaxHotels bounds the number of hotels a user may request.
const MaxHotels = 9

// DateLayout is the calendar date format used by users and the API.
const DateLayout = "2006-01-02"

// Session is the scratch record of one user's in-flight search.
type Session struct {
	SearchID string
	State    State
	Command  Command

	City          string
	DestinationID string

	HotelsNumber int

	CheckIn   time.Time
	CheckOut  time.Time
	DatesText string

	Photos int

	MaxDistanceKm float64
	MaxPriceUSD   float64
}

// StayNights returns the billable nights; a same-day stay bills as one night.
func (s *Session) StayNights() int {
	return StayNights(s.CheckIn, s.CheckOut)
}

// StayNights computes max(1, whole days between in and out).
func StayNights(in, out time.Time) int {
	days := int(dateOnly(out).Sub(dateOnly(in)).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CheckInDate formats the check-in date for API queries.
func (s *Session) CheckInDate() string { return s.CheckIn.Format(DateLayout) }

// CheckOutDate formats the check-out date for API queries.
func (s *Session) CheckOutDate() string { return s.CheckOut.Format(DateLayout) }

// WantsPhotos reports whether photos were requested.
func (s *Session) WantsPhotos() bool { return s.Photos != PhotoNone }
