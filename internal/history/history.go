// Package history keeps the last few completed searches of every user.
package history

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/m3rciful/hotelbot/internal/search"
)

// Limit is the number of searches kept per user.
const Limit = 5

// TimeLayout is the second-resolution timestamp used as an entry key.
const TimeLayout = "2006-01-02 15:04:05"

// ErrEmpty is returned by List when the user has no stored searches.
var ErrEmpty = errors.New("history: no searches stored")

// Record is one completed search as shown back to the user.
type Record struct {
	SearchID      string         `json:"search_id,omitempty"`
	Command       search.Command `json:"command"`
	Dates         string         `json:"dates"`
	MaxDistanceKm *float64       `json:"max_distance_km,omitempty"`
	MaxPriceUSD   *float64       `json:"max_price_usd,omitempty"`
	City          string         `json:"city"`
	Hotels        []search.Hotel `json:"hotels"`
}

// Entry is a stored record with its timestamp.
type Entry struct {
	At     time.Time
	Record Record
}

// Store persists a bounded, per-user, oldest-first log of searches.
type Store interface {
	// Append evicts the oldest entries so that at most Limit remain.
	Append(ctx context.Context, userID int64, rec Record) error
	// List returns entries oldest first, or ErrEmpty.
	List(ctx context.Context, userID int64) ([]Entry, error)
}

// NewRecord captures a finished search. Bestdeal limits are kept only for Bestdeal.
func NewRecord(sess *search.Session, res *search.Result) Record {
	rec := Record{
		SearchID: sess.SearchID,
		Command:  sess.Command,
		Dates:    sess.DatesText,
		City:     sess.City,
		Hotels:   []search.Hotel{},
	}
	if res != nil {
		if res.CityLabel != "" {
			rec.City = res.CityLabel
		}
		if res.Hotels != nil {
			rec.Hotels = res.Hotels
		}
	}
	if sess.Command == search.Bestdeal {
		dist, price := sess.MaxDistanceKm, sess.MaxPriceUSD
		rec.MaxDistanceKm = &dist
		rec.MaxPriceUSD = &price
	}
	return rec
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].At.Before(entries[j].At) })
}
