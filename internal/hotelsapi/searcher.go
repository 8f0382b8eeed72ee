package hotelsapi

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/m3rciful/hotelbot/core/logger"
	"github.com/m3rciful/hotelbot/internal/search"
)

// DefaultPageSize is the number of properties requested per search.
const DefaultPageSize = 25

// Sort orders understood by the properties endpoint.
const (
	SortPrice        = "PRICE"
	SortPriceHighest = "PRICE_HIGHEST_FIRST"
)

// SortOrder maps a command to the API sort order. Bestdeal is price-ascending
// before its own filtering and re-sorting.
func SortOrder(cmd search.Command) string {
	if cmd == search.Highprice {
		return SortPriceHighest
	}
	return SortPrice
}

// PropertyLister fetches the property list for a destination.
type PropertyLister interface {
	Properties(ctx context.Context, q PropertyQuery) (*PropertyList, error)
}

// Enricher turns an accepted candidate into a presentable hotel.
// It never fails; partial data is reported through the notifier.
type Enricher interface {
	Build(ctx context.Context, c Candidate, sess *search.Session, n search.Notifier) search.Hotel
}

// Searcher runs a complete search for a filled-in session.
type Searcher struct {
	props    PropertyLister
	enrich   Enricher
	pageSize int
}

// NewSearcher wires a Searcher. pageSize <= 0 uses DefaultPageSize.
func NewSearcher(props PropertyLister, enrich Enricher, pageSize int) *Searcher {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Searcher{props: props, enrich: enrich, pageSize: pageSize}
}

// Search queries properties, selects hotels by the session's command and builds
// each accepted hotel in selection order. An empty hotel list is not an error.
func (s *Searcher) Search(ctx context.Context, sess *search.Session, n search.Notifier) (*search.Result, error) {
	if sess.DestinationID == "" {
		return nil, fmt.Errorf("search: %w: destination id", ErrMissingField)
	}
	if n == nil {
		n = search.Discard
	}

	list, err := s.props.Properties(ctx, PropertyQuery{
		DestinationID: sess.DestinationID,
		CheckIn:       sess.CheckInDate(),
		CheckOut:      sess.CheckOutDate(),
		SortOrder:     SortOrder(sess.Command),
		PageSize:      s.pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("search: list properties: %w", err)
	}

	var selected []Candidate
	if sess.Command == search.Bestdeal {
		selected = SelectBestDeal(list.Properties, sess.HotelsNumber, sess.MaxDistanceKm, sess.MaxPriceUSD)
	} else {
		selected = SelectSimple(list.Properties, sess.HotelsNumber)
	}

	logger.Search.LogAttrs(ctx, slog.LevelInfo, "search.selected",
		slog.String("search_id", sess.SearchID),
		slog.String("command", string(sess.Command)),
		slog.Int("candidates", len(list.Properties)),
		slog.Int("hotels", len(selected)),
	)

	label := strings.TrimSpace(list.Header)
	if label == "" {
		label = sess.City
	}
	res := &search.Result{CityLabel: label, Hotels: make([]search.Hotel, 0, len(selected))}
	for _, c := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Hotels = append(res.Hotels, s.enrich.Build(ctx, c, sess, n))
	}
	return res, nil
}

// SelectSimple keeps the first n usable properties in API order.
func SelectSimple(props []Property, n int) []Candidate {
	out := make([]Candidate, 0, n)
	for _, p := range props {
		if len(out) >= n {
			break
		}
		if c, ok := p.Candidate(); ok {
			out = append(out, c)
		}
	}
	return out
}

// SelectBestDeal scans properties in API order, keeps those within both caps
// until n are collected, then orders them by distance and price, both ascending.
func SelectBestDeal(props []Property, n int, maxDistanceKm, maxPriceUSD float64) []Candidate {
	out := make([]Candidate, 0, n)
	for _, p := range props {
		if len(out) >= n {
			break
		}
		c, ok := p.Candidate()
		if !ok {
			continue
		}
		if c.PriceUSD <= maxPriceUSD && c.DistanceKm <= maxDistanceKm {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].PriceUSD < out[j].PriceUSD
	})
	return out
}
