package hotelsapi

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/hotelbot/internal/search"
)

func prop(id int64, name string, price float64, distance string) Property {
	p := Property{ID: id, Name: name, RatePlan: &RatePlan{}}
	p.RatePlan.Price.ExactCurrent = &price
	p.Landmarks = []Landmark{{Label: "City center", Distance: distance}}
	return p
}

func names(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func TestSelectBestDeal(t *testing.T) {
	props := []Property{
		prop(1, "A", 120, "1.0 km"),
		prop(2, "B", 200, "0.5 km"),
		prop(3, "C", 100, "3.0 km"),
		prop(4, "D", 140, "1.8 km"),
	}
	got := SelectBestDeal(props, 3, 2, 150)
	assert.Equal(t, []string{"A", "D"}, names(got))
}

func TestSelectBestDealStopsAtLimitThenSorts(t *testing.T) {
	props := []Property{
		prop(1, "far", 50, "1.9 km"),
		prop(2, "near", 90, "0.2 km"),
		prop(3, "never", 10, "0.1 km"),
	}
	got := SelectBestDeal(props, 2, 2, 100)
	assert.Equal(t, []string{"near", "far"}, names(got))
}

func TestSelectBestDealTieBreaksOnPrice(t *testing.T) {
	props := []Property{
		prop(1, "pricey", 90, "1 km"),
		prop(2, "cheap", 60, "1 km"),
	}
	got := SelectBestDeal(props, 5, 1, 100)
	assert.Equal(t, []string{"cheap", "pricey"}, names(got))
}

func TestSelectBestDealBoundsAreInclusive(t *testing.T) {
	got := SelectBestDeal([]Property{prop(1, "edge", 150, "2 km")}, 1, 2, 150)
	assert.Equal(t, []string{"edge"}, names(got))
}

func TestSelectSimple(t *testing.T) {
	props := []Property{
		prop(1, "one", 10, "1 km"),
		{ID: 2, Name: "no price"},
		prop(3, "three", 30, "3 km"),
		prop(4, "four", 40, "4 km"),
	}
	assert.Equal(t, []string{"one", "three"}, names(SelectSimple(props, 2)))
	assert.Len(t, SelectSimple(props, 9), 3)
}

func TestSortOrder(t *testing.T) {
	assert.Equal(t, SortPrice, SortOrder(search.Lowprice))
	assert.Equal(t, SortPriceHighest, SortOrder(search.Highprice))
	assert.Equal(t, SortPrice, SortOrder(search.Bestdeal))
}

type fakeLister struct {
	list  *PropertyList
	err   error
	query PropertyQuery
}

func (f *fakeLister) Properties(_ context.Context, q PropertyQuery) (*PropertyList, error) {
	f.query = q
	return f.list, f.err
}

type nameEnricher struct{}

func (nameEnricher) Build(_ context.Context, c Candidate, sess *search.Session, _ search.Notifier) search.Hotel {
	return search.Hotel{
		ID:       c.ID,
		Name:     c.Name,
		PriceUSD: c.PriceUSD,
		TotalUSD: search.TotalUSD(c.PriceUSD, sess.StayNights()),
		URL:      search.HotelURL(c.ID),
	}
}

func bestdealSession() *search.Session {
	return &search.Session{
		SearchID:      "s-1",
		Command:       search.Bestdeal,
		City:          "paris",
		DestinationID: "504261",
		HotelsNumber:  3,
		CheckIn:       time.Date(2022, 10, 15, 0, 0, 0, 0, time.UTC),
		CheckOut:      time.Date(2022, 10, 18, 0, 0, 0, 0, time.UTC),
		MaxDistanceKm: 2,
		MaxPriceUSD:   150,
	}
}

func TestSearcherBestDeal(t *testing.T) {
	lister := &fakeLister{list: &PropertyList{
		Header: "Paris, France",
		Properties: []Property{
			prop(1, "A", 120, "1.0 km"),
			prop(2, "B", 200, "0.5 km"),
			prop(3, "C", 100, "3.0 km"),
			prop(4, "D", 140, "1.8 km"),
		},
	}}
	s := NewSearcher(lister, nameEnricher{}, 0)

	res, err := s.Search(context.Background(), bestdealSession(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Paris, France", res.CityLabel)
	require.Len(t, res.Hotels, 2)
	assert.Equal(t, "A", res.Hotels[0].Name)
	assert.Equal(t, "D", res.Hotels[1].Name)
	assert.Equal(t, 360.0, res.Hotels[0].TotalUSD)

	assert.Equal(t, SortPrice, lister.query.SortOrder)
	assert.Equal(t, DefaultPageSize, lister.query.PageSize)
	assert.Equal(t, "2022-10-15", lister.query.CheckIn)
	assert.Equal(t, "2022-10-18", lister.query.CheckOut)
}

func TestSearcherEmptyResultIsNotAnError(t *testing.T) {
	lister := &fakeLister{list: &PropertyList{}}
	res, err := NewSearcher(lister, nameEnricher{}, 10).Search(context.Background(), bestdealSession(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Hotels)
	assert.Equal(t, "paris", res.CityLabel)
}

func TestSearcherPropagatesUpstreamError(t *testing.T) {
	lister := &fakeLister{err: &UpstreamError{Endpoint: "properties", Status: 503}}
	_, err := NewSearcher(lister, nameEnricher{}, 10).Search(context.Background(), bestdealSession(), nil)

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, 503, upErr.Status)
}

func TestSearcherRequiresDestination(t *testing.T) {
	sess := bestdealSession()
	sess.DestinationID = ""
	_, err := NewSearcher(&fakeLister{}, nameEnricher{}, 10).Search(context.Background(), sess, nil)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestSearcherHighpriceKeepsAPIOrder(t *testing.T) {
	props := make([]Property, 0, 12)
	for i := 12; i > 0; i-- {
		props = append(props, prop(int64(i), fmt.Sprintf("h%d", i), float64(i*10), "1 km"))
	}
	lister := &fakeLister{list: &PropertyList{Properties: props}}
	sess := bestdealSession()
	sess.Command = search.Highprice
	sess.HotelsNumber = 4

	res, err := NewSearcher(lister, nameEnricher{}, 10).Search(context.Background(), sess, nil)
	require.NoError(t, err)
	require.Len(t, res.Hotels, 4)
	assert.Equal(t, "h12", res.Hotels[0].Name)
	assert.Equal(t, "h9", res.Hotels[3].Name)
	assert.Equal(t, SortPriceHighest, lister.query.SortOrder)
}
