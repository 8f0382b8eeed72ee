package dialog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/hotelbot/core/telegram/state"
	"github.com/m3rciful/hotelbot/internal/history"
	"github.com/m3rciful/hotelbot/internal/hotelsapi"
	"github.com/m3rciful/hotelbot/internal/search"
)

type sent struct {
	kind string // text, photo, choice
	text string
	n    int
}

type fakeMessenger struct {
	mu  sync.Mutex
	out map[int64][]sent
}

func newMessenger() *fakeMessenger { return &fakeMessenger{out: map[int64][]sent{}} }

func (m *fakeMessenger) SendText(_ context.Context, userID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out[userID] = append(m.out[userID], sent{kind: "text", text: text})
	return nil
}

func (m *fakeMessenger) SendPhoto(_ context.Context, userID int64, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out[userID] = append(m.out[userID], sent{kind: "photo", text: url})
	return nil
}

func (m *fakeMessenger) PresentChoice(_ context.Context, userID int64, text string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out[userID] = append(m.out[userID], sent{kind: "choice", text: text, n: n})
	return nil
}

func (m *fakeMessenger) last(userID int64) sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.out[userID]
	if len(msgs) == 0 {
		return sent{}
	}
	return msgs[len(msgs)-1]
}

func (m *fakeMessenger) all(userID int64) []sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sent(nil), m.out[userID]...)
}

type fakeLocator struct {
	id  string
	err error
}

func (f fakeLocator) Locations(context.Context, string) (string, error) { return f.id, f.err }

type fakeSearcher struct {
	mu     sync.Mutex
	res    *search.Result
	err    error
	notice string
	got    []search.Session
}

func (f *fakeSearcher) Search(ctx context.Context, sess *search.Session, n search.Notifier) (*search.Result, error) {
	f.mu.Lock()
	f.got = append(f.got, *sess)
	f.mu.Unlock()
	if f.notice != "" {
		n.Notify(ctx, f.notice)
	}
	return f.res, f.err
}

type memHistory struct {
	mu      sync.Mutex
	entries map[int64][]history.Entry
}

func (h *memHistory) Append(_ context.Context, userID int64, rec history.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.entries == nil {
		h.entries = map[int64][]history.Entry{}
	}
	h.entries[userID] = append(h.entries[userID], history.Entry{At: time.Date(2022, 10, 15, 12, 0, 0, 0, time.Local), Record: rec})
	return nil
}

func (h *memHistory) List(_ context.Context, userID int64) ([]history.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries[userID]) == 0 {
		return nil, history.ErrEmpty
	}
	return h.entries[userID], nil
}

type fixture struct {
	engine   *Engine
	msg      *fakeMessenger
	searcher *fakeSearcher
	history  *memHistory
}

func newFixture(loc fakeLocator) *fixture {
	f := &fixture{
		msg: newMessenger(),
		searcher: &fakeSearcher{res: &search.Result{
			CityLabel: "Paris, France",
			Hotels: []search.Hotel{
				{ID: 1, Name: "A", PriceUSD: 120, TotalUSD: 120, Distance: "1.0 km", URL: search.HotelURL(1), Photos: []string{"p1", "p2"}},
				{ID: 4, Name: "D", PriceUSD: 140, TotalUSD: 140, Distance: "1.8 km", URL: search.HotelURL(4)},
			},
		}},
		history: &memHistory{},
	}
	f.engine = NewEngine(Deps{
		Messenger: f.msg,
		Locator:   loc,
		Searcher:  f.searcher,
		History:   f.history,
	})
	return f
}

func (f *fixture) say(t *testing.T, userID int64, text string) {
	t.Helper()
	require.NoError(t, f.engine.HandleText(context.Background(), userID, text))
}

func TestBestdealConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fakeLocator{id: "504261"})
	const uid = 10

	require.NoError(t, f.engine.Start(ctx, uid, search.Bestdeal))
	assert.Equal(t, PromptCity, f.msg.last(uid).text)
	assert.True(t, f.engine.InProgress(uid))

	f.say(t, uid, "Paris")
	choice := f.msg.last(uid)
	assert.Equal(t, "choice", choice.kind)
	assert.Equal(t, 9, choice.n)

	require.NoError(t, f.engine.HandleChoice(ctx, uid, 3))
	assert.Equal(t, PromptDates, f.msg.last(uid).text)

	f.say(t, uid, "2022-10-15 - 2022-10-15")
	assert.Equal(t, PromptPhotoPref, f.msg.last(uid).text)

	f.say(t, uid, "no")
	assert.Equal(t, PromptDistance, f.msg.last(uid).text)

	f.say(t, uid, "2,0")
	assert.Equal(t, PromptPrice, f.msg.last(uid).text)

	f.say(t, uid, "150")

	require.Len(t, f.searcher.got, 1)
	s := f.searcher.got[0]
	assert.Equal(t, search.Bestdeal, s.Command)
	assert.Equal(t, "Paris", s.City)
	assert.Equal(t, "504261", s.DestinationID)
	assert.Equal(t, 3, s.HotelsNumber)
	assert.Equal(t, 1, s.StayNights())
	assert.Equal(t, search.PhotoNone, s.Photos)
	assert.Equal(t, 2.0, s.MaxDistanceKm)
	assert.Equal(t, 150.0, s.MaxPriceUSD)
	assert.Equal(t, search.StateExecuting, s.State)
	assert.NotEmpty(t, s.SearchID)

	var texts []string
	var photos []string
	for _, m := range f.msg.all(uid) {
		if m.kind == "photo" {
			photos = append(photos, m.text)
		} else {
			texts = append(texts, m.text)
		}
	}
	assert.Contains(t, texts, MsgSearching)
	assert.Contains(t, texts, ResultsHeader("2022-10-15 - 2022-10-15", "Paris, France"))
	assert.Equal(t, []string{"p1", "p2"}, photos)

	assert.False(t, f.engine.InProgress(uid))
	entries, err := f.history.List(ctx, uid)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Paris, France", entries[0].Record.City)
	require.NotNil(t, entries[0].Record.MaxPriceUSD)
}

func TestLowpriceSkipsBestdealQuestions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fakeLocator{id: "1"})
	const uid = 11

	require.NoError(t, f.engine.Start(ctx, uid, search.Lowprice))
	f.say(t, uid, "Rome")
	f.say(t, uid, "2")
	f.say(t, uid, "2022-10-15 - 2022-10-18")
	f.say(t, uid, "yes 2")

	require.Len(t, f.searcher.got, 1)
	assert.Equal(t, 2, f.searcher.got[0].Photos)
	assert.Equal(t, 3, f.searcher.got[0].StayNights())
	assert.False(t, f.engine.InProgress(uid))
}

func TestInvalidInputRepromptsSameQuestion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fakeLocator{id: "1"})
	const uid = 12

	require.NoError(t, f.engine.Start(ctx, uid, search.Highprice))
	f.say(t, uid, "Rome")
	f.say(t, uid, "5")

	for _, bad := range []string{"tomorrow", "2022-10-21 - 2022-10-15", "2022-13-01 - 2022-13-02"} {
		before := len(f.msg.all(uid))
		f.say(t, uid, bad)
		msgs := f.msg.all(uid)[before:]
		require.Len(t, msgs, 2)
		assert.Equal(t, MsgInvalidInput, msgs[0].text)
		assert.Equal(t, PromptDates, msgs[1].text)
	}

	f.say(t, uid, "2022-10-15 - 2022-10-16")
	assert.Equal(t, PromptPhotoPref, f.msg.last(uid).text)
	assert.True(t, f.engine.InProgress(uid))
}

func TestHotelCountAcceptsTypedDigitsAndRepromptsWithChoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fakeLocator{id: "1"})
	const uid = 13

	require.NoError(t, f.engine.Start(ctx, uid, search.Lowprice))
	f.say(t, uid, "Rome")
	f.say(t, uid, "12")
	assert.Equal(t, "choice", f.msg.last(uid).kind)

	f.say(t, uid, "4")
	assert.Equal(t, PromptDates, f.msg.last(uid).text)
}

func TestStaleChoiceIsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fakeLocator{id: "1"})
	const uid = 14

	require.NoError(t, f.engine.Start(ctx, uid, search.Lowprice))
	before := len(f.msg.all(uid))
	require.NoError(t, f.engine.HandleChoice(ctx, uid, 3))
	assert.Len(t, f.msg.all(uid), before)
}

func TestCityLookupFailureAbortsSearch(t *testing.T) {
	ctx := context.Background()

	f := newFixture(fakeLocator{err: hotelsapi.ErrNotFound})
	require.NoError(t, f.engine.Start(ctx, 15, search.Lowprice))
	f.say(t, 15, "Atlantis")
	assert.Equal(t, MsgCityNotFound, f.msg.last(15).text)
	assert.False(t, f.engine.InProgress(15))
	assert.ErrorIs(t, f.engine.HandleText(ctx, 15, "2"), state.ErrNoSession)

	f = newFixture(fakeLocator{err: &hotelsapi.UpstreamError{Endpoint: "locations", Status: 500}})
	require.NoError(t, f.engine.Start(ctx, 16, search.Lowprice))
	f.say(t, 16, "Paris")
	assert.Equal(t, MsgCityLookupFailed, f.msg.last(16).text)
	assert.False(t, f.engine.InProgress(16))
}

func TestSearchFailureClearsSessionWithoutHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fakeLocator{id: "1"})
	f.searcher.err = errors.New("upstream down")
	const uid = 17

	require.NoError(t, f.engine.Start(ctx, uid, search.Lowprice))
	f.say(t, uid, "Rome")
	f.say(t, uid, "1")
	f.say(t, uid, "2022-10-15 - 2022-10-16")
	f.say(t, uid, "no")

	assert.Equal(t, MsgSearchFailed, f.msg.last(uid).text)
	assert.False(t, f.engine.InProgress(uid))
	_, err := f.history.List(ctx, uid)
	assert.ErrorIs(t, err, history.ErrEmpty)
}

func TestEmptyResultStillRecorded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fakeLocator{id: "1"})
	f.searcher.res = &search.Result{CityLabel: "Rome"}
	const uid = 18

	require.NoError(t, f.engine.Start(ctx, uid, search.Lowprice))
	f.say(t, uid, "Rome")
	f.say(t, uid, "1")
	f.say(t, uid, "2022-10-15 - 2022-10-16")
	f.say(t, uid, "no")

	assert.Equal(t, MsgNothingFound, f.msg.last(uid).text)
	entries, err := f.history.List(ctx, uid)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNotificationsReachTheUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fakeLocator{id: "1"})
	f.searcher.notice = "photos of A unavailable"
	const uid = 19

	require.NoError(t, f.engine.Start(ctx, uid, search.Lowprice))
	f.say(t, uid, "Rome")
	f.say(t, uid, "1")
	f.say(t, uid, "2022-10-15 - 2022-10-16")
	f.say(t, uid, "yes 1")

	var found bool
	for _, m := range f.msg.all(uid) {
		if m.text == "photos of A unavailable" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRestartWipesUnfinishedSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fakeLocator{id: "1"})
	const uid = 20

	require.NoError(t, f.engine.Start(ctx, uid, search.Bestdeal))
	f.say(t, uid, "Rome")
	f.say(t, uid, "4")

	require.NoError(t, f.engine.Start(ctx, uid, search.Lowprice))
	assert.Equal(t, PromptCity, f.msg.last(uid).text)
	f.say(t, uid, "Oslo")
	f.say(t, uid, "1")
	f.say(t, uid, "2022-10-15 - 2022-10-16")
	f.say(t, uid, "no")

	require.Len(t, f.searcher.got, 1)
	assert.Equal(t, search.Lowprice, f.searcher.got[0].Command)
	assert.Equal(t, "Oslo", f.searcher.got[0].City)
	assert.Equal(t, 1, f.searcher.got[0].HotelsNumber)
}

func TestUsersDoNotShareSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fakeLocator{id: "1"})

	var wg sync.WaitGroup
	for uid := int64(100); uid < 120; uid++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			assert.NoError(t, f.engine.Start(ctx, uid, search.Lowprice))
			assert.NoError(t, f.engine.HandleText(ctx, uid, "City"))
			assert.NoError(t, f.engine.HandleChoice(ctx, uid, int(uid%9)+1))
			assert.NoError(t, f.engine.HandleText(ctx, uid, "2022-10-15 - 2022-10-16"))
			assert.NoError(t, f.engine.HandleText(ctx, uid, "no"))
		}(uid)
	}
	wg.Wait()

	require.Len(t, f.searcher.got, 20)
	for _, s := range f.searcher.got {
		assert.GreaterOrEqual(t, s.HotelsNumber, 1)
	}
	seen := map[string]bool{}
	for _, s := range f.searcher.got {
		assert.False(t, seen[s.SearchID])
		seen[s.SearchID] = true
	}
}

func TestShowHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fakeLocator{id: "1"})

	require.NoError(t, f.engine.ShowHistory(ctx, 30))
	assert.Equal(t, MsgNoHistory, f.msg.last(30).text)
	assert.Len(t, f.msg.all(30), 1)

	dist, price := 2.0, 150.0
	require.NoError(t, f.history.Append(ctx, 30, history.Record{
		Command:       search.Bestdeal,
		Dates:         "2022-10-15 - 2022-10-15",
		MaxDistanceKm: &dist,
		MaxPriceUSD:   &price,
		City:          "Paris, France",
		Hotels:        []search.Hotel{{ID: 1, Name: "A", URL: search.HotelURL(1), Photos: []string{"p"}}},
	}))
	require.NoError(t, f.engine.ShowHistory(ctx, 30))

	msgs := f.msg.all(30)[1:]
	require.Len(t, msgs, 4)
	assert.Equal(t, MsgHistoryTitle, msgs[0].text)
	assert.True(t, strings.HasPrefix(msgs[1].text, "Search date: 2022-10-15 12:00:00"))
	assert.Contains(t, msgs[1].text, "Max distance, km: 2")
	assert.Contains(t, msgs[1].text, "Max price, $: 150")
	assert.Contains(t, msgs[2].text, "Name: A")
	assert.Equal(t, "photo", msgs[3].kind)
}

func TestHotelCard(t *testing.T) {
	card := HotelCard(search.Hotel{
		Name:     "Alpha",
		Address:  "1 Main St",
		PriceUSD: 99.5,
		TotalUSD: 298.5,
		Distance: "1,2 км",
		URL:      "https://www.hotels.com/ho1/",
	})
	assert.Equal(t, strings.Join([]string{
		"Name: Alpha",
		"Address: 1 Main St",
		"Price per night, $: 99.50",
		"Total for the stay, $: 298.50",
		"From center: 1,2 км",
		"Link: https://www.hotels.com/ho1/",
	}, "\n"), card)

	assert.NotContains(t, HotelCard(search.Hotel{Name: "NoAddr"}), "Address")
}
