package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/hotelbot/core/bootstrap"
	tg "github.com/m3rciful/hotelbot/core/telegram"
	"github.com/m3rciful/hotelbot/internal/config"
	"github.com/m3rciful/hotelbot/internal/dialog"
	"github.com/m3rciful/hotelbot/internal/history"
	"github.com/m3rciful/hotelbot/internal/hotelsapi"
	"github.com/m3rciful/hotelbot/internal/search"
)

type recorder struct {
	mu     sync.Mutex
	texts  []string
	photos []string
}

func (r *recorder) SendText(_ context.Context, _ int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func (r *recorder) SendPhoto(_ context.Context, _ int64, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.photos = append(r.photos, url)
	return nil
}

func (r *recorder) PresentChoice(_ context.Context, _ int64, text string, _ int) error {
	return r.SendText(context.Background(), 0, text)
}

const hotelsListJSON = `{"result":"OK","data":{"body":{
  "header":"Paris, Ile-de-France, France",
  "searchResults":{"results":[
    {"id":1,"name":"Alpha","ratePlan":{"price":{"current":"$120","exactCurrent":120}},"landmarks":[{"label":"City center","distance":"1.0 miles"}]},
    {"id":2,"name":"Bravo","ratePlan":{"price":{"current":"$200","exactCurrent":200.5}},"landmarks":[{"label":"City center","distance":"0.2 miles"}]},
    {"id":3,"name":"Charlie","ratePlan":{"price":{"current":"$90","exactCurrent":90}},"landmarks":[{"label":"City center","distance":"0,5 км"}]},
    {"id":4,"name":"Delta","ratePlan":{"price":{"current":"$80","exactCurrent":80}},"landmarks":[{"label":"City center","distance":"0.1 km"}]}
  ]}}}}`

func fakeHotels4(t *testing.T, locationCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(hotelsapi.EndpointLocations, func(w http.ResponseWriter, r *http.Request) {
		locationCalls.Add(1)
		_, _ = w.Write([]byte(`{"suggestions":[{"group":"CITY_GROUP","entities":[{"destinationId":"504261","name":"Paris"}]}]}`))
	})
	mux.HandleFunc(hotelsapi.EndpointProperties, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, hotelsapi.SortPrice, r.URL.Query().Get("sortOrder"))
		_, _ = w.Write([]byte(hotelsListJSON))
	})
	mux.HandleFunc(hotelsapi.EndpointDetails, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"body":{"propertyDescription":{"address":{"fullAddress":"hotel ` + r.URL.Query().Get("id") + `"}}}}}`))
	})
	mux.HandleFunc(hotelsapi.EndpointPhotos, func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		_, _ = w.Write([]byte(`{"hotelId":` + id + `,
		  "hotelImages":[{"baseUrl":"https://img/h` + id + `_{size}.jpg"},{"baseUrl":"https://img/h` + id + `b_{size}.jpg"}],
		  "roomImages":[{"roomId":1,"images":[{"baseUrl":"https://img/r` + id + `_{size}.jpg"}]}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, apiURL, redisAddr string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Telegram.Token = "123:abc"
	cfg.HotelsAPI.BaseURL = apiURL
	cfg.HotelsAPI.Key = "secret"
	cfg.HotelsAPI.Timeout = 5 * time.Second
	cfg.History.FilePath = filepath.Join(t.TempDir(), "search_requests.json")
	cfg.Redis.Addr = redisAddr
	require.NoError(t, config.Normalize(cfg))
	return cfg
}

func TestBestdealEndToEnd(t *testing.T) {
	ctx := context.Background()
	var locationCalls atomic.Int32
	srv := fakeHotels4(t, &locationCalls)
	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	a := New(testConfig(t, srv.URL, mr.Addr()), bootstrap.Result{Redis: rdb})
	t.Cleanup(func() { _ = a.onStop(ctx, tg.Runtime{}) })

	rec := &recorder{}
	engine, err := a.Engine(rec)
	require.NoError(t, err)

	const uid = 77
	run := func(cmd search.Command, replies ...string) {
		require.NoError(t, engine.Start(ctx, uid, cmd))
		for _, r := range replies {
			require.NoError(t, engine.HandleText(ctx, uid, r))
		}
	}

	run(search.Bestdeal, "Paris", "2", "2022-10-15 - 2022-10-17", "yes 2", "2", "150")

	assert.Contains(t, rec.texts, dialog.ResultsHeader("2022-10-15 - 2022-10-17", "Paris, Ile-de-France, France"))
	charlie := dialog.HotelCard(search.Hotel{
		Name: "Charlie", Address: "hotel 3", PriceUSD: 90, TotalUSD: 180,
		Distance: "0,5 км", URL: search.HotelURL(3),
	})
	alpha := dialog.HotelCard(search.Hotel{
		Name: "Alpha", Address: "hotel 1", PriceUSD: 120, TotalUSD: 240,
		Distance: "1.0 miles", URL: search.HotelURL(1),
	})
	assert.Equal(t, []string{charlie, alpha}, rec.texts[len(rec.texts)-2:])
	assert.Equal(t, []string{
		"https://img/r3_y.jpg", "https://img/h3_y.jpg",
		"https://img/r1_y.jpg", "https://img/h1_y.jpg",
	}, rec.photos)

	assert.True(t, mr.Exists("hotelbot:location:paris"))
	run(search.Lowprice, "paris", "1", "2022-10-15 - 2022-10-16", "no")
	assert.Equal(t, int32(1), locationCalls.Load())

	store, err := a.HistoryStore()
	require.NoError(t, err)
	entries, err := store.List(ctx, uid)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, search.Bestdeal, entries[0].Record.Command)
	require.Len(t, entries[0].Record.Hotels, 2)
	assert.Equal(t, "Charlie", entries[0].Record.Hotels[0].Name)
	assert.Equal(t, search.Lowprice, entries[1].Record.Command)
	require.Len(t, entries[1].Record.Hotels, 1)
	assert.Equal(t, "Alpha", entries[1].Record.Hotels[0].Name)
}

func TestHistoryStoreSelection(t *testing.T) {
	cfg := testConfig(t, "http://unused", "")
	a := New(cfg, bootstrap.Result{})

	store, err := a.HistoryStore()
	require.NoError(t, err)
	assert.IsType(t, &history.FileStore{}, store)

	cfg.History.Backend = config.HistoryPostgres
	_, err = a.HistoryStore()
	assert.Error(t, err)
}
