package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return d
}

func TestStayNights(t *testing.T) {
	tests := []struct {
		name    string
		in, out string
		want    int
	}{
		{name: "same day bills one night", in: "2022-10-15", out: "2022-10-15", want: 1},
		{name: "one night", in: "2022-10-15", out: "2022-10-16", want: 1},
		{name: "six nights", in: "2022-10-15", out: "2022-10-21", want: 6},
		{name: "across month", in: "2022-10-30", out: "2022-11-02", want: 3},
		{name: "across dst change", in: "2022-03-26", out: "2022-03-28", want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StayNights(date(t, tt.in), date(t, tt.out)))
		})
	}
}

func TestParseCommand(t *testing.T) {
	cmd, ok := ParseCommand("/bestdeal")
	assert.True(t, ok)
	assert.Equal(t, Bestdeal, cmd)

	cmd, ok = ParseCommand("LowPrice")
	assert.True(t, ok)
	assert.Equal(t, Lowprice, cmd)

	_, ok = ParseCommand("/history")
	assert.False(t, ok)
}

func TestMoneyRounding(t *testing.T) {
	assert.Equal(t, 120.13, RoundUSD(120.125))
	assert.Equal(t, 360.39, TotalUSD(120.13, 3))
	assert.Equal(t, 0.3, TotalUSD(0.1, 3))
}

func TestHotelURL(t *testing.T) {
	assert.Equal(t, "https://www.hotels.com/ho424023/", HotelURL(424023))
}
