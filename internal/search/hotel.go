package search

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Hotel is a presentable search result.
type Hotel struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Address    string   `json:"address,omitempty"`
	PriceUSD   float64  `json:"price_usd"`
	TotalUSD   float64  `json:"total_usd"`
	Distance   string   `json:"distance"`
	DistanceKm float64  `json:"distance_km"`
	URL        string   `json:"url"`
	Photos     []string `json:"photos,omitempty"`
}

// Result is the outcome of one completed search.
type Result struct {
	CityLabel string
	Hotels    []Hotel
}

// RoundUSD rounds an amount to cents.
func RoundUSD(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// TotalUSD multiplies a nightly price by the stay length and rounds to cents.
func TotalUSD(price float64, nights int) float64 {
	f, _ := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(nights))).Round(2).Float64()
	return f
}

// HotelURL builds the hotel detail page link.
func HotelURL(id int64) string {
	return fmt.Sprintf("https://www.hotels.com/ho%d/", id)
}
