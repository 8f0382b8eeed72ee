package dialog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/hotelbot/internal/history"
	"github.com/m3rciful/hotelbot/internal/search"
)

// Questions asked in each state.
const (
	PromptCity       = "Which city are we searching in?"
	PromptHotelCount = "How many hotels should I show?"
	PromptDates      = "Enter check-in and check-out dates as YYYY-MM-DD - YYYY-MM-DD\nFor example: 2022-10-15 - 2022-10-21"
	PromptPhotoPref  = "Show hotel photos?\nReply \"no\", or \"yes N\" where N is the number of photos (1 to 6)"
	PromptDistance   = "Maximum distance from the city center, km?\nFractions are fine: 1.5 or 1,5"
	PromptPrice      = "Maximum price per night, $?"
)

// Replies outside the question flow.
const (
	MsgInvalidInput     = "That doesn't look right. Please try again."
	MsgCityNotFound     = "I couldn't find that city.\nPlease start a new search with a command."
	MsgCityLookupFailed = "Something went wrong looking up the city.\nPlease wait a bit and start a new search."
	MsgSearching        = "Starting the search..."
	MsgSearchFailed     = "Something went wrong while searching for hotels.\nPlease wait a bit and start a new search."
	MsgNothingFound     = "Nothing matched your criteria ("
	MsgNoHistory        = "You haven't searched for anything yet."
	MsgHistoryFailed    = "Your search history is unavailable right now."
	MsgHistoryTitle     = "Your search history:"
)

// ResultsHeader opens the result of a finished search.
func ResultsHeader(dates, city string) string {
	return fmt.Sprintf("Search results\nDates: %s\nCity: %s", dates, city)
}

// HotelCard is the text block shown for one hotel; photos follow separately.
func HotelCard(h search.Hotel) string {
	lines := []string{"Name: " + h.Name}
	if h.Address != "" {
		lines = append(lines, "Address: "+h.Address)
	}
	lines = append(lines,
		"Price per night, $: "+money(h.PriceUSD),
		"Total for the stay, $: "+money(h.TotalUSD),
		"From center: "+h.Distance,
		"Link: "+h.URL,
	)
	return strings.Join(lines, "\n")
}

// HistoryHeader describes a stored search.
func HistoryHeader(e history.Entry) string {
	r := e.Record
	lines := []string{
		"Search date: " + e.At.Format(history.TimeLayout),
		"",
		"Command: " + CommandLabel(r.Command),
		"Dates: " + r.Dates,
	}
	if r.MaxDistanceKm != nil {
		lines = append(lines, "Max distance, km: "+strconv.FormatFloat(*r.MaxDistanceKm, 'f', -1, 64))
	}
	if r.MaxPriceUSD != nil {
		lines = append(lines, "Max price, $: "+strconv.FormatFloat(*r.MaxPriceUSD, 'f', -1, 64))
	}
	lines = append(lines, "City: "+r.City)
	if len(r.Hotels) == 0 {
		lines = append(lines, "Hotels: none found")
	}
	return strings.Join(lines, "\n")
}

// CommandLabel is the human name of a command.
func CommandLabel(c search.Command) string {
	switch c {
	case search.Lowprice:
		return "cheapest hotels"
	case search.Highprice:
		return "most expensive hotels"
	case search.Bestdeal:
		return "best deal"
	}
	return string(c)
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
