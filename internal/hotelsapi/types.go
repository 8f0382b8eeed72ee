package hotelsapi

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

type locationResponse struct {
	Suggestions []struct {
		Group    string `json:"group"`
		Entities []struct {
			DestinationID string `json:"destinationId"`
			Name          string `json:"name"`
			Type          string `json:"type"`
		} `json:"entities"`
	} `json:"suggestions"`
}

type propertiesResponse struct {
	Result string `json:"result"`
	Data   *struct {
		Body *struct {
			Header        string `json:"header"`
			SearchResults struct {
				Results []Property `json:"results"`
			} `json:"searchResults"`
		} `json:"body"`
	} `json:"data"`
}

// Property is a raw hotel record from the property list.
type Property struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	RatePlan  *RatePlan  `json:"ratePlan"`
	Landmarks []Landmark `json:"landmarks"`
}

// RatePlan carries the nightly price; ExactCurrent is nil when unpriced.
type RatePlan struct {
	Price struct {
		Current      string   `json:"current"`
		ExactCurrent *float64 `json:"exactCurrent"`
	} `json:"price"`
}

// Landmark is a named point with a display distance such as "1,2 км".
type Landmark struct {
	Label    string `json:"label"`
	Distance string `json:"distance"`
}

// PropertyList is the decoded property list for a destination.
type PropertyList struct {
	Header     string
	Properties []Property
}

// Image is a photo reference; BaseURL contains a "{size}" placeholder.
type Image struct {
	BaseURL string `json:"baseUrl"`
	ImageID int64  `json:"imageId"`
}

// URL resolves the size placeholder.
func (i Image) URL(size string) string {
	return strings.ReplaceAll(i.BaseURL, "{size}", size)
}

// RoomImages groups the photos of one room type.
type RoomImages struct {
	RoomID int64   `json:"roomId"`
	Images []Image `json:"images"`
}

// Photos is the decoded photo listing of a hotel.
type Photos struct {
	HotelID     int64        `json:"hotelId"`
	HotelImages []Image      `json:"hotelImages"`
	RoomImages  []RoomImages `json:"roomImages"`
}

type detailsResponse struct {
	Data *struct {
		Body *struct {
			PropertyDescription *struct {
				Address *struct {
					FullAddress string `json:"fullAddress"`
				} `json:"address"`
			} `json:"propertyDescription"`
		} `json:"body"`
	} `json:"data"`
}

// Candidate is a property with the values needed for selection already parsed.
type Candidate struct {
	ID         int64
	Name       string
	PriceUSD   float64
	Distance   string
	DistanceKm float64
}

const kmPerMile = 1.609344

var distanceRe = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// ParseDistanceKm extracts the leading number of a landmark distance such as
// "1,2 км" or "0.8 miles" and converts miles to kilometres.
func ParseDistanceKm(raw string) (float64, bool) {
	m := distanceRe.FindString(raw)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	if strings.Contains(strings.ToLower(raw), "mile") {
		v = math.Round(v*kmPerMile*1000) / 1000
	}
	return v, true
}

// Candidate converts a property; ok is false when price or distance is missing.
func (p Property) Candidate() (Candidate, bool) {
	if p.RatePlan == nil || p.RatePlan.Price.ExactCurrent == nil || len(p.Landmarks) == 0 {
		return Candidate{}, false
	}
	km, ok := ParseDistanceKm(p.Landmarks[0].Distance)
	if !ok {
		return Candidate{}, false
	}
	return Candidate{
		ID:         p.ID,
		Name:       strings.TrimSpace(p.Name),
		PriceUSD:   *p.RatePlan.Price.ExactCurrent,
		Distance:   p.Landmarks[0].Distance,
		DistanceKm: km,
	}, true
}
