package validate

import (
	"strings"

	"github.com/m3rciful/hotelbot/internal/search"
)

// ApplyFunc validates raw and stores the parsed value in the session.
type ApplyFunc func(raw string, s *search.Session) error

// ApplyCity stores the trimmed city name; the destination id is resolved by the dialog.
func ApplyCity(raw string, s *search.Session) error {
	city := strings.TrimSpace(raw)
	if city == "" || strings.HasPrefix(city, "/") {
		return invalid("city %q", raw)
	}
	s.City = city
	return nil
}

// ApplyHotelCount stores the requested result count.
func ApplyHotelCount(raw string, s *search.Session) error {
	n, err := HotelCount(raw)
	if err != nil {
		return err
	}
	s.HotelsNumber = n
	return nil
}

// ApplyDates stores the stay dates and their display form.
func ApplyDates(raw string, s *search.Session) error {
	in, out, err := DateRange(raw)
	if err != nil {
		return err
	}
	s.CheckIn, s.CheckOut = in, out
	s.DatesText = in.Format(search.DateLayout) + " - " + out.Format(search.DateLayout)
	return nil
}

// ApplyPhotoPref stores the photo count (search.PhotoNone for none).
func ApplyPhotoPref(raw string, s *search.Session) error {
	n, err := PhotoPref(raw)
	if err != nil {
		return err
	}
	s.Photos = n
	return nil
}

// ApplyDistance stores the Bestdeal distance cap in km.
func ApplyDistance(raw string, s *search.Session) error {
	v, err := Amount(raw)
	if err != nil {
		return err
	}
	s.MaxDistanceKm = v
	return nil
}

// ApplyPrice stores the Bestdeal nightly price cap in USD.
func ApplyPrice(raw string, s *search.Session) error {
	v, err := Amount(raw)
	if err != nil {
		return err
	}
	s.MaxPriceUSD = v
	return nil
}
