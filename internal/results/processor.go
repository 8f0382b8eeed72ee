// Package results turns selected search candidates into presentable hotels.
package results

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/hotelbot/core/logger"
	"github.com/m3rciful/hotelbot/internal/hotelsapi"
	"github.com/m3rciful/hotelbot/internal/search"
)

// DefaultPhotoSize is substituted into photo URL templates.
const DefaultPhotoSize = "y"

// HotelDetails is the subset of the API client used for enrichment.
type HotelDetails interface {
	Details(ctx context.Context, hotelID int64, checkIn, checkOut string) (string, error)
	Photos(ctx context.Context, hotelID int64) (*hotelsapi.Photos, error)
}

// Processor builds hotels with best-effort address and photo lookups.
type Processor struct {
	api       HotelDetails
	photoSize string
}

// NewProcessor returns a Processor; an empty photoSize uses DefaultPhotoSize.
func NewProcessor(api HotelDetails, photoSize string) *Processor {
	if photoSize == "" {
		photoSize = DefaultPhotoSize
	}
	return &Processor{api: api, photoSize: photoSize}
}

// Build never fails: a missing address or photo set is reported to the user
// through n and the hotel is returned without it.
func (p *Processor) Build(ctx context.Context, c hotelsapi.Candidate, sess *search.Session, n search.Notifier) search.Hotel {
	if n == nil {
		n = search.Discard
	}
	h := search.Hotel{
		ID:         c.ID,
		Name:       c.Name,
		PriceUSD:   search.RoundUSD(c.PriceUSD),
		TotalUSD:   search.TotalUSD(c.PriceUSD, sess.StayNights()),
		Distance:   c.Distance,
		DistanceKm: c.DistanceKm,
		URL:        search.HotelURL(c.ID),
	}

	var (
		g                  errgroup.Group
		addrErr, photosErr error
		address            string
		photos             []string
	)
	g.Go(func() error {
		address, addrErr = p.api.Details(ctx, c.ID, sess.CheckInDate(), sess.CheckOutDate())
		return nil
	})
	if sess.WantsPhotos() {
		g.Go(func() error {
			photos, photosErr = p.photos(ctx, c.ID, sess.Photos)
			return nil
		})
	}
	_ = g.Wait()

	if addrErr != nil {
		logger.Search.LogAttrs(ctx, slog.LevelWarn, "hotel.address_failed",
			slog.String("search_id", sess.SearchID),
			slog.Int64("hotel_id", c.ID),
			slog.String("err", addrErr.Error()),
		)
		n.Notify(ctx, fmt.Sprintf("Something went wrong fetching the address of %s.\nThe exact address will not be shown.", c.Name))
	} else {
		h.Address = address
	}

	if photosErr != nil {
		logger.Search.LogAttrs(ctx, slog.LevelWarn, "hotel.photos_failed",
			slog.String("search_id", sess.SearchID),
			slog.Int64("hotel_id", c.ID),
			slog.String("err", photosErr.Error()),
		)
		n.Notify(ctx, fmt.Sprintf("Something went wrong fetching the photos of %s.\nPhotos will not be shown.", c.Name))
	} else {
		h.Photos = photos
	}
	return h
}

func (p *Processor) photos(ctx context.Context, hotelID int64, count int) ([]string, error) {
	listing, err := p.api.Photos(ctx, hotelID)
	if err != nil {
		return nil, err
	}
	urls, ok := SelectPhotos(listing, count, p.photoSize)
	if !ok {
		return nil, fmt.Errorf("%w: room or hotel images", hotelsapi.ErrMissingField)
	}
	return urls, nil
}

// SelectPhotos picks up to count photo URLs. Room photos come first, one per
// room type; a count of 1 yields a single room photo, otherwise at most
// count-1 room photos are taken and the rest is filled from hotel photos.
// ok is false when either image list is missing or empty.
func SelectPhotos(listing *hotelsapi.Photos, count int, size string) ([]string, bool) {
	if listing == nil || count <= 0 {
		return nil, false
	}
	var rooms []hotelsapi.Image
	for _, r := range listing.RoomImages {
		if len(r.Images) > 0 {
			rooms = append(rooms, r.Images[0])
		}
	}
	if len(rooms) == 0 || len(listing.HotelImages) == 0 {
		return nil, false
	}

	roomQuota := count - 1
	if count == 1 {
		roomQuota = 1
	}
	out := make([]string, 0, count)
	for _, img := range rooms {
		if len(out) >= roomQuota {
			break
		}
		out = append(out, img.URL(size))
	}
	for _, img := range listing.HotelImages {
		if len(out) >= count {
			break
		}
		out = append(out, img.URL(size))
	}
	return out, true
}
