// Package dialog drives the per-user search conversation: one question per
// state, a validator per answer and a fixed transition table.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/m3rciful/hotelbot/core/logger"
	"github.com/m3rciful/hotelbot/core/telegram/state"
	"github.com/m3rciful/hotelbot/internal/history"
	"github.com/m3rciful/hotelbot/internal/hotelsapi"
	"github.com/m3rciful/hotelbot/internal/metrics"
	"github.com/m3rciful/hotelbot/internal/search"
	"github.com/m3rciful/hotelbot/internal/validate"
)

// Messenger is the outbound side of the transport.
type Messenger interface {
	SendText(ctx context.Context, userID int64, text string) error
	SendPhoto(ctx context.Context, userID int64, url string) error
	// PresentChoice shows text with buttons numbered 1..n.
	PresentChoice(ctx context.Context, userID int64, text string, n int) error
}

// Locator resolves a city to a destination id.
type Locator interface {
	Locations(ctx context.Context, city string) (string, error)
}

// Searcher runs a search for a completed session.
type Searcher interface {
	Search(ctx context.Context, sess *search.Session, n search.Notifier) (*search.Result, error)
}

// Deps wires an Engine.
type Deps struct {
	Messenger      Messenger
	Locator        Locator
	Searcher       Searcher
	History        history.Store
	HistoryBackend string
	Metrics        *metrics.Metrics
}

type step struct {
	prompt string
	choice int
	apply  validate.ApplyFunc
	next   func(*search.Session) search.State
}

// Engine owns the sessions of all users. Each call holds the user's lock for
// the whole turn, so a user's replies are handled one at a time.
type Engine struct {
	deps     Deps
	sessions *state.Store[search.Session]
	steps    map[search.State]step
	newID    func() string
}

// NewEngine builds an Engine with an empty session store.
func NewEngine(deps Deps) *Engine {
	if deps.HistoryBackend == "" {
		deps.HistoryBackend = "file"
	}
	return &Engine{
		deps:     deps,
		sessions: state.NewStore[search.Session](),
		steps:    transitions(),
		newID:    func() string { return uuid.NewString() },
	}
}

func transitions() map[search.State]step {
	to := func(s search.State) func(*search.Session) search.State {
		return func(*search.Session) search.State { return s }
	}
	return map[search.State]step{
		search.StateAwaitCity: {
			prompt: PromptCity,
			apply:  validate.ApplyCity,
			next:   to(search.StateAwaitHotelCount),
		},
		search.StateAwaitHotelCount: {
			prompt: PromptHotelCount,
			choice: search.MaxHotels,
			apply:  validate.ApplyHotelCount,
			next:   to(search.StateAwaitDates),
		},
		search.StateAwaitDates: {
			prompt: PromptDates,
			apply:  validate.ApplyDates,
			next:   to(search.StateAwaitPhotoPref),
		},
		search.StateAwaitPhotoPref: {
			prompt: PromptPhotoPref,
			apply:  validate.ApplyPhotoPref,
			next: func(s *search.Session) search.State {
				if s.Command == search.Bestdeal {
					return search.StateAwaitDistance
				}
				return search.StateExecuting
			},
		},
		search.StateAwaitDistance: {
			prompt: PromptDistance,
			apply:  validate.ApplyDistance,
			next:   to(search.StateAwaitPrice),
		},
		search.StateAwaitPrice: {
			prompt: PromptPrice,
			apply:  validate.ApplyPrice,
			next:   to(search.StateExecuting),
		},
	}
}

// InProgress reports whether the user has an unfinished search.
func (e *Engine) InProgress(userID int64) bool {
	return e.sessions.Has(userID)
}

// Start discards any unfinished search of the user and asks the first question.
func (e *Engine) Start(ctx context.Context, userID int64, cmd search.Command) error {
	unlock := e.sessions.Lock(userID)
	defer unlock()

	s := e.sessions.Reset(userID)
	s.SearchID = e.newID()
	s.Command = cmd
	s.State = search.StateAwaitCity

	ctx = logger.WithSearch(ctx, s.SearchID)
	logger.Dialog.LogAttrs(ctx, slog.LevelInfo, "dialog.start",
		slog.Int64("user_id", userID),
		slog.String("command", string(cmd)),
	)
	return e.ask(ctx, userID, s.State)
}

// HandleText consumes a free-text reply. It returns state.ErrNoSession when
// the user has no search in progress.
func (e *Engine) HandleText(ctx context.Context, userID int64, text string) error {
	unlock := e.sessions.Lock(userID)
	defer unlock()

	s, err := e.sessions.Get(userID)
	if err != nil {
		return err
	}
	return e.advance(logger.WithSearch(ctx, s.SearchID), userID, s, text)
}

// HandleChoice consumes a numbered button press. Presses that do not belong
// to the current question are ignored.
func (e *Engine) HandleChoice(ctx context.Context, userID int64, n int) error {
	unlock := e.sessions.Lock(userID)
	defer unlock()

	s, err := e.sessions.Get(userID)
	if err != nil {
		return err
	}
	ctx = logger.WithSearch(ctx, s.SearchID)
	if s.State != search.StateAwaitHotelCount {
		logger.Dialog.LogAttrs(ctx, slog.LevelDebug, "dialog.stale_choice",
			slog.Int64("user_id", userID),
			slog.String("state", string(s.State)),
			slog.Int("choice", n),
		)
		return nil
	}
	return e.advance(ctx, userID, s, strconv.Itoa(n))
}

func (e *Engine) advance(ctx context.Context, userID int64, s *search.Session, raw string) error {
	st, ok := e.steps[s.State]
	if !ok {
		logger.Dialog.LogAttrs(ctx, slog.LevelDebug, "dialog.ignored",
			slog.Int64("user_id", userID),
			slog.String("state", string(s.State)),
		)
		return nil
	}

	if err := st.apply(raw, s); err != nil {
		e.deps.Metrics.ObserveReprompt(string(s.State))
		logger.Dialog.LogAttrs(ctx, slog.LevelDebug, "dialog.reprompt",
			slog.Int64("user_id", userID),
			slog.String("state", string(s.State)),
			slog.String("err", err.Error()),
		)
		if err := e.deps.Messenger.SendText(ctx, userID, MsgInvalidInput); err != nil {
			return err
		}
		return e.ask(ctx, userID, s.State)
	}

	if s.State == search.StateAwaitCity {
		if done := e.resolveCity(ctx, userID, s); done {
			return nil
		}
	}

	next := st.next(s)
	logger.Dialog.LogAttrs(ctx, slog.LevelDebug, "dialog.advance",
		slog.Int64("user_id", userID),
		slog.String("state", string(s.State)),
		slog.String("next_state", string(next)),
	)
	s.State = next
	if next == search.StateExecuting {
		return e.execute(ctx, userID, s)
	}
	return e.ask(ctx, userID, next)
}

// resolveCity looks up the destination id. A failed lookup ends the
// conversation; done reports that the session was cleared.
func (e *Engine) resolveCity(ctx context.Context, userID int64, s *search.Session) (done bool) {
	id, err := e.deps.Locator.Locations(ctx, s.City)
	if err == nil {
		s.DestinationID = id
		return false
	}

	msg := MsgCityLookupFailed
	if errors.Is(err, hotelsapi.ErrNotFound) {
		msg = MsgCityNotFound
	}
	logger.Dialog.LogAttrs(ctx, slog.LevelWarn, "dialog.city_failed",
		slog.Int64("user_id", userID),
		slog.String("city", s.City),
		slog.String("err", err.Error()),
	)
	e.sessions.Clear(userID)
	if sendErr := e.deps.Messenger.SendText(ctx, userID, msg); sendErr != nil {
		logger.Dialog.LogAttrs(ctx, slog.LevelWarn, "dialog.send_failed",
			slog.Int64("user_id", userID),
			slog.String("err", sendErr.Error()),
		)
	}
	return true
}

func (e *Engine) ask(ctx context.Context, userID int64, st search.State) error {
	def, ok := e.steps[st]
	if !ok {
		return fmt.Errorf("dialog: no prompt for state %q", st)
	}
	if def.choice > 0 {
		return e.deps.Messenger.PresentChoice(ctx, userID, def.prompt, def.choice)
	}
	return e.deps.Messenger.SendText(ctx, userID, def.prompt)
}

// execute runs the search, renders it and records it. The session is cleared
// on every path out of here.
func (e *Engine) execute(ctx context.Context, userID int64, s *search.Session) error {
	defer e.sessions.Clear(userID)

	if err := e.deps.Messenger.SendText(ctx, userID, MsgSearching); err != nil {
		return err
	}

	notifier := search.NotifierFunc(func(ctx context.Context, text string) {
		if err := e.deps.Messenger.SendText(ctx, userID, text); err != nil {
			logger.Dialog.LogAttrs(ctx, slog.LevelWarn, "dialog.notify_failed",
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
		}
	})

	res, err := e.deps.Searcher.Search(ctx, s, notifier)
	if err != nil {
		e.deps.Metrics.ObserveSearch(string(s.Command), "error", 0)
		logger.Search.LogAttrs(ctx, slog.LevelError, "search.failed",
			slog.Int64("user_id", userID),
			slog.String("command", string(s.Command)),
			slog.String("err", err.Error()),
		)
		s.State = search.StateDone
		return e.deps.Messenger.SendText(ctx, userID, MsgSearchFailed)
	}

	outcome := "ok"
	if len(res.Hotels) == 0 {
		outcome = "empty"
	}
	e.deps.Metrics.ObserveSearch(string(s.Command), outcome, len(res.Hotels))
	logger.Search.LogAttrs(ctx, slog.LevelInfo, "search.done",
		slog.Int64("user_id", userID),
		slog.String("command", string(s.Command)),
		slog.Int("hotels", len(res.Hotels)),
	)

	renderErr := e.renderResult(ctx, userID, s, res)

	if e.deps.History != nil {
		herr := e.deps.History.Append(ctx, userID, history.NewRecord(s, res))
		e.deps.Metrics.ObserveHistory(e.deps.HistoryBackend, herr)
		if herr != nil {
			logger.History.LogAttrs(ctx, slog.LevelError, "history.append_failed",
				slog.Int64("user_id", userID),
				slog.String("backend", e.deps.HistoryBackend),
				slog.String("err", herr.Error()),
			)
		}
	}

	s.State = search.StateDone
	return renderErr
}

func (e *Engine) renderResult(ctx context.Context, userID int64, s *search.Session, res *search.Result) error {
	if err := e.deps.Messenger.SendText(ctx, userID, ResultsHeader(s.DatesText, res.CityLabel)); err != nil {
		return err
	}
	if len(res.Hotels) == 0 {
		return e.deps.Messenger.SendText(ctx, userID, MsgNothingFound)
	}
	return e.sendHotels(ctx, userID, res.Hotels)
}

func (e *Engine) sendHotels(ctx context.Context, userID int64, hotels []search.Hotel) error {
	for _, h := range hotels {
		if err := e.deps.Messenger.SendText(ctx, userID, HotelCard(h)); err != nil {
			return err
		}
		for _, url := range h.Photos {
			if err := e.deps.Messenger.SendPhoto(ctx, userID, url); err != nil {
				logger.Dialog.LogAttrs(ctx, slog.LevelWarn, "dialog.photo_failed",
					slog.Int64("user_id", userID),
					slog.Int64("hotel_id", h.ID),
					slog.String("err", err.Error()),
				)
			}
		}
	}
	return nil
}

// ShowHistory sends the user's stored searches, oldest first.
func (e *Engine) ShowHistory(ctx context.Context, userID int64) error {
	if e.deps.History == nil {
		return e.deps.Messenger.SendText(ctx, userID, MsgNoHistory)
	}
	entries, err := e.deps.History.List(ctx, userID)
	switch {
	case errors.Is(err, history.ErrEmpty):
		return e.deps.Messenger.SendText(ctx, userID, MsgNoHistory)
	case err != nil:
		logger.History.LogAttrs(ctx, slog.LevelError, "history.list_failed",
			slog.Int64("user_id", userID),
			slog.String("backend", e.deps.HistoryBackend),
			slog.String("err", err.Error()),
		)
		return e.deps.Messenger.SendText(ctx, userID, MsgHistoryFailed)
	}

	if err := e.deps.Messenger.SendText(ctx, userID, MsgHistoryTitle); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := e.deps.Messenger.SendText(ctx, userID, HistoryHeader(entry)); err != nil {
			return err
		}
		if err := e.sendHotels(ctx, userID, entry.Record.Hotels); err != nil {
			return err
		}
	}
	return nil
}
