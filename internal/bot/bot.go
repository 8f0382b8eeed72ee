// Package bot binds the search dialog to Telegram commands, callbacks and
// free-text replies.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/hotelbot/core/logger"
	tg "github.com/m3rciful/hotelbot/core/telegram"
	"github.com/m3rciful/hotelbot/core/telegram/callbacks"
	"github.com/m3rciful/hotelbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/hotelbot/core/telegram/helpers"
	"github.com/m3rciful/hotelbot/core/telegram/router"
	"github.com/m3rciful/hotelbot/core/telegram/state"
	"github.com/m3rciful/hotelbot/internal/search"

	tele "gopkg.in/telebot.v4"
)

// Dialog is the conversation engine driven by the bot.
type Dialog interface {
	InProgress(userID int64) bool
	Start(ctx context.Context, userID int64, cmd search.Command) error
	HandleText(ctx context.Context, userID int64, text string) error
	HandleChoice(ctx context.Context, userID int64, n int) error
	ShowHistory(ctx context.Context, userID int64) error
}

const (
	msgUnknown      = "I don't understand you. Type /help to see what I can do."
	msgNeedText     = "Please reply with text."
	msgBadChoice    = "Please pick one of the buttons."
	greetingFmt     = "Hi, %s! I'm a hotel search bot.\nType /help to see what I can do."
	helpTitle       = "Here is what I can do:"
	defaultUserName = "traveller"
)

var greetings = map[string]struct{}{
	"hi":     {},
	"hello":  {},
	"привет": {},
}

// Module registers the bot's commands and callbacks and exposes its routes.
type Module struct {
	dialog Dialog
	reg    *tg.Registry
}

// New registers every command and callback of the bot on reg.
func New(d Dialog, reg *tg.Registry) (*Module, error) {
	m := &Module{dialog: d, reg: reg}

	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: m.handleStart, Description: "Start the bot"}},
		{"/help", commands.Command{Handler: m.handleHelp, Description: "List commands"}},
		{"/lowprice", commands.Command{Handler: m.startSearch(search.Lowprice), Description: "Cheapest hotels in a city"}},
		{"/highprice", commands.Command{Handler: m.startSearch(search.Highprice), Description: "Most expensive hotels in a city"}},
		{"/bestdeal", commands.Command{Handler: m.startSearch(search.Bestdeal), Description: "Best price and distance from the center"}},
		{"/history", commands.Command{Handler: m.handleHistory, Description: "Your last searches"}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return nil, fmt.Errorf("bot: %w", err)
		}
	}
	if err := reg.RegisterCallback(CallbackHotelsCount, m.handleHotelsCount); err != nil {
		return nil, fmt.Errorf("bot: %w", err)
	}
	reg.SetTextFallback(m.handleUnknownText)
	return m, nil
}

// Routes returns the command, callback and text routes.
func (m *Module) Routes() []tg.Route {
	routes := router.CommandRoutes(m.reg)
	routes = append(routes, router.CallbackRoute(m.reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(conversation{m}, m.reg, router.TextOptions{
		UnknownDocument: func(c tele.Context) error { return tghelpers.SendText(c, msgNeedText) },
	})...)
	return routes
}

// conversation lets the text router hand replies to the dialog.
type conversation struct{ m *Module }

func (a conversation) InProgress(userID int64) bool { return a.m.dialog.InProgress(userID) }

func (a conversation) HandleReply(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	err := a.m.dialog.HandleText(ctx, c.Sender().ID, c.Text())
	if errors.Is(err, state.ErrNoSession) {
		// finished between the InProgress check and the lock
		return a.m.handleUnknownText(c)
	}
	return err
}

func (m *Module) startSearch(cmd search.Command) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Sender() == nil {
			return nil
		}
		return m.dialog.Start(tghelpers.BuildContext(c), c.Sender().ID, cmd)
	}
}

func (m *Module) handleStart(c tele.Context) error {
	name := defaultUserName
	if u := c.Sender(); u != nil && u.FirstName != "" {
		name = u.FirstName
	}
	return tghelpers.SendText(c, fmt.Sprintf(greetingFmt, name))
}

func (m *Module) handleHelp(c tele.Context) error {
	return tghelpers.SendText(c, HelpText(m.reg))
}

func (m *Module) handleHistory(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	return m.dialog.ShowHistory(tghelpers.BuildContext(c), c.Sender().ID)
}

func (m *Module) handleHotelsCount(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	n, err := callbacks.PayloadInt(c)
	if err != nil {
		logger.TG.LogAttrs(ctx, slog.LevelWarn, "callback.bad_payload",
			slog.String("cb_key", CallbackHotelsCount),
			slog.String("payload", callbacks.Payload(c)),
		)
		return tghelpers.SendText(c, msgBadChoice)
	}
	if !m.dialog.InProgress(c.Sender().ID) {
		return nil
	}
	err = m.dialog.HandleChoice(ctx, c.Sender().ID, n)
	if errors.Is(err, state.ErrNoSession) {
		return nil
	}
	return err
}

func (m *Module) handleUnknownText(c tele.Context) error {
	if IsGreeting(c.Text()) {
		return m.handleStart(c)
	}
	return tghelpers.SendText(c, msgUnknown)
}

// IsGreeting reports whether text is one of the greetings answered like /start.
func IsGreeting(text string) bool {
	_, ok := greetings[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// HelpText lists the visible commands of reg, one per line.
func HelpText(reg *tg.Registry) string {
	var b strings.Builder
	b.WriteString(helpTitle)
	for _, cmd := range reg.ListCommands(true) {
		b.WriteString("\n")
		b.WriteString(cmd.Text)
		b.WriteString(" - ")
		b.WriteString(cmd.Description)
	}
	return b.String()
}
