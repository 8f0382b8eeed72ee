package bot

import (
	"context"
	"strconv"

	"github.com/m3rciful/hotelbot/core/telegram/keyboard"
	"github.com/m3rciful/hotelbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// CallbackHotelsCount is the callback key of the hotel count buttons.
const CallbackHotelsCount = "hotels_count"

const choicesPerRow = 3

// Sender is the part of *tele.Bot the messenger needs.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Messenger delivers dialog output to a private chat. Calls are synchronous
// so a user sees messages in the order the dialog produced them.
type Messenger struct {
	bot  Sender
	disp *sender.Dispatcher
}

// NewMessenger wraps bot; disp may be nil, in which case calls are not retried.
func NewMessenger(bot Sender, disp *sender.Dispatcher) *Messenger {
	return &Messenger{bot: bot, disp: disp}
}

func (m *Messenger) do(ctx context.Context, action, endpoint string, run func() error) error {
	if m.disp == nil {
		return run()
	}
	return m.disp.Do(ctx, action, endpoint, run)
}

// SendText sends plain text without parse mode; hotel names may contain markup characters.
func (m *Messenger) SendText(ctx context.Context, userID int64, text string) error {
	return m.do(ctx, "send.text", "sendMessage", func() error {
		_, err := m.bot.Send(tele.ChatID(userID), text, tele.NoPreview)
		return err
	})
}

// SendPhoto sends a photo by URL; Telegram fetches it.
func (m *Messenger) SendPhoto(ctx context.Context, userID int64, url string) error {
	return m.do(ctx, "send.photo", "sendPhoto", func() error {
		_, err := m.bot.Send(tele.ChatID(userID), &tele.Photo{File: tele.FromURL(url)})
		return err
	})
}

// PresentChoice sends text with inline buttons 1..n, three per row.
func (m *Messenger) PresentChoice(ctx context.Context, userID int64, text string, n int) error {
	markup := ChoiceMarkup(n)
	return m.do(ctx, "send.choice", "sendMessage", func() error {
		_, err := m.bot.Send(tele.ChatID(userID), text, &tele.SendOptions{ReplyMarkup: markup})
		return err
	})
}

// ChoiceMarkup builds the numbered hotel count keyboard.
func ChoiceMarkup(n int) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, n)
	for i := 1; i <= n; i++ {
		label := strconv.Itoa(i)
		buttons = append(buttons, keyboard.InlineBtn{Text: label, Unique: CallbackHotelsCount, Data: label})
	}
	return keyboard.InlineButtonsNPerRow(buttons, choicesPerRow)
}
