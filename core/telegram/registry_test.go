package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/hotelbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegisterCommand(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/lowprice", commands.Command{Handler: noop, Description: "cheap"}))
	require.NoError(t, reg.RegisterCommand("/secret", commands.Command{Handler: noop, Description: "s", Hidden: true}))

	assert.ErrorIs(t, reg.RegisterCommand("/lowprice", commands.Command{Handler: noop, Description: "again"}), ErrDuplicateRegistration)
	assert.ErrorIs(t, reg.RegisterCommand("help", commands.Command{Handler: noop, Description: "h"}), ErrInvalidRegistration)
	assert.ErrorIs(t, reg.RegisterCommand("/help", commands.Command{Description: "h"}), ErrInvalidRegistration)

	assert.Equal(t, []tele.Command{{Text: "/lowprice", Description: "cheap"}}, reg.ListCommands(true))
	assert.Len(t, reg.ListCommands(false), 2)
}

func TestLookupCommand(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/help", commands.Command{Handler: noop, Description: "h"}))

	for _, text := range []string{"/help", "help", " /help@hotel_bot", "/help me"} {
		name, _, ok := reg.LookupCommand(text)
		assert.True(t, ok, text)
		assert.Equal(t, "/help", name)
	}
	_, _, ok := reg.LookupCommand("hello")
	assert.False(t, ok)
}

func TestRegisterCallback(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("b", noop))
	require.NoError(t, reg.RegisterCallback("a", noop))
	assert.ErrorIs(t, reg.RegisterCallback("a", noop), ErrDuplicateRegistration)
	assert.ErrorIs(t, reg.RegisterCallback("", noop), ErrInvalidRegistration)

	_, ok := reg.GetCallback("a")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, reg.CallbackKeys())
}
