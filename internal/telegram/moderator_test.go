package telegram

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhenevahq/zheneva/internal/store"
)

const adminChat = int64(9000)

type fakeStats struct {
	stats store.Stats
	err   error
}

func (f *fakeStats) Stats(context.Context) (store.Stats, error) {
	return f.stats, f.err
}

type intakeCall struct {
	userID int64
	text   string
}

type fakeIntake struct {
	calls   []intakeCall
	handled bool
	err     error
}

func (f *fakeIntake) HandleAddress(_ context.Context, userID int64, text string) (bool, error) {
	f.calls = append(f.calls, intakeCall{userID: userID, text: text})
	return f.handled, f.err
}

type fakeOpSender struct {
	messages map[int64][]string
}

func (f *fakeOpSender) NotifyUser(_ context.Context, userID int64, text string) error {
	if f.messages == nil {
		f.messages = map[int64][]string{}
	}
	f.messages[userID] = append(f.messages[userID], text)
	return nil
}

func moderatorUpdate(chatID int64, text string, command bool) tgbotapi.Update {
	msg := &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID},
	}
	if command {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{Message: msg}
}

func TestStatsRestrictedToOperator(t *testing.T) {
	send := &fakeOpSender{}
	mod := NewModerator(nil, &fakeStats{stats: store.Stats{PendingCount: 3, ActiveCount: 12, TodayCount: 2}},
		&fakeIntake{}, send, adminChat)

	mod.HandleUpdate(context.Background(), moderatorUpdate(12345, "/stats", true))
	assert.Empty(t, send.messages, "strangers get no reply at all")

	mod.HandleUpdate(context.Background(), moderatorUpdate(adminChat, "/stats", true))
	require.Len(t, send.messages[adminChat], 1)
	assert.Contains(t, send.messages[adminChat][0], "<b>3</b>")
	assert.Contains(t, send.messages[adminChat][0], "<b>12</b>")
	assert.Contains(t, send.messages[adminChat][0], "<b>2</b>")
}

func TestFreeTextGoesToAddressIntake(t *testing.T) {
	intake := &fakeIntake{handled: true}
	send := &fakeOpSender{}
	mod := NewModerator(nil, &fakeStats{}, intake, send, adminChat)

	mod.HandleUpdate(context.Background(), moderatorUpdate(42, " Inyzhernaya 10 ", false))

	require.Len(t, intake.calls, 1)
	assert.Equal(t, int64(42), intake.calls[0].userID)
	assert.Equal(t, "Inyzhernaya 10", intake.calls[0].text)
	assert.Empty(t, send.messages, "handled intake needs no extra reply")
}

func TestInertTextEchoesReadyToOperatorOnly(t *testing.T) {
	intake := &fakeIntake{handled: false}
	send := &fakeOpSender{}
	mod := NewModerator(nil, &fakeStats{}, intake, send, adminChat)

	mod.HandleUpdate(context.Background(), moderatorUpdate(42, "hello?", false))
	assert.Empty(t, send.messages, "random users are ignored")

	mod.HandleUpdate(context.Background(), moderatorUpdate(adminChat, "anything staged?", false))
	require.Len(t, send.messages[adminChat], 1)
	assert.Contains(t, send.messages[adminChat][0], "Ready")
}
