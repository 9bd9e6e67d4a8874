package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhenevahq/zheneva/internal/flow"
)

func TestPickLargestPhoto(t *testing.T) {
	assert.Empty(t, PickLargestPhoto(nil))

	byFileSize := []tgbotapi.PhotoSize{
		{FileID: "s", FileSize: 1_000, Width: 90, Height: 60},
		{FileID: "m", FileSize: 40_000, Width: 320, Height: 240},
		{FileID: "l", FileSize: 200_000, Width: 1280, Height: 960},
	}
	assert.Equal(t, "l", PickLargestPhoto(byFileSize))

	// Without file sizes fall back to dimensions.
	byDimensions := []tgbotapi.PhotoSize{
		{FileID: "a", Width: 90, Height: 60},
		{FileID: "b", Width: 1280, Height: 960},
		{FileID: "c", Width: 320, Height: 240},
	}
	assert.Equal(t, "b", PickLargestPhoto(byDimensions))
}

func TestBuildKeyboardPreservesLayout(t *testing.T) {
	keyboard := buildKeyboard([][]flow.Button{
		{{Label: "Long-term", Data: "type_long_term"}, {Label: "Daily", Data: "type_daily"}},
		{{Label: "Back", Data: "back"}},
	})
	require.Len(t, keyboard.InlineKeyboard, 2)
	require.Len(t, keyboard.InlineKeyboard[0], 2)
	require.Len(t, keyboard.InlineKeyboard[1], 1)
	assert.Equal(t, "Long-term", keyboard.InlineKeyboard[0][0].Text)
	require.NotNil(t, keyboard.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "type_daily", *keyboard.InlineKeyboard[0][1].CallbackData)
}

func TestChannelTarget(t *testing.T) {
	c := &Client{channel: "@zheneva"}
	chatID, username, err := c.channelTarget()
	require.NoError(t, err)
	assert.Equal(t, int64(0), chatID)
	assert.Equal(t, "@zheneva", username)

	c = &Client{channel: "-1001234567890"}
	chatID, username, err = c.channelTarget()
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234567890), chatID)
	assert.Empty(t, username)

	c = &Client{channel: "not-a-chat"}
	_, _, err = c.channelTarget()
	assert.Error(t, err)
}

func TestIsMessageNotModified(t *testing.T) {
	assert.False(t, isMessageNotModified(nil))
	assert.False(t, isMessageNotModified(assert.AnError))
	assert.True(t, isMessageNotModified(&tgbotapi.Error{
		Code:    400,
		Message: "Bad Request: message is not modified",
	}))
}
