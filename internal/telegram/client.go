package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/zhenevahq/zheneva/internal/config"
	"github.com/zhenevahq/zheneva/internal/flow"
)

// Bot API caps file downloads at 20 MB.
const maxPhotoBytes = 20 << 20

// Client owns the two bot handles for the process lifetime. The submitter
// bot collects forms and serves photo downloads; the moderator bot talks to
// the operator and posts to the public channel. Photos arriving on the
// submitter bot are file references scoped to that bot, so publication
// re-uploads the bytes through the moderator bot.
type Client struct {
	logger    *slog.Logger
	submitter *tgbotapi.BotAPI
	moderator *tgbotapi.BotAPI
	channel   string
	admin     int64
	http      *http.Client
}

func NewClient(log *slog.Logger, cfg config.TelegramConfig) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	logger := log.With(slog.String("service", "telegram"))
	_ = tgbotapi.SetLogger(&slogBotLogger{log: logger})

	submitter, err := tgbotapi.NewBotAPI(cfg.SubmitterToken)
	if err != nil {
		return nil, fmt.Errorf("create submitter bot: %w", err)
	}
	moderator, err := tgbotapi.NewBotAPI(cfg.ModeratorToken)
	if err != nil {
		return nil, fmt.Errorf("create moderator bot: %w", err)
	}
	logger.Info("bots connected",
		slog.String("submitter", submitter.Self.UserName),
		slog.String("moderator", moderator.Self.UserName))
	return &Client{
		logger:    logger,
		submitter: submitter,
		moderator: moderator,
		channel:   strings.TrimSpace(cfg.Channel),
		admin:     cfg.AdminChatID,
		http:      &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Submitter exposes the submitter bot handle for its poller.
func (c *Client) Submitter() *tgbotapi.BotAPI { return c.submitter }

// Moderator exposes the moderator bot handle for its poller.
func (c *Client) Moderator() *tgbotapi.BotAPI { return c.moderator }

// SendText sends a plain HTML-mode message from the submitter bot.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	return c.SendMenu(ctx, chatID, text, nil)
}

// SendMenu sends a message with an optional inline keyboard from the
// submitter bot.
func (c *Client) SendMenu(_ context.Context, chatID int64, text string, buttons [][]flow.Button) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = buildKeyboard(buttons)
	}
	if _, err := c.submitter.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// EditMenu replaces the text and keyboard of an existing menu message.
func (c *Client) EditMenu(_ context.Context, chatID int64, messageID int, text string, buttons [][]flow.Button) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		keyboard := buildKeyboard(buttons)
		edit.ReplyMarkup = &keyboard
	}
	if _, err := c.submitter.Send(edit); err != nil && !isMessageNotModified(err) {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// ClearButtons strips the inline keyboard from a menu message so a spent
// choice cannot be pressed again.
func (c *Client) ClearButtons(_ context.Context, chatID int64, messageID int) error {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := c.submitter.Send(edit); err != nil && !isMessageNotModified(err) {
		return fmt.Errorf("clear buttons: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges a callback query, optionally as a popup alert.
func (c *Client) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	answer := tgbotapi.NewCallback(callbackID, text)
	answer.ShowAlert = alert
	if _, err := c.submitter.Request(answer); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// NotifyUser delivers a message to a submitter from the moderator bot. The
// address step and the moderation outcomes all run through this bot.
func (c *Client) NotifyUser(_ context.Context, userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := c.moderator.Send(msg); err != nil {
		return fmt.Errorf("notify user %d: %w", userID, err)
	}
	return nil
}

// NotifyAdmin pings the operator chat, with a URL button when panelURL is
// set.
func (c *Client) NotifyAdmin(_ context.Context, text, panelURL string) error {
	msg := tgbotapi.NewMessage(c.admin, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if panelURL != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("Open admin panel", panelURL)))
	}
	if _, err := c.moderator.Send(msg); err != nil {
		return fmt.Errorf("notify admin: %w", err)
	}
	return nil
}

// DownloadPhoto fetches photo bytes through the submitter bot.
func (c *Client) DownloadPhoto(ctx context.Context, fileID string) ([]byte, error) {
	downloadURL, err := c.submitter.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download photo: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("download photo status: %d", resp.StatusCode)
	}
	content, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	if len(content) > maxPhotoBytes {
		return nil, fmt.Errorf("photo exceeds %d bytes", maxPhotoBytes)
	}
	return content, nil
}

// PostText posts a text-only listing to the channel and returns the message
// id.
func (c *Client) PostText(_ context.Context, text string) (int, error) {
	chatID, username, err := c.channelTarget()
	if err != nil {
		return 0, err
	}
	var msg tgbotapi.MessageConfig
	if username != "" {
		msg = tgbotapi.NewMessageToChannel(username, text)
	} else {
		msg = tgbotapi.NewMessage(chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	sent, err := c.moderator.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("post text: %w", err)
	}
	return sent.MessageID, nil
}

// PostPhoto posts a single captioned photo to the channel.
func (c *Client) PostPhoto(_ context.Context, photo []byte, caption string) (int, error) {
	chatID, username, err := c.channelTarget()
	if err != nil {
		return 0, err
	}
	file := tgbotapi.FileBytes{Name: "photo.jpg", Bytes: photo}
	var cfg tgbotapi.PhotoConfig
	if username != "" {
		cfg = tgbotapi.NewPhotoToChannel(username, file)
	} else {
		cfg = tgbotapi.NewPhoto(chatID, file)
	}
	cfg.Caption = caption
	cfg.ParseMode = tgbotapi.ModeHTML
	sent, err := c.moderator.Send(cfg)
	if err != nil {
		return 0, fmt.Errorf("post photo: %w", err)
	}
	return sent.MessageID, nil
}

// PostAlbum posts an ordered media group; the caption rides on the first
// photo only, which is how channel clients render album captions.
func (c *Client) PostAlbum(_ context.Context, photos [][]byte, caption string) (int, error) {
	chatID, username, err := c.channelTarget()
	if err != nil {
		return 0, err
	}
	media := make([]interface{}, 0, len(photos))
	for i, content := range photos {
		photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FileBytes{
			Name:  fmt.Sprintf("photo-%d.jpg", i+1),
			Bytes: content,
		})
		if i == 0 {
			photo.Caption = caption
			photo.ParseMode = tgbotapi.ModeHTML
		}
		media = append(media, photo)
	}
	group := tgbotapi.MediaGroupConfig{ChatID: chatID, ChannelUsername: username, Media: media}
	sent, err := c.moderator.SendMediaGroup(group)
	if err != nil {
		return 0, fmt.Errorf("post album: %w", err)
	}
	if len(sent) == 0 {
		return 0, fmt.Errorf("post album: no messages returned")
	}
	return sent[0].MessageID, nil
}

func (c *Client) channelTarget() (int64, string, error) {
	if strings.HasPrefix(c.channel, "@") {
		return 0, c.channel, nil
	}
	chatID, err := strconv.ParseInt(c.channel, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("channel must be @name or a chat id")
	}
	return chatID, "", nil
}

func buildKeyboard(buttons [][]flow.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		cells := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			cells = append(cells, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		rows = append(rows, cells)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// PickLargestPhoto selects the best file reference from the size variants
// Telegram attaches to a photo message.
func PickLargestPhoto(items []tgbotapi.PhotoSize) string {
	if len(items) == 0 {
		return ""
	}
	best := items[0]
	for _, item := range items[1:] {
		if item.FileSize > best.FileSize {
			best = item
			continue
		}
		if item.Width*item.Height > best.Width*best.Height {
			best = item
		}
	}
	return best.FileID
}

func isMessageNotModified(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 400 && strings.Contains(apiErr.Message, "message is not modified")
	}
	return false
}

// slogBotLogger routes the library's internal logging into slog.
type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...interface{}) {
	l.log.Debug(fmt.Sprint(v...))
}

func (l *slogBotLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...))
}
