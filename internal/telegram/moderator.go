package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/zhenevahq/zheneva/internal/store"
)

const (
	statsFormat = "📊 <b>Zheneva statistics</b>\n\n" +
		"🔵 Awaiting moderation: <b>%d</b>\n" +
		"🟢 Active listings: <b>%d</b>\n" +
		"🗓 Published today: <b>%d</b>"
	textStatsFailed   = "Failed to fetch statistics."
	textOperatorReady = "Ready to work. Waiting for an address to publish a listing."
)

// StatsSource supplies the aggregate counts for the stats command.
type StatsSource interface {
	Stats(ctx context.Context) (store.Stats, error)
}

// AddressIntake consumes free text as the address for a staged offer.
// Reports whether a staged offer existed.
type AddressIntake interface {
	HandleAddress(ctx context.Context, userID int64, text string) (bool, error)
}

// OperatorSender is the outbound capability the moderator surface uses.
type OperatorSender interface {
	NotifyUser(ctx context.Context, userID int64, text string) error
}

// Moderator routes moderator-bot updates: the operator-only stats command
// and the address intake for approved offers. Approvals and rejections go
// through the HTTP bridge, not through this surface.
type Moderator struct {
	logger *slog.Logger
	stats  StatsSource
	intake AddressIntake
	send   OperatorSender
	admin  int64
}

func NewModerator(log *slog.Logger, stats StatsSource, intake AddressIntake, send OperatorSender, adminChatID int64) *Moderator {
	if log == nil {
		log = slog.Default()
	}
	return &Moderator{
		logger: log.With(slog.String("service", "moderator")),
		stats:  stats,
		intake: intake,
		send:   send,
		admin:  adminChatID,
	}
}

func (m *Moderator) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	userID := msg.Chat.ID

	if msg.IsCommand() {
		if msg.Command() == "stats" && userID == m.admin {
			m.sendStats(ctx)
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	handled, err := m.intake.HandleAddress(ctx, userID, text)
	if err != nil {
		// The publisher already told the submitter and dead-lettered the
		// payload; nothing more to do here.
		m.logger.Error("address intake", slog.Int64("user_id", userID), slog.Any("error", err))
		return
	}
	if !handled && userID == m.admin {
		if err := m.send.NotifyUser(ctx, userID, textOperatorReady); err != nil {
			m.logger.Warn("send ready echo", slog.Any("error", err))
		}
	}
}

func (m *Moderator) sendStats(ctx context.Context) {
	stats, err := m.stats.Stats(ctx)
	if err != nil {
		m.logger.Error("fetch stats", slog.Any("error", err))
		if err := m.send.NotifyUser(ctx, m.admin, textStatsFailed); err != nil {
			m.logger.Warn("send stats failure", slog.Any("error", err))
		}
		return
	}
	text := fmt.Sprintf(statsFormat, stats.PendingCount, stats.ActiveCount, stats.TodayCount)
	if err := m.send.NotifyUser(ctx, m.admin, text); err != nil {
		m.logger.Warn("send stats", slog.Any("error", err))
	}
}
