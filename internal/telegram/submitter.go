package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/zhenevahq/zheneva/internal/flow"
	"github.com/zhenevahq/zheneva/internal/listing"
	"github.com/zhenevahq/zheneva/internal/store"
)

const (
	textNewSubmission = "🛎️ A new submission is waiting for moderation!"
	textSubmitFailed  = "Sorry, your submission could not be saved. Please try /start again."
)

// SubmitterStore is the slice of the persistent store the submitter surface
// needs.
type SubmitterStore interface {
	GetSession(ctx context.Context, userID int64) (store.Session, error)
	PutSession(ctx context.Context, sess store.Session) error
	DeleteSession(ctx context.Context, userID int64) error
	AddSubmission(ctx context.Context, sub listing.Submission) error
}

// Sender is the outbound capability the submitter surface uses.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendMenu(ctx context.Context, chatID int64, text string, buttons [][]flow.Button) error
	EditMenu(ctx context.Context, chatID int64, messageID int, text string, buttons [][]flow.Button) error
	ClearButtons(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	NotifyAdmin(ctx context.Context, text, panelURL string) error
}

// Submitter routes submitter-bot updates through the conversation state
// machine: it loads the session, advances it, persists the outcome, and
// renders the prompts.
type Submitter struct {
	logger   *slog.Logger
	store    SubmitterStore
	gate     *flow.Gate
	send     Sender
	panelURL string
}

func NewSubmitter(log *slog.Logger, st SubmitterStore, gate *flow.Gate, send Sender, panelURL string) *Submitter {
	if log == nil {
		log = slog.Default()
	}
	return &Submitter{
		logger:   log.With(slog.String("service", "submitter")),
		store:    st,
		gate:     gate,
		send:     send,
		panelURL: panelURL,
	}
}

// callbackRef ties an event to the callback query it came from, so prompts
// can edit the originating menu and answer the query.
type callbackRef struct {
	id        string
	messageID int
}

func (s *Submitter) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		s.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		s.handleMessage(ctx, update.Message)
	}
}

func (s *Submitter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	userID := msg.Chat.ID

	if msg.IsCommand() && msg.Command() == "start" {
		remaining, err := s.gate.Check(ctx, userID)
		if err != nil {
			// Fail open: a broken cooldown lookup must not lock submitters
			// out.
			s.logger.Error("cooldown check", slog.Int64("user_id", userID), slog.Any("error", err))
			remaining = 0
		}
		if remaining > 0 {
			s.logger.Info("cooldown active",
				slog.Int64("user_id", userID), slog.Duration("remaining", remaining))
			if err := s.send.SendText(ctx, userID, flow.CooldownMessage(remaining)); err != nil {
				s.logger.Warn("send cooldown notice", slog.Any("error", err))
			}
			return
		}
		s.apply(ctx, userID, flow.Start(userID), callbackRef{})
		return
	}

	ev := flow.Event{Kind: flow.EventText, Text: msg.Text, Username: senderUsername(msg)}
	if len(msg.Photo) > 0 {
		ev = flow.Event{
			Kind:        flow.EventPhoto,
			PhotoFileID: PickLargestPhoto(msg.Photo),
			Username:    senderUsername(msg),
		}
	}
	s.advance(ctx, userID, ev, callbackRef{})
}

func (s *Submitter) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil {
		_ = s.send.AnswerCallback(ctx, cb.ID, "", false)
		return
	}
	ev := flow.Event{Kind: flow.EventCallback, Callback: cb.Data}
	if cb.From != nil {
		ev.Username = cb.From.UserName
	}
	s.advance(ctx, cb.Message.Chat.ID, ev, callbackRef{id: cb.ID, messageID: cb.Message.MessageID})
}

func (s *Submitter) advance(ctx context.Context, userID int64, ev flow.Event, ref callbackRef) {
	sess, err := s.loadSession(ctx, userID)
	if err != nil {
		s.logger.Error("load session", slog.Int64("user_id", userID), slog.Any("error", err))
		return
	}
	s.apply(ctx, userID, flow.Advance(sess, ev), ref)
}

func (s *Submitter) loadSession(ctx context.Context, userID int64) (*flow.Session, error) {
	row, err := s.store.GetSession(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &flow.Session{
		UserID: row.UserID,
		Step:   flow.Step(row.Step),
		Kind:   listing.Kind(row.Kind),
		Data:   row.Data,
	}, nil
}

func (s *Submitter) apply(ctx context.Context, userID int64, out flow.Outcome, ref callbackRef) {
	if out.Session != nil {
		err := s.store.PutSession(ctx, store.Session{
			UserID: out.Session.UserID,
			Step:   string(out.Session.Step),
			Kind:   out.Session.Kind.String(),
			Data:   out.Session.Data,
		})
		if err != nil {
			s.logger.Error("save session", slog.Int64("user_id", userID), slog.Any("error", err))
			return
		}
	}
	if out.Delete {
		if err := s.store.DeleteSession(ctx, userID); err != nil {
			s.logger.Error("delete session", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}
	if out.Finalize != nil {
		if !s.finalize(ctx, userID, out.Finalize) {
			if ref.id != "" {
				_ = s.send.AnswerCallback(ctx, ref.id, "", false)
			}
			return
		}
	}
	s.render(ctx, userID, out.Prompts, ref)
}

// finalize turns the completed form into a stored submission and pings the
// operator. Reports whether the submission was stored.
func (s *Submitter) finalize(ctx context.Context, userID int64, fin *flow.Finalize) bool {
	sub := listing.Submission{
		ID:        uuid.NewString(),
		Kind:      fin.Kind,
		Payload:   fin.Payload,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AddSubmission(ctx, sub); err != nil {
		s.logger.Error("store submission",
			slog.Int64("user_id", userID), slog.Any("error", err))
		if err := s.send.SendText(ctx, userID, textSubmitFailed); err != nil {
			s.logger.Warn("send failure notice", slog.Any("error", err))
		}
		return false
	}
	s.logger.Info("submission stored",
		slog.String("submission_id", sub.ID),
		slog.String("kind", sub.Kind.String()),
		slog.Int64("user_id", userID))
	if err := s.send.NotifyAdmin(ctx, textNewSubmission, s.panelURL); err != nil {
		s.logger.Warn("notify admin", slog.Any("error", err))
	}
	return true
}

func (s *Submitter) render(ctx context.Context, userID int64, prompts []flow.Prompt, ref callbackRef) {
	answered := false
	for _, p := range prompts {
		var err error
		switch {
		case p.Alert && ref.id != "":
			err = s.send.AnswerCallback(ctx, ref.id, p.Text, true)
			answered = true
		case p.ClearButtons && ref.messageID != 0:
			err = s.send.ClearButtons(ctx, userID, ref.messageID)
		case p.Edit && ref.messageID != 0:
			err = s.send.EditMenu(ctx, userID, ref.messageID, p.Text, p.Buttons)
		case p.Text != "":
			err = s.send.SendMenu(ctx, userID, p.Text, p.Buttons)
		}
		if err != nil {
			s.logger.Warn("render prompt", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}
	// Every callback needs an answer or the client keeps its spinner.
	if ref.id != "" && !answered {
		if err := s.send.AnswerCallback(ctx, ref.id, "", false); err != nil {
			s.logger.Warn("answer callback", slog.Any("error", err))
		}
	}
}

func senderUsername(msg *tgbotapi.Message) string {
	if msg.From == nil {
		return ""
	}
	return msg.From.UserName
}
