package telegram

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhenevahq/zheneva/internal/flow"
	"github.com/zhenevahq/zheneva/internal/listing"
	"github.com/zhenevahq/zheneva/internal/store"
)

type fakeSubStore struct {
	sessions map[int64]store.Session
	subs     []listing.Submission
}

func newFakeSubStore() *fakeSubStore {
	return &fakeSubStore{sessions: map[int64]store.Session{}}
}

func (f *fakeSubStore) GetSession(_ context.Context, userID int64) (store.Session, error) {
	sess, ok := f.sessions[userID]
	if !ok {
		return store.Session{}, store.ErrNotFound
	}
	return sess, nil
}

func (f *fakeSubStore) PutSession(_ context.Context, sess store.Session) error {
	f.sessions[sess.UserID] = sess
	return nil
}

func (f *fakeSubStore) DeleteSession(_ context.Context, userID int64) error {
	delete(f.sessions, userID)
	return nil
}

func (f *fakeSubStore) AddSubmission(_ context.Context, sub listing.Submission) error {
	f.subs = append(f.subs, sub)
	return nil
}

type sentMessage struct {
	chatID  int64
	text    string
	buttons [][]flow.Button
}

type fakeSender struct {
	sent       []sentMessage
	edits      []sentMessage
	cleared    []int
	answers    []string
	alerts     []string
	adminNotes []string
}

func (f *fakeSender) SendText(_ context.Context, chatID int64, text string) error {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeSender) SendMenu(_ context.Context, chatID int64, text string, buttons [][]flow.Button) error {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, buttons: buttons})
	return nil
}

func (f *fakeSender) EditMenu(_ context.Context, chatID int64, messageID int, text string, buttons [][]flow.Button) error {
	f.edits = append(f.edits, sentMessage{chatID: chatID, text: text, buttons: buttons})
	return nil
}

func (f *fakeSender) ClearButtons(_ context.Context, _ int64, messageID int) error {
	f.cleared = append(f.cleared, messageID)
	return nil
}

func (f *fakeSender) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	if alert {
		f.alerts = append(f.alerts, text)
		return nil
	}
	f.answers = append(f.answers, callbackID)
	return nil
}

func (f *fakeSender) NotifyAdmin(_ context.Context, text, _ string) error {
	f.adminNotes = append(f.adminNotes, text)
	return nil
}

type noHistory struct{}

func (noHistory) LastSubmissionTime(context.Context, int64) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

type recentHistory struct{}

func (recentHistory) LastSubmissionTime(context.Context, int64) (time.Time, bool, error) {
	return time.Now().Add(-time.Minute), true, nil
}

func newTestSubmitter(st *fakeSubStore, send *fakeSender, history flow.SubmissionHistory) *Submitter {
	return NewSubmitter(nil, st, flow.NewGate(history, 15*time.Minute), send, "https://zheneva.example/admin")
}

func startUpdate(chatID int64) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     "/start",
		Chat:     &tgbotapi.Chat{ID: chatID},
		From:     &tgbotapi.User{ID: chatID, UserName: "ivan"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
	}}
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID, UserName: "ivan"},
	}}
}

func callbackUpdate(chatID int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		Data: data,
		From: &tgbotapi.User{ID: chatID, UserName: "ivan"},
		Message: &tgbotapi.Message{
			MessageID: messageID,
			Chat:      &tgbotapi.Chat{ID: chatID},
		},
	}}
}

func TestStartOpensActionMenu(t *testing.T) {
	st := newFakeSubStore()
	send := &fakeSender{}
	sub := newTestSubmitter(st, send, noHistory{})

	sub.HandleUpdate(context.Background(), startUpdate(42))

	require.Len(t, send.sent, 1)
	assert.NotEmpty(t, send.sent[0].buttons)
	sess, ok := st.sessions[42]
	require.True(t, ok)
	assert.Equal(t, string(flow.StepChoosingAction), sess.Step)
}

func TestStartDuringCooldownIsRefused(t *testing.T) {
	st := newFakeSubStore()
	send := &fakeSender{}
	sub := newTestSubmitter(st, send, recentHistory{})

	sub.HandleUpdate(context.Background(), startUpdate(42))

	require.Len(t, send.sent, 1)
	assert.Contains(t, send.sent[0].text, "too often")
	assert.Empty(t, st.sessions, "no session while the cooldown holds")
}

func TestCallbackAdvancesAndIsAnswered(t *testing.T) {
	st := newFakeSubStore()
	send := &fakeSender{}
	sub := newTestSubmitter(st, send, noHistory{})

	sub.HandleUpdate(context.Background(), startUpdate(42))
	sub.HandleUpdate(context.Background(), callbackUpdate(42, 100, flow.CallbackOffer))

	sess := st.sessions[42]
	assert.Equal(t, string(flow.StepOfferType), sess.Step)
	assert.Len(t, send.answers, 1, "callback must be acknowledged")
}

func TestPhotoMessagePicksLargestVariant(t *testing.T) {
	st := newFakeSubStore()
	st.sessions[42] = store.Session{
		UserID: 42,
		Step:   string(flow.StepOfferPhotos),
		Kind:   listing.KindOfferLongTerm.String(),
		Data:   listing.Payload{Description: "d", Price: 15000},
	}
	send := &fakeSender{}
	sub := newTestSubmitter(st, send, noHistory{})

	update := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 42},
		From: &tgbotapi.User{ID: 42, UserName: "ivan"},
		Photo: []tgbotapi.PhotoSize{
			{FileID: "thumb", FileSize: 1_000, Width: 90, Height: 60},
			{FileID: "full", FileSize: 200_000, Width: 1280, Height: 960},
		},
	}}
	sub.HandleUpdate(context.Background(), update)

	require.Equal(t, []string{"full"}, st.sessions[42].Data.Photos)
	require.Len(t, send.sent, 1)
	assert.Contains(t, send.sent[0].text, "1/5")
}

func TestContactFinalizesSubmission(t *testing.T) {
	st := newFakeSubStore()
	st.sessions[42] = store.Session{
		UserID: 42,
		Step:   string(flow.StepOfferContact),
		Kind:   listing.KindOfferLongTerm.String(),
		Data: listing.Payload{
			Description: "2-room, furnished",
			Price:       15000,
			Photos:      []string{"ph-1"},
			AuthorID:    42,
		},
	}
	send := &fakeSender{}
	sub := newTestSubmitter(st, send, noHistory{})

	sub.HandleUpdate(context.Background(), textUpdate(42, "@ivan"))

	require.Len(t, st.subs, 1)
	stored := st.subs[0]
	_, err := uuid.Parse(stored.ID)
	assert.NoError(t, err)
	assert.Equal(t, listing.KindOfferLongTerm, stored.Kind)
	assert.Equal(t, "@ivan", stored.Payload.Contact)
	assert.Empty(t, st.sessions, "session is deleted at the terminal step")
	require.Len(t, send.adminNotes, 1)
	require.Len(t, send.sent, 1)
	assert.Equal(t, flow.TextThanks, send.sent[0].text)
}

func TestFinishWithoutPhotosShowsAlert(t *testing.T) {
	st := newFakeSubStore()
	st.sessions[42] = store.Session{
		UserID: 42,
		Step:   string(flow.StepOfferPhotos),
		Kind:   listing.KindOfferLongTerm.String(),
		Data:   listing.Payload{Description: "d", Price: 15000},
	}
	send := &fakeSender{}
	sub := newTestSubmitter(st, send, noHistory{})

	sub.HandleUpdate(context.Background(), callbackUpdate(42, 100, flow.CallbackPhotosDone))

	require.Len(t, send.alerts, 1)
	assert.Empty(t, st.subs)
}
