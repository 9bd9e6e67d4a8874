package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhenevahq/zheneva/internal/listing"
)

func step(t *testing.T, sess *Session, ev Event) Outcome {
	t.Helper()
	out := Advance(sess, ev)
	return out
}

func TestOfferFlowEndToEnd(t *testing.T) {
	const userID int64 = 42

	out := Start(userID)
	require.NotNil(t, out.Session)
	assert.Equal(t, StepChoosingAction, out.Session.Step)
	require.Len(t, out.Prompts, 1)
	assert.Len(t, out.Prompts[0].Buttons, 2)

	out = step(t, out.Session, Event{Kind: EventCallback, Callback: CallbackOffer})
	require.NotNil(t, out.Session)
	assert.Equal(t, StepOfferType, out.Session.Step)
	assert.True(t, out.Prompts[0].Edit)

	out = step(t, out.Session, Event{Kind: EventCallback, Callback: CallbackTermLongTerm})
	require.NotNil(t, out.Session)
	assert.Equal(t, StepOfferDescription, out.Session.Step)
	assert.Equal(t, listing.KindOfferLongTerm, out.Session.Kind)

	out = step(t, out.Session, Event{Kind: EventText, Text: "2-room, furnished"})
	require.NotNil(t, out.Session)
	assert.Equal(t, StepOfferPrice, out.Session.Step)
	assert.Contains(t, out.Prompts[0].Text, "per month")

	out = step(t, out.Session, Event{Kind: EventText, Text: "15000"})
	require.NotNil(t, out.Session)
	assert.Equal(t, StepOfferPhotos, out.Session.Step)
	assert.Equal(t, int64(15000), out.Session.Data.Price)
	require.NotNil(t, out.Session.Data.Photos)
	assert.Empty(t, out.Session.Data.Photos)

	out = step(t, out.Session, Event{Kind: EventPhoto, PhotoFileID: "photo-1"})
	require.NotNil(t, out.Session)
	assert.Equal(t, []string{"photo-1"}, out.Session.Data.Photos)

	out = step(t, out.Session, Event{Kind: EventCallback, Callback: CallbackPhotosDone})
	require.NotNil(t, out.Session)
	assert.Equal(t, StepOfferContact, out.Session.Step)

	out = step(t, out.Session, Event{Kind: EventText, Text: "@ivan", Username: "ivan"})
	assert.True(t, out.Delete)
	require.NotNil(t, out.Finalize)
	assert.Equal(t, listing.KindOfferLongTerm, out.Finalize.Kind)
	assert.Equal(t, "2-room, furnished", out.Finalize.Payload.Description)
	assert.Equal(t, int64(15000), out.Finalize.Payload.Price)
	assert.Len(t, out.Finalize.Payload.Photos, 1)
	assert.Equal(t, "@ivan", out.Finalize.Payload.Contact)
	assert.Equal(t, userID, out.Finalize.Payload.AuthorID)
	assert.Equal(t, "ivan", out.Finalize.Payload.AuthorUsername)
}

func TestRequestFlow(t *testing.T) {
	out := Start(7)
	out = step(t, out.Session, Event{Kind: EventCallback, Callback: CallbackRequest})
	require.NotNil(t, out.Session)
	assert.Equal(t, StepRequestDescription, out.Session.Step)

	out = step(t, out.Session, Event{Kind: EventText, Text: "Looking for 1-room near center, budget 10000", Username: "anna"})
	assert.True(t, out.Delete)
	require.NotNil(t, out.Finalize)
	assert.Equal(t, listing.KindRequest, out.Finalize.Kind)
	assert.Equal(t, int64(7), out.Finalize.Payload.AuthorID)
	assert.Empty(t, out.Finalize.Payload.Photos)
}

func TestPriceValidationRetryLoop(t *testing.T) {
	sess := &Session{UserID: 1, Step: StepOfferPrice, Kind: listing.KindOfferDaily,
		Data: listing.Payload{Description: "studio"}}

	for _, bad := range []string{"abc", "-5", "12.50", "", "15 000"} {
		out := Advance(sess, Event{Kind: EventText, Text: bad})
		require.NotNil(t, out.Session, "input %q", bad)
		assert.Equal(t, StepOfferPrice, out.Session.Step, "input %q", bad)
		assert.Equal(t, int64(0), out.Session.Data.Price, "input %q", bad)
	}

	out := Advance(sess, Event{Kind: EventText, Text: "900"})
	require.NotNil(t, out.Session)
	assert.Equal(t, StepOfferPhotos, out.Session.Step)
	assert.Equal(t, int64(900), out.Session.Data.Price)
}

func TestPhotoCap(t *testing.T) {
	sess := &Session{UserID: 1, Step: StepOfferPhotos, Kind: listing.KindOfferLongTerm,
		Data: listing.Payload{Description: "d", Photos: []string{}}}

	for i := 0; i < 8; i++ {
		out := Advance(sess, Event{Kind: EventPhoto, PhotoFileID: "p"})
		require.NotNil(t, out.Session)
		sess = out.Session
	}
	assert.Len(t, sess.Data.Photos, listing.MaxPhotos)
}

func TestFinishWithoutPhotosIsRefused(t *testing.T) {
	sess := &Session{UserID: 1, Step: StepOfferPhotos, Kind: listing.KindOfferLongTerm,
		Data: listing.Payload{Description: "d", Photos: []string{}}}

	out := Advance(sess, Event{Kind: EventCallback, Callback: CallbackPhotosDone})
	require.NotNil(t, out.Session)
	assert.Equal(t, StepOfferPhotos, out.Session.Step)
	require.Len(t, out.Prompts, 1)
	assert.True(t, out.Prompts[0].Alert)
}

func TestNonPhotoInputDuringPhotoStep(t *testing.T) {
	sess := &Session{UserID: 1, Step: StepOfferPhotos, Kind: listing.KindOfferLongTerm,
		Data: listing.Payload{Photos: []string{"p1"}}}

	out := Advance(sess, Event{Kind: EventText, Text: "here you go"})
	require.NotNil(t, out.Session)
	assert.Equal(t, []string{"p1"}, out.Session.Data.Photos)
	require.Len(t, out.Prompts, 1)
	assert.Equal(t, textNeedPhoto, out.Prompts[0].Text)
}

func TestEventWithoutSession(t *testing.T) {
	out := Advance(nil, Event{Kind: EventText, Text: "hello"})
	assert.Nil(t, out.Session)
	assert.False(t, out.Delete)
	assert.Nil(t, out.Finalize)
	require.Len(t, out.Prompts, 1)
	assert.Equal(t, textStartOver, out.Prompts[0].Text)
}
