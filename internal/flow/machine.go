package flow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zhenevahq/zheneva/internal/listing"
)

// Start resets the submitter to the first menu. The caller is responsible
// for the cooldown check before invoking it.
func Start(userID int64) Outcome {
	return Outcome{
		Session: &Session{UserID: userID, Step: StepChoosingAction},
		Prompts: []Prompt{{
			Text: textWelcome,
			Buttons: [][]Button{
				{{Label: buttonOffer, Data: CallbackOffer}},
				{{Label: buttonRequest, Data: CallbackRequest}},
			},
		}},
	}
}

// Advance applies one event to the submitter's session and returns the next
// state plus outbound prompts. It never touches storage or the network.
func Advance(sess *Session, ev Event) Outcome {
	if sess == nil {
		// Not in a flow. Anything but /start just points at the start
		// command; it must never create partial state.
		return Outcome{Prompts: []Prompt{{Text: textStartOver}}}
	}

	switch sess.Step {
	case StepChoosingAction:
		return advanceChoosingAction(sess, ev)
	case StepOfferType:
		return advanceOfferType(sess, ev)
	case StepOfferDescription:
		return advanceOfferDescription(sess, ev)
	case StepOfferPrice:
		return advanceOfferPrice(sess, ev)
	case StepOfferPhotos:
		return advanceOfferPhotos(sess, ev)
	case StepOfferContact:
		return advanceOfferContact(sess, ev)
	case StepRequestDescription:
		return advanceRequestDescription(sess, ev)
	}
	// Unknown persisted step: reset rather than crash.
	return Outcome{Delete: true, Prompts: []Prompt{{Text: textStartOver}}}
}

func advanceChoosingAction(sess *Session, ev Event) Outcome {
	if ev.Kind != EventCallback {
		return Outcome{Session: sess, Prompts: []Prompt{{Text: textChooseFromMenu}}}
	}
	switch ev.Callback {
	case CallbackOffer:
		next := *sess
		next.Step = StepOfferType
		return Outcome{
			Session: &next,
			Prompts: []Prompt{{
				Text: textChooseTerm,
				Edit: true,
				Buttons: [][]Button{{
					{Label: buttonLongTerm, Data: CallbackTermLongTerm},
					{Label: buttonDaily, Data: CallbackTermDaily},
				}},
			}},
		}
	case CallbackRequest:
		next := *sess
		next.Step = StepRequestDescription
		next.Kind = listing.KindRequest
		return Outcome{
			Session: &next,
			Prompts: []Prompt{{Text: textAskRequestDescription, Edit: true}},
		}
	}
	return Outcome{Session: sess}
}

func advanceOfferType(sess *Session, ev Event) Outcome {
	if ev.Kind != EventCallback {
		return Outcome{Session: sess, Prompts: []Prompt{{Text: textChooseFromMenu}}}
	}
	var kind listing.Kind
	switch ev.Callback {
	case CallbackTermLongTerm:
		kind = listing.KindOfferLongTerm
	case CallbackTermDaily:
		kind = listing.KindOfferDaily
	default:
		return Outcome{Session: sess}
	}
	next := *sess
	next.Step = StepOfferDescription
	next.Kind = kind
	return Outcome{
		Session: &next,
		Prompts: []Prompt{{Text: textAskOfferDescription, Edit: true}},
	}
}

func advanceOfferDescription(sess *Session, ev Event) Outcome {
	text := strings.TrimSpace(ev.Text)
	if ev.Kind != EventText || text == "" {
		return Outcome{Session: sess, Prompts: []Prompt{{Text: textAskOfferDescription}}}
	}
	next := *sess
	next.Step = StepOfferPrice
	next.Data.Description = text
	ask := textAskPriceMonthly
	if next.Kind == listing.KindOfferDaily {
		ask = textAskPriceNightly
	}
	return Outcome{Session: &next, Prompts: []Prompt{{Text: ask}}}
}

func advanceOfferPrice(sess *Session, ev Event) Outcome {
	price, err := parsePrice(ev.Text)
	if ev.Kind != EventText || err != nil {
		// The one validation retry loop: re-prompt, state unchanged.
		return Outcome{Session: sess, Prompts: []Prompt{{Text: textPriceInvalid}}}
	}
	next := *sess
	next.Step = StepOfferPhotos
	next.Data.Price = price
	next.Data.Photos = []string{}
	return Outcome{Session: &next, Prompts: []Prompt{{Text: textAskFirstPhoto}}}
}

func parsePrice(text string) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasPrefix(text, "-") || strings.HasPrefix(text, "+") {
		return 0, fmt.Errorf("price must be a non-negative integer")
	}
	return strconv.ParseInt(text, 10, 64)
}

func advanceOfferPhotos(sess *Session, ev Event) Outcome {
	switch ev.Kind {
	case EventPhoto:
		if len(sess.Data.Photos) >= listing.MaxPhotos {
			// Cap reached: drop the photo, only finishing remains.
			return Outcome{Session: sess, Prompts: []Prompt{{
				Text:    textPhotoLimit,
				Buttons: [][]Button{{{Label: buttonFinish, Data: CallbackPhotosDone}}},
			}}}
		}
		next := *sess
		next.Data.Photos = append(append([]string{}, sess.Data.Photos...), ev.PhotoFileID)
		count := len(next.Data.Photos)
		if count < listing.MaxPhotos {
			return Outcome{Session: &next, Prompts: []Prompt{{
				Text: fmt.Sprintf("Photo %d/%d added. Add another or finish?", count, listing.MaxPhotos),
				Buttons: [][]Button{{
					{Label: buttonAddMore, Data: CallbackAddMorePhotos},
					{Label: buttonFinish, Data: CallbackPhotosDone},
				}},
			}}}
		}
		return Outcome{Session: &next, Prompts: []Prompt{{
			Text:    textPhotoLimit,
			Buttons: [][]Button{{{Label: buttonFinish, Data: CallbackPhotosDone}}},
		}}}
	case EventCallback:
		switch ev.Callback {
		case CallbackAddMorePhotos:
			return Outcome{Session: sess, Prompts: []Prompt{
				{ClearButtons: true},
				{Text: textSendNextPhoto},
			}}
		case CallbackPhotosDone:
			if len(sess.Data.Photos) == 0 {
				// Photos are mandatory for offers.
				return Outcome{Session: sess, Prompts: []Prompt{{Text: alertNeedOnePhoto, Alert: true}}}
			}
			next := *sess
			next.Step = StepOfferContact
			return Outcome{Session: &next, Prompts: []Prompt{
				{Text: textPhotosSaved, Edit: true},
				{Text: textAskContact},
			}}
		}
		return Outcome{Session: sess}
	default:
		return Outcome{Session: sess, Prompts: []Prompt{{Text: textNeedPhoto}}}
	}
}

func advanceOfferContact(sess *Session, ev Event) Outcome {
	text := strings.TrimSpace(ev.Text)
	if ev.Kind != EventText || text == "" {
		return Outcome{Session: sess, Prompts: []Prompt{{Text: textAskContact}}}
	}
	payload := sess.Data
	payload.Contact = text
	payload.AuthorID = sess.UserID
	payload.AuthorUsername = ev.Username
	if err := payload.Validate(sess.Kind); err != nil {
		// Should not happen for a session built by this machine; start over
		// instead of persisting a broken form.
		return Outcome{Delete: true, Prompts: []Prompt{{Text: textStartOver}}}
	}
	return Outcome{
		Delete:   true,
		Finalize: &Finalize{Kind: sess.Kind, Payload: payload},
		Prompts:  []Prompt{{Text: TextThanks}},
	}
}

func advanceRequestDescription(sess *Session, ev Event) Outcome {
	text := strings.TrimSpace(ev.Text)
	if ev.Kind != EventText || text == "" {
		return Outcome{Session: sess, Prompts: []Prompt{{Text: textAskRequestDescription}}}
	}
	payload := sess.Data
	payload.Description = text
	payload.AuthorID = sess.UserID
	payload.AuthorUsername = ev.Username
	if err := payload.Validate(listing.KindRequest); err != nil {
		return Outcome{Delete: true, Prompts: []Prompt{{Text: textStartOver}}}
	}
	return Outcome{
		Delete:   true,
		Finalize: &Finalize{Kind: listing.KindRequest, Payload: payload},
		Prompts:  []Prompt{{Text: TextThanks}},
	}
}
