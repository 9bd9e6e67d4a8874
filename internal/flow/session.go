package flow

import (
	"github.com/zhenevahq/zheneva/internal/listing"
)

// Step enumerates the submitter's position in the conversation. Absence of a
// session is the idle state.
type Step string

const (
	StepChoosingAction     Step = "choosing_action"
	StepOfferType          Step = "offer_type"
	StepOfferDescription   Step = "offer_description"
	StepOfferPrice         Step = "offer_price"
	StepOfferPhotos        Step = "offer_photos"
	StepOfferContact       Step = "offer_contact"
	StepRequestDescription Step = "request_description"
)

// Session is the in-flight form for one submitter.
type Session struct {
	UserID int64
	Step   Step
	Kind   listing.Kind
	Data   listing.Payload
}

// EventKind classifies an incoming chat event.
type EventKind string

const (
	EventStart    EventKind = "start"
	EventText     EventKind = "text"
	EventPhoto    EventKind = "photo"
	EventCallback EventKind = "callback"
)

// Callback data values used by the inline menus.
const (
	CallbackOffer         = "action_offer"
	CallbackRequest       = "action_request"
	CallbackTermLongTerm  = "type_long_term"
	CallbackTermDaily     = "type_daily"
	CallbackAddMorePhotos = "add_more_photos"
	CallbackPhotosDone    = "photos_done"
)

// Event is one incoming submitter action, already reduced to what the state
// machine needs.
type Event struct {
	Kind EventKind
	// Text carries message text for EventText.
	Text string
	// PhotoFileID is the largest-resolution file reference for EventPhoto.
	PhotoFileID string
	// Callback is the menu choice data for EventCallback.
	Callback string
	// Username is the sender's public handle, recorded at terminal steps.
	Username string
}

// Button is one inline menu choice.
type Button struct {
	Label string
	Data  string
}

// Prompt is one outbound reaction to an event.
type Prompt struct {
	Text    string
	Buttons [][]Button
	// Edit replaces the menu message the triggering callback came from
	// instead of sending a new message.
	Edit bool
	// ClearButtons strips the inline keyboard from the triggering menu
	// message.
	ClearButtons bool
	// Alert answers the triggering callback with a popup warning.
	Alert bool
}

// Finalize is emitted when a terminal step completes: the collected form is
// ready to become a Submission.
type Finalize struct {
	Kind    listing.Kind
	Payload listing.Payload
}

// Outcome is the result of one transition: the next session state (or its
// deletion), outbound prompts, and at most one finalized form. The machine
// itself performs no I/O.
type Outcome struct {
	Session  *Session
	Delete   bool
	Prompts  []Prompt
	Finalize *Finalize
}
