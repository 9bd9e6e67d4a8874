package listing

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Kind tags a submission variant. Offers go through the address step before
// publication, requests publish directly.
type Kind string

const (
	KindOfferLongTerm Kind = "offer_long_term"
	KindOfferDaily    Kind = "offer_daily"
	KindRequest       Kind = "request"
)

// MaxPhotos is the hard cap on photos collected per offer.
const MaxPhotos = 5

func ParseKind(value string) (Kind, error) {
	switch Kind(value) {
	case KindOfferLongTerm, KindOfferDaily, KindRequest:
		return Kind(value), nil
	}
	return "", fmt.Errorf("unknown submission kind %q", value)
}

// IsOffer reports whether the kind is a rental offer of either term.
func (k Kind) IsOffer() bool {
	return k == KindOfferLongTerm || k == KindOfferDaily
}

func (k Kind) String() string {
	return string(k)
}

// Payload carries the structured form data collected by the conversation
// flow. Which fields are meaningful depends on the submission kind; Validate
// enforces the per-kind rules.
type Payload struct {
	Description    string   `json:"description"`
	Price          int64    `json:"price,omitempty"`
	Photos         []string `json:"photos,omitempty"`
	Contact        string   `json:"contact,omitempty"`
	Address        string   `json:"address,omitempty"`
	AuthorID       int64    `json:"author_id"`
	AuthorUsername string   `json:"author_username,omitempty"`
}

var validate = validator.New()

type offerRules struct {
	Description string   `validate:"required"`
	Price       int64    `validate:"gte=0"`
	Photos      []string `validate:"min=1,max=5"`
	Contact     string   `validate:"required"`
	AuthorID    int64    `validate:"required"`
}

type requestRules struct {
	Description string `validate:"required"`
	AuthorID    int64  `validate:"required"`
}

// Validate checks the payload against the rules for the given kind.
func (p Payload) Validate(kind Kind) error {
	switch kind {
	case KindOfferLongTerm, KindOfferDaily:
		return validate.Struct(offerRules{
			Description: p.Description,
			Price:       p.Price,
			Photos:      p.Photos,
			Contact:     p.Contact,
			AuthorID:    p.AuthorID,
		})
	case KindRequest:
		return validate.Struct(requestRules{
			Description: p.Description,
			AuthorID:    p.AuthorID,
		})
	}
	return fmt.Errorf("unknown submission kind %q", kind)
}

// Submission is an immutable record awaiting moderation. It is only ever
// created, read, or claimed (deleted); never mutated.
type Submission struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Payload   Payload   `json:"payload"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Listing is a finalized, published entry. One exists if and only if the
// channel post was confirmed sent.
type Listing struct {
	SubmissionID string    `json:"submission_id"`
	Kind         Kind      `json:"kind"`
	Payload      Payload   `json:"payload"`
	MessageID    int       `json:"message_id"`
	PublishedAt  time.Time `json:"published_at"`
}

// DeadLetter preserves a claimed submission whose publication failed, for
// manual operator recovery. Publication is never retried automatically.
type DeadLetter struct {
	SubmissionID string    `json:"submission_id"`
	Kind         Kind      `json:"kind"`
	Payload      Payload   `json:"payload"`
	Cause        string    `json:"cause"`
	FailedAt     time.Time `json:"failed_at"`
}
