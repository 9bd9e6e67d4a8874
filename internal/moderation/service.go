package moderation

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/zhenevahq/zheneva/internal/listing"
	"github.com/zhenevahq/zheneva/internal/store"
)

const (
	textApprovedNeedAddress = "🎉 Your listing was approved! One last step: please send the exact " +
		"address of the property (city, street, building) so we can put it on the map."
	textRejectedFormat = "Unfortunately, your listing was rejected by the moderator.\n\n<i>Reason: %s</i>"
)

// Store is the slice of the persistent store the pipeline needs. Claims are
// atomic read-then-deletes: the row's disappearance is the concurrency guard
// between the chat and HTTP trigger surfaces.
type Store interface {
	ClaimForApproval(ctx context.Context, id string) (listing.Submission, error)
	ClaimSubmission(ctx context.Context, id string) (listing.Submission, error)
	TakePendingPublication(ctx context.Context, userID int64) (listing.Submission, error)
}

// Publisher hands an approved submission to the publication engine.
type Publisher interface {
	Publish(ctx context.Context, sub listing.Submission) error
}

// SubmitterNotifier delivers a message to the submitter, best effort.
type SubmitterNotifier interface {
	NotifyUser(ctx context.Context, userID int64, text string) error
}

// Service moves submissions through moderation. Both the moderator chat and
// the admin HTTP bridge call these same operations.
type Service struct {
	logger    *slog.Logger
	store     Store
	publisher Publisher
	notify    SubmitterNotifier
}

func NewService(log *slog.Logger, st Store, publisher Publisher, notify SubmitterNotifier) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		logger:    log.With(slog.String("service", "moderation")),
		store:     st,
		publisher: publisher,
		notify:    notify,
	}
}

// Approve claims the submission. Offers are staged for the address step;
// requests are published immediately. A second approval (or a rejection) of
// the same id finds no row and gets store.ErrNotFound.
func (s *Service) Approve(ctx context.Context, id string) error {
	sub, err := s.store.ClaimForApproval(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("approve: submission not found", slog.String("submission_id", id))
		}
		return fmt.Errorf("approve %s: %w", id, err)
	}
	s.logger.Info("submission approved",
		slog.String("submission_id", id),
		slog.String("kind", sub.Kind.String()),
		slog.Int64("user_id", sub.UserID))

	if sub.Kind.IsOffer() {
		if err := s.notify.NotifyUser(ctx, sub.UserID, textApprovedNeedAddress); err != nil {
			s.logger.Warn("notify submitter of approval",
				slog.Int64("user_id", sub.UserID), slog.Any("error", err))
		}
		return nil
	}
	return s.publisher.Publish(ctx, sub)
}

// Reject claims and drops the submission and tells the submitter why.
// Failing to deliver the notification does not fail the rejection.
func (s *Service) Reject(ctx context.Context, id, reason string) error {
	sub, err := s.store.ClaimSubmission(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("reject: submission not found", slog.String("submission_id", id))
		}
		return fmt.Errorf("reject %s: %w", id, err)
	}
	if strings.TrimSpace(reason) == "" {
		reason = "No reason given."
	}
	s.logger.Info("submission rejected",
		slog.String("submission_id", id), slog.String("reason", reason))
	msg := fmt.Sprintf(textRejectedFormat, html.EscapeString(reason))
	if err := s.notify.NotifyUser(ctx, sub.UserID, msg); err != nil {
		s.logger.Warn("notify submitter of rejection",
			slog.Int64("user_id", sub.UserID), slog.Any("error", err))
	}
	return nil
}

// HandleAddress consumes the submitter's staged offer, merges the supplied
// address, and publishes. It reports whether a staged offer existed; without
// one the message is inert.
func (s *Service) HandleAddress(ctx context.Context, userID int64, text string) (bool, error) {
	sub, err := s.store.TakePendingPublication(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("take pending publication: %w", err)
	}
	sub.Payload.Address = strings.TrimSpace(text)
	return true, s.publisher.Publish(ctx, sub)
}
