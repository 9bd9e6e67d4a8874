package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zhenevahq/zheneva/internal/listing"
)

// ErrPublicationFailed wraps any failure between rendering and the confirmed
// channel post. The submission is already claimed at that point; there is no
// retry, only the dead-letter record.
var ErrPublicationFailed = errors.New("publication failed")

const (
	textOfferPublished   = "Great, the address is saved! Your listing has been published in the channel."
	textRequestPublished = "Your search request was approved and published in the channel!"
	textPublishFailed    = "Unfortunately, a technical error occurred while publishing your listing. The administrator has been notified."
)

// PhotoFetcher downloads photo bytes by their submitter-surface file
// reference. Photos live on the intake bot and must be re-uploaded through
// the publication bot.
type PhotoFetcher interface {
	DownloadPhoto(ctx context.Context, fileID string) ([]byte, error)
}

// ChannelPoster posts to the public channel and returns the confirmed
// message id.
type ChannelPoster interface {
	PostText(ctx context.Context, text string) (int, error)
	PostPhoto(ctx context.Context, photo []byte, caption string) (int, error)
	PostAlbum(ctx context.Context, photos [][]byte, caption string) (int, error)
}

// SubmitterNotifier delivers a message to the submitter, best effort.
type SubmitterNotifier interface {
	NotifyUser(ctx context.Context, userID int64, text string) error
}

// Store is the slice of the persistent store the publisher needs.
type Store interface {
	AddListing(ctx context.Context, l listing.Listing) error
	AddDeadLetter(ctx context.Context, dl listing.DeadLetter) error
	DeleteSession(ctx context.Context, userID int64) error
}

// Publisher renders and posts approved submissions and reconciles the
// channel post with the listing store.
type Publisher struct {
	logger *slog.Logger
	store  Store
	poster ChannelPoster
	photos PhotoFetcher
	notify SubmitterNotifier
}

func NewPublisher(log *slog.Logger, store Store, poster ChannelPoster, photos PhotoFetcher, notify SubmitterNotifier) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		logger: log.With(slog.String("service", "publish")),
		store:  store,
		poster: poster,
		photos: photos,
		notify: notify,
	}
}

// Publish posts the submission to the public channel and writes the listing
// row if and only if the post returned a confirmed message id. On any
// failure nothing is published, the payload goes to the dead-letter table,
// and the submitter gets a generic technical-failure message. The
// submitter's session is cleared either way: the submission was already
// claimed, publication is at most once.
func (p *Publisher) Publish(ctx context.Context, sub listing.Submission) error {
	defer func() {
		if err := p.store.DeleteSession(ctx, sub.UserID); err != nil {
			p.logger.Error("clear session after publication",
				slog.Int64("user_id", sub.UserID), slog.Any("error", err))
		}
	}()

	caption := BuildCaption(sub.Kind, sub.Payload)
	messageID, err := p.post(ctx, sub, caption)
	if err == nil {
		err = p.store.AddListing(ctx, listing.Listing{
			SubmissionID: sub.ID,
			Kind:         sub.Kind,
			Payload:      sub.Payload,
			MessageID:    messageID,
		})
	}
	if err != nil {
		p.fail(ctx, sub, err)
		return fmt.Errorf("%w: %v", ErrPublicationFailed, err)
	}

	p.logger.Info("listing published",
		slog.String("submission_id", sub.ID),
		slog.String("kind", sub.Kind.String()),
		slog.Int("message_id", messageID))

	success := textRequestPublished
	if sub.Kind.IsOffer() {
		success = textOfferPublished
	}
	if err := p.notify.NotifyUser(ctx, sub.UserID, success); err != nil {
		p.logger.Warn("notify submitter of publication",
			slog.Int64("user_id", sub.UserID), slog.Any("error", err))
	}
	return nil
}

func (p *Publisher) post(ctx context.Context, sub listing.Submission, caption string) (int, error) {
	photos := sub.Payload.Photos
	switch len(photos) {
	case 0:
		return p.poster.PostText(ctx, caption)
	case 1:
		content, err := p.photos.DownloadPhoto(ctx, photos[0])
		if err != nil {
			return 0, fmt.Errorf("download photo: %w", err)
		}
		return p.poster.PostPhoto(ctx, content, caption)
	default:
		// Partial albums are never posted: a single failed download aborts
		// the whole publication.
		contents := make([][]byte, 0, len(photos))
		for i, fileID := range photos {
			content, err := p.photos.DownloadPhoto(ctx, fileID)
			if err != nil {
				return 0, fmt.Errorf("download photo %d/%d: %w", i+1, len(photos), err)
			}
			contents = append(contents, content)
		}
		return p.poster.PostAlbum(ctx, contents, caption)
	}
}

func (p *Publisher) fail(ctx context.Context, sub listing.Submission, cause error) {
	p.logger.Error("publication failed",
		slog.String("submission_id", sub.ID),
		slog.String("kind", sub.Kind.String()),
		slog.Int64("user_id", sub.UserID),
		slog.Any("error", cause))
	if err := p.store.AddDeadLetter(ctx, listing.DeadLetter{
		SubmissionID: sub.ID,
		Kind:         sub.Kind,
		Payload:      sub.Payload,
		Cause:        cause.Error(),
	}); err != nil {
		p.logger.Error("record dead letter",
			slog.String("submission_id", sub.ID), slog.Any("error", err))
	}
	if err := p.notify.NotifyUser(ctx, sub.UserID, textPublishFailed); err != nil {
		p.logger.Warn("notify submitter of failure",
			slog.Int64("user_id", sub.UserID), slog.Any("error", err))
	}
}
