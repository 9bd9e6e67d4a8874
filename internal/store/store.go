package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zhenevahq/zheneva/internal/listing"
)

// ErrNotFound is returned when a row does not exist, including when a claim
// races against another surface and loses.
var ErrNotFound = errors.New("not found")

// Store owns all persistent entities. Every other component goes through it;
// nothing caches entity state across events.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func New(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		pool:   pool,
		logger: log.With(slog.String("service", "store")),
	}
}

// Session is a submitter's persisted conversation state. At most one exists
// per submitter; absence means "not currently filling a form".
type Session struct {
	UserID int64  `json:"user_id"`
	Step   string `json:"step"`
	// Kind is the submission variant chosen so far; empty until the
	// submitter picks offer term or request.
	Kind      string          `json:"kind,omitempty"`
	Data      listing.Payload `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Stats are the on-demand aggregate counts for the operator surfaces.
type Stats struct {
	PendingCount int `json:"pending_count"`
	ActiveCount  int `json:"active_count"`
	TodayCount   int `json:"today_count"`
}

// --- Sessions ---

func (s *Store) GetSession(ctx context.Context, userID int64) (Session, error) {
	var (
		sess Session
		data []byte
	)
	row := s.pool.QueryRow(ctx,
		`SELECT step, kind, data, updated_at FROM user_sessions WHERE user_id = $1`, userID)
	if err := row.Scan(&sess.Step, &sess.Kind, &data, &sess.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	if err := json.Unmarshal(data, &sess.Data); err != nil {
		return Session{}, fmt.Errorf("decode session data: %w", err)
	}
	sess.UserID = userID
	return sess, nil
}

func (s *Store) PutSession(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess.Data)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO user_sessions (user_id, step, kind, data, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (user_id) DO UPDATE SET step = $2, kind = $3, data = $4, updated_at = now()`,
		sess.UserID, sess.Step, sess.Kind, data)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, userID int64) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM user_sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteStaleSessions removes sessions not touched since cutoff. These are
// abandoned forms; the submitter simply starts over.
func (s *Store) DeleteStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM user_sessions WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- Submissions ---

func (s *Store) AddSubmission(ctx context.Context, sub listing.Submission) error {
	payload, err := json.Marshal(sub.Payload)
	if err != nil {
		return fmt.Errorf("encode submission payload: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO submissions (submission_id, kind, payload, user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		sub.ID, sub.Kind.String(), payload, sub.UserID, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("add submission: %w", err)
	}
	return nil
}

// ClaimSubmission atomically removes and returns the submission. The single
// DELETE ... RETURNING statement is the claim: when the chat and HTTP
// surfaces race on the same id, exactly one caller gets the row and the
// other gets ErrNotFound.
func (s *Store) ClaimSubmission(ctx context.Context, id string) (listing.Submission, error) {
	var (
		sub     listing.Submission
		kind    string
		payload []byte
	)
	row := s.pool.QueryRow(ctx,
		`DELETE FROM submissions WHERE submission_id = $1
		 RETURNING kind, payload, user_id, created_at`, id)
	if err := row.Scan(&kind, &payload, &sub.UserID, &sub.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return listing.Submission{}, ErrNotFound
		}
		return listing.Submission{}, fmt.Errorf("claim submission: %w", err)
	}
	parsed, err := listing.ParseKind(kind)
	if err != nil {
		return listing.Submission{}, fmt.Errorf("claim submission: %w", err)
	}
	if err := json.Unmarshal(payload, &sub.Payload); err != nil {
		return listing.Submission{}, fmt.Errorf("decode submission payload: %w", err)
	}
	sub.ID = id
	sub.Kind = parsed
	return sub, nil
}

func (s *Store) PendingSubmissions(ctx context.Context) ([]listing.Submission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT submission_id, kind, payload, user_id, created_at
		 FROM submissions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("pending submissions: %w", err)
	}
	defer rows.Close()
	var subs []listing.Submission
	for rows.Next() {
		var (
			sub     listing.Submission
			kind    string
			payload []byte
		)
		if err := rows.Scan(&sub.ID, &kind, &payload, &sub.UserID, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		parsed, err := listing.ParseKind(kind)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &sub.Payload); err != nil {
			return nil, fmt.Errorf("decode submission payload: %w", err)
		}
		sub.Kind = parsed
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// LastSubmissionTime returns the creation time of the submitter's most
// recent submission. A stored timestamp that comes back invalid is treated
// as no prior submission and logged as a data-integrity signal.
func (s *Store) LastSubmissionTime(ctx context.Context, userID int64) (time.Time, bool, error) {
	var created pgtype.Timestamptz
	row := s.pool.QueryRow(ctx,
		`SELECT created_at FROM submissions
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`, userID)
	if err := row.Scan(&created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("last submission time: %w", err)
	}
	if !created.Valid {
		s.logger.Warn("submission row has invalid created_at, ignoring for cooldown",
			slog.Int64("user_id", userID))
		return time.Time{}, false, nil
	}
	return created.Time, true, nil
}

// ClaimForApproval claims the submission and, for offers, stages the
// pending-publication record in the same transaction. Either both happen or
// neither does; a concurrent claimer sees ErrNotFound.
func (s *Store) ClaimForApproval(ctx context.Context, id string) (listing.Submission, error) {
	var sub listing.Submission
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var (
			kind    string
			payload []byte
		)
		row := tx.QueryRow(ctx,
			`DELETE FROM submissions WHERE submission_id = $1
			 RETURNING kind, payload, user_id, created_at`, id)
		if err := row.Scan(&kind, &payload, &sub.UserID, &sub.CreatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("claim submission: %w", err)
		}
		parsed, err := listing.ParseKind(kind)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(payload, &sub.Payload); err != nil {
			return fmt.Errorf("decode submission payload: %w", err)
		}
		sub.ID = id
		sub.Kind = parsed
		if !sub.Kind.IsOffer() {
			return nil
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO pending_publications (user_id, submission_id, kind, payload, staged_at)
			 VALUES ($1, $2, $3, $4, now())
			 ON CONFLICT (user_id) DO UPDATE
			 SET submission_id = $2, kind = $3, payload = $4, staged_at = now()`,
			sub.UserID, sub.ID, kind, payload)
		if err != nil {
			return fmt.Errorf("stage pending publication: %w", err)
		}
		return nil
	})
	if err != nil {
		return listing.Submission{}, err
	}
	return sub, nil
}

// --- Pending publications ---

// StagePendingPublication stores an approved offer awaiting its address,
// overwriting any stale record for the same submitter.
func (s *Store) StagePendingPublication(ctx context.Context, sub listing.Submission) error {
	payload, err := json.Marshal(sub.Payload)
	if err != nil {
		return fmt.Errorf("encode pending payload: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO pending_publications (user_id, submission_id, kind, payload, staged_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET submission_id = $2, kind = $3, payload = $4, staged_at = now()`,
		sub.UserID, sub.ID, sub.Kind.String(), payload)
	if err != nil {
		return fmt.Errorf("stage pending publication: %w", err)
	}
	return nil
}

// TakePendingPublication atomically removes and returns the submitter's
// staged offer, if any.
func (s *Store) TakePendingPublication(ctx context.Context, userID int64) (listing.Submission, error) {
	var (
		sub     listing.Submission
		kind    string
		payload []byte
	)
	row := s.pool.QueryRow(ctx,
		`DELETE FROM pending_publications WHERE user_id = $1
		 RETURNING submission_id, kind, payload`, userID)
	if err := row.Scan(&sub.ID, &kind, &payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return listing.Submission{}, ErrNotFound
		}
		return listing.Submission{}, fmt.Errorf("take pending publication: %w", err)
	}
	parsed, err := listing.ParseKind(kind)
	if err != nil {
		return listing.Submission{}, err
	}
	if err := json.Unmarshal(payload, &sub.Payload); err != nil {
		return listing.Submission{}, fmt.Errorf("decode pending payload: %w", err)
	}
	sub.Kind = parsed
	sub.UserID = userID
	return sub, nil
}

// --- Listings ---

func (s *Store) AddListing(ctx context.Context, l listing.Listing) error {
	payload, err := json.Marshal(l.Payload)
	if err != nil {
		return fmt.Errorf("encode listing payload: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO listings (submission_id, kind, payload, message_id, published_at)
		 VALUES ($1, $2, $3, $4, now())`,
		l.SubmissionID, l.Kind.String(), payload, l.MessageID)
	if err != nil {
		return fmt.Errorf("add listing: %w", err)
	}
	return nil
}

// OfferListings returns published rental offers, the entries the public map
// renders.
func (s *Store) OfferListings(ctx context.Context) ([]listing.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT submission_id, kind, payload, message_id, published_at
		 FROM listings WHERE kind LIKE 'offer_%' ORDER BY published_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("offer listings: %w", err)
	}
	defer rows.Close()
	var items []listing.Listing
	for rows.Next() {
		var (
			l       listing.Listing
			kind    string
			payload []byte
		)
		if err := rows.Scan(&l.SubmissionID, &kind, &payload, &l.MessageID, &l.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		parsed, err := listing.ParseKind(kind)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &l.Payload); err != nil {
			return nil, fmt.Errorf("decode listing payload: %w", err)
		}
		l.Kind = parsed
		items = append(items, l)
	}
	return items, rows.Err()
}

// PhotoKnown reports whether the photo reference belongs to a stored
// submission or a published listing. The image proxy refuses anything else
// so unpublished uploads cannot be fished out by guessing file ids.
func (s *Store) PhotoKnown(ctx context.Context, fileID string) (bool, error) {
	var known bool
	row := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM submissions WHERE jsonb_exists(payload->'photos', $1))
		     OR EXISTS (SELECT 1 FROM listings WHERE jsonb_exists(payload->'photos', $1))`,
		fileID)
	if err := row.Scan(&known); err != nil {
		return false, fmt.Errorf("photo known: %w", err)
	}
	return known, nil
}

// Stats computes the operator counters on demand; there is no cache.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.pool.QueryRow(ctx,
		`SELECT
		   (SELECT count(*) FROM submissions),
		   (SELECT count(*) FROM listings),
		   (SELECT count(*) FROM listings WHERE published_at::date = now()::date)`)
	if err := row.Scan(&st.PendingCount, &st.ActiveCount, &st.TodayCount); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// --- Dead letters ---

// AddDeadLetter records a claimed submission whose publication failed so the
// operator can recover it manually.
func (s *Store) AddDeadLetter(ctx context.Context, dl listing.DeadLetter) error {
	payload, err := json.Marshal(dl.Payload)
	if err != nil {
		return fmt.Errorf("encode dead letter payload: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO dead_letters (submission_id, kind, payload, cause, failed_at)
		 VALUES ($1, $2, $3, $4, now())`,
		dl.SubmissionID, dl.Kind.String(), payload, dl.Cause)
	if err != nil {
		return fmt.Errorf("add dead letter: %w", err)
	}
	return nil
}
