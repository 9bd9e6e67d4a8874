package flow

import (
	"context"
	"fmt"
	"time"
)

// SubmissionHistory is the slice of the store the gate needs.
type SubmissionHistory interface {
	LastSubmissionTime(ctx context.Context, userID int64) (time.Time, bool, error)
}

// Gate rate-limits new submissions per submitter. The window is keyed off
// the creation time of the most recent submission, which still counts after
// that submission was approved or rejected.
type Gate struct {
	history SubmissionHistory
	window  time.Duration
	now     func() time.Time
}

func NewGate(history SubmissionHistory, window time.Duration) *Gate {
	return &Gate{history: history, window: window, now: time.Now}
}

// Check returns how long the submitter still has to wait. Zero means the
// submitter may start a new flow.
func (g *Gate) Check(ctx context.Context, userID int64) (time.Duration, error) {
	last, ok, err := g.history.LastSubmissionTime(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("cooldown lookup: %w", err)
	}
	if !ok {
		return 0, nil
	}
	elapsed := g.now().Sub(last)
	if elapsed < g.window {
		return g.window - elapsed, nil
	}
	return 0, nil
}

// CooldownMessage renders the user-facing denial for a remaining wait.
func CooldownMessage(remaining time.Duration) string {
	minutes := int(remaining.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("⏳ You are submitting listings too often. Please wait about %d more minute(s).", minutes)
}
