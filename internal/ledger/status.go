package ledger

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition indicates a status change the state machine forbids.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions lists the allowed status moves. Terminal rows are immutable.
var transitions = map[Status][]Status{
	StatusPending: {
		StatusApproved, StatusProcessing, StatusManualReview,
		StatusComplete, StatusFailed, StatusRejected,
	},
	StatusApproved:     {StatusProcessing, StatusComplete, StatusFailed},
	StatusProcessing:   {StatusComplete, StatusFailed},
	StatusManualReview: {StatusComplete, StatusFailed},
}

// CanTransition reports whether from -> to is a legal move. A same-status
// restamp is allowed on non-terminal rows: it refreshes the state clock
// and timeout without changing meaning.
func CanTransition(from, to Status) bool {
	if from == to {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SetStatus applies a validated transition, restamping the state clock and
// the timeout deadline for the new status.
func (t *Transaction) SetStatus(to Status, now time.Time) error {
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	t.StateChangedAt = now
	t.UpdatedAt = now
	if d, ok := TimeoutFor(to, t.Channel); ok {
		deadline := now.Add(d)
		t.TimeoutAt = &deadline
	} else {
		t.TimeoutAt = nil
	}
	return nil
}

// TimeoutFor returns how long a row may sit in a status before it is
// considered stuck. Pending deadlines track the underlying instrument's
// lifetime; processing deadlines track the rail's expected settlement.
func TimeoutFor(status Status, ch Channel) (time.Duration, bool) {
	switch status {
	case StatusPending:
		switch ch {
		case ChannelLightning:
			return 15 * time.Minute, true
		case ChannelLnurl:
			return time.Hour, true
		case ChannelSwap:
			return 30 * time.Minute, true
		}
	case StatusProcessing:
		switch ch {
		case ChannelLightning:
			return 5 * time.Minute, true
		case ChannelLnurl:
			return 10 * time.Minute, true
		case ChannelSwap:
			return 30 * time.Minute, true
		}
	}
	return 0, false
}

// ApprovalThreshold is the majority count for n admins: ceil(n/2).
func ApprovalThreshold(n int) int {
	return n/2 + n%2
}

// StatusFromReviews derives a withdrawal's status from its review set
// against the current admin count. Approval needs a majority; rejection
// is declared as soon as approval has become unreachable.
func StatusFromReviews(reviews []Review, adminCount int) Status {
	threshold := ApprovalThreshold(adminCount)
	approvals, rejections := 0, 0
	for _, r := range reviews {
		switch r.Decision {
		case DecisionApprove:
			approvals++
		case DecisionReject:
			rejections++
		}
	}
	if approvals >= threshold {
		return StatusApproved
	}
	if rejections > adminCount-threshold {
		return StatusRejected
	}
	return StatusPending
}
