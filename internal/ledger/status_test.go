package ledger

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusComplete, true},
		{StatusPending, StatusRejected, true},
		{StatusApproved, StatusComplete, true},
		{StatusApproved, StatusManualReview, false},
		{StatusProcessing, StatusComplete, true},
		{StatusProcessing, StatusApproved, false},
		{StatusManualReview, StatusComplete, true},
		{StatusManualReview, StatusRejected, false},
		{StatusComplete, StatusFailed, false},
		{StatusFailed, StatusPending, false},
		{StatusRejected, StatusComplete, false},
		// same-status restamps
		{StatusPending, StatusPending, true},
		{StatusProcessing, StatusProcessing, true},
		{StatusComplete, StatusComplete, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestSetStatusStampsTimeout(t *testing.T) {
	now := time.Now().UTC()
	tx := Transaction{Status: StatusPending, Channel: ChannelLightning}

	if err := tx.SetStatus(StatusProcessing, now); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if tx.StateChangedAt != now {
		t.Fatalf("state clock not restamped")
	}
	if tx.TimeoutAt == nil {
		t.Fatalf("expected a processing timeout")
	}
	if want := now.Add(5 * time.Minute); !tx.TimeoutAt.Equal(want) {
		t.Fatalf("timeout = %v, want %v", tx.TimeoutAt, want)
	}

	if err := tx.SetStatus(StatusComplete, now.Add(time.Minute)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if tx.TimeoutAt != nil {
		t.Fatalf("terminal rows must not carry a timeout")
	}

	if err := tx.SetStatus(StatusFailed, now); err == nil {
		t.Fatalf("expected invalid transition from complete")
	}
}

func TestTimeoutFor(t *testing.T) {
	cases := []struct {
		status Status
		ch     Channel
		want   time.Duration
	}{
		{StatusPending, ChannelLightning, 15 * time.Minute},
		{StatusPending, ChannelLnurl, time.Hour},
		{StatusPending, ChannelSwap, 30 * time.Minute},
		{StatusProcessing, ChannelLightning, 5 * time.Minute},
		{StatusProcessing, ChannelLnurl, 10 * time.Minute},
		{StatusProcessing, ChannelSwap, 30 * time.Minute},
	}
	for _, tc := range cases {
		got, ok := TimeoutFor(tc.status, tc.ch)
		if !ok || got != tc.want {
			t.Errorf("TimeoutFor(%s, %s) = %v, %v; want %v", tc.status, tc.ch, got, ok, tc.want)
		}
	}
	if _, ok := TimeoutFor(StatusComplete, ChannelLightning); ok {
		t.Errorf("terminal statuses must not have timeouts")
	}
}

func TestApprovalThreshold(t *testing.T) {
	cases := map[int]int{1: 1, 2: 1, 3: 2, 4: 2, 5: 3, 6: 3, 7: 4}
	for n, want := range cases {
		if got := ApprovalThreshold(n); got != want {
			t.Errorf("ApprovalThreshold(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestStatusFromReviews(t *testing.T) {
	review := func(id string, d Decision) Review {
		return Review{ReviewerID: id, Decision: d, CreatedAt: time.Now().UTC()}
	}

	// three admins, majority of two
	if got := StatusFromReviews(nil, 3); got != StatusPending {
		t.Fatalf("no reviews: got %s", got)
	}
	if got := StatusFromReviews([]Review{review("a", DecisionApprove)}, 3); got != StatusPending {
		t.Fatalf("one approval of three: got %s", got)
	}
	if got := StatusFromReviews([]Review{review("a", DecisionApprove), review("b", DecisionApprove)}, 3); got != StatusApproved {
		t.Fatalf("two approvals of three: got %s", got)
	}
	if got := StatusFromReviews([]Review{review("a", DecisionReject)}, 3); got != StatusPending {
		t.Fatalf("one rejection of three: got %s", got)
	}
	if got := StatusFromReviews([]Review{review("a", DecisionReject), review("b", DecisionReject)}, 3); got != StatusRejected {
		t.Fatalf("approval unreachable: got %s", got)
	}

	// single admin auto-approves
	if got := StatusFromReviews([]Review{review("a", DecisionApprove)}, 1); got != StatusApproved {
		t.Fatalf("single admin approval: got %s", got)
	}
	if got := StatusFromReviews([]Review{review("a", DecisionReject)}, 1); got != StatusRejected {
		t.Fatalf("single admin rejection: got %s", got)
	}
}
