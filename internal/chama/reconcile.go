package chama

import (
	"context"
	"errors"
	"time"

	"github.com/pesabit/pesabit/internal/events"
	"github.com/pesabit/pesabit/internal/ledger"
	"github.com/pesabit/pesabit/internal/notification"
)

// The chama reconciler handles payment events addressed to the chama
// engine, e.g. group-targeted collections settled by the rail. Rows
// created via solo-engine delegation reconcile through the solo handler;
// both write the same ledger.

// HandleReceiveSuccess settles a chama deposit and notifies the
// contributing member.
func (s *Service) HandleReceiveSuccess(ctx context.Context, ev events.ReceiveSuccess) {
	now := time.Now().UTC()
	tx, err := ledger.ApplyTracker(ctx, s.store, ev.OperationID, ledger.StatusComplete, now)
	if err != nil {
		s.logReconcileSkip("receive success", ev.OperationID, err)
		return
	}
	s.logger.Info("chama deposit settled", "tx_id", tx.ID, "chama_id", tx.OwnerID, "member_id", tx.MemberID)
	if tx.MemberID != "" {
		if err := s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransactionSettled,
			Destination: tx.MemberID,
			Body:        "your chama contribution settled",
		}); err != nil {
			s.logger.Warn("settlement notification failed", "tx_id", tx.ID, "error", err)
		}
	}
}

// HandleReceiveFailure fails a chama deposit.
func (s *Service) HandleReceiveFailure(ctx context.Context, ev events.ReceiveFailure) {
	now := time.Now().UTC()
	tx, err := ledger.ApplyTracker(ctx, s.store, ev.OperationID, ledger.StatusFailed, now)
	if err != nil {
		s.logReconcileSkip("receive failure", ev.OperationID, err)
		return
	}
	s.logger.Info("chama deposit failed", "tx_id", tx.ID, "chama_id", tx.OwnerID, "reason", ev.Reason)
}

// HandleSwapStatus applies a swap status change to a chama row.
func (s *Service) HandleSwapStatus(ctx context.Context, ev events.SwapStatus) {
	status, ok := ledger.ParseStatus(ev.Status)
	if !ok {
		s.logger.Warn("swap status unknown", "tracker", ev.Tracker, "status", ev.Status)
		return
	}
	now := time.Now().UTC()
	tx, err := ledger.ApplyTracker(ctx, s.store, ev.Tracker, status, now)
	if err != nil {
		s.logReconcileSkip("swap status", ev.Tracker, err)
		return
	}
	s.logger.Info("chama swap status applied", "tx_id", tx.ID, "tracker", ev.Tracker, "status", status)
}

func (s *Service) logReconcileSkip(kind, tracker string, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		s.logger.Warn(kind+" for unknown tracker", "tracker", tracker)
	case errors.Is(err, ledger.ErrInvalidTransition):
		s.logger.Info(kind+" ignored", "tracker", tracker, "error", err)
	default:
		s.logger.Error(kind+" reconciliation failed", "tracker", tracker, "error", err)
	}
}
