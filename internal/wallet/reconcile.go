package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/pesabit/pesabit/internal/events"
	"github.com/pesabit/pesabit/internal/ledger"
)

// HandleReceiveSuccess settles the deposit row correlated to a receive
// operation. Duplicate deliveries and transitions the state machine
// forbids are logged no-ops, so redelivery cannot double-credit.
func (s *Service) HandleReceiveSuccess(ctx context.Context, ev events.ReceiveSuccess) {
	now := time.Now().UTC()
	tx, err := ledger.ApplyTracker(ctx, s.store, ev.OperationID, ledger.StatusComplete, now)
	if err != nil {
		s.logReconcileSkip("receive success", ev.OperationID, err)
		return
	}
	s.logger.Info("deposit settled", "tx_id", tx.ID, "operation_id", ev.OperationID, "amount_msats", tx.AmountMsats)
	s.updateMilestones(ctx, tx.OwnerID, tx.WalletID)
	if ev.LinkedCollection != "" {
		s.router.PublishCollectionSettled(ctx, events.CollectionSettled{
			Collection:  ev.LinkedCollection,
			TxID:        tx.ID,
			AmountMsats: tx.AmountMsats,
		})
	}
}

// HandleReceiveFailure fails the deposit row correlated to a receive
// operation.
func (s *Service) HandleReceiveFailure(ctx context.Context, ev events.ReceiveFailure) {
	now := time.Now().UTC()
	tx, err := ledger.ApplyTracker(ctx, s.store, ev.OperationID, ledger.StatusFailed, now)
	if err != nil {
		s.logReconcileSkip("receive failure", ev.OperationID, err)
		return
	}
	s.logger.Info("deposit failed", "tx_id", tx.ID, "operation_id", ev.OperationID, "reason", ev.Reason)
}

// HandleSwapStatus applies a provider swap status change to the row
// tracking that swap.
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
	s.logger.Info("swap status applied", "tx_id", tx.ID, "tracker", ev.Tracker, "status", status, "error", ev.Err)
	if status == ledger.StatusComplete {
		s.updateMilestones(ctx, tx.OwnerID, tx.WalletID)
	}
}

func (s *Service) logReconcileSkip(kind, tracker string, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		s.logger.Warn(kind+" for unknown tracker", "tracker", tracker)
	case errors.Is(err, ledger.ErrInvalidTransition):
		// late or duplicate callback against a settled row
		s.logger.Info(kind+" ignored", "tracker", tracker, "error", err)
	default:
		s.logger.Error(kind+" reconciliation failed", "tracker", tracker, "error", err)
	}
}
