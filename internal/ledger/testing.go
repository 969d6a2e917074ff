package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SeedDeposit is a test helper that appends a completed deposit row,
// bypassing the orchestration layer. It returns the row id.
func SeedDeposit(s Store, ownerID, walletID string, amountMsats int64) string {
	now := time.Now().UTC()
	tx := Transaction{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		WalletID:       walletID,
		Type:           TypeDeposit,
		Channel:        ChannelLightning,
		Status:         StatusComplete,
		AmountMsats:    amountMsats,
		StateChangedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_ = s.Create(context.Background(), tx)
	return tx.ID
}

// SeedWithdrawal is a test helper that appends a withdrawal row in the
// given status, bypassing the reservation check. It returns the row id.
func SeedWithdrawal(s Store, ownerID, walletID string, amountMsats int64, status Status) string {
	now := time.Now().UTC()
	tx := Transaction{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		WalletID:       walletID,
		Type:           TypeWithdraw,
		Channel:        ChannelLightning,
		Status:         status,
		AmountMsats:    amountMsats,
		StateChangedAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_ = s.Create(context.Background(), tx)
	return tx.ID
}
