// Package ledger defines the append-only transaction model and its storage
// backends. Every balance in the system is derived from these rows; there
// is no separate balance table.
package ledger

import "time"

// Type classifies a transaction row.
type Type string

const (
	TypeDeposit        Type = "deposit"
	TypeWithdraw       Type = "withdraw"
	TypeWalletCreation Type = "wallet_creation"
)

// Status is a transaction's position in its lifecycle.
type Status string

const (
	StatusPending      Status = "pending"
	StatusApproved     Status = "approved"
	StatusProcessing   Status = "processing"
	StatusComplete     Status = "complete"
	StatusFailed       Status = "failed"
	StatusRejected     Status = "rejected"
	StatusManualReview Status = "manual_review"
)

// Terminal reports whether the status admits no further transitions.
// Manual review is not terminal: an operator resolves it later.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusRejected:
		return true
	}
	return false
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(raw); s {
	case StatusPending, StatusApproved, StatusProcessing,
		StatusComplete, StatusFailed, StatusRejected, StatusManualReview:
		return s, true
	}
	return "", false
}

// Channel is the payment rail a transaction moves over.
type Channel string

const (
	ChannelLightning Channel = "lightning"
	ChannelLnurl     Channel = "lnurl"
	ChannelSwap      Channel = "swap"
)

// Decision is an admin's vote on a chama withdrawal.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Review records one admin's decision on a withdrawal. At most one review
// per reviewer is kept; a later decision replaces the earlier one.
type Review struct {
	ReviewerID string    `json:"reviewer_id"`
	Decision   Decision  `json:"decision"`
	CreatedAt  time.Time `json:"created_at"`
}

// PayloadKind tags the active variant of a PaymentPayload.
type PayloadKind string

const (
	PayloadInvoice       PayloadKind = "invoice"
	PayloadLnurlWithdraw PayloadKind = "lnurl_withdraw"
	PayloadOfframp       PayloadKind = "offramp"
)

// InvoicePayload carries a Lightning invoice and the rail operation that
// settles it.
type InvoicePayload struct {
	Invoice     string `json:"invoice"`
	OperationID string `json:"operation_id,omitempty"`
}

// LnurlWithdrawPayload carries a provisioned LNURL withdraw point. K1 is
// the correlation secret the wallet presents at the callback.
type LnurlWithdrawPayload struct {
	Lnurl       string    `json:"lnurl"`
	K1          string    `json:"k1"`
	CallbackURL string    `json:"callback_url"`
	MaxMsats    int64     `json:"max_msats"`
	MinMsats    int64     `json:"min_msats"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// OfframpPayload carries the swap funding a fiat payout.
type OfframpPayload struct {
	SwapID  string `json:"swap_id"`
	Invoice string `json:"invoice"`
}

// PaymentPayload is a tagged union of the per-channel payment details.
// Exactly the variant named by Kind is set.
type PaymentPayload struct {
	Kind          PayloadKind           `json:"kind"`
	Invoice       *InvoicePayload       `json:"invoice,omitempty"`
	LnurlWithdraw *LnurlWithdrawPayload `json:"lnurl_withdraw,omitempty"`
	Offramp       *OfframpPayload       `json:"offramp,omitempty"`
}

// WalletType selects the savings behavior overlaid on a wallet.
type WalletType string

const (
	WalletStandard WalletType = "standard"
	WalletTarget   WalletType = "target"
	WalletLocked   WalletType = "locked"
)

// WalletConfig is the variant configuration stored on a wallet_creation
// row. Target fields apply to target wallets, lock fields to locked ones.
type WalletConfig struct {
	Type              WalletType `json:"type"`
	TargetAmountMsats int64      `json:"target_amount_msats,omitempty"`
	TargetAmountFiat  float64    `json:"target_amount_fiat,omitempty"`
	TargetDate        *time.Time `json:"target_date,omitempty"`
	MilestonesReached []int      `json:"milestones_reached,omitempty"`
	LockPeriodDays    int        `json:"lock_period_days,omitempty"`
	LockEndDate       *time.Time `json:"lock_end_date,omitempty"`
	AutoRenew         bool       `json:"auto_renew,omitempty"`
	PenaltyRatePct    float64    `json:"penalty_rate_pct,omitempty"`
}

// Transaction is one append-only ledger row. For chama rows OwnerID and
// WalletID both carry the chama id and MemberID identifies the member;
// solo rows leave MemberID empty.
type Transaction struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"owner_id"`
	MemberID       string          `json:"member_id,omitempty"`
	WalletID       string          `json:"wallet_id"`
	Type           Type            `json:"type"`
	Channel        Channel         `json:"channel,omitempty"`
	Status         Status          `json:"status"`
	AmountMsats    int64           `json:"amount_msats"`
	AmountFiat     float64         `json:"amount_fiat,omitempty"`
	PaymentTracker string          `json:"payment_tracker,omitempty"`
	Payload        *PaymentPayload `json:"payload,omitempty"`
	Reference      string          `json:"reference,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Reviews        []Review        `json:"reviews,omitempty"`
	RetryCount     int             `json:"retry_count,omitempty"`
	Wallet         *WalletConfig   `json:"wallet,omitempty"`
	StateChangedAt time.Time       `json:"state_changed_at"`
	TimeoutAt      *time.Time      `json:"timeout_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Meta is the derived balance view of a wallet or chama ledger slice.
type Meta struct {
	TotalDepositsMsats    int64 `json:"total_deposits_msats"`
	TotalWithdrawalsMsats int64 `json:"total_withdrawals_msats"`
	ReservedMsats         int64 `json:"reserved_msats"`
	CurrentBalanceMsats   int64 `json:"current_balance_msats"`
}

// Filter selects transactions for listing. Zero fields match everything.
type Filter struct {
	OwnerID  string
	MemberID string
	WalletID string
	Type     Type
	Status   Status
	Page     int
	Size     int
}

// Page is one page of a filtered listing, newest first.
type Page struct {
	Transactions []Transaction `json:"transactions"`
	PageIndex    int           `json:"page_index"`
	Size         int           `json:"size"`
	Total        int           `json:"total"`
	Pages        int           `json:"pages"`
}
