package wallet

import "time"

// CreateWalletRequest configures a new wallet.
type CreateWalletRequest struct {
	WalletID          string     `json:"wallet_id"`
	Type              string     `json:"type"`
	TargetAmountMsats int64      `json:"target_amount_msats"`
	TargetAmountFiat  float64    `json:"target_amount_fiat"`
	TargetDate        *time.Time `json:"target_date"`
	LockPeriodDays    int        `json:"lock_period_days"`
	AutoRenew         bool       `json:"auto_renew"`
	PenaltyRatePct    float64    `json:"penalty_rate_pct"`
	Reference         string     `json:"reference"`
}

// DepositRequest starts a deposit. Exactly one amount field must be set;
// a non-empty onramp_target collects the amount from mobile money.
type DepositRequest struct {
	AmountFiat   float64 `json:"amount_fiat"`
	AmountMsats  int64   `json:"amount_msats"`
	OnrampTarget string  `json:"onramp_target"`
	Reference    string  `json:"reference"`
}

// WithdrawRequest starts a withdrawal over exactly one channel.
type WithdrawRequest struct {
	AmountFiat    float64 `json:"amount_fiat"`
	AmountMsats   int64   `json:"amount_msats"`
	Invoice       string  `json:"invoice"`
	Lnurl         bool    `json:"lnurl"`
	OfframpTarget string  `json:"offramp_target"`
	Reference     string  `json:"reference"`
}

// UpdateTransactionRequest applies a status change to a transaction.
type UpdateTransactionRequest struct {
	Status string `json:"status"`
}

// LnurlCallbackResponse is the LUD-03 withdraw callback response shape.
type LnurlCallbackResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}
