package chama

// DepositRequest starts a member contribution to the chama wallet.
type DepositRequest struct {
	AmountFiat   float64 `json:"amount_fiat"`
	AmountMsats  int64   `json:"amount_msats"`
	OnrampTarget string  `json:"onramp_target"`
	Reference    string  `json:"reference"`
}

// WithdrawRequest starts a withdrawal request awaiting admin approval.
type WithdrawRequest struct {
	AmountFiat  float64 `json:"amount_fiat"`
	AmountMsats int64   `json:"amount_msats"`
	Reference   string  `json:"reference"`
}

// ReviewRequest records an admin's decision on a withdrawal.
type ReviewRequest struct {
	Decision string `json:"decision"`
}

// ContinueWithdrawRequest executes an approved withdrawal over a channel.
type ContinueWithdrawRequest struct {
	Invoice       string `json:"invoice"`
	Lnurl         bool   `json:"lnurl"`
	OfframpTarget string `json:"offramp_target"`
	Reference     string `json:"reference"`
}

// BulkMetaRequest selects the chamas to aggregate in one read.
type BulkMetaRequest struct {
	ChamaIDs []string `json:"chama_ids"`
}
