package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pesabit/pesabit/internal/wallet"
)

// RegisterWalletRoutes wires the solo wallet endpoints.
func RegisterWalletRoutes(api fiber.Router, h *wallet.Handler) {
	api.Post("/wallets", h.CreateWallet)
	api.Get("/wallets/:walletId/meta", h.GetWalletMeta)

	api.Post("/wallets/:walletId/deposit", h.Deposit)
	api.Post("/wallets/deposit/:txId/continue", h.ContinueDeposit)

	api.Post("/wallets/:walletId/withdraw", h.Withdraw)
	api.Post("/wallets/withdraw/:txId/continue", h.ContinueWithdraw)

	api.Get("/transactions", h.ListTransactions)
	api.Get("/transactions/:txId", h.GetTransaction)
	api.Patch("/transactions/:txId", h.UpdateTransaction)
}
