package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pesabit/pesabit/internal/chama"
)

// RegisterChamaRoutes wires the group wallet endpoints.
func RegisterChamaRoutes(api fiber.Router, h *chama.Handler) {
	api.Post("/chamas/:chamaId/deposit", h.Deposit)
	api.Post("/chamas/:chamaId/withdraw", h.Withdraw)
	api.Post("/chamas/:chamaId/withdraw/:txId/review", h.Review)
	api.Post("/chamas/:chamaId/withdraw/:txId/continue", h.ContinueWithdraw)
	api.Get("/chamas/:chamaId/meta", h.GetMeta)
	api.Post("/chamas/meta/bulk", h.GetBulkMeta)
}
