package chama

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/pesabit/pesabit/internal/ledger"
	"github.com/pesabit/pesabit/internal/wallet"
)

// Handler exposes the chama HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a chama handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func memberID(c *fiber.Ctx) (string, error) {
	member := c.Get(wallet.HeaderUserID)
	if member == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "missing "+wallet.HeaderUserID+" header")
	}
	return member, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrGroupNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotMember), errors.Is(err, ErrNotAdmin):
		return fiber.NewError(http.StatusForbidden, err.Error())
	default:
		return wallet.HTTPError(err)
	}
}

// Deposit records a member contribution to the chama wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	member, err := memberID(c)
	if err != nil {
		return err
	}
	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	snap, err := h.service.Deposit(c.UserContext(), DepositInput{
		ChamaID:      c.Params("chamaId"),
		MemberID:     member,
		AmountFiat:   req.AmountFiat,
		AmountMsats:  req.AmountMsats,
		OnrampTarget: req.OnrampTarget,
		Reference:    req.Reference,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(snap)
}

// Withdraw records a withdrawal request awaiting admin approval.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	member, err := memberID(c)
	if err != nil {
		return err
	}
	var req WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	snap, err := h.service.Withdraw(c.UserContext(), WithdrawInput{
		ChamaID:        c.Params("chamaId"),
		MemberID:       member,
		AmountFiat:     req.AmountFiat,
		AmountMsats:    req.AmountMsats,
		IdempotencyKey: c.Get(wallet.HeaderIdempotencyKey),
		Reference:      req.Reference,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(snap)
}

// Review records the caller's decision on a pending withdrawal.
func (h *Handler) Review(c *fiber.Ctx) error {
	member, err := memberID(c)
	if err != nil {
		return err
	}
	var req ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	snap, err := h.service.UpdateReviews(c.UserContext(),
		c.Params("chamaId"), c.Params("txId"), member, ledger.Decision(req.Decision))
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(snap)
}

// ContinueWithdraw executes an approved withdrawal over a channel.
func (h *Handler) ContinueWithdraw(c *fiber.Ctx) error {
	member, err := memberID(c)
	if err != nil {
		return err
	}
	var req ContinueWithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	snap, err := h.service.ContinueWithdraw(c.UserContext(), ContinueWithdrawInput{
		ChamaID:       c.Params("chamaId"),
		MemberID:      member,
		TxID:          c.Params("txId"),
		Invoice:       req.Invoice,
		Lnurl:         req.Lnurl,
		OfframpTarget: req.OfframpTarget,
		Reference:     req.Reference,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(snap)
}

// GetMeta aggregates the chama's group balance and member shares.
// Query params: members=csv restricts the member breakdown, skip_members
// drops it entirely.
func (h *Handler) GetMeta(c *fiber.Ctx) error {
	if _, err := memberID(c); err != nil {
		return err
	}
	var selected []string
	if raw := c.Query("members"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id != "" {
				selected = append(selected, id)
			}
		}
	}
	view, err := h.service.AggregateGroupMeta(c.UserContext(),
		c.Params("chamaId"), selected, c.QueryBool("skip_members"))
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(view)
}

// GetBulkMeta aggregates group balances for many chamas at once.
func (h *Handler) GetBulkMeta(c *fiber.Ctx) error {
	if _, err := memberID(c); err != nil {
		return err
	}
	var req BulkMetaRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	views, err := h.service.AggregateBulkGroupMeta(c.UserContext(), req.ChamaIDs)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(views)
}
