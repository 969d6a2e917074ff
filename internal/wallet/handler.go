package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/pesabit/pesabit/internal/ledger"
)

// HeaderUserID carries the caller's identity, injected by the gateway.
const HeaderUserID = "X-User-ID"

// HeaderIdempotencyKey carries the client's withdrawal idempotency key.
const HeaderIdempotencyKey = "X-Idempotency-Key"

// Handler exposes the solo wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a wallet handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func ownerID(c *fiber.Ctx) (string, error) {
	owner := c.Get(HeaderUserID)
	if owner == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "missing "+HeaderUserID+" header")
	}
	return owner, nil
}

// HTTPError maps engine errors onto transport status codes. Shared with
// the chama handler.
func HTTPError(err error) error {
	switch {
	case errors.Is(err, ErrAmountRequired),
		errors.Is(err, ErrChannelRequired):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ErrNotOwner):
		return fiber.NewError(http.StatusNotFound, "transaction not found")
	case errors.Is(err, ErrStateConflict),
		errors.Is(err, ledger.ErrInvalidTransition),
		errors.Is(err, ledger.ErrWalletExists):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrRail):
		return fiber.NewError(http.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

// CreateWallet configures a new wallet for the caller.
func (h *Handler) CreateWallet(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	var req CreateWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.CreateWallet(c.UserContext(), CreateWalletInput{
		OwnerID:           owner,
		WalletID:          req.WalletID,
		Type:              ledger.WalletType(req.Type),
		TargetAmountMsats: req.TargetAmountMsats,
		TargetAmountFiat:  req.TargetAmountFiat,
		TargetDate:        req.TargetDate,
		LockPeriodDays:    req.LockPeriodDays,
		AutoRenew:         req.AutoRenew,
		PenaltyRatePct:    req.PenaltyRatePct,
		Reference:         req.Reference,
	})
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(tx)
}

// Deposit starts a deposit into a wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	snap, err := h.service.Deposit(c.UserContext(), DepositInput{
		OwnerID:      owner,
		WalletID:     c.Params("walletId"),
		AmountFiat:   req.AmountFiat,
		AmountMsats:  req.AmountMsats,
		OnrampTarget: req.OnrampTarget,
		Reference:    req.Reference,
	})
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(snap)
}

// ContinueDeposit re-issues the invoice of a pending deposit.
func (h *Handler) ContinueDeposit(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	snap, err := h.service.ContinueDeposit(c.UserContext(), ContinueDepositInput{
		OwnerID:     owner,
		TxID:        c.Params("txId"),
		AmountFiat:  req.AmountFiat,
		AmountMsats: req.AmountMsats,
		Reference:   req.Reference,
	})
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(snap)
}

// Withdraw starts a withdrawal from a wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	var req WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	snap, err := h.service.Withdraw(c.UserContext(), WithdrawInput{
		OwnerID:        owner,
		WalletID:       c.Params("walletId"),
		AmountFiat:     req.AmountFiat,
		AmountMsats:    req.AmountMsats,
		Invoice:        req.Invoice,
		Lnurl:          req.Lnurl,
		OfframpTarget:  req.OfframpTarget,
		IdempotencyKey: c.Get(HeaderIdempotencyKey),
		Reference:      req.Reference,
	})
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(snap)
}

// ContinueWithdraw executes a pending or approved withdrawal.
func (h *Handler) ContinueWithdraw(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	var req WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	snap, err := h.service.ContinueWithdraw(c.UserContext(), ContinueWithdrawInput{
		OwnerID:       owner,
		TxID:          c.Params("txId"),
		AmountFiat:    req.AmountFiat,
		AmountMsats:   req.AmountMsats,
		Invoice:       req.Invoice,
		Lnurl:         req.Lnurl,
		OfframpTarget: req.OfframpTarget,
		Reference:     req.Reference,
	})
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(snap)
}

// UpdateTransaction applies a status change to a transaction.
func (h *Handler) UpdateTransaction(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	var req UpdateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	status, ok := ledger.ParseStatus(req.Status)
	if !ok {
		return fiber.NewError(http.StatusBadRequest, "unknown status")
	}
	snap, err := h.service.UpdateTransaction(c.UserContext(), owner, c.Params("txId"), status)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(snap)
}

// GetTransaction fetches one transaction.
func (h *Handler) GetTransaction(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	tx, err := h.service.FindTransaction(c.UserContext(), owner, c.Params("txId"))
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(tx)
}

// ListTransactions returns a filtered page of the caller's transactions.
func (h *Handler) ListTransactions(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	page, err := h.service.FilterTransactions(c.UserContext(), ledger.Filter{
		OwnerID:  owner,
		WalletID: c.Query("wallet_id"),
		Type:     ledger.Type(c.Query("type")),
		Status:   ledger.Status(c.Query("status")),
		Page:     c.QueryInt("page"),
		Size:     c.QueryInt("size"),
	})
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(page)
}

// GetWalletMeta returns a wallet's derived balance and variant overlay.
func (h *Handler) GetWalletMeta(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return err
	}
	view, err := h.service.GetWalletMeta(c.UserContext(), owner, c.Params("walletId"))
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(view)
}

// LnurlWithdrawCallback is the public LUD-03 callback claiming a withdraw
// point. It always answers 200 with a status body, per the LNURL spec.
func (h *Handler) LnurlWithdrawCallback(c *fiber.Ctx) error {
	result := h.service.ProcessLnUrlWithdrawCallback(c.UserContext(), c.Query("k1"), c.Query("pr"))
	if !result.OK {
		return c.Status(http.StatusOK).JSON(LnurlCallbackResponse{Status: "ERROR", Reason: result.Reason})
	}
	return c.Status(http.StatusOK).JSON(LnurlCallbackResponse{Status: "OK"})
}
