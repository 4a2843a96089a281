package handler

import (
	"errors"
	"net/http"

	"checkout-orchestrator/internal/checkout"
	"checkout-orchestrator/internal/dto"
	"checkout-orchestrator/internal/middleware"
	"checkout-orchestrator/internal/model"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	registry *checkout.Registry
}

func NewCheckoutHandler(registry *checkout.Registry) *CheckoutHandler {
	return &CheckoutHandler{
		registry: registry,
	}
}

// checkoutError maps checkout failures onto HTTP errors.
func checkoutError(err error) error {
	var (
		cooldown     *checkout.ResourceCooldownError
		insufficient *checkout.InsufficientBalanceError
		unavailable  *checkout.RailUnavailableError
		creation     *checkout.OrderCreationError
		rail         *checkout.RailError
		transition   *checkout.TransitionError
	)

	switch {
	case errors.As(err, &cooldown):
		return echo.NewHTTPError(http.StatusTooManyRequests, dto.ErrorResponse{
			Error:           cooldown.Error(),
			CooldownSeconds: cooldown.Seconds(),
		})
	case errors.As(err, &insufficient):
		return echo.NewHTTPError(http.StatusPaymentRequired, insufficient.Error())
	case errors.As(err, &unavailable):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, unavailable.Error())
	case errors.As(err, &creation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, creation.Error())
	case errors.As(err, &rail):
		return echo.NewHTTPError(http.StatusBadGateway, rail.Message)
	case errors.As(err, &transition),
		errors.Is(err, checkout.ErrSubmitInProgress),
		errors.Is(err, checkout.ErrNoWalletSheet),
		errors.Is(err, checkout.ErrPaymentPending):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, checkout.ErrTokenNotOwned):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, checkout.ErrSessionClosed):
		return echo.NewHTTPError(http.StatusGone, err.Error())
	}
	return err
}

func partitionParam(c echo.Context) (model.Partition, error) {
	p := model.Partition(c.QueryParam("partition"))
	if p == "" {
		p = model.PartitionPhysical
	}
	if !p.Valid() {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid partition")
	}
	return p, nil
}

func (h *CheckoutHandler) Submit(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.Partition == "" {
		req.Partition = model.PartitionPhysical
	}

	session := h.registry.Session(middleware.UserID(c))
	res, err := session.Submit(ctx, checkout.SubmitInput{
		Partition:    req.Partition,
		Rail:         req.Rail,
		AddressID:    req.AddressID,
		Regenerate:   req.Regenerate,
		Capabilities: checkout.Capabilities{WalletAvailable: req.WalletAvailable},
	})
	if err != nil {
		return checkoutError(err)
	}

	resp := &dto.SubmitResponse{
		OrderID:         res.OrderID,
		OrderCreated:    res.OrderCreated,
		State:           res.State,
		Amounts:         res.Amounts.Display(),
		WalletSheet:     res.Sheet,
		Result:          res.Result,
		CooldownSeconds: res.CooldownSeconds,
	}
	if r := res.Resource; r != nil {
		resp.PaymentID = r.PaymentID
		resp.PaymentURL = r.URL
		resp.QRCode = r.QRImage
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *CheckoutHandler) Amounts(c echo.Context) error {
	partition, err := partitionParam(c)
	if err != nil {
		return err
	}

	session := h.registry.Session(middleware.UserID(c))
	amounts, err := session.Amounts(c.Request().Context(), partition)
	if err != nil {
		return err
	}

	resp := &dto.AmountsResponse{
		Partition: partition,
		Amounts:   amounts.Display(),
	}
	if t, ok := session.ActiveDiscount(); ok {
		resp.DiscountTokenID = t.TokenID
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *CheckoutHandler) Rails(c echo.Context) error {
	partition, err := partitionParam(c)
	if err != nil {
		return err
	}
	caps := checkout.Capabilities{WalletAvailable: c.QueryParam("wallet") == "true"}

	rails := h.registry.Session(middleware.UserID(c)).AvailableRails(partition, caps)
	return c.JSON(http.StatusOK, &dto.RailsResponse{Rails: rails})
}

func (h *CheckoutHandler) ToggleDiscount(c echo.Context) error {
	var req dto.DiscountRequest
	if err := c.Bind(&req); err != nil || req.TokenID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token_id is required")
	}

	session := h.registry.Session(middleware.UserID(c))
	active, err := session.SelectDiscount(c.Request().Context(), req.TokenID)
	if err != nil {
		return checkoutError(err)
	}

	resp := &dto.DiscountResponse{Active: active}
	if t, ok := session.ActiveDiscount(); ok {
		resp.TokenID = t.TokenID
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *CheckoutHandler) CompleteWalletSheet(c echo.Context) error {
	var req dto.WalletSheetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	session, ok := h.registry.Lookup(middleware.UserID(c))
	if !ok {
		return checkoutError(checkout.ErrNoWalletSheet)
	}
	result, err := session.CompleteWalletSheet(c.Request().Context(), req.Nonce)
	if err != nil {
		return checkoutError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *CheckoutHandler) State(c echo.Context) error {
	session, ok := h.registry.Lookup(middleware.UserID(c))
	if !ok {
		return c.JSON(http.StatusOK, checkout.Snapshot{State: checkout.StateNone})
	}
	return c.JSON(http.StatusOK, session.Snapshot())
}

func (h *CheckoutHandler) WatchJob(c echo.Context) error {
	jobID := c.Param("id")

	var req dto.JobWatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	polling := h.registry.Session(middleware.UserID(c)).WatchJob(jobID, req.Status)
	return c.JSON(http.StatusOK, &dto.JobWatchResponse{JobID: jobID, Polling: polling})
}

func (h *CheckoutHandler) EndSession(c echo.Context) error {
	h.registry.End(middleware.UserID(c))
	return c.NoContent(http.StatusNoContent)
}

// CartChanged is called by the cart service after every cart mutation.
func (h *CheckoutHandler) CartChanged(c echo.Context) error {
	var req dto.CartChangedRequest
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	h.registry.CartChanged(req.UserID)
	return c.NoContent(http.StatusNoContent)
}
