package handler

import (
	"net/http"

	"checkout-orchestrator/internal/middleware"
	"checkout-orchestrator/internal/service"

	"github.com/labstack/echo/v4"
)

type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

func (h *UserHandler) GetResults(c echo.Context) error {
	ctx := c.Request().Context()

	results := h.userService.GetResults(ctx, middleware.UserID(c))
	return c.JSON(http.StatusOK, results)
}
