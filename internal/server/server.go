package server

import (
	"context"
	"log/slog"
	"net/http"

	"checkout-orchestrator/internal/checkout"
	"checkout-orchestrator/internal/handler"
	authmw "checkout-orchestrator/internal/middleware"
	"checkout-orchestrator/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Options struct {
	JWTSecret      []byte
	InternalAPIKey string
}

type Server struct {
	echo            *echo.Echo
	checkoutHandler *handler.CheckoutHandler
	paypalHandler   *handler.PaypalHandler
	userHandler     *handler.UserHandler
	opts            Options
}

func NewServer(
	registry *checkout.Registry,
	webhookService service.WebhookService,
	userService service.UserService,
	opts Options,
	logger *slog.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:            e,
		checkoutHandler: handler.NewCheckoutHandler(registry),
		paypalHandler:   handler.NewPaypalHandler(webhookService, logger),
		userHandler:     handler.NewUserHandler(userService),
		opts:            opts,
	}

	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- checkout --------
	co := api.Group("/checkout", authmw.AuthMiddleware(s.opts.JWTSecret))
	co.POST("/submit", s.checkoutHandler.Submit)
	co.GET("/amounts", s.checkoutHandler.Amounts)
	co.GET("/rails", s.checkoutHandler.Rails)
	co.POST("/discount", s.checkoutHandler.ToggleDiscount)
	co.POST("/wallet-sheet", s.checkoutHandler.CompleteWalletSheet)
	co.GET("/state", s.checkoutHandler.State)
	co.POST("/jobs/:id/watch", s.checkoutHandler.WatchJob)
	co.GET("/results", s.userHandler.GetResults)
	co.DELETE("/session", s.checkoutHandler.EndSession)

	// -------- internal --------
	internal := api.Group("/internal", authmw.APIKeyMiddleware(s.opts.InternalAPIKey))
	internal.POST("/cart-changed", s.checkoutHandler.CartChanged)

	// -------- paypal webhooks / callbacks --------
	paypal := api.Group("/paypal")
	paypal.GET("/success", s.paypalHandler.HandleSuccess)
	paypal.GET("/cancel", s.paypalHandler.HandleCancel)
	paypal.POST("/webhook", s.paypalHandler.PayPalWebhook)

	// -------- crypto --------
	api.POST("/crypto/webhook", s.paypalHandler.CryptoWebhook)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
