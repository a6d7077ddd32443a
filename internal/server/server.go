package server

import (
	"context"
	"net/http"

	"storefront-payments/internal/config"
	"storefront-payments/internal/handler"
	authmw "storefront-payments/internal/middleware"
	"storefront-payments/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Services struct {
	Checkout   service.CheckoutService
	Webhook    service.WebhookService
	Completion service.CompletionService
	Order      service.OrderService
	Sweeper    service.SweeperService
}

type Server struct {
	echo            *echo.Echo
	cfg             *config.Config
	checkoutHandler *handler.CheckoutHandler
	webhookHandler  *handler.WebhookHandler
	orderHandler    *handler.OrderHandler
}

func NewServer(cfg *config.Config, services Services, log *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				log.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if cfg.HTTP.RequestTimeout > 0 {
		e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
			Timeout: cfg.HTTP.RequestTimeout,
		}))
	}

	s := &Server{
		echo:            e,
		cfg:             cfg,
		checkoutHandler: handler.NewCheckoutHandler(services.Checkout, log),
		webhookHandler:  handler.NewWebhookHandler(services.Webhook, log),
		orderHandler:    handler.NewOrderHandler(services.Completion, services.Order, services.Sweeper, log),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api.GET("/products", s.checkoutHandler.ListProducts)

	// -------- stripe webhooks --------
	api.POST("/webhooks/stripe", s.webhookHandler.StripeWebhook)

	// -------- scheduler --------
	api.POST("/orders/sweep", s.orderHandler.Sweep, authmw.CronKeyAuth(s.cfg.Cron.APIKey))

	// -------- user --------
	auth := authmw.JWTAuth(s.cfg.Auth.JWTSecret)
	api.POST("/checkout", s.checkoutHandler.CreateCheckout, auth)
	api.POST("/orders/complete", s.orderHandler.Complete, auth)
	api.GET("/orders/check", s.orderHandler.CheckSession, auth)
	api.GET("/orders", s.orderHandler.ListOrders, auth)
	api.POST("/orders/cancel", s.orderHandler.Cancel, auth)
	api.GET("/subscriptions", s.orderHandler.ListSubscriptions, auth)
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
