package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/pesabit/pesabit/internal/chama"
	"github.com/pesabit/pesabit/internal/config"
	"github.com/pesabit/pesabit/internal/events"
	"github.com/pesabit/pesabit/internal/ledger"
	"github.com/pesabit/pesabit/internal/middleware"
	"github.com/pesabit/pesabit/internal/notification"
	"github.com/pesabit/pesabit/internal/rail"
	"github.com/pesabit/pesabit/internal/swap"
	"github.com/pesabit/pesabit/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg       config.Config
	DB        *pgxpool.Pool
	Cache     *redis.Client
	Directory chama.Directory
	Logger    *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Cfg.Production() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
	} else {
		store = ledger.NewInMemory()
	}

	router := events.NewRouter(d.Logger)
	node := rail.NewStaticNode(router)
	if d.Cfg.CallbackBaseURL != "" {
		node.CallbackBaseURL = d.Cfg.CallbackBaseURL + "/lnurl/withdraw/callback"
	}
	swapper := swap.NewStaticSwapper(d.Cfg.StaticSwapRate)
	notifier := notification.NewLoggerNotifier(d.Logger)

	walletSvc := wallet.NewService(store, node, swapper, router, d.Cfg.FiatCurrency, d.Logger)

	directory := d.Directory
	if directory == nil {
		directory = chama.NewStaticDirectory()
	}
	chamaSvc := chama.NewService(store, walletSvc, directory, notifier, router, d.Logger)

	walletHandler := wallet.NewHandler(walletSvc)
	chamaHandler := chama.NewHandler(chamaSvc)

	// Public LNURL callback: external wallets call it, no user header.
	app.Get("/lnurl/withdraw/callback", walletHandler.LnurlWithdrawCallback)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterWalletRoutes(api, walletHandler)
	RegisterChamaRoutes(api, chamaHandler)

	return nil
}
