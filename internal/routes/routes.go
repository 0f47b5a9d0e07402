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

	"github.com/personal-bank/personal_bank/internal/auth"
	"github.com/personal-bank/personal_bank/internal/balances"
	"github.com/personal-bank/personal_bank/internal/bank"
	"github.com/personal-bank/personal_bank/internal/config"
	"github.com/personal-bank/personal_bank/internal/logging"
	"github.com/personal-bank/personal_bank/internal/middleware"
	"github.com/personal-bank/personal_bank/internal/notification"
	"github.com/personal-bank/personal_bank/internal/settlement"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Chain is the settlement layer. When nil a simulated chain is created and funded with
	// the contract's minimum balance.
	Chain settlement.Settlement
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
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

	RegisterHealthRoutes(app, d)

	var store balances.Store
	if d.DB != nil {
		store = balances.NewPostgres(d.DB)
	} else {
		store = balances.NewInMemory()
	}

	chain := d.Chain
	var devChain *settlement.Memory
	if chain == nil {
		devChain = settlement.NewMemory(d.Cfg.ContractAddress, d.Cfg.ContractMinBalance)
		if err := devChain.Fund(d.Cfg.ContractAddress, d.Cfg.ContractMinBalance); err != nil {
			return fmt.Errorf("fund contract reserve: %w", err)
		}
		if !d.Cfg.IsDev() {
			d.Logger.Warn("no settlement backend configured, using simulated chain", slog.String("env", d.Cfg.AppEnv))
		}
		chain = devChain
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	contract, err := bank.NewService(d.Cfg.ContractAddress, store, chain, notifier, d.Logger)
	if err != nil {
		return err
	}
	contractHandler := bank.NewHandler(contract, chain, d.Cfg.ContractMinBalance)

	var nonces auth.NonceStore
	if d.Cache != nil {
		nonces = auth.NewRedisNonceStore(d.Cache)
	} else {
		nonces = auth.NewMemoryNonceStore()
	}
	verifier := auth.NewVerifier(nonces, d.Cfg.NonceTTL)
	operator, err := auth.NewOperator(d.Cfg.AuditTokenHash)
	if err != nil {
		return err
	}

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterContractRoutes(api, contractHandler,
		middleware.CallerAuth(verifier),
		middleware.WithdrawRateLimit(d.Cache, d.Cfg.WithdrawRateLimit),
		middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	)
	RegisterAuditRoutes(api, contractHandler, middleware.OperatorAuth(operator))

	if d.Cfg.IsDev() && devChain != nil {
		RegisterDevRoutes(api, settlement.NewDevHandler(devChain))
	}

	return nil
}
