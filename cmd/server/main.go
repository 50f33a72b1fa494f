package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cylinder-backend/internal/audit"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/cache"
	"cylinder-backend/internal/config"
	"cylinder-backend/internal/customer"
	"cylinder-backend/internal/cylinder"
	"cylinder-backend/internal/dashboard"
	"cylinder-backend/internal/database"
	"cylinder-backend/internal/metrics"
	"cylinder-backend/internal/middleware"
	"cylinder-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	log := config.GetLogger()
	cfg := config.Load()
	database.Init(cfg)
	metrics.Init()

	// Ledger cache: LEDGER_CACHE picks redis, memory or none.
	var ledgerCache cache.LedgerCache = cache.Noop{}
	switch cfg.LedgerCache {
	case "memory":
		ledgerCache = cache.NewMemory()
	case "redis":
		rdb := cache.NewRedisClient(cfg.RedisAddress, cfg.RedisPassword)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, ledger cache disabled")
		} else {
			ledgerCache = cache.NewRedisLedgerCache(rdb, cfg.LedgerCacheTTL)
			log.WithField("address", cfg.RedisAddress).Info("ledger cache connected")
		}
		cancel()
	}
	dropLedgers := func(ctx context.Context) {
		if err := ledgerCache.Invalidate(ctx); err != nil {
			config.LogError("main", "dropLedgers", "invalidate ledger cache", nil, err)
		}
	}

	ledgers := cylinder.NewLedgerService(cylinder.NewGormSource(database.DB), ledgerCache, cfg.LedgerPageSize)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var e *fiber.Error
			if errors.As(err, &e) {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			config.LogError("main", "ErrorHandler", c.Path(), nil, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "unexpected server error",
			})
		},
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.Logger(log))

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-super-admin", auth.RegisterSuperAdminHandler())
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))

	protected.Get("/auth/me", auth.MeHandler())

	superAdmin := auth.RequireRole(models.RoleSuperAdmin)

	// Customers
	protected.Post("/customers", customer.CreateCustomerHandler())
	protected.Get("/customers", customer.ListCustomersHandler())
	protected.Get("/customers/:id", customer.GetCustomerHandler())
	protected.Put("/customers/:id", customer.UpdateCustomerHandler(func(c *fiber.Ctx) {
		dropLedgers(c.UserContext())
	}))
	protected.Delete("/customers/:id", customer.DeleteCustomerHandler())

	// Cylinder deliveries and receipts
	protected.Post("/cylinder-transactions", cylinder.CreateTransactionHandler(ledgerCache))
	protected.Get("/cylinder-transactions", cylinder.ListTransactionsHandler())
	protected.Put("/cylinder-transactions/:id", cylinder.UpdateTransactionHandler(ledgerCache))
	protected.Patch("/cylinder-transactions/:id/verify", cylinder.VerifyTransactionHandler(ledgerCache))
	protected.Delete("/cylinder-transactions/:id", superAdmin, cylinder.DeleteTransactionHandler(ledgerCache))

	// Ledger
	protected.Get("/ledger", cylinder.LedgerHandler(ledgers))
	protected.Get("/ledger/export", cylinder.ExportLedgerHandler(ledgers))

	// Dashboard
	protected.Get("/dashboard/cylinder-chart", dashboard.CylinderChartHandler())

	// Audit log
	protected.Get("/audit-logs", superAdmin, audit.ListAuditLogsHandler())
	protected.Post("/audit-logs/:id/undo", superAdmin, audit.UndoAuditLogHandler(func(ctx context.Context, _ *models.AuditLog) {
		dropLedgers(ctx)
	}))

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("shutdown failed")
		}
	}()

	log.WithField("port", cfg.HTTPPort).Info("server listening")
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
