package cylinder

import (
	"context"
	"errors"
	"strconv"
	"time"

	"cylinder-backend/internal/cache"
	"cylinder-backend/internal/config"
	"cylinder-backend/internal/ledger"
	"cylinder-backend/internal/metrics"

	"github.com/gofiber/fiber/v2"
)

// LedgerService builds customer ledgers and keeps them in the ledger cache.
type LedgerService struct {
	src      TransactionSource
	cache    cache.LedgerCache
	pageSize int
}

func NewLedgerService(src TransactionSource, lc cache.LedgerCache, pageSize int) *LedgerService {
	if lc == nil {
		lc = cache.Noop{}
	}
	if pageSize <= 0 {
		pageSize = ledger.DefaultPageSize
	}
	return &LedgerService{src: src, cache: lc, pageSize: pageSize}
}

// Report returns the balanced ledger of one customer for the period. Cache
// failures are logged and fall through to a fresh, uncached build.
func (s *LedgerService) Report(ctx context.Context, customerID uint, p ledger.Period) (Report, error) {
	p = p.Normalize()

	// The key is resolved before loading so a write that lands during the
	// build leaves this report under the old generation.
	key, err := s.cache.Key(ctx, cache.LedgerKey(customerID, p.Month, p.Year))
	if err != nil {
		config.LogError("cylinder", "LedgerService.Report", "cache key", customerID, err)
		key = ""
	}

	if key != "" {
		var cached Report
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			config.LogError("cylinder", "LedgerService.Report", "cache get", key, err)
		}
		if hit {
			metrics.IncLedgerCache(metrics.CacheHit)
			return cached, nil
		}
	}
	metrics.IncLedgerCache(metrics.CacheMiss)

	start := time.Now()
	txs, err := s.src.LoadLedgerTransactions(ctx, customerID)
	if err != nil {
		metrics.ObserveLedgerBuild(metrics.ResultError, time.Since(start), 0)
		return Report{}, err
	}
	res, err := ledger.Reconcile(txs, p)
	if err != nil {
		metrics.ObserveLedgerBuild(metrics.ResultError, time.Since(start), 0)
		return Report{}, err
	}
	report := BuildReport(customerID, res)
	metrics.ObserveLedgerBuild(metrics.ResultSuccess, time.Since(start), len(report.Rows))

	if key != "" {
		if err := s.cache.Set(ctx, key, report); err != nil {
			config.LogError("cylinder", "LedgerService.Report", "cache set", key, err)
		}
	}
	return report, nil
}

func (s *LedgerService) PageSize() int {
	return s.pageSize
}

// ledgerQuery reads customer_id, month and year.
func ledgerQuery(c *fiber.Ctx) (uint, ledger.Period, error) {
	cid, err := strconv.ParseUint(c.Query("customer_id"), 10, 64)
	if err != nil || cid == 0 {
		return 0, ledger.Period{}, fiber.NewError(fiber.StatusBadRequest, "customer_id is required")
	}
	p := ledger.Period{
		Month: c.Query("month", ledger.All),
		Year:  c.Query("year", ledger.All),
	}
	return uint(cid), p, nil
}

func reportError(funcName string, customerID uint, err error) error {
	if errors.Is(err, ledger.ErrUnknownCylinderType) || errors.Is(err, ledger.ErrUnknownPaymentType) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	config.LogError("cylinder", funcName, "build ledger", customerID, err)
	return fiber.NewError(fiber.StatusInternalServerError, "ledger could not be built")
}

// GET /api/ledger?customer_id=1&month=05&year=2024&page=1&page_size=25
func LedgerHandler(svc *LedgerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		customerID, period, err := ledgerQuery(c)
		if err != nil {
			return err
		}

		report, err := svc.Report(c.UserContext(), customerID, period)
		if err != nil {
			return reportError("LedgerHandler", customerID, err)
		}

		size := c.QueryInt("page_size", svc.PageSize())
		if size <= 0 || size > 500 {
			size = svc.PageSize()
		}
		return c.JSON(report.Page(c.QueryInt("page", 1), size))
	}
}
