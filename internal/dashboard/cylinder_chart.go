package dashboard

import (
	"sort"
	"strconv"
	"time"

	"cylinder-backend/internal/config"
	"cylinder-backend/internal/database"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type ChartPoint struct {
	Label              string          `json:"label"` // bucket start, YYYY-MM-DD
	DeliveredCylinders int             `json:"delivered_cylinders"`
	ReceivedCylinders  int             `json:"received_cylinders"`
	DeliveredAmount    decimal.Decimal `json:"delivered_amount"`
	PaymentAmount      decimal.Decimal `json:"payment_amount"`
}

type ChartGrandTotals struct {
	DeliveredCylinders int             `json:"delivered_cylinders"`
	ReceivedCylinders  int             `json:"received_cylinders"`
	DeliveredAmount    decimal.Decimal `json:"delivered_amount"`
	PaymentAmount      decimal.Decimal `json:"payment_amount"`
}

type ChartResponse struct {
	CustomerID  *uint            `json:"customer_id"`
	Period      string           `json:"period"` // daily | weekly | monthly
	From        string           `json:"from"`
	To          string           `json:"to"`
	Points      []ChartPoint     `json:"points"`
	GrandTotals ChartGrandTotals `json:"grand_totals"`
}

// chartRow is one SQL aggregation row: a bucket and cylinder type.
type chartRow struct {
	Bucket       time.Time       `gorm:"column:bucket"`
	CylinderType string          `gorm:"column:cylinder_type"`
	Quantity     int             `gorm:"column:quantity"`
	Amount       decimal.Decimal `gorm:"column:amount"`
	Payment      decimal.Decimal `gorm:"column:payment"`
}

// chartWindow resolves the period, the default bucket count and the inclusive
// date range ending today. Unknown periods fall back to daily.
func chartWindow(period string, count int, now time.Time) (string, time.Time, time.Time) {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch period {
	case "weekly":
		if count <= 0 {
			count = 8
		}
		// weeks start on Monday, like date_trunc('week')
		offset := (int(today.Weekday()) + 6) % 7
		monday := today.AddDate(0, 0, -offset)
		return period, monday.AddDate(0, 0, -7*(count-1)), today
	case "monthly":
		if count <= 0 {
			count = 12
		}
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return period, first.AddDate(0, -(count - 1), 0), today
	default:
		if count <= 0 {
			count = 7
		}
		return "daily", today.AddDate(0, 0, -(count - 1)), today
	}
}

func truncUnit(period string) string {
	switch period {
	case "weekly":
		return "week"
	case "monthly":
		return "month"
	}
	return "day"
}

// foldRows merges the per-type rows into one point per bucket, oldest first.
func foldRows(rows []chartRow) ([]ChartPoint, ChartGrandTotals) {
	byBucket := make(map[string]*ChartPoint)
	for _, r := range rows {
		label := r.Bucket.Format("2006-01-02")
		p, ok := byBucket[label]
		if !ok {
			p = &ChartPoint{Label: label, DeliveredAmount: decimal.Zero, PaymentAmount: decimal.Zero}
			byBucket[label] = p
		}
		switch r.CylinderType {
		case "DELIVERED":
			p.DeliveredCylinders += r.Quantity
			p.DeliveredAmount = p.DeliveredAmount.Add(r.Amount)
		case "RECEIVED":
			p.ReceivedCylinders += r.Quantity
			p.PaymentAmount = p.PaymentAmount.Add(r.Payment)
		}
	}

	points := make([]ChartPoint, 0, len(byBucket))
	for _, p := range byBucket {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Label < points[j].Label })

	grand := ChartGrandTotals{DeliveredAmount: decimal.Zero, PaymentAmount: decimal.Zero}
	for _, p := range points {
		grand.DeliveredCylinders += p.DeliveredCylinders
		grand.ReceivedCylinders += p.ReceivedCylinders
		grand.DeliveredAmount = grand.DeliveredAmount.Add(p.DeliveredAmount)
		grand.PaymentAmount = grand.PaymentAmount.Add(p.PaymentAmount)
	}
	return points, grand
}

// GET /api/dashboard/cylinder-chart?period=daily&count=7&customer_id=1
func CylinderChartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		count := 0
		if v := c.Query("count"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 366 {
				return fiber.NewError(fiber.StatusBadRequest, "invalid count")
			}
			count = n
		}

		var customerID *uint
		if v := c.Query("customer_id"); v != "" {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil || n == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "invalid customer_id")
			}
			id := uint(n)
			customerID = &id
		}

		period, start, end := chartWindow(c.Query("period", "daily"), count, time.Now())

		// Received rows count returned empties, falling back to quantity.
		sql := `
			SELECT date_trunc(?, delivery_date)::date AS bucket,
				   cylinder_type,
				   SUM(CASE WHEN cylinder_type = 'RECEIVED'
						THEN COALESCE(empty_cylinder_received, quantity)
						ELSE quantity END) AS quantity,
				   SUM(amount) AS amount,
				   SUM(payment_amount) AS payment
			FROM cylinder_transactions
			WHERE delivery_date >= ? AND delivery_date <= ?`
		args := []any{truncUnit(period), start, end}
		if customerID != nil {
			sql += ` AND customer_id = ?`
			args = append(args, *customerID)
		}
		sql += `
			GROUP BY bucket, cylinder_type
			ORDER BY bucket ASC`

		var rows []chartRow
		if err := database.DB.Raw(sql, args...).Scan(&rows).Error; err != nil {
			config.LogError("dashboard", "CylinderChartHandler", "aggregate", period, err)
			return fiber.NewError(fiber.StatusInternalServerError, "chart data could not be loaded")
		}

		points, grand := foldRows(rows)
		return c.JSON(ChartResponse{
			CustomerID:  customerID,
			Period:      period,
			From:        start.Format("2006-01-02"),
			To:          end.Format("2006-01-02"),
			Points:      points,
			GrandTotals: grand,
		})
	}
}
