package cylinder

import (
	"errors"
	"fmt"
	"strconv"

	"cylinder-backend/internal/audit"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/cache"
	"cylinder-backend/internal/config"
	"cylinder-backend/internal/database"
	"cylinder-backend/internal/ledger"
	"cylinder-backend/internal/metrics"
	"cylinder-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// -------------------------
// Helpers
// -------------------------

func describe(t models.CylinderTransaction) string {
	label := "-"
	if t.CylinderLabel != nil {
		label = *t.CylinderLabel
	}
	if t.CylinderType == string(ledger.CylinderDelivered) {
		return fmt.Sprintf("%d x %s delivered at %s", t.Quantity, label, t.UnitPrice.StringFixed(2))
	}
	return fmt.Sprintf("%s received, payment %s", label, t.PaymentAmount.StringFixed(2))
}

func writeAudit(c *fiber.Ctx, action models.AuditAction, t models.CylinderTransaction, desc string, before, after any) {
	userID, userName, err := auth.CurrentUser(c)
	if err != nil {
		return
	}
	if logErr := audit.WriteLog(audit.LogOptions{
		UserID:      userID,
		UserName:    userName,
		EntityType:  models.EntityCylinderTransaction,
		EntityID:    t.ID,
		Action:      action,
		Description: desc,
		Before:      before,
		After:       after,
	}); logErr != nil {
		config.LogError("cylinder", "writeAudit", string(action), t.ID, logErr)
	}
}

// afterWrite records the write and drops every cached ledger.
func afterWrite(c *fiber.Ctx, lc cache.LedgerCache, t models.CylinderTransaction, action models.AuditAction) {
	metrics.IncTransactionWrite(t.CylinderType, string(action))
	if err := lc.Invalidate(c.UserContext()); err != nil {
		config.LogError("cylinder", "afterWrite", "invalidate ledger cache", t.ID, err)
	}
}

func loadTransaction(id string) (models.CylinderTransaction, error) {
	var t models.CylinderTransaction
	err := database.DB.Preload("Customer").First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return t, fiber.NewError(fiber.StatusNotFound, "cylinder transaction not found")
	}
	if err != nil {
		return t, fiber.NewError(fiber.StatusInternalServerError, "cylinder transaction could not be loaded")
	}
	return t, nil
}

// -------------------------
// Cylinder Transaction CRUD
// -------------------------

// POST /api/cylinder-transactions
func CreateTransactionHandler(lc cache.LedgerCache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateTransactionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		row, err := buildTransaction(body)
		if err != nil {
			return err
		}

		var customer models.Customer
		if err := database.DB.First(&customer, "id = ?", row.CustomerID).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "customer not found")
		}

		if err := database.DB.Omit("Customer").Create(&row).Error; err != nil {
			config.LogError("cylinder", "CreateTransactionHandler", "create", body, err)
			return fiber.NewError(fiber.StatusInternalServerError, "cylinder transaction could not be saved")
		}
		row.Customer = customer

		writeAudit(c, models.AuditActionCreate, row,
			fmt.Sprintf("%s: %s", customer.Label(), describe(row)), nil, row)
		afterWrite(c, lc, row, models.AuditActionCreate)

		return c.Status(fiber.StatusCreated).JSON(toResponse(row))
	}
}

// GET /api/cylinder-transactions?customer_id=&cylinder_type=&month=&year=
func ListTransactionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.CylinderTransaction{}).Preload("Customer")

		if v := c.Query("customer_id"); v != "" {
			cid, err := strconv.ParseUint(v, 10, 64)
			if err != nil || cid == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "invalid customer_id")
			}
			dbq = dbq.Where("customer_id = ?", cid)
		}
		if v := c.Query("cylinder_type"); v != "" {
			ct, err := ledger.ParseCylinderType(v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "cylinder_type must be DELIVERED or RECEIVED")
			}
			dbq = dbq.Where("cylinder_type = ?", string(ct))
		}

		p := ledger.Period{Month: c.Query("month", ledger.All), Year: c.Query("year", ledger.All)}.Normalize()
		if p.Month != ledger.All {
			m, _ := strconv.Atoi(p.Month)
			dbq = dbq.Where("EXTRACT(MONTH FROM delivery_date) = ?", m)
		}
		if p.Year != ledger.All {
			y, _ := strconv.Atoi(p.Year)
			dbq = dbq.Where("EXTRACT(YEAR FROM delivery_date) = ?", y)
		}

		var rows []models.CylinderTransaction
		if err := dbq.Order("delivery_date DESC NULLS LAST, created_at DESC, id DESC").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "cylinder transactions could not be listed")
		}

		resp := make([]TransactionResponse, 0, len(rows))
		for _, r := range rows {
			resp = append(resp, toResponse(r))
		}
		return c.JSON(resp)
	}
}

// PUT /api/cylinder-transactions/:id
func UpdateTransactionHandler(lc cache.LedgerCache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		row, err := loadTransaction(c.Params("id"))
		if err != nil {
			return err
		}

		var body UpdateTransactionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		before := row
		if err := updateTransaction(&row, body); err != nil {
			return err
		}

		if err := database.DB.Omit("Customer").Save(&row).Error; err != nil {
			config.LogError("cylinder", "UpdateTransactionHandler", "save", row.ID, err)
			return fiber.NewError(fiber.StatusInternalServerError, "cylinder transaction could not be updated")
		}

		writeAudit(c, models.AuditActionUpdate, row,
			fmt.Sprintf("%s: updated to %s", row.Customer.Label(), describe(row)), before, row)
		afterWrite(c, lc, row, models.AuditActionUpdate)

		return c.JSON(toResponse(row))
	}
}

// PATCH /api/cylinder-transactions/:id/verify
func VerifyTransactionHandler(lc cache.LedgerCache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		row, err := loadTransaction(c.Params("id"))
		if err != nil {
			return err
		}
		if row.Verified {
			return c.JSON(toResponse(row))
		}

		before := row
		row.Verified = true
		if err := database.DB.Model(&row).Update("verified", true).Error; err != nil {
			config.LogError("cylinder", "VerifyTransactionHandler", "update", row.ID, err)
			return fiber.NewError(fiber.StatusInternalServerError, "cylinder transaction could not be verified")
		}

		writeAudit(c, models.AuditActionVerify, row,
			fmt.Sprintf("%s: verified %s", row.Customer.Label(), describe(row)), before, row)
		afterWrite(c, lc, row, models.AuditActionVerify)

		return c.JSON(toResponse(row))
	}
}

// DELETE /api/cylinder-transactions/:id
func DeleteTransactionHandler(lc cache.LedgerCache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		row, err := loadTransaction(c.Params("id"))
		if err != nil {
			return err
		}

		if err := database.DB.Delete(&models.CylinderTransaction{}, row.ID).Error; err != nil {
			config.LogError("cylinder", "DeleteTransactionHandler", "delete", row.ID, err)
			return fiber.NewError(fiber.StatusInternalServerError, "cylinder transaction could not be deleted")
		}

		writeAudit(c, models.AuditActionDelete, row,
			fmt.Sprintf("%s: deleted %s", row.Customer.Label(), describe(row)), row, nil)
		afterWrite(c, lc, row, models.AuditActionDelete)

		return c.JSON(fiber.Map{"message": "cylinder transaction deleted"})
	}
}
