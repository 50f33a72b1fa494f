package customer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cylinder-backend/internal/audit"
	"cylinder-backend/internal/auth"
	"cylinder-backend/internal/config"
	"cylinder-backend/internal/database"
	"cylinder-backend/internal/models"
	"cylinder-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// -------------------------
// Request/Response Types
// -------------------------

type CreateCustomerRequest struct {
	Code    string `json:"code" validate:"required,max=30"`
	Name    string `json:"name" validate:"required,max=150"`
	Phone   string `json:"phone" validate:"max=30"`
	Address string `json:"address" validate:"max=255"`
}

type UpdateCustomerRequest struct {
	Code    *string `json:"code" validate:"omitempty,max=30"`
	Name    *string `json:"name" validate:"omitempty,max=150"`
	Phone   *string `json:"phone" validate:"omitempty,max=30"`
	Address *string `json:"address" validate:"omitempty,max=255"`
}

type CustomerResponse struct {
	ID        uint   `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Label     string `json:"label"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toResponse(c models.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID,
		Code:      c.Code,
		Name:      c.Name,
		Label:     c.Label(),
		Phone:     c.Phone,
		Address:   c.Address,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

// normalize trims the free-text fields and upper-cases the code.
func (r *CreateCustomerRequest) normalize() {
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
}

// apply copies the set fields onto c and reports whether anything changed.
func (r UpdateCustomerRequest) apply(c *models.Customer) (bool, error) {
	changed := false
	if r.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*r.Code))
		if code == "" {
			return false, fiber.NewError(fiber.StatusBadRequest, "code cannot be empty")
		}
		changed = changed || code != c.Code
		c.Code = code
	}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return false, fiber.NewError(fiber.StatusBadRequest, "name cannot be empty")
		}
		changed = changed || name != c.Name
		c.Name = name
	}
	if r.Phone != nil {
		phone := strings.TrimSpace(*r.Phone)
		changed = changed || phone != c.Phone
		c.Phone = phone
	}
	if r.Address != nil {
		address := strings.TrimSpace(*r.Address)
		changed = changed || address != c.Address
		c.Address = address
	}
	return changed, nil
}

func writeAudit(c *fiber.Ctx, action models.AuditAction, id uint, desc string, before, after any) {
	userID, userName, err := auth.CurrentUser(c)
	if err != nil {
		return
	}
	if logErr := audit.WriteLog(audit.LogOptions{
		UserID:      userID,
		UserName:    userName,
		EntityType:  models.EntityCustomer,
		EntityID:    id,
		Action:      action,
		Description: desc,
		Before:      before,
		After:       after,
	}); logErr != nil {
		config.LogError("customer", "writeAudit", string(action), id, logErr)
	}
}

// -------------------------
// Customer CRUD
// -------------------------

// POST /api/customers
func CreateCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateCustomerRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		body.normalize()
		if err := validation.Struct(body); err != nil {
			return err
		}

		var count int64
		database.DB.Model(&models.Customer{}).Where("code = ?", body.Code).Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "a customer with this code already exists")
		}

		customer := models.Customer{
			Code:    body.Code,
			Name:    body.Name,
			Phone:   body.Phone,
			Address: body.Address,
		}
		if err := database.DB.Create(&customer).Error; err != nil {
			config.LogError("customer", "CreateCustomerHandler", "create", body.Code, err)
			return fiber.NewError(fiber.StatusInternalServerError, "customer could not be saved")
		}

		writeAudit(c, models.AuditActionCreate, customer.ID,
			fmt.Sprintf("customer added: %s", customer.Label()), nil, customer)

		return c.Status(fiber.StatusCreated).JSON(toResponse(customer))
	}
}

// GET /api/customers?q=
func ListCustomersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Customer{})

		if q := strings.TrimSpace(c.Query("q")); q != "" {
			like := "%" + strings.ToLower(q) + "%"
			dbq = dbq.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ?", like, like)
		}

		var customers []models.Customer
		if err := dbq.Order("code asc").Find(&customers).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "customers could not be listed")
		}

		resp := make([]CustomerResponse, 0, len(customers))
		for _, cu := range customers {
			resp = append(resp, toResponse(cu))
		}
		return c.JSON(resp)
	}
}

// GET /api/customers/:id
func GetCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var customer models.Customer
		if err := database.DB.First(&customer, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "customer not found")
		}
		return c.JSON(toResponse(customer))
	}
}

// PUT /api/customers/:id
// onChange runs after a successful write; the customer label is part of every ledger row.
func UpdateCustomerHandler(onChange func(c *fiber.Ctx)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var customer models.Customer
		if err := database.DB.First(&customer, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "customer not found")
		}

		var body UpdateCustomerRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}

		before := customer
		changed, err := body.apply(&customer)
		if err != nil {
			return err
		}
		if !changed {
			return c.JSON(toResponse(customer))
		}

		if customer.Code != before.Code {
			var count int64
			database.DB.Model(&models.Customer{}).
				Where("code = ? AND id <> ?", customer.Code, customer.ID).
				Count(&count)
			if count > 0 {
				return fiber.NewError(fiber.StatusConflict, "a customer with this code already exists")
			}
		}

		if err := database.DB.Save(&customer).Error; err != nil {
			config.LogError("customer", "UpdateCustomerHandler", "save", customer.ID, err)
			return fiber.NewError(fiber.StatusInternalServerError, "customer could not be updated")
		}

		writeAudit(c, models.AuditActionUpdate, customer.ID,
			fmt.Sprintf("customer updated: %s", customer.Label()), before, customer)
		if onChange != nil {
			onChange(c)
		}

		return c.JSON(toResponse(customer))
	}
}

// DELETE /api/customers/:id
func DeleteCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var customer models.Customer
		err := database.DB.First(&customer, "id = ?", c.Params("id")).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "customer not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "customer could not be loaded")
		}

		var count int64
		database.DB.Model(&models.CylinderTransaction{}).
			Where("customer_id = ?", customer.ID).
			Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict,
				fmt.Sprintf("customer has %d cylinder transactions and cannot be deleted", count))
		}

		if err := database.DB.Delete(&customer).Error; err != nil {
			config.LogError("customer", "DeleteCustomerHandler", "delete", customer.ID, err)
			return fiber.NewError(fiber.StatusInternalServerError, "customer could not be deleted")
		}

		writeAudit(c, models.AuditActionDelete, customer.ID,
			fmt.Sprintf("customer deleted: %s", customer.Label()), customer, nil)

		return c.JSON(fiber.Map{"message": "customer deleted"})
	}
}
