package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cylinder-backend/internal/database"
	"cylinder-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAlreadyUndone     = errors.New("audit log already undone")
	ErrNotUndoable       = errors.New("audit action cannot be undone")
	ErrUnknownEntityType = errors.New("unknown entity type")
)

type LogOptions struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// snapshot encodes a row for a jsonb column; nil becomes the JSON literal null.
func snapshot(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func WriteLog(opts LogOptions) error {
	entry := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  snapshot(opts.Before),
		AfterData:   snapshot(opts.After),
	}

	if err := database.DB.Create(&entry).Error; err != nil {
		return fmt.Errorf("audit log could not be saved: %w", err)
	}
	return nil
}

// UndoLog reverts the change recorded by a log inside one database transaction
// and records the undo as a new log.
func UndoLog(logID uint, userID uint, userName string) (*models.AuditLog, error) {
	var entry models.AuditLog
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&entry, "id = ?", logID).Error; err != nil {
			return fmt.Errorf("audit log %d: %w", logID, err)
		}
		if entry.IsUndone {
			return ErrAlreadyUndone
		}

		switch entry.Action {
		case models.AuditActionCreate:
			if err := deleteEntity(tx, entry.EntityType, entry.EntityID); err != nil {
				return err
			}
		case models.AuditActionUpdate, models.AuditActionVerify:
			if err := saveEntity(tx, entry.EntityType, entry.BeforeData); err != nil {
				return err
			}
		case models.AuditActionDelete:
			if err := recreateEntity(tx, entry.EntityType, entry.BeforeData); err != nil {
				return err
			}
		default:
			return ErrNotUndoable
		}

		now := time.Now()
		entry.IsUndone = true
		entry.UndoneBy = &userID
		entry.UndoneAt = &now
		if err := tx.Save(&entry).Error; err != nil {
			return fmt.Errorf("audit log could not be updated: %w", err)
		}

		undo := models.AuditLog{
			UserID:      userID,
			UserName:    userName,
			EntityType:  entry.EntityType,
			EntityID:    entry.EntityID,
			Action:      models.AuditActionUndo,
			Description: fmt.Sprintf("undone: %s", entry.Description),
			BeforeData:  entry.AfterData,
			AfterData:   entry.BeforeData,
		}
		return tx.Create(&undo).Error
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// decodeEntity returns an empty model for the entity type, filled from data.
func decodeEntity(entityType string, data string) (any, error) {
	var target any
	switch entityType {
	case models.EntityCustomer:
		target = &models.Customer{}
	case models.EntityCylinderTransaction:
		target = &models.CylinderTransaction{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntityType, entityType)
	}
	if data == "" || data == "null" {
		return target, nil
	}
	if err := json.Unmarshal([]byte(data), target); err != nil {
		return nil, fmt.Errorf("%s snapshot could not be decoded: %w", entityType, err)
	}
	return target, nil
}

func deleteEntity(tx *gorm.DB, entityType string, entityID uint) error {
	target, err := decodeEntity(entityType, "")
	if err != nil {
		return err
	}
	return tx.Delete(target, "id = ?", entityID).Error
}

func saveEntity(tx *gorm.DB, entityType string, data string) error {
	target, err := decodeEntity(entityType, data)
	if err != nil {
		return err
	}
	return tx.Omit(clause.Associations).Save(target).Error
}

// recreateEntity keeps the snapshot id so older logs still point at the row.
func recreateEntity(tx *gorm.DB, entityType string, data string) error {
	target, err := decodeEntity(entityType, data)
	if err != nil {
		return err
	}
	return tx.Omit(clause.Associations).Create(target).Error
}
