package models

import "time"

type Customer struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"size:30;uniqueIndex;not null"`
	Name      string `gorm:"size:150;not null"`
	Phone     string `gorm:"size:30"`
	Address   string `gorm:"size:255"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Label is the name printed on ledgers and bills: "code · name".
func (c Customer) Label() string {
	return c.Code + " · " + c.Name
}
