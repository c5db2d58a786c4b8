package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence. Loan ids must stay auto-incrementing:
// recency of loans is decided by id order, not by user-suppliable dates.
type UserModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"not null;index"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string
	Role         string `gorm:"not null"`
	Active       bool   `gorm:"not null;default:true"`
	LastLogin    *time.Time
	CreatedAt    time.Time `gorm:"not null"`
}

type BookModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Title       string `gorm:"not null;index"`
	Author      string `gorm:"index"`
	Description string `gorm:"type:text"`
	ISBN        string `gorm:"column:isbn;index"`
	Publisher   string
	PublishYear int
	OwnerID     *int64 `gorm:"index"`
	CoverKey    string
	Enrichment  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"not null"`
	UpdatedAt   time.Time      `gorm:"not null"`
}

type LoanModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	BookID     int64     `gorm:"not null;index"`
	UserID     int64     `gorm:"not null;index"`
	LoanDate   time.Time `gorm:"not null"`
	ReturnDate *time.Time
}
