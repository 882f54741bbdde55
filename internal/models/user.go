package models

import (
	"time"

	"github.com/google/uuid"
)

// PrincipalType names an independent credential namespace.
type PrincipalType string

const (
	PrincipalUser     PrincipalType = "user"
	PrincipalCustomer PrincipalType = "customer"
)

// Valid reports whether t is a known principal type.
func (t PrincipalType) Valid() bool {
	return t == PrincipalUser || t == PrincipalCustomer
}

// User is a store staff member. Staff manage the catalog.
type User struct {
	BaseModel
	Name         string `gorm:"size:255;not null" json:"name"`
	Email        string `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
}

// Customer places and owns orders.
type Customer struct {
	BaseModel
	Name         string  `gorm:"size:255;not null" json:"name"`
	Email        string  `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Phone        string  `gorm:"size:20;not null;uniqueIndex" json:"phone"`
	PasswordHash string  `gorm:"not null" json:"-"`
	Address      *string `gorm:"size:500" json:"address"`
	Area         *string `gorm:"size:255" json:"area"`
	City         *string `gorm:"size:255" json:"city"`
}

// AccessToken is an issued bearer token. The row is the authority for
// revocation: a signed token whose row is gone no longer authenticates.
type AccessToken struct {
	BaseModel
	PrincipalType PrincipalType `gorm:"size:20;not null;index:idx_access_tokens_principal" json:"principal_type"`
	PrincipalID   uuid.UUID     `gorm:"type:uuid;not null;index:idx_access_tokens_principal" json:"principal_id"`
	Name          string        `gorm:"size:255" json:"name"`
	ExpiresAt     time.Time     `gorm:"index" json:"expires_at"`
}
