package models

import "time"

// Account is an identity-gateway account. Email is stored lower-cased.
type Account struct {
	ID           uint   `gorm:"primaryKey"`
	UID          string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdentitySession backs a signed session token; RevokedAt is set on sign-out
// and by the expiry sweeper.
type IdentitySession struct {
	ID        uint      `gorm:"primaryKey"`
	TokenID   string    `gorm:"uniqueIndex;not null"` // jti
	UID       string    `gorm:"index"`
	ExpiresAt time.Time `gorm:"index"`
	RevokedAt *time.Time
	CreatedAt time.Time
}

// KVEntry is a row of the key/value table that backs the roster snapshot.
type KVEntry struct {
	Key       string `gorm:"column:kv_key;size:128;primaryKey"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// Principal is an identity verified by the gateway.
type Principal struct {
	UID   string
	Email string
	Role  Role
}
