package models

import (
	"time"
)

// User is an API client allowed to operate on cache namespaces
type User struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"unique;not null"`
	PasswordHash string    `json:"-" gorm:"column:password_hash;not null"`
	CreatedAt    time.Time `json:"createdAt"`
	LastLoginAt  time.Time `json:"lastLoginAt" gorm:"column:last_login_at"`
}

// TableName specifies the table name for User Model
func (User) TableName() string {
	return "users"
}
