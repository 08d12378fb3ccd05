package models

import (
	"time"
)

// DisposalEvent records one entry leaving a cache namespace.
type DisposalEvent struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	Namespace  string    `json:"namespace" gorm:"not null;index"`
	Key        string    `json:"key" gorm:"not null"`
	Reason     string    `json:"reason" gorm:"not null;index"`
	Value      string    `json:"value"`
	DisposedAt time.Time `json:"disposedAt" gorm:"column:disposed_at;index"`
}

// TableName specifies the table name for DisposalEvent Model
func (DisposalEvent) TableName() string {
	return "disposal_events"
}
