package model

import (
	"time"
)

type CallLog struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Direction string     `gorm:"index;not null" json:"direction"` // outgoing, incoming
	Number    string     `gorm:"index;not null" json:"number"`
	StartedAt time.Time  `gorm:"index" json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Status    string     `gorm:"index" json:"status"` // active, completed, failed, missed, peer-hangup
	Duration  int        `json:"duration"`            // seconds, 0 until ended
	CreatedAt time.Time  `json:"created_at"`
}
