package models

import "time"

type Well struct {
	ID           int       `gorm:"primary_key" json:"id"`
	PlatformId   int       `gorm:"index;not null" json:"platform_id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}
