package models

import "time"

// Platform is an offshore installation owning zero or more wells.
// IDs are assigned by the upstream API and are never generated locally;
// CreatedAt/UpdatedAt carry the upstream timestamps verbatim, which is
// why gorm's automatic time tracking is disabled on them.
type Platform struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	Wells        []Well    `gorm:"foreignKey:PlatformId;constraint:OnDelete:CASCADE" json:"wells,omitempty"`
}
