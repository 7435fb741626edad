package models

import "time"

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncSourceActual = "actual"
	SyncSourceDummy  = "dummy"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredSystem = "system"
)

type SyncRun struct {
	ID                uint       `gorm:"primary_key" json:"id"`
	Status            string     `gorm:"size:20;not null" json:"status"`
	Source            string     `gorm:"size:20" json:"source"`
	TriggeredBy       string     `gorm:"size:20" json:"triggered_by"`
	PlatformsInserted int        `json:"platforms_inserted"`
	PlatformsUpdated  int        `json:"platforms_updated"`
	WellsInserted     int        `json:"wells_inserted"`
	WellsUpdated      int        `json:"wells_updated"`
	ErrorCount        int        `json:"error_count"`
	FailureReason     string     `gorm:"type:text" json:"failure_reason"`
	StartedAt         *time.Time `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at"`
	DurationMs        int64      `json:"duration_ms"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type SyncRunError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	SyncRunId   uint      `gorm:"index;not null" json:"sync_run_id"`
	EntityType  string    `gorm:"size:50;not null" json:"entity_type"`
	ExternalId  string    `gorm:"size:128" json:"external_id"`
	ErrorCode   string    `gorm:"size:50" json:"error_code"`
	Message     string    `gorm:"type:text" json:"message"`
	PayloadJSON []byte    `gorm:"type:json" json:"payload"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
