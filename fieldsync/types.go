package fieldsync

import (
	"encoding/json"
	"strings"
	"time"
)

// PlatformDTO mirrors one parent record as the upstream field API emits
// it. Deployments disagree on field names: some nest children under
// "well", some under "wells", and some collapse the createdAt/updatedAt
// pair into a single "lastUpdate" value. Field matching is
// case-insensitive (encoding/json default), which also covers the
// PascalCase variants seen in the wild.
type PlatformDTO struct {
	Id         json.Number `json:"id"`
	UniqueName string      `json:"uniqueName"`
	Latitude   json.Number `json:"latitude"`
	Longitude  json.Number `json:"longitude"`
	CreatedAt  string      `json:"createdAt"`
	UpdatedAt  string      `json:"updatedAt"`
	LastUpdate string      `json:"lastUpdate"`
	Well       []WellDTO   `json:"well"`
	Wells      []WellDTO   `json:"wells"`
}

type WellDTO struct {
	Id         json.Number `json:"id"`
	PlatformId json.Number `json:"platformId"`
	UniqueName string      `json:"uniqueName"`
	Latitude   json.Number `json:"latitude"`
	Longitude  json.Number `json:"longitude"`
	CreatedAt  string      `json:"createdAt"`
	UpdatedAt  string      `json:"updatedAt"`
	LastUpdate string      `json:"lastUpdate"`
}

func (p *PlatformDTO) childWells() []WellDTO {
	if len(p.Well) > 0 {
		return p.Well
	}
	return p.Wells
}

func (p *PlatformDTO) timestamps() (time.Time, time.Time) {
	return resolveTimestamps(p.CreatedAt, p.UpdatedAt, p.LastUpdate)
}

func (w *WellDTO) timestamps() (time.Time, time.Time) {
	return resolveTimestamps(w.CreatedAt, w.UpdatedAt, w.LastUpdate)
}

// resolveTimestamps maps the canonical createdAt/updatedAt pair onto the
// entity. When the pair is absent entirely, the single lastUpdate value
// serves as both creation and modification time. This is a data-quality
// workaround for one deployment variant, not a contract of the API.
func resolveTimestamps(createdAt, updatedAt, lastUpdate string) (time.Time, time.Time) {
	created := parseAPITime(createdAt)
	updated := parseAPITime(updatedAt)
	if created.IsZero() && updated.IsZero() {
		if lu := parseAPITime(lastUpdate); !lu.IsZero() {
			return lu, lu
		}
	}
	if updated.IsZero() {
		updated = created
	}
	if created.IsZero() {
		created = updated
	}
	return created, updated
}

var apiTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseAPITime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range apiTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func floatFromNumber(num json.Number) float64 {
	if num.String() == "" {
		return 0
	}
	if f, err := num.Float64(); err == nil {
		return f
	}
	return 0
}

// ---- service API request/response types ----

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TriggerSyncRequest struct {
	Source string `json:"source"`
}

type StatusResponse struct {
	LastRun        *SyncRunResponse `json:"lastRun"`
	LastSuccessRun *SyncRunResponse `json:"lastSuccessRun"`
}

type SyncHistoryResponse struct {
	Items []SyncRunResponse `json:"items"`
}

type SyncRunResponse struct {
	ID                uint    `json:"id"`
	Status            string  `json:"status"`
	Source            string  `json:"source"`
	TriggeredBy       string  `json:"triggeredBy"`
	PlatformsInserted int     `json:"platformsInserted"`
	PlatformsUpdated  int     `json:"platformsUpdated"`
	WellsInserted     int     `json:"wellsInserted"`
	WellsUpdated      int     `json:"wellsUpdated"`
	ErrorCount        int     `json:"errorCount"`
	FailureReason     string  `json:"failureReason,omitempty"`
	StartedAt         *string `json:"startedAt"`
	FinishedAt        *string `json:"finishedAt"`
	DurationMs        int64   `json:"durationMs"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Errors []SyncErrorResponse `json:"errors"`
}

type SyncErrorResponse struct {
	ID         uint   `json:"id"`
	EntityType string `json:"entityType"`
	ExternalId string `json:"externalId"`
	ErrorCode  string `json:"errorCode"`
	Message    string `json:"message"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
