package fieldsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/wells_backend/config"
	"github.com/mmdatafocus/wells_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// coordTolerance is the absolute tolerance for coordinate comparison.
// Serialization round-trips jitter the low bits of a double; anything
// inside this band is not a change.
const coordTolerance = 1e-6

var errMissingID = errors.New("record id missing or invalid")

type ReconcileStats struct {
	PlatformsInserted int
	PlatformsUpdated  int
	WellsInserted     int
	WellsUpdated      int
	Errors            int
}

func (s ReconcileStats) Total() int {
	return s.PlatformsInserted + s.PlatformsUpdated + s.WellsInserted + s.WellsUpdated
}

// fieldSpec declares one tracked field of an entity: how to detect a
// change between the stored and incoming row, and how to carry the
// incoming value over. Platform and Well reconciliation share the same
// diff loop, so the two kinds stay in lock-step as the schema evolves.
type fieldSpec[T any] struct {
	name    string
	changed func(existing, incoming *T) bool
	assign  func(existing, incoming *T)
}

func diffApply[T any](fields []fieldSpec[T], existing, incoming *T) bool {
	changed := false
	for _, f := range fields {
		if f.changed(existing, incoming) {
			f.assign(existing, incoming)
			changed = true
		}
	}
	return changed
}

func coordChanged(a, b float64) bool {
	return math.Abs(a-b) > coordTolerance
}

var platformFields = []fieldSpec[models.Platform]{
	{
		name:    "name",
		changed: func(a, b *models.Platform) bool { return a.Name != b.Name },
		assign:  func(a, b *models.Platform) { a.Name = b.Name },
	},
	{
		name:    "latitude",
		changed: func(a, b *models.Platform) bool { return coordChanged(a.Latitude, b.Latitude) },
		assign:  func(a, b *models.Platform) { a.Latitude = b.Latitude },
	},
	{
		name:    "longitude",
		changed: func(a, b *models.Platform) bool { return coordChanged(a.Longitude, b.Longitude) },
		assign:  func(a, b *models.Platform) { a.Longitude = b.Longitude },
	},
	{
		name:    "created_at",
		changed: func(a, b *models.Platform) bool { return !a.CreatedAt.Equal(b.CreatedAt) },
		assign:  func(a, b *models.Platform) { a.CreatedAt = b.CreatedAt },
	},
	{
		name:    "updated_at",
		changed: func(a, b *models.Platform) bool { return !a.UpdatedAt.Equal(b.UpdatedAt) },
		assign:  func(a, b *models.Platform) { a.UpdatedAt = b.UpdatedAt },
	},
}

var wellFields = []fieldSpec[models.Well]{
	{
		name:    "platform_id",
		changed: func(a, b *models.Well) bool { return a.PlatformId != b.PlatformId },
		assign:  func(a, b *models.Well) { a.PlatformId = b.PlatformId },
	},
	{
		name:    "name",
		changed: func(a, b *models.Well) bool { return a.Name != b.Name },
		assign:  func(a, b *models.Well) { a.Name = b.Name },
	},
	{
		name:    "latitude",
		changed: func(a, b *models.Well) bool { return coordChanged(a.Latitude, b.Latitude) },
		assign:  func(a, b *models.Well) { a.Latitude = b.Latitude },
	},
	{
		name:    "longitude",
		changed: func(a, b *models.Well) bool { return coordChanged(a.Longitude, b.Longitude) },
		assign:  func(a, b *models.Well) { a.Longitude = b.Longitude },
	},
	{
		name:    "created_at",
		changed: func(a, b *models.Well) bool { return !a.CreatedAt.Equal(b.CreatedAt) },
		assign:  func(a, b *models.Well) { a.CreatedAt = b.CreatedAt },
	},
	{
		name:    "updated_at",
		changed: func(a, b *models.Well) bool { return !a.UpdatedAt.Equal(b.UpdatedAt) },
		assign:  func(a, b *models.Well) { a.UpdatedAt = b.UpdatedAt },
	},
}

func platformFromRecord(raw json.RawMessage) (models.Platform, []WellDTO, error) {
	var dto PlatformDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return models.Platform{}, nil, err
	}

	id, err := recordID(dto.Id)
	if err != nil {
		return models.Platform{}, nil, err
	}

	name := strings.TrimSpace(dto.UniqueName)
	if name == "" {
		name = fmt.Sprintf("Platform_%d", id)
	}

	created, updated := dto.timestamps()
	entity := models.Platform{
		ID:        id,
		Name:      name,
		Latitude:  floatFromNumber(dto.Latitude),
		Longitude: floatFromNumber(dto.Longitude),
		CreatedAt: created,
		UpdatedAt: updated,
	}
	return entity, dto.childWells(), nil
}

func wellFromDTO(dto WellDTO, platformID int) (models.Well, error) {
	id, err := recordID(dto.Id)
	if err != nil {
		return models.Well{}, err
	}

	// The child payload does not always carry its owner; the enclosing
	// platform record is authoritative then.
	if pid, perr := recordID(dto.PlatformId); perr == nil {
		platformID = pid
	}

	name := strings.TrimSpace(dto.UniqueName)
	if name == "" {
		name = fmt.Sprintf("Well_%d", id)
	}

	created, updated := dto.timestamps()
	entity := models.Well{
		ID:         id,
		PlatformId: platformID,
		Name:       name,
		Latitude:   floatFromNumber(dto.Latitude),
		Longitude:  floatFromNumber(dto.Longitude),
		CreatedAt:  created,
		UpdatedAt:  updated,
	}
	return entity, nil
}

func recordID(num json.Number) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(num.String()))
	if err != nil || id <= 0 {
		return 0, errMissingID
	}
	return id, nil
}

// reconcilePlatformWells applies one fetched batch to the store.
//
// Records are normalized up front so a malformed record can never abort
// the transaction: it is counted, recorded, and skipped. Duplicate ids
// within one response resolve last-write-wins. Platforms are applied
// before wells inside the same transaction, so a well referencing a
// platform inserted in this batch sees it persisted when its foreign key
// is checked. Any store error rolls the whole batch back; nothing is
// partially applied across the two tables.
func reconcilePlatformWells(ctx context.Context, db *gorm.DB, logger *logrus.Logger, runID uint, records []json.RawMessage, now time.Time) (ReconcileStats, error) {
	var stats ReconcileStats
	var recordErrs []models.SyncRunError

	platformOrder := make([]int, 0, len(records))
	platformByID := make(map[int]models.Platform, len(records))
	var wellOrder []int
	wellByID := map[int]models.Well{}

	for _, raw := range records {
		entity, children, err := platformFromRecord(raw)
		if err != nil {
			stats.Errors++
			recordErrs = append(recordErrs, recordError(runID, "platform", "", err, raw))
			continue
		}
		if _, seen := platformByID[entity.ID]; !seen {
			platformOrder = append(platformOrder, entity.ID)
		}
		platformByID[entity.ID] = entity

		for _, childDTO := range children {
			well, werr := wellFromDTO(childDTO, entity.ID)
			if werr != nil {
				stats.Errors++
				recordErrs = append(recordErrs, recordError(runID, "well", childDTO.Id.String(), werr, raw))
				continue
			}
			if _, seen := wellByID[well.ID]; !seen {
				wellOrder = append(wellOrder, well.ID)
			}
			wellByID[well.ID] = well
		}
	}

	txErr := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// One pass per table instead of a lookup per record.
		var existingPlatforms []models.Platform
		if err := tx.Find(&existingPlatforms).Error; err != nil {
			return err
		}
		platformRows := make(map[int]*models.Platform, len(existingPlatforms))
		for i := range existingPlatforms {
			platformRows[existingPlatforms[i].ID] = &existingPlatforms[i]
		}

		for _, id := range platformOrder {
			incoming := platformByID[id]
			if existing, ok := platformRows[id]; ok {
				if diffApply(platformFields, existing, &incoming) {
					existing.LastSyncedAt = now
					if err := tx.Save(existing).Error; err != nil {
						return err
					}
					stats.PlatformsUpdated++
				}
			} else {
				incoming.LastSyncedAt = now
				if err := tx.Create(&incoming).Error; err != nil {
					return err
				}
				stats.PlatformsInserted++
			}
		}

		var existingWells []models.Well
		if err := tx.Find(&existingWells).Error; err != nil {
			return err
		}
		wellRows := make(map[int]*models.Well, len(existingWells))
		for i := range existingWells {
			wellRows[existingWells[i].ID] = &existingWells[i]
		}

		for _, id := range wellOrder {
			incoming := wellByID[id]
			if existing, ok := wellRows[id]; ok {
				if diffApply(wellFields, existing, &incoming) {
					existing.LastSyncedAt = now
					if err := tx.Save(existing).Error; err != nil {
						return err
					}
					stats.WellsUpdated++
				}
			} else {
				incoming.LastSyncedAt = now
				if err := tx.Create(&incoming).Error; err != nil {
					return err
				}
				stats.WellsInserted++
			}
		}

		return nil
	})

	// Per-record error rows are written outside the batch transaction so
	// they survive a rollback.
	if runID != 0 && len(recordErrs) > 0 {
		if err := db.WithContext(ctx).Create(&recordErrs).Error; err != nil {
			config.LogError(logger, "fieldsync", "reconcilePlatformWells", "persist record errors", nil, err)
		}
	}

	if txErr != nil {
		return ReconcileStats{Errors: stats.Errors}, txErr
	}
	return stats, nil
}

func recordError(runID uint, entityType string, externalID string, err error, raw json.RawMessage) models.SyncRunError {
	code := "invalid_payload"
	if errors.Is(err, errMissingID) {
		code = "missing_id"
	}
	return models.SyncRunError{
		SyncRunId:   runID,
		EntityType:  entityType,
		ExternalId:  externalID,
		ErrorCode:   code,
		Message:     err.Error(),
		PayloadJSON: raw,
	}
}
