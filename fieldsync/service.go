package fieldsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mmdatafocus/wells_backend/config"
	"github.com/mmdatafocus/wells_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type SyncState string

const (
	StateIdle           SyncState = "idle"
	StateAuthenticating SyncState = "authenticating"
	StateFetching       SyncState = "fetching"
	StateReconciling    SyncState = "reconciling"
	StateCommitted      SyncState = "committed"
	StateFailedPrimary  SyncState = "failed_primary"
	StateFailed         SyncState = "failed"
)

const (
	SourceAuto = "auto"
)

// SyncService drives one end-to-end sync attempt: authenticate, fetch,
// reconcile, report. On primary-source failure it owns exactly one
// fallback attempt against the dummy endpoint; it never loops. The
// service is a single logical writer; the mutex serializes overlapping
// triggers within this process only (cross-process overlap is not
// coordinated and must be avoided by the deployment schedule).
type SyncService struct {
	db     *gorm.DB
	logger *logrus.Logger
	cfg    *config.FieldAPIConfig
	client *fieldClient
	now    func() time.Time

	mu sync.Mutex
}

// NewSyncService builds the orchestrator. db may be nil, in which case
// the global handle from config is resolved at run time (the service
// main constructs the orchestrator before the store is connected).
func NewSyncService(db *gorm.DB, logger *logrus.Logger, cfg *config.FieldAPIConfig) *SyncService {
	return &SyncService{
		db:     db,
		logger: logger,
		cfg:    cfg,
		client: newFieldClient(cfg),
		now:    time.Now,
	}
}

func (s *SyncService) storeDB() *gorm.DB {
	if s.db != nil {
		return s.db
	}
	return config.GetDB()
}

type SyncSummary struct {
	RunID    uint           `json:"runId"`
	State    SyncState      `json:"state"`
	Source   string         `json:"source"`
	Empty    bool           `json:"empty"`
	Duration time.Duration  `json:"duration"`
	Reason   string         `json:"reason,omitempty"`
	Stats    ReconcileStats `json:"stats"`
}

type fetchAttempt struct {
	source string
	path   string
}

func (s *SyncService) attemptsForSource(source string) ([]fetchAttempt, error) {
	actual := fetchAttempt{source: models.SyncSourceActual, path: s.cfg.ActualPath}
	dummy := fetchAttempt{source: models.SyncSourceDummy, path: s.cfg.DummyPath}
	switch source {
	case "", SourceAuto:
		return []fetchAttempt{actual, dummy}, nil
	case models.SyncSourceActual:
		return []fetchAttempt{actual}, nil
	case models.SyncSourceDummy:
		return []fetchAttempt{dummy}, nil
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
}

// Run executes one sync run and persists its outcome as a SyncRun row.
// The returned summary is non-nil whenever a run row was created, even on
// failure.
func (s *SyncService) Run(ctx context.Context, source string, triggeredBy string) (*SyncSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempts, err := s.attemptsForSource(source)
	if err != nil {
		return nil, err
	}

	started := s.now()
	run := models.SyncRun{
		Status:      models.SyncRunStatusRunning,
		TriggeredBy: triggeredBy,
		StartedAt:   &started,
	}
	if err := s.storeDB().WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}

	summary := &SyncSummary{RunID: run.ID, State: StateIdle}

	var lastFailure *FetchFailure
	for i, attempt := range attempts {
		s.transition(summary, StateAuthenticating, attempt.source)
		s.transition(summary, StateFetching, attempt.source)

		records, empty, failure := s.client.fetchPlatforms(ctx, attempt.path)
		if failure != nil {
			lastFailure = failure
			if i < len(attempts)-1 {
				s.transition(summary, StateFailedPrimary, attempt.source)
				s.logger.WithFields(logrus.Fields{
					"module": "fieldsync",
					"runId":  run.ID,
					"source": attempt.source,
					"kind":   failure.Kind,
				}).Warn("primary source failed, falling back")
				continue
			}
			return s.finishFailed(ctx, &run, summary, started, attempt.source, failure.Error()), failure
		}

		summary.Source = attempt.source
		if empty {
			// Valid response, no records: nothing to sync, not a failure.
			summary.Empty = true
			return s.finishCommitted(ctx, &run, summary, started, attempt.source, ReconcileStats{}), nil
		}

		s.transition(summary, StateReconciling, attempt.source)
		stats, rerr := reconcilePlatformWells(ctx, s.storeDB(), s.logger, run.ID, records, s.now())
		if rerr != nil {
			// Store-level failure rolled the batch back; fatal for this
			// run, no fallback and no partial-commit retry.
			reason := fmt.Sprintf("transaction failure: %v", rerr)
			s.finishFailed(ctx, &run, summary, started, attempt.source, reason)
			summary.Stats.Errors = stats.Errors
			return summary, rerr
		}

		return s.finishCommitted(ctx, &run, summary, started, attempt.source, stats), nil
	}

	// attemptsForSource never returns an empty list; keep the compiler honest.
	return summary, lastFailure
}

func (s *SyncService) transition(summary *SyncSummary, state SyncState, source string) {
	summary.State = state
	s.logger.WithFields(logrus.Fields{
		"module": "fieldsync",
		"runId":  summary.RunID,
		"state":  state,
		"source": source,
	}).Debug("sync state")
}

func (s *SyncService) finishCommitted(ctx context.Context, run *models.SyncRun, summary *SyncSummary, started time.Time, source string, stats ReconcileStats) *SyncSummary {
	finished := s.now()
	status := models.SyncRunStatusSuccess
	if stats.Errors > 0 {
		status = models.SyncRunStatusPartial
		if stats.Total() == 0 {
			status = models.SyncRunStatusFailed
		}
	}

	s.transition(summary, StateCommitted, source)
	summary.Source = source
	summary.Stats = stats
	summary.Duration = finished.Sub(started)

	s.updateRun(ctx, run, map[string]interface{}{
		"status":             status,
		"source":             source,
		"platforms_inserted": stats.PlatformsInserted,
		"platforms_updated":  stats.PlatformsUpdated,
		"wells_inserted":     stats.WellsInserted,
		"wells_updated":      stats.WellsUpdated,
		"error_count":        stats.Errors,
		"finished_at":        finished,
		"duration_ms":        finished.Sub(started).Milliseconds(),
	})
	return summary
}

func (s *SyncService) finishFailed(ctx context.Context, run *models.SyncRun, summary *SyncSummary, started time.Time, source string, reason string) *SyncSummary {
	finished := s.now()

	s.transition(summary, StateFailed, source)
	summary.Source = source
	summary.Reason = reason
	summary.Duration = finished.Sub(started)

	s.updateRun(ctx, run, map[string]interface{}{
		"status":         models.SyncRunStatusFailed,
		"source":         source,
		"failure_reason": reason,
		"finished_at":    finished,
		"duration_ms":    finished.Sub(started).Milliseconds(),
	})
	return summary
}

func (s *SyncService) updateRun(ctx context.Context, run *models.SyncRun, updates map[string]interface{}) {
	if err := s.storeDB().WithContext(ctx).Model(run).Updates(updates).Error; err != nil {
		config.LogError(s.logger, "fieldsync", "updateRun", "persist run outcome", run.ID, err)
	}
}
