package fieldsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/wells_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.MigrateTableWithDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func mustRecords(t *testing.T, payload string) []json.RawMessage {
	t.Helper()
	records, recognized := decodeRecords([]byte(payload))
	if !recognized || len(records) == 0 {
		t.Fatalf("test payload did not decode: %s", payload)
	}
	return records
}

func platformJSON(id int, name string, lat, lon float64, wells string) string {
	return fmt.Sprintf(`{"id":%d,"uniqueName":%q,"latitude":%g,"longitude":%g,"createdAt":"2020-01-02T03:04:05Z","updatedAt":"2021-06-07T08:09:10Z","well":[%s]}`,
		id, name, lat, lon, wells)
}

func wellJSON(id, platformID int, name string, lat, lon float64) string {
	return fmt.Sprintf(`{"id":%d,"platformId":%d,"uniqueName":%q,"latitude":%g,"longitude":%g,"createdAt":"2020-01-02T03:04:05Z","updatedAt":"2021-06-07T08:09:10Z"}`,
		id, platformID, name, lat, lon)
}

func TestReconcileInsertsFreshBatch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	payload := "[" + strings.Join([]string{
		platformJSON(1, "Valhall", 56.278, 3.394, wellJSON(10, 1, "Valhall A-1", 56.279, 3.395)+","+wellJSON(11, 1, "Valhall A-2", 56.280, 3.396)),
		platformJSON(2, "Ekofisk", 56.546, 3.213, wellJSON(20, 2, "Ekofisk B-1", 56.547, 3.214)+","+wellJSON(21, 2, "Ekofisk B-2", 56.548, 3.215)),
	}, ",") + "]"

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	stats, err := reconcilePlatformWells(ctx, db, quietLogger(), 0, mustRecords(t, payload), now)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if stats.PlatformsInserted != 2 || stats.PlatformsUpdated != 0 {
		t.Fatalf("platform stats = %+v", stats)
	}
	if stats.WellsInserted != 4 || stats.WellsUpdated != 0 {
		t.Fatalf("well stats = %+v", stats)
	}

	var platformCount, wellCount int64
	db.Model(&models.Platform{}).Count(&platformCount)
	db.Model(&models.Well{}).Count(&wellCount)
	if platformCount != 2 || wellCount != 4 {
		t.Fatalf("store has %d platforms, %d wells", platformCount, wellCount)
	}

	var well models.Well
	if err := db.Where("id = ?", 10).Take(&well).Error; err != nil {
		t.Fatalf("read well: %v", err)
	}
	if well.PlatformId != 1 {
		t.Fatalf("well 10 platform = %d", well.PlatformId)
	}
	if !well.LastSyncedAt.Equal(now) {
		t.Fatalf("well 10 lastSyncedAt = %v, want %v", well.LastSyncedAt, now)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	payload := "[" + platformJSON(1, "Valhall", 56.278, 3.394, wellJSON(10, 1, "Valhall A-1", 56.279, 3.395)) + "]"
	records := mustRecords(t, payload)

	firstRun := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if _, err := reconcilePlatformWells(ctx, db, quietLogger(), 0, records, firstRun); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}

	secondRun := firstRun.Add(time.Hour)
	stats, err := reconcilePlatformWells(ctx, db, quietLogger(), 0, records, secondRun)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if stats.Total() != 0 {
		t.Fatalf("second run stats = %+v, want all zero", stats)
	}

	// No-op leaves last_synced_at untouched.
	var platform models.Platform
	if err := db.Where("id = ?", 1).Take(&platform).Error; err != nil {
		t.Fatalf("read platform: %v", err)
	}
	if !platform.LastSyncedAt.Equal(firstRun) {
		t.Fatalf("platform lastSyncedAt = %v, want %v", platform.LastSyncedAt, firstRun)
	}
}

func TestReconcileCoordinateTolerance(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := 3.394
	seed := "[" + platformJSON(1, "Valhall", 56.278, base, "") + "]"
	if _, err := reconcilePlatformWells(ctx, db, quietLogger(), 0, mustRecords(t, seed), time.Now().UTC()); err != nil {
		t.Fatalf("seed reconcile: %v", err)
	}

	cases := []struct {
		name       string
		delta      float64
		wantUpdate int
	}{
		{"inside tolerance", 5e-7, 0},
		{"outside tolerance", 2e-6, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := fmt.Sprintf(`[{"id":1,"uniqueName":"Valhall","latitude":56.278,"longitude":%.10f,"createdAt":"2020-01-02T03:04:05Z","updatedAt":"2021-06-07T08:09:10Z"}]`, base+tc.delta)
			stats, err := reconcilePlatformWells(ctx, db, quietLogger(), 0, mustRecords(t, payload), time.Now().UTC())
			if err != nil {
				t.Fatalf("reconcile: %v", err)
			}
			if stats.PlatformsUpdated != tc.wantUpdate {
				t.Fatalf("updated = %d, want %d (delta %g)", stats.PlatformsUpdated, tc.wantUpdate, tc.delta)
			}
		})
	}
}

func TestReconcileRollsBackBothTablesOnWellFailure(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Well 10 references platform 999, which exists neither in the store
	// nor in the batch: the foreign key fails after the platform insert
	// already succeeded inside the same transaction.
	payload := "[" + platformJSON(1, "Valhall", 56.278, 3.394, wellJSON(10, 999, "Orphan", 1, 2)) + "]"

	_, err := reconcilePlatformWells(ctx, db, quietLogger(), 0, mustRecords(t, payload), time.Now().UTC())
	if err == nil {
		t.Fatal("expected foreign key failure")
	}

	var platformCount, wellCount int64
	db.Model(&models.Platform{}).Count(&platformCount)
	db.Model(&models.Well{}).Count(&wellCount)
	if platformCount != 0 || wellCount != 0 {
		t.Fatalf("rollback left %d platforms, %d wells", platformCount, wellCount)
	}
}

func TestReconcileSameBatchForeignKey(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// The platform is brand new in this batch; its well must still commit.
	payload := "[" + platformJSON(7, "Eldfisk", 56.376, 3.266, wellJSON(70, 7, "Eldfisk E-1", 56.377, 3.267)) + "]"

	stats, err := reconcilePlatformWells(ctx, db, quietLogger(), 0, mustRecords(t, payload), time.Now().UTC())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if stats.PlatformsInserted != 1 || stats.WellsInserted != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestReconcileDuplicateIDLastWriteWins(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	payload := "[" +
		platformJSON(1, "First Occurrence", 1, 1, "") + "," +
		platformJSON(1, "Second Occurrence", 2, 2, "") +
		"]"

	stats, err := reconcilePlatformWells(ctx, db, quietLogger(), 0, mustRecords(t, payload), time.Now().UTC())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if stats.PlatformsInserted != 1 {
		t.Fatalf("inserted = %d, want 1", stats.PlatformsInserted)
	}

	var platform models.Platform
	if err := db.Where("id = ?", 1).Take(&platform).Error; err != nil {
		t.Fatalf("read platform: %v", err)
	}
	if platform.Name != "Second Occurrence" {
		t.Fatalf("name = %q, want later occurrence", platform.Name)
	}
}

func TestReconcileSynthesizesEmptyNames(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	payload := `[{"id":3,"uniqueName":"","latitude":1,"longitude":2,"lastUpdate":"2022-03-04T05:06:07Z","well":[{"id":30,"platformId":3,"uniqueName":"","latitude":1,"longitude":2,"lastUpdate":"2022-03-04T05:06:07Z"}]}]`
	if _, err := reconcilePlatformWells(ctx, db, quietLogger(), 0, mustRecords(t, payload), time.Now().UTC()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	var platform models.Platform
	if err := db.Where("id = ?", 3).Take(&platform).Error; err != nil {
		t.Fatalf("read platform: %v", err)
	}
	if platform.Name != "Platform_3" {
		t.Fatalf("platform name = %q", platform.Name)
	}

	var well models.Well
	if err := db.Where("id = ?", 30).Take(&well).Error; err != nil {
		t.Fatalf("read well: %v", err)
	}
	if well.Name != "Well_30" {
		t.Fatalf("well name = %q", well.Name)
	}

	// Single-timestamp variant serves both roles.
	want := time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC)
	if !platform.CreatedAt.Equal(want) || !platform.UpdatedAt.Equal(want) {
		t.Fatalf("timestamps = %v / %v, want both %v", platform.CreatedAt, platform.UpdatedAt, want)
	}
}

func TestReconcileSkipsMalformedRecords(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Record without an id is counted and skipped; the rest of the batch
	// still applies, and the failure is persisted for the run.
	payload := `[{"uniqueName":"No ID","latitude":1,"longitude":2},` +
		platformJSON(2, "Ekofisk", 56.546, 3.213, "") + "]"

	run := models.SyncRun{Status: models.SyncRunStatusRunning}
	if err := db.Create(&run).Error; err != nil {
		t.Fatalf("create run: %v", err)
	}

	stats, err := reconcilePlatformWells(ctx, db, quietLogger(), run.ID, mustRecords(t, payload), time.Now().UTC())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if stats.Errors != 1 || stats.PlatformsInserted != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	var runErrs []models.SyncRunError
	if err := db.Where("sync_run_id = ?", run.ID).Find(&runErrs).Error; err != nil {
		t.Fatalf("read run errors: %v", err)
	}
	if len(runErrs) != 1 || runErrs[0].ErrorCode != "missing_id" {
		t.Fatalf("run errors = %+v", runErrs)
	}
}
