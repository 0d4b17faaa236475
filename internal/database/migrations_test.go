package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/simfr24/plantlog/internal/plants"
	"github.com/simfr24/plantlog/internal/registry"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:database_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := OpenSQLite(dsn, nil)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	return db
}

func TestOpenSQLiteSeedsRegistry(t *testing.T) {
	db := openTestDB(t)

	var eventTypeCount int64
	if err := db.Model(&registry.EventType{}).Count(&eventTypeCount).Error; err != nil {
		t.Fatalf("failed to count event types: %v", err)
	}
	if eventTypeCount == 0 {
		t.Fatalf("expected seeded event types")
	}
}

func TestMigrationsRunOnce(t *testing.T) {
	db := openTestDB(t)

	var first migrationRecord
	if err := db.Where("name = ?", migrationBackfillCurrentState).Take(&first).Error; err != nil {
		t.Fatalf("expected migration record: %v", err)
	}

	if err := applyMigrations(db, nil); err != nil {
		t.Fatalf("re-applying migrations failed: %v", err)
	}
	var count int64
	if err := db.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count migration records: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single applied migration, got %d", count)
	}
}

func TestBackfillRepairsStaleStatePointer(t *testing.T) {
	db := openTestDB(t)

	var sowType registry.EventType
	if err := db.Where("code = ?", registry.EventCodeSow).Take(&sowType).Error; err != nil {
		t.Fatalf("failed to load sow type: %v", err)
	}

	plant := plants.Plant{UserID: 1, Common: "Moonflower", Latin: "Ipomoea alba"}
	if err := db.Create(&plant).Error; err != nil {
		t.Fatalf("failed to create plant: %v", err)
	}
	minVal, maxVal := 7, 14
	unit := plants.UnitDays
	event := plants.Event{
		PlantID: plant.ID, EventTypeID: sowType.ID, HappenedOn: "2024-01-01",
		RangeMin: &minVal, RangeMinUnit: &unit, RangeMax: &maxVal, RangeMaxUnit: &unit,
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("failed to create event: %v", err)
	}

	// The row above bypassed the projector, so the pointer is stale.
	if err := plants.ProjectAll(db); err != nil {
		t.Fatalf("backfill failed: %v", err)
	}

	var reloaded plants.Plant
	if err := db.Where("id = ?", plant.ID).Take(&reloaded).Error; err != nil {
		t.Fatalf("failed to reload plant: %v", err)
	}
	if reloaded.CurrentStateID == nil || *reloaded.CurrentStateID != *sowType.NewStateID {
		t.Fatalf("expected backfilled state %v, got %v", sowType.NewStateID, reloaded.CurrentStateID)
	}
}
