package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/simfr24/plantlog/internal/plants"
	"github.com/simfr24/plantlog/internal/registry"
	"gorm.io/gorm"
)

func newTestImporter(t *testing.T) (*Importer, *gorm.DB, *registry.Registry) {
	t.Helper()

	dsn := fmt.Sprintf("file:importer_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&registry.StateType{}, &registry.EventType{}, &plants.Plant{}, &plants.Event{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := registry.Seed(db); err != nil {
		t.Fatalf("failed to seed registry: %v", err)
	}
	reg, err := registry.New(db)
	if err != nil {
		t.Fatalf("failed to construct registry: %v", err)
	}
	imp, err := New(db, reg, nil)
	if err != nil {
		t.Fatalf("failed to construct importer: %v", err)
	}
	return imp, db, reg
}

func legacyRecords(t *testing.T) []LegacyPlant {
	t.Helper()
	payload := `[
		{
			"id": 7,
			"common": "Moonflower",
			"latin": "Ipomoea alba",
			"location": "balcony",
			"history": [
				{"action": "sow", "start": "2024-01-01", "range": [7, "days", 14, "days"]},
				{"action": "sprout", "start": "2024-01-10"}
			]
		},
		{
			"id": 9,
			"common": "Sweet pea",
			"latin": "Lathyrus odoratus",
			"history": [
				{"action": "soak", "start": "2024-01-02", "duration": [48, "hours"]}
			]
		}
	]`
	var records []LegacyPlant
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	return records
}

func TestImportMapsActionsToEvents(t *testing.T) {
	imp, db, reg := newTestImporter(t)

	result, err := imp.Import(context.Background(), legacyRecords(t), 1)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if result.Imported != 2 || result.Skipped != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	var moonflower plants.Plant
	if err := db.Where("id = ?", 7).Take(&moonflower).Error; err != nil {
		t.Fatalf("imported plant missing: %v", err)
	}
	if moonflower.CurrentStateID == nil {
		t.Fatalf("expected projected state after import")
	}
	state, ok := reg.StateByID(*moonflower.CurrentStateID)
	if !ok || state.Code != registry.StateCodeGrowing {
		t.Fatalf("expected growing after sprout, got %+v", state)
	}

	var events []plants.Event
	if err := db.Where("plant_id = ?", 7).Order("happened_on, id").Find(&events).Error; err != nil {
		t.Fatalf("failed to load events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].RangeMin == nil || *events[0].RangeMin != 7 {
		t.Fatalf("sow range not mapped: %+v", events[0])
	}

	var soaked plants.Plant
	if err := db.Where("id = ?", 9).Take(&soaked).Error; err != nil {
		t.Fatalf("imported plant missing: %v", err)
	}
	soakState, ok := reg.StateByID(*soaked.CurrentStateID)
	if !ok || soakState.Code != registry.StateCodeSoaked {
		t.Fatalf("expected soaked state, got %+v", soakState)
	}
}

func TestImportIsIdempotentAcrossReruns(t *testing.T) {
	imp, db, _ := newTestImporter(t)

	if _, err := imp.Import(context.Background(), legacyRecords(t), 1); err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	result, err := imp.Import(context.Background(), legacyRecords(t), 1)
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if result.Imported != 0 || result.Skipped != 2 {
		t.Fatalf("rerun must skip existing plants: %+v", result)
	}

	var plantCount, eventCount int64
	if err := db.Model(&plants.Plant{}).Count(&plantCount).Error; err != nil {
		t.Fatalf("failed to count plants: %v", err)
	}
	if err := db.Model(&plants.Event{}).Count(&eventCount).Error; err != nil {
		t.Fatalf("failed to count events: %v", err)
	}
	if plantCount != 2 || eventCount != 3 {
		t.Fatalf("rerun duplicated rows: %d plants, %d events", plantCount, eventCount)
	}
}

func TestImportRejectsUnknownAction(t *testing.T) {
	imp, db, _ := newTestImporter(t)

	records := []LegacyPlant{{
		ID:     3,
		Common: "Mystery",
		Latin:  "Incognita",
		History: []LegacyAction{
			{Action: "levitate", Start: "2024-01-01"},
		},
	}}
	if _, err := imp.Import(context.Background(), records, 1); err == nil {
		t.Fatalf("expected unknown action to fail the import")
	}

	var count int64
	if err := db.Model(&plants.Plant{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count plants: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed record must roll back, found %d plants", count)
	}
}

func TestImportRequiresSourceID(t *testing.T) {
	imp, _, _ := newTestImporter(t)
	records := []LegacyPlant{{Common: "No id", Latin: "Nulla"}}
	if _, err := imp.Import(context.Background(), records, 1); err == nil {
		t.Fatalf("expected missing source id to fail")
	}
}
