package registry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:registry_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&StateType{}, &EventType{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestSeedIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	if err := Seed(db); err != nil {
		t.Fatalf("first seed failed: %v", err)
	}
	var firstStates []StateType
	if err := db.Order("id").Find(&firstStates).Error; err != nil {
		t.Fatalf("failed to load states: %v", err)
	}
	var firstEvents []EventType
	if err := db.Order("id").Find(&firstEvents).Error; err != nil {
		t.Fatalf("failed to load event types: %v", err)
	}

	if err := Seed(db); err != nil {
		t.Fatalf("second seed failed: %v", err)
	}
	var secondStates []StateType
	if err := db.Order("id").Find(&secondStates).Error; err != nil {
		t.Fatalf("failed to reload states: %v", err)
	}
	var secondEvents []EventType
	if err := db.Order("id").Find(&secondEvents).Error; err != nil {
		t.Fatalf("failed to reload event types: %v", err)
	}

	if len(secondStates) != len(firstStates) {
		t.Fatalf("state count changed on reseed: %d != %d", len(secondStates), len(firstStates))
	}
	if len(secondEvents) != len(firstEvents) {
		t.Fatalf("event type count changed on reseed: %d != %d", len(secondEvents), len(firstEvents))
	}
	for i := range firstStates {
		if firstStates[i].ID != secondStates[i].ID || firstStates[i].Code != secondStates[i].Code {
			t.Fatalf("state identity changed on reseed: %+v != %+v", firstStates[i], secondStates[i])
		}
	}
}

func TestSeedRefreshesDisplayFields(t *testing.T) {
	db := newTestDB(t)
	if err := Seed(db); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if err := db.Model(&StateType{}).Where("code = ?", StateCodeSeed).Update("label", "stale").Error; err != nil {
		t.Fatalf("failed to mangle label: %v", err)
	}
	if err := Seed(db); err != nil {
		t.Fatalf("reseed failed: %v", err)
	}

	var state StateType
	if err := db.Where("code = ?", StateCodeSeed).Take(&state).Error; err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	if state.Label != "Sown" {
		t.Fatalf("expected reseed to restore label, got %q", state.Label)
	}
}

func TestResolveEventTypeUnknownCode(t *testing.T) {
	db := newTestDB(t)
	if err := Seed(db); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	registry, err := New(db)
	if err != nil {
		t.Fatalf("failed to construct registry: %v", err)
	}

	if _, err := registry.ResolveEventType("prune"); !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestResolveEventTypeMapsTargetState(t *testing.T) {
	db := newTestDB(t)
	if err := Seed(db); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	registry, err := New(db)
	if err != nil {
		t.Fatalf("failed to construct registry: %v", err)
	}

	sow, err := registry.ResolveEventType(EventCodeSow)
	if err != nil {
		t.Fatalf("failed to resolve sow: %v", err)
	}
	if sow.NewStateID == nil {
		t.Fatalf("expected sow to carry a target state")
	}
	state, ok := registry.StateByID(*sow.NewStateID)
	if !ok || state.Code != StateCodeSeed {
		t.Fatalf("expected sow to target the seed state, got %+v", state)
	}

	measure, err := registry.ResolveEventType(EventCodeMeasure)
	if err != nil {
		t.Fatalf("failed to resolve measure: %v", err)
	}
	if measure.NewStateID != nil {
		t.Fatalf("measure must never change state")
	}
}

func TestEventSpecsOrderedByRank(t *testing.T) {
	db := newTestDB(t)
	if err := Seed(db); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	registry, err := New(db)
	if err != nil {
		t.Fatalf("failed to construct registry: %v", err)
	}

	specs := registry.EventSpecs()
	if len(specs) == 0 {
		t.Fatalf("expected seeded event specs")
	}
	for i := 1; i < len(specs); i++ {
		if specs[i-1].SortRank > specs[i].SortRank {
			t.Fatalf("specs out of order at %d: %d > %d", i, specs[i-1].SortRank, specs[i].SortRank)
		}
	}
	if specs[0].Code != EventCodeSow {
		t.Fatalf("expected sow first, got %s", specs[0].Code)
	}
}

func TestReloadPicksUpReseed(t *testing.T) {
	db := newTestDB(t)
	if err := Seed(db); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	registry, err := New(db)
	if err != nil {
		t.Fatalf("failed to construct registry: %v", err)
	}

	if err := db.Model(&EventType{}).Where("code = ?", EventCodeCustom).Update("label", "Journal").Error; err != nil {
		t.Fatalf("failed to update label: %v", err)
	}

	before, err := registry.ResolveEventType(EventCodeCustom)
	if err != nil {
		t.Fatalf("failed to resolve custom: %v", err)
	}
	if before.Label != "Note" {
		t.Fatalf("cache should serve the old label until reload, got %q", before.Label)
	}

	if err := registry.Reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	after, err := registry.ResolveEventType(EventCodeCustom)
	if err != nil {
		t.Fatalf("failed to resolve custom after reload: %v", err)
	}
	if after.Label != "Journal" {
		t.Fatalf("expected reloaded label, got %q", after.Label)
	}
}
