package plants

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/simfr24/plantlog/internal/registry"
	"gorm.io/gorm"
)

const testOwnerID = uint(1)

// testToday is the fixed clock date used across service tests.
var testToday = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:plants_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&registry.StateType{}, &registry.EventType{}, &Plant{}, &Event{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := registry.Seed(db); err != nil {
		t.Fatalf("failed to seed registry: %v", err)
	}
	reg, err := registry.New(db)
	if err != nil {
		t.Fatalf("failed to construct registry: %v", err)
	}

	clock := func() time.Time { return testToday.Add(10 * time.Hour) }
	service, err := NewService(ServiceConfig{Database: db, Registry: reg, Clock: clock})
	if err != nil {
		t.Fatalf("failed to construct plant service: %v", err)
	}
	return service, db
}

func mustCreatePlant(t *testing.T, service *Service, firstEvent EventInput) uint {
	t.Helper()
	plantID, err := service.CreatePlant(context.Background(), testOwnerID, PlantMetadata{
		Common: "Moonflower",
		Latin:  "Ipomoea alba",
	}, firstEvent)
	if err != nil {
		t.Fatalf("failed to create plant: %v", err)
	}
	return plantID
}

func mustAppendEvent(t *testing.T, service *Service, plantID uint, input EventInput) uint {
	t.Helper()
	eventID, err := service.AppendEvent(context.Background(), plantID, input)
	if err != nil {
		t.Fatalf("failed to append event: %v", err)
	}
	return eventID
}

func currentStateCode(t *testing.T, service *Service, db *gorm.DB, plantID uint) string {
	t.Helper()
	var plant Plant
	if err := db.Where("id = ?", plantID).Take(&plant).Error; err != nil {
		t.Fatalf("failed to load plant: %v", err)
	}
	if plant.CurrentStateID == nil {
		return ""
	}
	state, ok := service.registry.StateByID(*plant.CurrentStateID)
	if !ok {
		t.Fatalf("current state id %d missing from registry", *plant.CurrentStateID)
	}
	return state.Code
}

func sowEvent(date string) EventInput {
	return EventInput{
		TypeCode:   registry.EventCodeSow,
		HappenedOn: date,
		Payload:    RangePayload{MinValue: 7, MinUnit: UnitDays, MaxValue: 14, MaxUnit: UnitDays},
	}
}

func bareEvent(code, date string) EventInput {
	return EventInput{TypeCode: code, HappenedOn: date}
}
