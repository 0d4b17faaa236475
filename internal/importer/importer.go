// Package importer loads legacy flat-file plant records into the event/state
// schema. It is a one-shot tool: re-running it never duplicates plants, but
// it does not reconcile records that changed in the source between runs.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/simfr24/plantlog/internal/plants"
	"github.com/simfr24/plantlog/internal/registry"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LegacyAction is one history entry of the flat-file format. The optional
// slices mirror the old JSON layout: range is [min, minUnit, max, maxUnit],
// duration and size are [value, unit].
type LegacyAction struct {
	Action   string            `json:"action"`
	Start    string            `json:"start"`
	Range    []json.RawMessage `json:"range,omitempty"`
	Duration []json.RawMessage `json:"duration,omitempty"`
	Size     []json.RawMessage `json:"size,omitempty"`
}

// LegacyPlant is one flat-file plant record. ID is the source key used for
// insert-or-ignore idempotency.
type LegacyPlant struct {
	ID       uint           `json:"id"`
	Common   string         `json:"common"`
	Latin    string         `json:"latin"`
	Location string         `json:"location"`
	Notes    string         `json:"notes"`
	History  []LegacyAction `json:"history"`
}

// Importer writes legacy records into the live schema.
type Importer struct {
	db       *gorm.DB
	registry *registry.Registry
	logger   *zap.Logger
}

// New constructs an importer.
func New(db *gorm.DB, reg *registry.Registry, logger *zap.Logger) (*Importer, error) {
	if db == nil {
		return nil, fmt.Errorf("importer: database handle is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("importer: event type registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{db: db, registry: reg, logger: logger}, nil
}

// Result summarizes one import run.
type Result struct {
	BatchID  string
	Imported int
	Skipped  int
}

// ImportFile reads a legacy JSON file and imports every record for ownerID.
func (i *Importer) ImportFile(ctx context.Context, path string, ownerID uint) (Result, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("importer: read %s: %w", path, err)
	}
	var records []LegacyPlant
	if err := json.Unmarshal(payload, &records); err != nil {
		return Result{}, fmt.Errorf("importer: parse %s: %w", path, err)
	}
	return i.Import(ctx, records, ownerID)
}

// Import writes the records. Each plant row is keyed by its source id via
// insert-or-ignore; history is only written when the plant row was created
// in this run, so a restart cannot duplicate events.
func (i *Importer) Import(ctx context.Context, records []LegacyPlant, ownerID uint) (Result, error) {
	result := Result{BatchID: uuid.NewString()}

	for _, record := range records {
		imported, err := i.importOne(ctx, record, ownerID)
		if err != nil {
			return result, err
		}
		if imported {
			result.Imported++
		} else {
			result.Skipped++
		}
	}

	i.logger.Info("legacy import finished",
		zap.String("batch_id", result.BatchID),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (i *Importer) importOne(ctx context.Context, record LegacyPlant, ownerID uint) (bool, error) {
	if record.ID == 0 {
		return false, fmt.Errorf("importer: record %q/%q has no source id", record.Common, record.Latin)
	}

	imported := false
	txErr := i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plant := plants.Plant{
			ID:       record.ID,
			UserID:   ownerID,
			Common:   record.Common,
			Latin:    record.Latin,
			Location: record.Location,
			Notes:    record.Notes,
		}
		insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&plant)
		if insert.Error != nil {
			return fmt.Errorf("importer: plant %d: %w", record.ID, insert.Error)
		}
		if insert.RowsAffected == 0 {
			return nil
		}
		imported = true

		for _, action := range record.History {
			eventType, err := i.registry.ResolveEventType(action.Action)
			if err != nil {
				return fmt.Errorf("importer: plant %d: %w", record.ID, err)
			}
			row := plants.Event{
				PlantID:     record.ID,
				EventTypeID: eventType.ID,
				HappenedOn:  action.Start,
			}
			if err := applyLegacyPayload(&row, action); err != nil {
				return fmt.Errorf("importer: plant %d: %w", record.ID, err)
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("importer: plant %d event: %w", record.ID, err)
			}
		}
		return nil
	})
	if txErr != nil {
		return false, txErr
	}
	if imported {
		// Projection runs outside the ranked read path, once per plant.
		if err := projectImported(i.db, record.ID); err != nil {
			return true, err
		}
	}
	return imported, nil
}

func projectImported(db *gorm.DB, plantID uint) error {
	var stateIDs []uint
	err := db.Table("events").
		Select("event_types.new_state_id").
		Joins("JOIN event_types ON event_types.id = events.event_type_id").
		Where("events.plant_id = ? AND event_types.new_state_id IS NOT NULL", plantID).
		Order("events.happened_on DESC, events.id DESC").
		Limit(1).
		Scan(&stateIDs).Error
	if err != nil {
		return fmt.Errorf("importer: project plant %d: %w", plantID, err)
	}
	var currentStateID *uint
	if len(stateIDs) > 0 {
		currentStateID = &stateIDs[0]
	}
	return db.Model(&plants.Plant{}).Where("id = ?", plantID).Update("current_state_id", currentStateID).Error
}

func applyLegacyPayload(row *plants.Event, action LegacyAction) error {
	switch action.Action {
	case registry.EventCodeSow:
		if len(action.Range) != 4 {
			return fmt.Errorf("sow record needs a 4-element range, got %d", len(action.Range))
		}
		minVal, err := legacyInt(action.Range[0])
		if err != nil {
			return err
		}
		minUnit, err := legacyString(action.Range[1])
		if err != nil {
			return err
		}
		maxVal, err := legacyInt(action.Range[2])
		if err != nil {
			return err
		}
		maxUnit, err := legacyString(action.Range[3])
		if err != nil {
			return err
		}
		row.RangeMin, row.RangeMinUnit = &minVal, &minUnit
		row.RangeMax, row.RangeMaxUnit = &maxVal, &maxUnit
	case registry.EventCodeSoak, registry.EventCodeStrat:
		if len(action.Duration) != 2 {
			return fmt.Errorf("%s record needs a 2-element duration, got %d", action.Action, len(action.Duration))
		}
		value, err := legacyInt(action.Duration[0])
		if err != nil {
			return err
		}
		unit, err := legacyString(action.Duration[1])
		if err != nil {
			return err
		}
		row.DurationValue, row.DurationUnit = &value, &unit
	case registry.EventCodeMeasure:
		if len(action.Size) != 2 {
			return fmt.Errorf("measure record needs a 2-element size, got %d", len(action.Size))
		}
		value, err := legacyInt(action.Size[0])
		if err != nil {
			return err
		}
		unit, err := legacyString(action.Size[1])
		if err != nil {
			return err
		}
		row.MeasureValue, row.MeasureUnit = &value, &unit
	}
	return nil
}

func legacyInt(raw json.RawMessage) (int, error) {
	var value int
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, fmt.Errorf("expected integer, got %s", string(raw))
	}
	return value, nil
}

func legacyString(raw json.RawMessage) (string, error) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("expected string, got %s", string(raw))
	}
	return value, nil
}
