package plants

import (
	"errors"
	"fmt"
	"time"

	"github.com/simfr24/plantlog/internal/registry"
)

// DateLayout is the calendar-date format events are stored with. Dates carry
// no time of day; lexicographic order on the stored string matches
// chronological order.
const DateLayout = "2006-01-02"

var (
	// ErrNotFound indicates a referenced plant or event does not exist.
	ErrNotFound = errors.New("plants: not found")
	// ErrInvalidEvent indicates an event input that cannot be persisted.
	ErrInvalidEvent = errors.New("plants: invalid event")
)

// Plant owns its event history and carries the denormalized current state
// pointer maintained by the projector.
type Plant struct {
	ID             uint   `gorm:"column:id;primaryKey"`
	UserID         uint   `gorm:"column:user_id;not null;index"`
	Common         string `gorm:"column:common;size:190;not null"`
	Latin          string `gorm:"column:latin;size:190;not null"`
	Location       string `gorm:"column:location;size:190"`
	Notes          string `gorm:"column:notes;type:text"`
	CurrentStateID *uint  `gorm:"column:current_state_id"`
}

// TableName provides the explicit table binding for GORM.
func (Plant) TableName() string {
	return "plants"
}

// Event is the persisted row. The nullable payload columns are the wire
// contract for migration tooling; which columns are populated is decided by
// the event type code.
type Event struct {
	ID          uint   `gorm:"column:id;primaryKey"`
	PlantID     uint   `gorm:"column:plant_id;not null;index:idx_events_plant_date,priority:1"`
	EventTypeID uint   `gorm:"column:event_type_id;not null"`
	HappenedOn  string `gorm:"column:happened_on;size:10;not null;index:idx_events_plant_date,priority:2"`

	RangeMin     *int    `gorm:"column:range_min"`
	RangeMinUnit *string `gorm:"column:range_min_u;size:16"`
	RangeMax     *int    `gorm:"column:range_max"`
	RangeMaxUnit *string `gorm:"column:range_max_u;size:16"`

	DurationValue *int    `gorm:"column:dur_val"`
	DurationUnit  *string `gorm:"column:dur_unit;size:16"`

	MeasureValue *int    `gorm:"column:measure_val"`
	MeasureUnit  *string `gorm:"column:measure_unit;size:16"`

	CustomLabel *string `gorm:"column:custom_label;size:190"`
	CustomNote  *string `gorm:"column:custom_note;type:text"`
}

// TableName provides the explicit table binding for GORM.
func (Event) TableName() string {
	return "events"
}

// Duration units accepted for waiting periods and sow ranges.
const (
	UnitHours  = "hours"
	UnitDays   = "days"
	UnitWeeks  = "weeks"
	UnitMonths = "months"
)

// DurationToDays normalizes a value/unit pair into whole days.
func DurationToDays(value int, unit string) int {
	switch unit {
	case UnitMonths:
		return value * 30
	case UnitWeeks:
		return value * 7
	case UnitHours:
		return int(float64(value)/24 + 0.5)
	default:
		return value
	}
}

// EventPayload is the tagged union of type-specific event data. Exactly one
// variant is valid per event type code; events such as sprout or water carry
// no payload at all.
type EventPayload interface {
	isEventPayload()
}

// RangePayload is the expected-germination window attached to a sow event.
type RangePayload struct {
	MinValue int
	MinUnit  string
	MaxValue int
	MaxUnit  string
}

func (RangePayload) isEventPayload() {}

// MinDays returns the lower bound of the window in whole days.
func (p RangePayload) MinDays() int {
	return DurationToDays(p.MinValue, p.MinUnit)
}

// MaxDays returns the upper bound of the window in whole days.
func (p RangePayload) MaxDays() int {
	return DurationToDays(p.MaxValue, p.MaxUnit)
}

// DurationPayload is the waiting period attached to soak and strat events.
type DurationPayload struct {
	Value int
	Unit  string
}

func (DurationPayload) isEventPayload() {}

// Days returns the waiting period in whole days.
func (p DurationPayload) Days() int {
	return DurationToDays(p.Value, p.Unit)
}

// MeasurePayload is a size measurement.
type MeasurePayload struct {
	Value int
	Unit  string
}

func (MeasurePayload) isEventPayload() {}

// CustomPayload is a free-form note with a required label.
type CustomPayload struct {
	Label string
	Note  string
}

func (CustomPayload) isEventPayload() {}

// EventInput describes one event to record: a validated type code, a
// calendar date, and the payload variant matching the code (nil for
// payload-free types).
type EventInput struct {
	TypeCode   string
	HappenedOn string
	Payload    EventPayload
}

// PlantMetadata carries the mutable descriptive fields of a plant.
type PlantMetadata struct {
	Common   string
	Latin    string
	Location string
	Notes    string
}

// applyPayload writes the payload variant into the row's nullable columns,
// clearing every column that does not belong to the event's type.
func applyPayload(row *Event, code string, payload EventPayload) error {
	row.RangeMin, row.RangeMinUnit, row.RangeMax, row.RangeMaxUnit = nil, nil, nil, nil
	row.DurationValue, row.DurationUnit = nil, nil
	row.MeasureValue, row.MeasureUnit = nil, nil
	row.CustomLabel, row.CustomNote = nil, nil

	switch code {
	case registry.EventCodeSow:
		rangePayload, ok := payload.(RangePayload)
		if !ok {
			return fmt.Errorf("%w: sow requires a range payload", ErrInvalidEvent)
		}
		row.RangeMin = &rangePayload.MinValue
		row.RangeMinUnit = &rangePayload.MinUnit
		row.RangeMax = &rangePayload.MaxValue
		row.RangeMaxUnit = &rangePayload.MaxUnit
	case registry.EventCodeSoak, registry.EventCodeStrat:
		durationPayload, ok := payload.(DurationPayload)
		if !ok {
			return fmt.Errorf("%w: %s requires a duration payload", ErrInvalidEvent, code)
		}
		row.DurationValue = &durationPayload.Value
		row.DurationUnit = &durationPayload.Unit
	case registry.EventCodeMeasure:
		measurePayload, ok := payload.(MeasurePayload)
		if !ok {
			return fmt.Errorf("%w: measure requires a measurement payload", ErrInvalidEvent)
		}
		row.MeasureValue = &measurePayload.Value
		row.MeasureUnit = &measurePayload.Unit
	case registry.EventCodeCustom:
		customPayload, ok := payload.(CustomPayload)
		if !ok {
			return fmt.Errorf("%w: custom requires a label payload", ErrInvalidEvent)
		}
		row.CustomLabel = &customPayload.Label
		row.CustomNote = &customPayload.Note
	default:
		if payload != nil {
			return fmt.Errorf("%w: %s carries no payload", ErrInvalidEvent, code)
		}
	}
	return nil
}

// extractPayload reads the variant matching the code back out of the row.
func extractPayload(row Event, code string) EventPayload {
	switch code {
	case registry.EventCodeSow:
		if row.RangeMin == nil || row.RangeMinUnit == nil || row.RangeMax == nil || row.RangeMaxUnit == nil {
			return nil
		}
		return RangePayload{
			MinValue: *row.RangeMin,
			MinUnit:  *row.RangeMinUnit,
			MaxValue: *row.RangeMax,
			MaxUnit:  *row.RangeMaxUnit,
		}
	case registry.EventCodeSoak, registry.EventCodeStrat:
		if row.DurationValue == nil || row.DurationUnit == nil {
			return nil
		}
		return DurationPayload{Value: *row.DurationValue, Unit: *row.DurationUnit}
	case registry.EventCodeMeasure:
		if row.MeasureValue == nil || row.MeasureUnit == nil {
			return nil
		}
		return MeasurePayload{Value: *row.MeasureValue, Unit: *row.MeasureUnit}
	case registry.EventCodeCustom:
		if row.CustomLabel == nil {
			return nil
		}
		payload := CustomPayload{Label: *row.CustomLabel}
		if row.CustomNote != nil {
			payload.Note = *row.CustomNote
		}
		return payload
	default:
		return nil
	}
}

// ParseDate parses a stored calendar date.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}
