// Package forms translates raw submitted field values into validated event
// inputs. Errors are collected into a list so a form can re-render with
// every problem shown at once; they never surface as Go errors.
package forms

import (
	"strconv"
	"strings"

	"github.com/simfr24/plantlog/internal/plants"
	"github.com/simfr24/plantlog/internal/registry"
)

// Context distinguishes which fields a submission must carry.
type Context string

const (
	// ContextAdd is a new-plant submission: metadata plus first event.
	ContextAdd Context = "add"
	// ContextEdit is a metadata-only edit.
	ContextEdit Context = "edit"
	// ContextStage is an event-only submission against an existing plant.
	ContextStage Context = "stage"
)

// Form mirrors the submitted field set. Numeric fields default to zero when
// unparseable; validation reports them as non-positive.
type Form struct {
	Common   string `json:"common"`
	Latin    string `json:"latin"`
	Location string `json:"location"`
	Notes    string `json:"notes"`

	Status    string `json:"status"`
	EventDate string `json:"event_date"`

	RangeMin     int    `json:"event_range_min"`
	RangeMinUnit string `json:"event_range_min_u"`
	RangeMax     int    `json:"event_range_max"`
	RangeMaxUnit string `json:"event_range_max_u"`

	DurationValue int    `json:"event_dur_val"`
	DurationUnit  string `json:"event_dur_unit"`

	SizeValue int    `json:"event_size_val"`
	SizeUnit  string `json:"event_size_unit"`

	CustomLabel string `json:"event_custom_label"`
	CustomNote  string `json:"event_custom_note"`
}

// Empty returns a form with the defaults the UI starts from.
func Empty() Form {
	return Form{
		Status:       registry.EventCodeSow,
		RangeMinUnit: plants.UnitDays,
		RangeMaxUnit: plants.UnitDays,
		DurationUnit: plants.UnitHours,
		SizeUnit:     "cm",
	}
}

// Parse builds a form from raw string fields, trimming text and defaulting
// unparseable numbers to zero.
func Parse(raw map[string]string) Form {
	form := Empty()
	form.Common = strings.TrimSpace(raw["common"])
	form.Latin = strings.TrimSpace(raw["latin"])
	form.Location = strings.TrimSpace(raw["location"])
	form.Notes = strings.TrimSpace(raw["notes"])
	form.Status = strings.TrimSpace(raw["status"])
	form.EventDate = strings.TrimSpace(raw["event_date"])
	form.RangeMin = toInt(raw["event_range_min"])
	form.RangeMax = toInt(raw["event_range_max"])
	form.DurationValue = toInt(raw["event_dur_val"])
	form.SizeValue = toInt(raw["event_size_val"])
	form.CustomLabel = strings.TrimSpace(raw["event_custom_label"])
	form.CustomNote = strings.TrimSpace(raw["event_custom_note"])
	if unit := strings.TrimSpace(raw["event_range_min_u"]); unit != "" {
		form.RangeMinUnit = unit
	}
	if unit := strings.TrimSpace(raw["event_range_max_u"]); unit != "" {
		form.RangeMaxUnit = unit
	}
	if unit := strings.TrimSpace(raw["event_dur_unit"]); unit != "" {
		form.DurationUnit = unit
	}
	if unit := strings.TrimSpace(raw["event_size_unit"]); unit != "" {
		form.SizeUnit = unit
	}
	return form
}

func toInt(value string) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return parsed
}

// Validate applies the per-type rules and returns every violation plus the
// best-effort parsed event. Callers discard the event when errors are
// present. A nil event with no errors means the form carried no event at
// all (metadata-only edit).
func Validate(form Form, context Context) ([]string, *plants.EventInput) {
	errors := make([]string, 0)

	if context == ContextAdd || context == ContextEdit {
		if form.Common == "" {
			errors = append(errors, "Common name is required.")
		}
		if form.Latin == "" {
			errors = append(errors, "Latin name is required.")
		}
	}

	status := form.Status
	if status == "" {
		return errors, nil
	}
	if form.EventDate == "" {
		errors = append(errors, "Date for "+status+" is required.")
	} else if _, err := plants.ParseDate(form.EventDate); err != nil {
		errors = append(errors, "Date for "+status+" must be YYYY-MM-DD.")
	}

	event := &plants.EventInput{TypeCode: status, HappenedOn: form.EventDate}

	switch status {
	case registry.EventCodeSow:
		payload := plants.RangePayload{
			MinValue: form.RangeMin,
			MinUnit:  form.RangeMinUnit,
			MaxValue: form.RangeMax,
			MaxUnit:  form.RangeMaxUnit,
		}
		if payload.MinDays() <= 0 || payload.MaxDays() <= 0 {
			errors = append(errors, "Sprout range must be greater than zero.")
		}
		if payload.MinDays() > payload.MaxDays() {
			errors = append(errors, "Sprout range minimum exceeds maximum.")
		}
		event.Payload = payload
	case registry.EventCodeSoak, registry.EventCodeStrat:
		if form.DurationValue <= 0 {
			errors = append(errors, "Duration must be greater than zero.")
		}
		event.Payload = plants.DurationPayload{Value: form.DurationValue, Unit: form.DurationUnit}
	case registry.EventCodeMeasure:
		if form.SizeValue <= 0 {
			errors = append(errors, "Size must be greater than zero.")
		}
		event.Payload = plants.MeasurePayload{Value: form.SizeValue, Unit: form.SizeUnit}
	case registry.EventCodeCustom:
		if form.CustomLabel == "" {
			errors = append(errors, "Label is required for a custom note.")
		}
		event.Payload = plants.CustomPayload{Label: form.CustomLabel, Note: form.CustomNote}
	}

	return errors, event
}

// Metadata extracts the descriptive plant fields from a submission.
func Metadata(form Form) plants.PlantMetadata {
	return plants.PlantMetadata{
		Common:   strings.TrimSpace(form.Common),
		Latin:    strings.TrimSpace(form.Latin),
		Location: strings.TrimSpace(form.Location),
		Notes:    strings.TrimSpace(form.Notes),
	}
}

// FromEventView refills a form from a stored event, for edit screens.
func FromEventView(view plants.EventView) Form {
	form := Empty()
	form.Status = view.Action
	form.EventDate = view.HappenedOn

	switch payload := view.Payload.(type) {
	case plants.RangePayload:
		form.RangeMin = payload.MinValue
		form.RangeMinUnit = payload.MinUnit
		form.RangeMax = payload.MaxValue
		form.RangeMaxUnit = payload.MaxUnit
	case plants.DurationPayload:
		form.DurationValue = payload.Value
		form.DurationUnit = payload.Unit
	case plants.MeasurePayload:
		form.SizeValue = payload.Value
		form.SizeUnit = payload.Unit
	case plants.CustomPayload:
		form.CustomLabel = payload.Label
		form.CustomNote = payload.Note
	}
	return form
}
