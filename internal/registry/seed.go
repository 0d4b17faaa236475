package registry

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type stateSeed struct {
	code       string
	label      string
	colorClass string
	iconClass  string
	sortRank   int
}

type eventSeed struct {
	code       string
	label      string
	colorClass string
	iconClass  string
	stateCode  string
	sortRank   int
}

var stateSeeds = []stateSeed{
	{StateCodeSoaked, "Soaking", "text-primary", "fa-tint", 10},
	{StateCodeStrat, "Stratifying", "text-info", "fa-snowflake", 20},
	{StateCodeSeed, "Sown", "text-success", "fa-seedling", 30},
	{StateCodeGrowing, "Growing", "text-success", "fa-leaf", 40},
	{StateCodeFlowering, "Flowering", "text-warning", "fa-fan", 50},
	{StateCodeFruiting, "Fruiting", "text-danger", "fa-apple-alt", 60},
	{StateCodeDead, "Dead", "text-secondary", "fa-skull", 90},
}

var eventSeeds = []eventSeed{
	{EventCodeSow, "Sow", "text-success", "fa-seedling", StateCodeSeed, 10},
	{EventCodeSoak, "Soak", "text-primary", "fa-tint", StateCodeSoaked, 20},
	{EventCodeStrat, "Strat", "text-info", "fa-snowflake", StateCodeStrat, 30},
	{EventCodePlant, "Plant", "text-success", "fa-trowel", StateCodeGrowing, 40},
	{EventCodeSprout, "Sprout", "text-success", "fa-leaf", StateCodeGrowing, 50},
	{EventCodeWater, "Water", "text-primary", "fa-cloud-rain", "", 60},
	{EventCodeFertilize, "Fertilize", "text-warning", "fa-flask", "", 70},
	{EventCodeFlower, "Flower", "text-warning", "fa-fan", StateCodeFlowering, 80},
	{EventCodeFruit, "Fruit", "text-danger", "fa-apple-alt", StateCodeFruiting, 90},
	{EventCodeMeasure, "Measure", "text-muted", "fa-ruler", "", 100},
	{EventCodeCustom, "Note", "text-muted", "fa-sticky-note", "", 110},
	{EventCodeDeath, "Death", "text-secondary", "fa-skull", StateCodeDead, 120},
}

// Seed writes the reference dataset. It is idempotent: codes are upserted,
// display fields and ranks are refreshed, identities never change.
func Seed(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, seed := range stateSeeds {
			state := StateType{
				Code:       seed.code,
				Label:      seed.label,
				ColorClass: seed.colorClass,
				IconClass:  seed.iconClass,
				SortRank:   seed.sortRank,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "code"}},
				DoUpdates: clause.AssignmentColumns([]string{"label", "color_class", "icon_class", "sort_rank"}),
			}).Create(&state).Error
			if err != nil {
				return fmt.Errorf("seed state type %s: %w", seed.code, err)
			}
		}

		stateIDs := map[string]uint{}
		var states []StateType
		if err := tx.Find(&states).Error; err != nil {
			return fmt.Errorf("load state types: %w", err)
		}
		for _, state := range states {
			stateIDs[state.Code] = state.ID
		}

		for _, seed := range eventSeeds {
			var newStateID *uint
			if seed.stateCode != "" {
				id, ok := stateIDs[seed.stateCode]
				if !ok {
					return fmt.Errorf("seed event type %s: state %s not seeded", seed.code, seed.stateCode)
				}
				newStateID = &id
			}
			eventType := EventType{
				Code:       seed.code,
				Label:      seed.label,
				ColorClass: seed.colorClass,
				IconClass:  seed.iconClass,
				NewStateID: newStateID,
				SortRank:   seed.sortRank,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "code"}},
				DoUpdates: clause.AssignmentColumns([]string{"label", "color_class", "icon_class", "new_state_id", "sort_rank"}),
			}).Create(&eventType).Error
			if err != nil {
				return fmt.Errorf("seed event type %s: %w", seed.code, err)
			}
		}
		return nil
	})
}
