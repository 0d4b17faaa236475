package plants

import (
	"fmt"

	"gorm.io/gorm"
)

// projectState recomputes plants.current_state_id from the newest
// state-changing event on (happened_on DESC, id DESC). It runs inside the
// transaction of every event mutation and is idempotent: the same event set
// always projects the same state.
func (s *Service) projectState(tx *gorm.DB, plantID uint) error {
	var stateIDs []uint
	err := tx.Table("events").
		Select("event_types.new_state_id").
		Joins("JOIN event_types ON event_types.id = events.event_type_id").
		Where("events.plant_id = ? AND event_types.new_state_id IS NOT NULL", plantID).
		Order("events.happened_on DESC, events.id DESC").
		Limit(1).
		Scan(&stateIDs).Error
	if err != nil {
		return newServiceError(opProjectState, "state_query_failed", err)
	}

	var currentStateID *uint
	if len(stateIDs) > 0 {
		currentStateID = &stateIDs[0]
	}

	result := tx.Model(&Plant{}).Where("id = ?", plantID).Update("current_state_id", currentStateID)
	if result.Error != nil {
		return newServiceError(opProjectState, "state_update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		// Callers must have validated plant existence before mutating.
		return fmt.Errorf("%w: plant %d", ErrNotFound, plantID)
	}
	return nil
}

// ProjectAll reruns the projection for every plant. Used by the repair
// migration after schema changes that may have left stale state pointers.
func ProjectAll(db *gorm.DB) error {
	var plantIDs []uint
	if err := db.Model(&Plant{}).Pluck("id", &plantIDs).Error; err != nil {
		return fmt.Errorf("project all: %w", err)
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, plantID := range plantIDs {
			var stateIDs []uint
			err := tx.Table("events").
				Select("event_types.new_state_id").
				Joins("JOIN event_types ON event_types.id = events.event_type_id").
				Where("events.plant_id = ? AND event_types.new_state_id IS NOT NULL", plantID).
				Order("events.happened_on DESC, events.id DESC").
				Limit(1).
				Scan(&stateIDs).Error
			if err != nil {
				return fmt.Errorf("project all: plant %d: %w", plantID, err)
			}
			var currentStateID *uint
			if len(stateIDs) > 0 {
				currentStateID = &stateIDs[0]
			}
			if err := tx.Model(&Plant{}).Where("id = ?", plantID).Update("current_state_id", currentStateID).Error; err != nil {
				return fmt.Errorf("project all: plant %d: %w", plantID, err)
			}
		}
		return nil
	})
}
