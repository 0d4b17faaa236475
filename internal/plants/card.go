package plants

import (
	"github.com/simfr24/plantlog/internal/registry"
)

// RankNone is the sort rank assigned to plants without a current state.
const RankNone = 999

// EventView is one resolved history entry: the row joined with its type code
// and the payload variant for that code.
type EventView struct {
	ID         uint
	Action     string
	HappenedOn string
	Payload    EventPayload
}

// PlantCard is the read-time view of a plant: metadata, the ordered event
// history, the latest event, and the resolved current state. It is assembled
// fresh on every read and never cached across requests.
type PlantCard struct {
	ID       uint
	OwnerID  uint
	Common   string
	Latin    string
	Location string
	Notes    string

	// History is ordered oldest to newest on (happened_on, id).
	History []EventView
	// Current is the last history entry, nil when the history is empty.
	Current *EventView
	// State is the resolved current state, nil when no state-changing
	// event exists.
	State *registry.StateType
	// StateRank is State.SortRank, or RankNone without a state.
	StateRank int
}

func buildEventView(row Event, eventType registry.EventType) EventView {
	return EventView{
		ID:         row.ID,
		Action:     eventType.Code,
		HappenedOn: row.HappenedOn,
		Payload:    extractPayload(row, eventType.Code),
	}
}

func (s *Service) buildCard(plant Plant, rows []Event) (PlantCard, error) {
	card := PlantCard{
		ID:        plant.ID,
		OwnerID:   plant.UserID,
		Common:    plant.Common,
		Latin:     plant.Latin,
		Location:  plant.Location,
		Notes:     plant.Notes,
		History:   make([]EventView, 0, len(rows)),
		StateRank: RankNone,
	}

	for _, row := range rows {
		eventType, ok := s.registry.EventTypeByID(row.EventTypeID)
		if !ok {
			return PlantCard{}, newUnknownEventTypeIDError(row.EventTypeID)
		}
		card.History = append(card.History, buildEventView(row, eventType))
	}
	if len(card.History) > 0 {
		card.Current = &card.History[len(card.History)-1]
	}

	if plant.CurrentStateID != nil {
		if state, ok := s.registry.StateByID(*plant.CurrentStateID); ok {
			card.State = &state
			card.StateRank = state.SortRank
		}
	}
	return card, nil
}

// UniqueLocations returns the distinct non-empty locations across cards,
// in first-seen order.
func UniqueLocations(cards []PlantCard) []string {
	seen := map[string]struct{}{}
	locations := make([]string, 0)
	for _, card := range cards {
		if card.Location == "" {
			continue
		}
		if _, ok := seen[card.Location]; ok {
			continue
		}
		seen[card.Location] = struct{}{}
		locations = append(locations, card.Location)
	}
	return locations
}
