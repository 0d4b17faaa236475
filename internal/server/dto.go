package server

import (
	"github.com/simfr24/plantlog/internal/plants"
)

type statePayload struct {
	Code       string `json:"code"`
	Label      string `json:"label"`
	ColorClass string `json:"color_class"`
	IconClass  string `json:"icon_class"`
}

type rangePayload struct {
	MinValue int    `json:"min"`
	MinUnit  string `json:"min_unit"`
	MaxValue int    `json:"max"`
	MaxUnit  string `json:"max_unit"`
}

type durationPayload struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

type measurePayload struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

type customPayload struct {
	Label string `json:"label"`
	Note  string `json:"note,omitempty"`
}

type eventPayload struct {
	ID         uint             `json:"id"`
	Action     string           `json:"action"`
	HappenedOn string           `json:"happened_on"`
	Range      *rangePayload    `json:"range,omitempty"`
	Duration   *durationPayload `json:"duration,omitempty"`
	Measure    *measurePayload  `json:"measure,omitempty"`
	Custom     *customPayload   `json:"custom,omitempty"`
}

type cardPayload struct {
	ID        uint           `json:"id"`
	Common    string         `json:"common"`
	Latin     string         `json:"latin"`
	Location  string         `json:"location,omitempty"`
	Notes     string         `json:"notes,omitempty"`
	History   []eventPayload `json:"history"`
	Current   *eventPayload  `json:"current,omitempty"`
	State     *statePayload  `json:"state,omitempty"`
	StateRank int            `json:"state_rank"`
}

type groupPayload struct {
	Label  string        `json:"label"`
	Dead   bool          `json:"dead"`
	Plants []cardPayload `json:"plants"`
}

func eventToDTO(view plants.EventView) eventPayload {
	dto := eventPayload{
		ID:         view.ID,
		Action:     view.Action,
		HappenedOn: view.HappenedOn,
	}
	switch payload := view.Payload.(type) {
	case plants.RangePayload:
		dto.Range = &rangePayload{
			MinValue: payload.MinValue,
			MinUnit:  payload.MinUnit,
			MaxValue: payload.MaxValue,
			MaxUnit:  payload.MaxUnit,
		}
	case plants.DurationPayload:
		dto.Duration = &durationPayload{Value: payload.Value, Unit: payload.Unit}
	case plants.MeasurePayload:
		dto.Measure = &measurePayload{Value: payload.Value, Unit: payload.Unit}
	case plants.CustomPayload:
		dto.Custom = &customPayload{Label: payload.Label, Note: payload.Note}
	}
	return dto
}

func cardToDTO(card plants.PlantCard) cardPayload {
	dto := cardPayload{
		ID:        card.ID,
		Common:    card.Common,
		Latin:     card.Latin,
		Location:  card.Location,
		Notes:     card.Notes,
		History:   make([]eventPayload, 0, len(card.History)),
		StateRank: card.StateRank,
	}
	for _, view := range card.History {
		dto.History = append(dto.History, eventToDTO(view))
	}
	if card.Current != nil {
		current := eventToDTO(*card.Current)
		dto.Current = &current
	}
	if card.State != nil {
		dto.State = &statePayload{
			Code:       card.State.Code,
			Label:      card.State.Label,
			ColorClass: card.State.ColorClass,
			IconClass:  card.State.IconClass,
		}
	}
	return dto
}

func cardsToDTO(cards []plants.PlantCard) []cardPayload {
	payload := make([]cardPayload, 0, len(cards))
	for _, card := range cards {
		payload = append(payload, cardToDTO(card))
	}
	return payload
}

func groupsToDTO(groups []plants.StateGroup) []groupPayload {
	payload := make([]groupPayload, 0, len(groups))
	for _, group := range groups {
		payload = append(payload, groupPayload{
			Label:  group.Label,
			Dead:   group.Dead,
			Plants: cardsToDTO(group.Plants),
		})
	}
	return payload
}
