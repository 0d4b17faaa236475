package plants

import (
	"sort"
	"time"

	"github.com/simfr24/plantlog/internal/registry"
)

// RemainingNone sorts a plant last within its rank when no countdown applies.
const RemainingNone = 9999

// SortKey computes the two-level dashboard ordering for a card: the state
// rank first, then the estimated days until the current waiting event (sow,
// soak, strat) completes. A malformed event date never fails the dashboard;
// it degrades to worst-case ordering.
func SortKey(card PlantCard, today time.Time) (int, int) {
	rank := card.StateRank
	remaining := RemainingNone

	current := card.Current
	if current == nil {
		return rank, remaining
	}

	start, err := ParseDate(current.HappenedOn)
	if err != nil {
		return rank, remaining
	}

	var waitDays int
	switch current.Action {
	case registry.EventCodeSow:
		rangePayload, ok := current.Payload.(RangePayload)
		if !ok {
			return rank, remaining
		}
		waitDays = rangePayload.MinDays()
	case registry.EventCodeSoak, registry.EventCodeStrat:
		durationPayload, ok := current.Payload.(DurationPayload)
		if !ok {
			return rank, remaining
		}
		waitDays = durationPayload.Days()
	default:
		return rank, remaining
	}

	due := start.AddDate(0, 0, waitDays)
	remaining = int(due.Sub(today).Hours() / 24)
	if remaining < 0 {
		remaining = 0
	}
	return rank, remaining
}

// SortCards orders cards by urgency in place. The sort is stable: cards with
// equal keys keep their input order.
func SortCards(cards []PlantCard, today time.Time) {
	type ranked struct {
		card      PlantCard
		rank      int
		remaining int
	}
	entries := make([]ranked, len(cards))
	for i, card := range cards {
		rank, remaining := SortKey(card, today)
		entries[i] = ranked{card: card, rank: rank, remaining: remaining}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].rank != entries[j].rank {
			return entries[i].rank < entries[j].rank
		}
		return entries[i].remaining < entries[j].remaining
	})
	for i := range entries {
		cards[i] = entries[i].card
	}
}
