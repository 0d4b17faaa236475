package plants

import (
	"strings"
)

// DeadGroupLabel is the canonical bucket for any state labelled "dead",
// whatever its casing.
const DeadGroupLabel = "Dead"

// UnknownGroupLabel groups plants that have no current state.
const UnknownGroupLabel = "Unknown"

// StateGroup is one dashboard card: a state label and the plants in it, in
// ranked order.
type StateGroup struct {
	Label  string
	Plants []PlantCard
	Dead   bool
}

// GroupByState buckets ranked cards by state label, preserving first-seen
// order. A dead group is kept only when it is the final group encountered;
// a dead bucket surfacing mid-list is a transient and is hidden.
func GroupByState(cards []PlantCard) []StateGroup {
	order := make([]string, 0)
	byLabel := map[string]*StateGroup{}

	for _, card := range cards {
		label := UnknownGroupLabel
		if card.State != nil && card.State.Label != "" {
			label = card.State.Label
		}
		dead := strings.EqualFold(label, DeadGroupLabel)
		if dead {
			label = DeadGroupLabel
		}

		group, ok := byLabel[label]
		if !ok {
			group = &StateGroup{Label: label, Dead: dead}
			byLabel[label] = group
			order = append(order, label)
		}
		group.Plants = append(group.Plants, card)
	}

	groups := make([]StateGroup, 0, len(order))
	for i, label := range order {
		group := byLabel[label]
		if group.Dead && i != len(order)-1 {
			continue
		}
		groups = append(groups, *group)
	}
	return groups
}

// SplitColumns distributes groups across two dashboard columns. If one group
// holds more plants than all others combined it is isolated in the right
// column; otherwise groups go greedily to whichever column is shorter, ties
// to the left.
func SplitColumns(groups []StateGroup) (left, right []StateGroup) {
	left = make([]StateGroup, 0, len(groups))
	right = make([]StateGroup, 0, len(groups))

	total := 0
	for _, group := range groups {
		total += len(group.Plants)
	}
	for i, group := range groups {
		if len(group.Plants) > total-len(group.Plants) {
			right = append(right, group)
			for j, other := range groups {
				if j != i {
					left = append(left, other)
				}
			}
			return left, right
		}
	}

	leftCount, rightCount := 0, 0
	for _, group := range groups {
		if rightCount < leftCount {
			right = append(right, group)
			rightCount += len(group.Plants)
		} else {
			left = append(left, group)
			leftCount += len(group.Plants)
		}
	}
	return left, right
}
