package plants

import (
	"testing"

	"github.com/simfr24/plantlog/internal/registry"
)

func cardInState(id uint, label string) PlantCard {
	if label == "" {
		return PlantCard{ID: id, StateRank: RankNone}
	}
	state := registry.StateType{Label: label, SortRank: 1}
	return PlantCard{ID: id, State: &state, StateRank: state.SortRank}
}

func cardsInState(label string, count int, nextID *uint) []PlantCard {
	cards := make([]PlantCard, 0, count)
	for i := 0; i < count; i++ {
		cards = append(cards, cardInState(*nextID, label))
		*nextID++
	}
	return cards
}

func countPlants(groups []StateGroup) map[uint]int {
	ids := map[uint]int{}
	for _, group := range groups {
		for _, card := range group.Plants {
			ids[card.ID]++
		}
	}
	return ids
}

func TestGroupByStatePreservesFirstSeenOrder(t *testing.T) {
	cards := []PlantCard{
		cardInState(1, "Growing"),
		cardInState(2, "Sown"),
		cardInState(3, "Growing"),
		cardInState(4, "Flowering"),
	}

	groups := GroupByState(cards)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	wantOrder := []string{"Growing", "Sown", "Flowering"}
	for i, label := range wantOrder {
		if groups[i].Label != label {
			t.Fatalf("group %d: got %q, want %q", i, groups[i].Label, label)
		}
	}
	if len(groups[0].Plants) != 2 {
		t.Fatalf("expected non-adjacent cards to merge, got %d plants", len(groups[0].Plants))
	}
}

func TestGroupByStateStatelessPlantsGroupAsUnknown(t *testing.T) {
	groups := GroupByState([]PlantCard{cardInState(1, ""), cardInState(2, "")})
	if len(groups) != 1 || groups[0].Label != UnknownGroupLabel {
		t.Fatalf("unexpected groups: %+v", groups)
	}
}

func TestDeadGroupHiddenUnlessLast(t *testing.T) {
	midDead := []PlantCard{
		cardInState(1, "dead"),
		cardInState(2, "Growing"),
	}
	groups := GroupByState(midDead)
	if len(groups) != 1 || groups[0].Label != "Growing" {
		t.Fatalf("mid-list dead group must be hidden, got %+v", groups)
	}

	lastDead := []PlantCard{
		cardInState(1, "Growing"),
		cardInState(2, "DEAD"),
	}
	groups = GroupByState(lastDead)
	if len(groups) != 2 {
		t.Fatalf("trailing dead group must be kept, got %+v", groups)
	}
	if groups[1].Label != DeadGroupLabel || !groups[1].Dead {
		t.Fatalf("dead bucket not canonicalized: %+v", groups[1])
	}
}

func TestSplitColumnsDominantGroupIsolatedRight(t *testing.T) {
	var nextID uint = 1
	groups := []StateGroup{
		{Label: "Growing", Plants: cardsInState("Growing", 10, &nextID)},
		{Label: "Sown", Plants: cardsInState("Sown", 1, &nextID)},
		{Label: "Flowering", Plants: cardsInState("Flowering", 1, &nextID)},
	}

	left, right := SplitColumns(groups)
	if len(right) != 1 || right[0].Label != "Growing" {
		t.Fatalf("expected the dominant group alone on the right, got %+v", right)
	}
	if len(left) != 2 {
		t.Fatalf("expected the two small groups on the left, got %+v", left)
	}
}

func TestSplitColumnsGreedyBalancesTotals(t *testing.T) {
	var nextID uint = 1
	groups := []StateGroup{
		{Label: "A", Plants: cardsInState("A", 3, &nextID)},
		{Label: "B", Plants: cardsInState("B", 3, &nextID)},
		{Label: "C", Plants: cardsInState("C", 2, &nextID)},
	}

	left, right := SplitColumns(groups)
	// A left on the opening tie, B right (0 < 3), C left again (3 == 3).
	if len(left) != 2 || left[0].Label != "A" || left[1].Label != "C" {
		t.Fatalf("unexpected left column: %+v", left)
	}
	if len(right) != 1 || right[0].Label != "B" {
		t.Fatalf("unexpected right column: %+v", right)
	}
}

func TestSplitColumnsConservesPlants(t *testing.T) {
	var nextID uint = 1
	cases := [][]StateGroup{
		{
			{Label: "A", Plants: cardsInState("A", 10, &nextID)},
			{Label: "B", Plants: cardsInState("B", 1, &nextID)},
			{Label: "C", Plants: cardsInState("C", 1, &nextID)},
		},
		{
			{Label: "A", Plants: cardsInState("A", 2, &nextID)},
			{Label: "B", Plants: cardsInState("B", 5, &nextID)},
			{Label: "C", Plants: cardsInState("C", 4, &nextID)},
			{Label: "D", Plants: cardsInState("D", 1, &nextID)},
		},
		{},
	}

	for caseIndex, groups := range cases {
		want := countPlants(groups)
		left, right := SplitColumns(groups)
		got := countPlants(append(append([]StateGroup{}, left...), right...))
		if len(got) != len(want) {
			t.Fatalf("case %d: plant set changed: got %d ids, want %d", caseIndex, len(got), len(want))
		}
		for id, count := range want {
			if got[id] != count {
				t.Fatalf("case %d: plant %d appears %d times, want %d", caseIndex, id, got[id], count)
			}
		}
	}
}
