package registry

// StateType describes one possible plant lifecycle state. The code is the
// stable identity; label, visual classes and sort rank may be reseeded.
type StateType struct {
	ID         uint   `gorm:"column:id;primaryKey"`
	Code       string `gorm:"column:code;size:32;not null;uniqueIndex"`
	Label      string `gorm:"column:label;size:64;not null"`
	ColorClass string `gorm:"column:color_class;size:64;not null"`
	IconClass  string `gorm:"column:icon_class;size:64;not null"`
	SortRank   int    `gorm:"column:sort_rank;not null"`
}

// TableName provides the explicit table binding for GORM.
func (StateType) TableName() string {
	return "state_types"
}

// EventType describes one kind of loggable occurrence. NewStateID, when set,
// points at the state the plant enters once such an event is recorded.
type EventType struct {
	ID         uint   `gorm:"column:id;primaryKey"`
	Code       string `gorm:"column:code;size:32;not null;uniqueIndex"`
	Label      string `gorm:"column:label;size:64;not null"`
	ColorClass string `gorm:"column:color_class;size:64;not null"`
	IconClass  string `gorm:"column:icon_class;size:64;not null"`
	NewStateID *uint  `gorm:"column:new_state_id"`
	SortRank   int    `gorm:"column:sort_rank;not null"`
}

// TableName provides the explicit table binding for GORM.
func (EventType) TableName() string {
	return "event_types"
}

// Event type codes recorded against plants.
const (
	EventCodeSow       = "sow"
	EventCodeSoak      = "soak"
	EventCodeStrat     = "strat"
	EventCodePlant     = "plant"
	EventCodeSprout    = "sprout"
	EventCodeWater     = "water"
	EventCodeFertilize = "fertilize"
	EventCodeFlower    = "flower"
	EventCodeFruit     = "fruit"
	EventCodeMeasure   = "measure"
	EventCodeCustom    = "custom"
	EventCodeDeath     = "death"
)

// Plant state codes.
const (
	StateCodeSeed      = "seed"
	StateCodeSoaked    = "soaked"
	StateCodeStrat     = "strat"
	StateCodeGrowing   = "growing"
	StateCodeFlowering = "flowering"
	StateCodeFruiting  = "fruiting"
	StateCodeDead      = "dead"
)
