package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"
)

// ErrUnknownEventType indicates an event code the registry does not know.
// This is config drift, not user input, and always aborts the operation.
var ErrUnknownEventType = errors.New("registry: unknown event type")

var errMissingDatabase = errors.New("registry: database handle is required")

// Registry caches the event/state reference data for the process lifetime.
// It is read-mostly after startup; Reload refreshes the cache after a reseed.
type Registry struct {
	db *gorm.DB

	mu            sync.RWMutex
	eventsByCode  map[string]EventType
	eventsByID    map[uint]EventType
	statesByID    map[uint]StateType
	statesByCode  map[string]StateType
	orderedEvents []EventType
}

// New constructs the registry and performs the initial load.
func New(db *gorm.DB) (*Registry, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	registry := &Registry{db: db}
	if err := registry.Reload(); err != nil {
		return nil, err
	}
	return registry, nil
}

// Reload re-reads both reference tables, replacing the cached view.
func (r *Registry) Reload() error {
	var eventTypes []EventType
	if err := r.db.Find(&eventTypes).Error; err != nil {
		return fmt.Errorf("registry: load event types: %w", err)
	}
	var stateTypes []StateType
	if err := r.db.Find(&stateTypes).Error; err != nil {
		return fmt.Errorf("registry: load state types: %w", err)
	}

	eventsByCode := make(map[string]EventType, len(eventTypes))
	eventsByID := make(map[uint]EventType, len(eventTypes))
	for _, eventType := range eventTypes {
		eventsByCode[eventType.Code] = eventType
		eventsByID[eventType.ID] = eventType
	}
	statesByID := make(map[uint]StateType, len(stateTypes))
	statesByCode := make(map[string]StateType, len(stateTypes))
	for _, stateType := range stateTypes {
		statesByID[stateType.ID] = stateType
		statesByCode[stateType.Code] = stateType
	}

	ordered := make([]EventType, len(eventTypes))
	copy(ordered, eventTypes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SortRank < ordered[j].SortRank
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.eventsByCode = eventsByCode
	r.eventsByID = eventsByID
	r.statesByID = statesByID
	r.statesByCode = statesByCode
	r.orderedEvents = ordered
	return nil
}

// ResolveEventType returns the event type for a code or ErrUnknownEventType.
func (r *Registry) ResolveEventType(code string) (EventType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	eventType, ok := r.eventsByCode[code]
	if !ok {
		return EventType{}, fmt.Errorf("%w: %q", ErrUnknownEventType, code)
	}
	return eventType, nil
}

// EventTypeByID looks up an event type by its primary key.
func (r *Registry) EventTypeByID(id uint) (EventType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	eventType, ok := r.eventsByID[id]
	return eventType, ok
}

// StateByID looks up a state type by its primary key.
func (r *Registry) StateByID(id uint) (StateType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stateType, ok := r.statesByID[id]
	return stateType, ok
}

// StateByCode looks up a state type by code.
func (r *Registry) StateByCode(code string) (StateType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stateType, ok := r.statesByCode[code]
	return stateType, ok
}

// EventSpecs returns every event type ordered by sort rank for UI consumption.
func (r *Registry) EventSpecs() []EventType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]EventType, len(r.orderedEvents))
	copy(specs, r.orderedEvents)
	return specs
}
