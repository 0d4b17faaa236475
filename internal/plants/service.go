package plants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/simfr24/plantlog/internal/registry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingRegistry = errors.New("event type registry is required")
	noOpLogger         = zap.NewNop()
)

// ServiceError carries a dotted operation code so callers can log and map
// failures without string matching.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew     = "plants.service.new"
	opCreatePlant    = "plants.create_plant"
	opUpdateMetadata = "plants.update_metadata"
	opLoadOne        = "plants.load_one"
	opLoadAll        = "plants.load_all"
	opDeletePlant    = "plants.delete_plant"
	opAppendEvent    = "plants.append_event"
	opGetEvent       = "plants.get_event"
	opUpdateEvent    = "plants.update_event"
	opDeleteEvent    = "plants.delete_event"
	opProjectState   = "plants.project_state"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

func newUnknownEventTypeIDError(id uint) error {
	return fmt.Errorf("%w: id %d", registry.ErrUnknownEventType, id)
}

// ServiceConfig describes the dependencies of the plant service.
type ServiceConfig struct {
	Database *gorm.DB
	Registry *registry.Registry
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service owns plant metadata and the event log, and keeps the denormalized
// current state consistent across every mutation.
type Service struct {
	db       *gorm.DB
	registry *registry.Registry
	clock    func() time.Time
	logger   *zap.Logger
}

// NewService constructs the plant service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Registry == nil {
		return nil, newServiceError(opServiceNew, "missing_registry", errMissingRegistry)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, registry: cfg.Registry, clock: clock, logger: logger}, nil
}

// Today returns the service clock's current date, truncated to midnight UTC.
func (s *Service) Today() time.Time {
	now := s.clock().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// CreatePlant inserts a plant and its first event atomically, then projects
// the initial state. Neither row persists if either insert fails.
func (s *Service) CreatePlant(ctx context.Context, ownerID uint, metadata PlantMetadata, firstEvent EventInput) (uint, error) {
	var plantID uint
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plant := Plant{
			UserID:   ownerID,
			Common:   metadata.Common,
			Latin:    metadata.Latin,
			Location: metadata.Location,
			Notes:    metadata.Notes,
		}
		if err := tx.Create(&plant).Error; err != nil {
			return newServiceError(opCreatePlant, "plant_insert_failed", err)
		}
		plantID = plant.ID
		if err := s.insertEvent(tx, plant.ID, firstEvent); err != nil {
			return err
		}
		return s.projectState(tx, plant.ID)
	})
	if txErr != nil {
		s.logError(opCreatePlant, txErr, zap.Uint("owner_id", ownerID))
		return 0, txErr
	}
	return plantID, nil
}

// UpdateMetadata replaces the descriptive fields only; events and state are
// untouched.
func (s *Service) UpdateMetadata(ctx context.Context, plantID uint, metadata PlantMetadata) error {
	result := s.db.WithContext(ctx).Model(&Plant{}).Where("id = ?", plantID).Updates(map[string]interface{}{
		"common":   metadata.Common,
		"latin":    metadata.Latin,
		"location": metadata.Location,
		"notes":    metadata.Notes,
	})
	if result.Error != nil {
		s.logError(opUpdateMetadata, result.Error, zap.Uint("plant_id", plantID))
		return newServiceError(opUpdateMetadata, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: plant %d", ErrNotFound, plantID)
	}
	return nil
}

// LoadOne hydrates a single plant card.
func (s *Service) LoadOne(ctx context.Context, plantID uint) (*PlantCard, error) {
	var plant Plant
	err := s.db.WithContext(ctx).Where("id = ?", plantID).Take(&plant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: plant %d", ErrNotFound, plantID)
	}
	if err != nil {
		s.logError(opLoadOne, err, zap.Uint("plant_id", plantID))
		return nil, newServiceError(opLoadOne, "plant_select_failed", err)
	}

	rows, err := s.eventsForPlant(ctx, plantID)
	if err != nil {
		return nil, err
	}
	card, err := s.buildCard(plant, rows)
	if err != nil {
		s.logError(opLoadOne, err, zap.Uint("plant_id", plantID))
		return nil, err
	}
	return &card, nil
}

// LoadAllForOwner hydrates every card belonging to the owner. Ordering is
// the ranker's job, not the repository's.
func (s *Service) LoadAllForOwner(ctx context.Context, ownerID uint) ([]PlantCard, error) {
	var rows []Plant
	if err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).Find(&rows).Error; err != nil {
		s.logError(opLoadAll, err, zap.Uint("owner_id", ownerID))
		return nil, newServiceError(opLoadAll, "plant_select_failed", err)
	}

	cards := make([]PlantCard, 0, len(rows))
	for _, plant := range rows {
		events, err := s.eventsForPlant(ctx, plant.ID)
		if err != nil {
			return nil, err
		}
		card, err := s.buildCard(plant, events)
		if err != nil {
			s.logError(opLoadAll, err, zap.Uint("plant_id", plant.ID))
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// DeletePlant removes the plant and its events. A plant that does not belong
// to the requesting owner is left untouched and no error is returned.
func (s *Service) DeletePlant(ctx context.Context, plantID, requestingOwnerID uint) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plant Plant
		err := tx.Where("id = ? AND user_id = ?", plantID, requestingOwnerID).Take(&plant).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return newServiceError(opDeletePlant, "plant_select_failed", err)
		}
		if err := tx.Where("plant_id = ?", plantID).Delete(&Event{}).Error; err != nil {
			return newServiceError(opDeletePlant, "event_delete_failed", err)
		}
		if err := tx.Delete(&Plant{}, plantID).Error; err != nil {
			return newServiceError(opDeletePlant, "plant_delete_failed", err)
		}
		return nil
	})
	if txErr != nil {
		s.logError(opDeletePlant, txErr, zap.Uint("plant_id", plantID))
	}
	return txErr
}

// AppendEvent records a new event against an existing plant and reprojects
// its state in the same transaction.
func (s *Service) AppendEvent(ctx context.Context, plantID uint, input EventInput) (uint, error) {
	var eventID uint
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plant Plant
		err := tx.Where("id = ?", plantID).Take(&plant).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: plant %d", ErrNotFound, plantID)
		}
		if err != nil {
			return newServiceError(opAppendEvent, "plant_select_failed", err)
		}
		id, err := s.insertEventReturningID(tx, plantID, input)
		if err != nil {
			return err
		}
		eventID = id
		return s.projectState(tx, plantID)
	})
	if txErr != nil {
		s.logError(opAppendEvent, txErr, zap.Uint("plant_id", plantID))
		return 0, txErr
	}
	return eventID, nil
}

// EventDetail resolves one stored event for edit forms, including the owning
// plant's identity.
type EventDetail struct {
	View    EventView
	PlantID uint
	OwnerID uint
	Common  string
	Latin   string
}

// GetEvent loads a single event with its owning plant.
func (s *Service) GetEvent(ctx context.Context, eventID uint) (*EventDetail, error) {
	var row Event
	err := s.db.WithContext(ctx).Where("id = ?", eventID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: event %d", ErrNotFound, eventID)
	}
	if err != nil {
		s.logError(opGetEvent, err, zap.Uint("event_id", eventID))
		return nil, newServiceError(opGetEvent, "event_select_failed", err)
	}

	eventType, ok := s.registry.EventTypeByID(row.EventTypeID)
	if !ok {
		return nil, newUnknownEventTypeIDError(row.EventTypeID)
	}
	var plant Plant
	if err := s.db.WithContext(ctx).Where("id = ?", row.PlantID).Take(&plant).Error; err != nil {
		s.logError(opGetEvent, err, zap.Uint("plant_id", row.PlantID))
		return nil, newServiceError(opGetEvent, "plant_select_failed", err)
	}

	return &EventDetail{
		View:    buildEventView(row, eventType),
		PlantID: plant.ID,
		OwnerID: plant.UserID,
		Common:  plant.Common,
		Latin:   plant.Latin,
	}, nil
}

// UpdateEvent fully replaces an event's type and payload, then reprojects the
// owning plant's state. Events owned by another user are left untouched.
func (s *Service) UpdateEvent(ctx context.Context, eventID, requestingOwnerID uint, input EventInput) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, owned, err := s.ownedEvent(tx, eventID, requestingOwnerID, opUpdateEvent)
		if err != nil || !owned {
			return err
		}

		eventType, err := s.registry.ResolveEventType(input.TypeCode)
		if err != nil {
			return err
		}
		row.EventTypeID = eventType.ID
		row.HappenedOn = input.HappenedOn
		if err := applyPayload(&row, eventType.Code, input.Payload); err != nil {
			return err
		}
		if err := tx.Save(&row).Error; err != nil {
			return newServiceError(opUpdateEvent, "event_save_failed", err)
		}
		return s.projectState(tx, row.PlantID)
	})
	if txErr != nil {
		s.logError(opUpdateEvent, txErr, zap.Uint("event_id", eventID))
	}
	return txErr
}

// DeleteEvent removes an event and reprojects the owning plant's state.
// Events owned by another user are left untouched and no error is returned.
func (s *Service) DeleteEvent(ctx context.Context, eventID, requestingOwnerID uint) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, owned, err := s.ownedEvent(tx, eventID, requestingOwnerID, opDeleteEvent)
		if err != nil || !owned {
			return err
		}
		if err := tx.Delete(&Event{}, row.ID).Error; err != nil {
			return newServiceError(opDeleteEvent, "event_delete_failed", err)
		}
		return s.projectState(tx, row.PlantID)
	})
	if txErr != nil {
		s.logError(opDeleteEvent, txErr, zap.Uint("event_id", eventID))
	}
	return txErr
}

// ownedEvent loads an event iff it transitively belongs to the requesting
// owner. A missing or foreign event reports owned=false with a nil error,
// which the delete/update paths treat as a silent no-op.
func (s *Service) ownedEvent(tx *gorm.DB, eventID, requestingOwnerID uint, operation string) (Event, bool, error) {
	var row Event
	err := tx.Where("id = ?", eventID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, newServiceError(operation, "event_select_failed", err)
	}

	var plant Plant
	err = tx.Where("id = ? AND user_id = ?", row.PlantID, requestingOwnerID).Take(&plant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, newServiceError(operation, "plant_select_failed", err)
	}
	return row, true, nil
}

func (s *Service) insertEvent(tx *gorm.DB, plantID uint, input EventInput) error {
	_, err := s.insertEventReturningID(tx, plantID, input)
	return err
}

func (s *Service) insertEventReturningID(tx *gorm.DB, plantID uint, input EventInput) (uint, error) {
	eventType, err := s.registry.ResolveEventType(input.TypeCode)
	if err != nil {
		return 0, err
	}
	row := Event{
		PlantID:     plantID,
		EventTypeID: eventType.ID,
		HappenedOn:  input.HappenedOn,
	}
	if err := applyPayload(&row, eventType.Code, input.Payload); err != nil {
		return 0, err
	}
	if err := tx.Create(&row).Error; err != nil {
		return 0, newServiceError(opAppendEvent, "event_insert_failed", err)
	}
	return row.ID, nil
}

func (s *Service) eventsForPlant(ctx context.Context, plantID uint) ([]Event, error) {
	var rows []Event
	err := s.db.WithContext(ctx).
		Where("plant_id = ?", plantID).
		Order("happened_on, id").
		Find(&rows).Error
	if err != nil {
		s.logError(opLoadOne, err, zap.Uint("plant_id", plantID))
		return nil, newServiceError(opLoadOne, "event_select_failed", err)
	}
	return rows, nil
}

func (s *Service) logError(operation string, err error, fields ...zap.Field) {
	attrs := append([]zap.Field{zap.String("operation", operation), zap.Error(err)}, fields...)
	s.logger.Error("plant service error", attrs...)
}
