package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"github.com/simfr24/plantlog/internal/plants"
	"github.com/simfr24/plantlog/internal/registry"
	"github.com/simfr24/plantlog/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection, performs schema migrations and
// seeds the event/state type registry.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&registry.StateType{},
		&registry.EventType{},
		&plants.Plant{},
		&plants.Event{},
		&users.User{},
		&users.LoginDay{},
		&migrationRecord{},
	)
	if err != nil {
		return nil, err
	}

	if err := registry.Seed(db); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
