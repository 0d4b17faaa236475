package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrUsernameTaken indicates a registration against an existing name.
	ErrUsernameTaken = errors.New("users: username already taken")
	// ErrBadCredentials indicates a failed username/password check.
	ErrBadCredentials = errors.New("users: bad credentials")
	// ErrNotFound indicates the referenced user does not exist.
	ErrNotFound = errors.New("users: not found")
)

var availableLangs = map[string]struct{}{"en": {}, "fr": {}, "ru": {}}

const defaultLang = "en"

// ServiceConfig describes the dependencies of the user service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service manages accounts, credentials and login tracking.
type Service struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database handle is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, clock: clock}, nil
}

// Register creates an account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, password, lang string) (*User, error) {
	normalized := strings.ToLower(strings.TrimSpace(username))
	if normalized == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password required", ErrBadCredentials)
	}
	if _, ok := availableLangs[lang]; !ok {
		lang = defaultLang
	}

	var existing User
	err := s.db.WithContext(ctx).Where("username = ?", normalized).Take(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("%w: %s", ErrUsernameTaken, normalized)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("users: lookup failed: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	user := User{Username: normalized, PasswordHash: string(hash), Lang: lang}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("users: create failed: %w", err)
	}
	return &user, nil
}

// Authenticate checks the password and records the login timestamp and day.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	normalized := strings.ToLower(strings.TrimSpace(username))
	var user User
	err := s.db.WithContext(ctx).Where("username = ?", normalized).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("users: lookup failed: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}

	if err := s.RecordLogin(ctx, user.ID); err != nil {
		return nil, err
	}
	return &user, nil
}

// RecordLogin stamps last_login and marks today's unique-login row. Safe to
// call on every session resume; the day row is insert-or-ignore.
func (s *Service) RecordLogin(ctx context.Context, userID uint) error {
	now := s.clock().UTC()
	day := now.Format("2006-01-02")

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&User{}).Where("id = ?", userID).Update("last_login", now).Error; err != nil {
			return fmt.Errorf("users: record login: %w", err)
		}
		err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&LoginDay{UserID: userID, Day: day}).Error
		if err != nil {
			return fmt.Errorf("users: record login day: %w", err)
		}
		return nil
	})
}

// UpdateLanguage switches the user's preferred language; unknown codes are
// rejected silently in favor of the current setting.
func (s *Service) UpdateLanguage(ctx context.Context, userID uint, lang string) error {
	if _, ok := availableLangs[lang]; !ok {
		return nil
	}
	result := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Update("lang", lang)
	if result.Error != nil {
		return fmt.Errorf("users: update language: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	return nil
}

// ByUsername resolves an account by its lowercase name.
func (s *Service) ByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("username = ?", strings.ToLower(strings.TrimSpace(username))).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("users: lookup failed: %w", err)
	}
	return &user, nil
}

// ByID resolves an account by primary key.
func (s *Service) ByID(ctx context.Context, userID uint) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("users: lookup failed: %w", err)
	}
	return &user, nil
}

// All lists every account, oldest first.
func (s *Service) All(ctx context.Context) ([]User, error) {
	var rows []User
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("users: list failed: %w", err)
	}
	return rows, nil
}

// DayCount is one day's unique-login total.
type DayCount struct {
	Day   string
	Count int
}

// DailyUniqueLogins aggregates unique logins per day over an inclusive
// calendar-date range.
func (s *Service) DailyUniqueLogins(ctx context.Context, from, to string) ([]DayCount, error) {
	var rows []DayCount
	err := s.db.WithContext(ctx).Model(&LoginDay{}).
		Select("day, COUNT(*) AS count").
		Where("day BETWEEN ? AND ?", from, to).
		Group("day").
		Order("day").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("users: login aggregation failed: %w", err)
	}
	return rows, nil
}
