package users

import "time"

// User is a registered account. Usernames are stored lowercase.
type User struct {
	ID           uint       `gorm:"column:id;primaryKey"`
	Username     string     `gorm:"column:username;size:64;not null;uniqueIndex"`
	PasswordHash string     `gorm:"column:pw_hash;size:128;not null"`
	Lang         string     `gorm:"column:lang;size:8;not null;default:'en'"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	LastLogin    *time.Time `gorm:"column:last_login"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// LoginDay marks that a user was seen on a calendar day. The unique pair
// makes recording idempotent and the table cheap to aggregate.
type LoginDay struct {
	ID     uint   `gorm:"column:id;primaryKey"`
	UserID uint   `gorm:"column:user_id;not null;uniqueIndex:idx_login_user_day,priority:1"`
	Day    string `gorm:"column:day;size:10;not null;uniqueIndex:idx_login_user_day,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (LoginDay) TableName() string {
	return "user_logins"
}
