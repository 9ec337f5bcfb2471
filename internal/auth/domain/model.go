// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is a portal account. Staff and superusers manage vouchers; everyone
// may redeem.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Username     string       `gorm:"type:varchar(150);not null;uniqueIndex"`
	Email        string       `gorm:"type:varchar(254);not null;uniqueIndex"`
	PasswordHash *string      `gorm:"type:text"`
	IsStaff      bool         `gorm:"not null;default:false"`
	IsSuperuser  bool         `gorm:"not null;default:false"`
	IsActive     bool         `gorm:"not null;default:true"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// IsManager reports whether the user may manage vouchers.
func (u User) IsManager() bool {
	return u.IsStaff || u.IsSuperuser
}

// Session represents a persisted login session.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:varchar(64);not null;uniqueIndex"`
	UserAgent        string       `gorm:"column:user_agent;type:text"`
	IPAddress        string       `gorm:"column:ip_address;type:text"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null"`
	LastSeenAt       time.Time    `gorm:"column:last_seen_at;not null"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

// UserView is returned to clients without exposing credentials.
type UserView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

func NewUserView(u *User) *UserView {
	if u == nil {
		return nil
	}
	return &UserView{
		ID:          u.ID.String(),
		Username:    u.Username,
		Email:       u.Email,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
	}
}
