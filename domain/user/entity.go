package user

import (
	"time"
)

// Roles assignable to a user account.
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// User represents a user account in the system.
type User struct {
	ID           int    `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"uniqueIndex;not null;type:text"`
	PasswordHash string `gorm:"not null;type:text"`
	FullName     string `gorm:"type:text"`
	Role         string `gorm:"not null;default:User;type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// RefreshToken is a persisted, single-use refresh credential. The row
// tracks the token's jti; the signed token itself is never stored.
type RefreshToken struct {
	ID        int    `gorm:"primaryKey;autoIncrement"`
	TokenID   string `gorm:"uniqueIndex;not null;type:text"`
	UserID    int    `gorm:"not null;index"`
	ExpiresAt time.Time
	IsRevoked bool `gorm:"not null;default:false"`
	CreatedAt time.Time
}

// TableName returns the table name for the RefreshToken entity.
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// TokenPair represents access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Claims represents the authenticated caller's identity.
type Claims struct {
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// IsAdmin reports whether the claims carry the admin role.
func (c Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
