package auth

import (
	"errors"
	"time"

	domain "github.com/example/taskboard/domain/user"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a user already exists.
	ErrUserExists = errors.New("user with this email already exists")
	// ErrTokenNotFound is returned when a refresh token is not on record.
	ErrTokenNotFound = errors.New("refresh token not found")
)

// UserRepository handles user persistence using GORM.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *UserRepository) Create(user *domain.User) error {
	result := r.db.Create(user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return result.Error
	}
	return nil
}

// FindByID finds a user by ID.
func (r *UserRepository) FindByID(id int) (*domain.User, error) {
	var user domain.User
	result := r.db.First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// FindByEmail finds a user by email.
func (r *UserRepository) FindByEmail(email string) (*domain.User, error) {
	var user domain.User
	result := r.db.First(&user, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// EmailExists checks if a user with the given email exists.
func (r *UserRepository) EmailExists(email string) (bool, error) {
	var count int64
	result := r.db.Model(&domain.User{}).Where("email = ?", email).Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// UpdatePassword replaces the password hash of an existing user.
func (r *UserRepository) UpdatePassword(id int, passwordHash string) error {
	result := r.db.Model(&domain.User{}).Where("id = ?", id).Update("password_hash", passwordHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RefreshTokenRepository tracks issued refresh tokens so they can be
// rotated and revoked.
type RefreshTokenRepository struct {
	db *gorm.DB
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository.
func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{
		db: db,
	}
}

// Save records a newly issued refresh token.
func (r *RefreshTokenRepository) Save(token *domain.RefreshToken) error {
	return r.db.Create(token).Error
}

// Find retrieves a refresh token record by its token id.
func (r *RefreshTokenRepository) Find(tokenID string) (*domain.RefreshToken, error) {
	var token domain.RefreshToken
	result := r.db.First(&token, "token_id = ?", tokenID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, result.Error
	}
	return &token, nil
}

// Revoke marks a refresh token as used. Revoked tokens are rejected on
// any later exchange attempt.
func (r *RefreshTokenRepository) Revoke(tokenID string) error {
	result := r.db.Model(&domain.RefreshToken{}).
		Where("token_id = ?", tokenID).
		Update("is_revoked", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// PurgeExpired deletes token records whose expiry has passed. Expired
// tokens fail JWT validation regardless; this only bounds table growth.
func (r *RefreshTokenRepository) PurgeExpired(now time.Time) error {
	return r.db.Where("expires_at < ?", now).Delete(&domain.RefreshToken{}).Error
}
