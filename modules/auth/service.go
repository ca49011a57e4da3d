package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	domain "github.com/example/taskboard/domain/user"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalidCredentials is returned when login credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidEmail is returned when email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrWeakPassword is returned when password is too weak.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong is returned when password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
	// ErrTokenRevoked is returned when a refresh token was already
	// exchanged or revoked.
	ErrTokenRevoked = errors.New("refresh token is no longer valid")
)

// AuthService handles authentication business logic.
type AuthService struct {
	repo    *UserRepository
	tokens  *RefreshTokenRepository
	hasher  *PasswordHasher
	jwt     *JWTManager
	refresh singleflight.Group
}

// NewAuthService creates a new AuthService.
func NewAuthService(repo *UserRepository, tokens *RefreshTokenRepository, hasher *PasswordHasher, jwt *JWTManager) *AuthService {
	return &AuthService{
		repo:   repo,
		tokens: tokens,
		hasher: hasher,
		jwt:    jwt,
	}
}

// Register creates a new user account with the User role.
func (s *AuthService) Register(_ context.Context, email, password, fullName string) (*domain.User, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	if len(password) < MinPasswordLen {
		return nil, ErrWeakPassword
	}
	if len(password) > MaxPasswordLen {
		return nil, ErrPasswordTooLong
	}

	exists, err := s.repo.EmailExists(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     fullName,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login authenticates a user and returns tokens.
func (s *AuthService) Login(_ context.Context, email, password string) (*domain.TokenPair, error) {
	user, err := s.repo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.generateTokenPair(user)
}

// RefreshTokens exchanges a refresh token for a new token pair. Tokens
// are single-use: the presented token is revoked before the new pair is
// issued, so a replayed or leaked token is rejected once exchanged.
// Concurrent refreshes with the same token are collapsed into a single
// exchange so a client retrying in parallel gets one consistent pair.
func (s *AuthService) RefreshTokens(_ context.Context, refreshToken string) (*domain.TokenPair, error) {
	v, err, _ := s.refresh.Do(refreshToken, func() (any, error) {
		claims, err := s.jwt.ValidateRefreshToken(refreshToken)
		if err != nil {
			return nil, fmt.Errorf("invalid refresh token: %w", err)
		}

		stored, err := s.tokens.Find(claims.ID)
		if err != nil {
			if errors.Is(err, ErrTokenNotFound) {
				return nil, ErrTokenRevoked
			}
			return nil, fmt.Errorf("failed to look up refresh token: %w", err)
		}
		if stored.IsRevoked {
			return nil, ErrTokenRevoked
		}

		if err := s.tokens.Revoke(claims.ID); err != nil {
			return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
		}

		user, err := s.repo.FindByID(claims.UserID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return nil, ErrInvalidCredentials
			}
			return nil, fmt.Errorf("failed to find user: %w", err)
		}

		return s.generateTokenPair(user)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.TokenPair), nil
}

// ValidateToken validates an access token and returns claims.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*domain.Claims, error) {
	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}

	return &domain.Claims{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(_ context.Context, userID int) (*domain.User, error) {
	return s.repo.FindByID(userID)
}

// EnsureServiceAccount seeds a fixed admin account from configuration.
// The account authenticates through the normal credential path; it is
// the replacement for a hardcoded login bypass. If the account already
// exists its password hash is refreshed to match the configuration.
func (s *AuthService) EnsureServiceAccount(email, password, fullName string) (*domain.User, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	existing, err := s.repo.FindByEmail(email)
	if err == nil {
		if err := s.repo.UpdatePassword(existing.ID, passwordHash); err != nil {
			return nil, fmt.Errorf("failed to update service account: %w", err)
		}
		return existing, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up service account: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     fullName,
		Role:         domain.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create service account: %w", err)
	}
	return user, nil
}

// generateTokenPair generates both access and refresh tokens and puts
// the refresh token on record for later rotation.
func (s *AuthService) generateTokenPair(user *domain.User) (*domain.TokenPair, error) {
	accessToken, err := s.jwt.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, claims, err := s.jwt.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	record := &domain.RefreshToken{
		TokenID:   claims.ID,
		UserID:    user.ID,
		ExpiresAt: claims.ExpiresAt.Time,
		CreatedAt: time.Now(),
	}
	if err := s.tokens.Save(record); err != nil {
		return nil, fmt.Errorf("failed to record refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.jwt.AccessTokenDuration(),
		TokenType:    "Bearer",
	}, nil
}
