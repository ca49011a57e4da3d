package auth

import (
	"context"
	"errors"
	"testing"

	domain "github.com/example/taskboard/domain/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestService wires an AuthService over an in-memory SQLite database.
func newTestService(t *testing.T) *AuthService {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.RefreshToken{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return NewAuthService(NewUserRepository(db), NewRefreshTokenRepository(db), NewPasswordHasher(), NewJWTManager(DefaultJWTConfig()))
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice@example.com", "password123", "Alice")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.ID == 0 {
		t.Error("Register() should assign an id")
	}
	if user.Role != domain.RoleUser {
		t.Errorf("Register() role = %v, want %v", user.Role, domain.RoleUser)
	}

	t.Run("login with correct password", func(t *testing.T) {
		tokens, err := svc.Login(ctx, "alice@example.com", "password123")
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if tokens.AccessToken == "" || tokens.RefreshToken == "" {
			t.Error("Login() returned empty tokens")
		}
		if tokens.TokenType != "Bearer" {
			t.Errorf("token type = %v, want Bearer", tokens.TokenType)
		}
	})

	t.Run("login with wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "alice@example.com", "wrong-password")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("login with unknown email", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody@example.com", "password123")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("duplicate registration", func(t *testing.T) {
		_, err := svc.Register(ctx, "alice@example.com", "password123", "Alice Again")
		if !errors.Is(err, ErrUserExists) {
			t.Errorf("expected ErrUserExists, got %v", err)
		}
	})
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"invalid email", "not-an-email", "password123", ErrInvalidEmail},
		{"short password", "bob@example.com", "1234567", ErrWeakPassword},
		{"long password", "bob@example.com", string(make([]byte, 73)), ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.email, tt.password, "")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthService_RefreshTokens(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "carol@example.com", "password123", "Carol"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	tokens, err := svc.Login(ctx, "carol@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	refreshed, err := svc.RefreshTokens(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshTokens() error = %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.RefreshToken == "" {
		t.Error("RefreshTokens() returned empty tokens")
	}

	t.Run("access token is not accepted", func(t *testing.T) {
		_, err := svc.RefreshTokens(ctx, tokens.AccessToken)
		if err == nil {
			t.Error("RefreshTokens() should reject an access token")
		}
	})

	t.Run("exchanged token cannot be replayed", func(t *testing.T) {
		_, err := svc.RefreshTokens(ctx, tokens.RefreshToken)
		if !errors.Is(err, ErrTokenRevoked) {
			t.Errorf("expected ErrTokenRevoked, got %v", err)
		}
	})

	t.Run("rotated token works exactly once", func(t *testing.T) {
		again, err := svc.RefreshTokens(ctx, refreshed.RefreshToken)
		if err != nil {
			t.Fatalf("RefreshTokens() error = %v", err)
		}
		if again.RefreshToken == refreshed.RefreshToken {
			t.Error("rotation should issue a fresh refresh token")
		}
		if _, err := svc.RefreshTokens(ctx, refreshed.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
			t.Errorf("expected ErrTokenRevoked on replay, got %v", err)
		}
	})
}

func TestAuthService_RefreshRejectsUnrecordedToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "dave@example.com", "password123", "Dave"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	user, err := svc.repo.FindByEmail("dave@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}

	// A token signed with the right key but never put on record (as
	// after a purge) is rejected.
	token, _, err := svc.jwt.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}
	if _, err := svc.RefreshTokens(ctx, token); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestAuthService_EnsureServiceAccount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.EnsureServiceAccount("admin@example.com", "admin-password", "Service Account")
	if err != nil {
		t.Fatalf("EnsureServiceAccount() error = %v", err)
	}
	if user.Role != domain.RoleAdmin {
		t.Errorf("service account role = %v, want %v", user.Role, domain.RoleAdmin)
	}

	// The seeded account logs in through the normal credential path.
	tokens, err := svc.Login(ctx, "admin@example.com", "admin-password")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	claims, err := svc.ValidateToken(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if !claims.IsAdmin() {
		t.Error("service account claims should carry the admin role")
	}

	t.Run("reseeding rotates the password", func(t *testing.T) {
		again, err := svc.EnsureServiceAccount("admin@example.com", "rotated-password", "Service Account")
		if err != nil {
			t.Fatalf("EnsureServiceAccount() error = %v", err)
		}
		if again.ID != user.ID {
			t.Errorf("reseeding created a new account: id %d != %d", again.ID, user.ID)
		}
		if _, err := svc.Login(ctx, "admin@example.com", "rotated-password"); err != nil {
			t.Errorf("Login() with rotated password error = %v", err)
		}
		if _, err := svc.Login(ctx, "admin@example.com", "admin-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("old password should be rejected, got %v", err)
		}
	})
}
