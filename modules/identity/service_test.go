package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *IdentityService {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := OpenDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewIdentityService(NewUserRepository(db), NewPasswordHasher(bcrypt.MinCost), NewJWTManager(testJWTConfig()))
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		display  string
		photo    string
		wantErr  error
	}{
		{"invalid email", "userexample.com", "password123", "", "", ErrInvalidEmail},
		{"named address", "Bob <bob@example.com>", "password123", "", "", ErrInvalidEmail},
		{"short password", "a@example.com", "short", "", "", ErrWeakPassword},
		{"long password", "a@example.com", strings.Repeat("x", 73), "", "", ErrPasswordTooLong},
		{"relative photo", "a@example.com", "password123", "Alice", "/me.png", ErrInvalidProfile},
		{"long name", "a@example.com", "password123", strings.Repeat("n", 81), "", ErrInvalidProfile},
	}

	svc := newTestService(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.email, tt.password, tt.display, tt.photo)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegister_LoginAndValidate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.Register(ctx, "alice@example.com", "password123", "", "https://img.example.com/a.png")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.DisplayName != "alice" {
		t.Errorf("DisplayName = %q, want alice", user.DisplayName)
	}

	if _, err := svc.Register(ctx, "alice@example.com", "password123", "Alice", ""); !errors.Is(err, ErrUserExists) {
		t.Errorf("duplicate Register() error = %v, want %v", err, ErrUserExists)
	}

	if _, err := svc.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() with wrong password error = %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() unknown user error = %v", err)
	}

	tokens, err := svc.Login(ctx, "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if tokens.TokenType != "Bearer" {
		t.Errorf("TokenType = %q", tokens.TokenType)
	}

	principal, err := svc.ValidateToken(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if principal.ID != user.ID || principal.DisplayName != "alice" || principal.PhotoURL != "https://img.example.com/a.png" {
		t.Errorf("principal = %+v", principal)
	}

	if _, err := svc.ValidateToken(ctx, tokens.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken(refresh) error = %v, want %v", err, ErrInvalidToken)
	}

	refreshed, err := svc.RefreshTokens(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshTokens() error = %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.RefreshToken == "" {
		t.Errorf("RefreshTokens() = %+v", refreshed)
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.Register(ctx, "bob@example.com", "password123", "Bob", "")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	tokens, err := svc.Login(ctx, "bob@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	updated, err := svc.UpdateProfile(ctx, user.ID, "  Robert ", "https://img.example.com/b.png")
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.DisplayName != "Robert" {
		t.Errorf("DisplayName = %q, want Robert", updated.DisplayName)
	}

	principal, err := svc.ValidateToken(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if principal.DisplayName != "Robert" {
		t.Errorf("principal.DisplayName = %q, want the updated name", principal.DisplayName)
	}

	if _, err := svc.UpdateProfile(ctx, "missing", "Ghost", ""); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdateProfile(missing) error = %v, want %v", err, ErrUserNotFound)
	}
	if _, err := svc.UpdateProfile(ctx, user.ID, " ", ""); !errors.Is(err, ErrInvalidProfile) {
		t.Errorf("UpdateProfile(blank) error = %v, want %v", err, ErrInvalidProfile)
	}
}
