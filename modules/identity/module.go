package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	domain "github.com/khalidAdell/quick-task/domain/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// IdentityModule provides account and token services.
type IdentityModule struct {
	db         *gorm.DB
	service    *IdentityService
	dsn        string
	jwtConfig  JWTConfig
	bcryptCost int
}

// Compile-time interface checks.
var _ mono.Module = (*IdentityModule)(nil)
var _ mono.ServiceProviderModule = (*IdentityModule)(nil)
var _ mono.HealthCheckableModule = (*IdentityModule)(nil)

// NewModule creates a new IdentityModule storing accounts in the sqlite database at dsn.
func NewModule(dsn string, jwtConfig JWTConfig) *IdentityModule {
	return &IdentityModule{
		dsn:        dsn,
		jwtConfig:  jwtConfig,
		bcryptCost: DefaultBcryptCost,
	}
}

// WithBcryptCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (m *IdentityModule) WithBcryptCost(cost int) *IdentityModule {
	m.bcryptCost = cost
	return m
}

// Name returns the module name.
func (m *IdentityModule) Name() string {
	return "identity"
}

// Start opens the user database and builds the service.
func (m *IdentityModule) Start(_ context.Context) error {
	db, err := OpenDB(m.dsn)
	if err != nil {
		return err
	}
	m.db = db

	jwtManager := NewJWTManager(m.jwtConfig)
	m.service = NewIdentityService(NewUserRepository(db), NewPasswordHasher(m.bcryptCost), jwtManager)

	log.Printf("[identity] Module started (database: %s)", m.dsn)
	return nil
}

// OpenDB opens the user database and migrates its schema.
func OpenDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// Stop closes the database.
func (m *IdentityModule) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[identity] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *IdentityModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.dsn,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *IdentityModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "register", json.Unmarshal, json.Marshal, m.handleRegister,
	); err != nil {
		return fmt.Errorf("failed to register register service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "login", json.Unmarshal, json.Marshal, m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register login service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "refresh-token", json.Unmarshal, json.Marshal, m.handleRefresh,
	); err != nil {
		return fmt.Errorf("failed to register refresh-token service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "validate-token", json.Unmarshal, json.Marshal, m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register validate-token service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get-user", json.Unmarshal, json.Marshal, m.handleGetUser,
	); err != nil {
		return fmt.Errorf("failed to register get-user service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "update-profile", json.Unmarshal, json.Marshal, m.handleUpdateProfile,
	); err != nil {
		return fmt.Errorf("failed to register update-profile service: %w", err)
	}

	log.Printf("[identity] Registered services: register, login, refresh-token, validate-token, get-user, update-profile")
	return nil
}

func (m *IdentityModule) handleRegister(ctx context.Context, req RegisterRequest, _ *mono.Msg) (UserResponse, error) {
	user, err := m.service.Register(ctx, req.Email, req.Password, req.DisplayName, req.PhotoURL)
	if err != nil {
		return UserResponse{}, err
	}
	log.Printf("[identity] Registered user %s", user.ID)
	return toUserResponse(user), nil
}

func (m *IdentityModule) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (TokenResponse, error) {
	tokens, err := m.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		return TokenResponse{}, err
	}
	return *tokens, nil
}

func (m *IdentityModule) handleRefresh(ctx context.Context, req RefreshRequest, _ *mono.Msg) (TokenResponse, error) {
	tokens, err := m.service.RefreshTokens(ctx, req.RefreshToken)
	if err != nil {
		return TokenResponse{}, err
	}
	return *tokens, nil
}

// handleValidateToken reports validation failures in the response body, not as errors.
func (m *IdentityModule) handleValidateToken(ctx context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	principal, err := m.service.ValidateToken(ctx, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, ErrExpiredToken):
			return ValidateTokenResponse{Valid: false, Error: "token expired"}, nil
		case errors.Is(err, ErrInvalidToken):
			return ValidateTokenResponse{Valid: false, Error: "invalid token"}, nil
		default:
			return ValidateTokenResponse{}, err
		}
	}

	return ValidateTokenResponse{
		Valid:     true,
		Principal: principal,
	}, nil
}

func (m *IdentityModule) handleGetUser(ctx context.Context, req GetUserRequest, _ *mono.Msg) (UserResponse, error) {
	user, err := m.service.GetUser(ctx, req.UserID)
	if err != nil {
		return UserResponse{}, err
	}
	return toUserResponse(user), nil
}

func (m *IdentityModule) handleUpdateProfile(ctx context.Context, req UpdateProfileRequest, _ *mono.Msg) (UserResponse, error) {
	user, err := m.service.UpdateProfile(ctx, req.UserID, req.DisplayName, req.PhotoURL)
	if err != nil {
		return UserResponse{}, err
	}
	return toUserResponse(user), nil
}
