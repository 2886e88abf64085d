package identity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	domain "github.com/khalidAdell/quick-task/domain/user"
)

// IdentityPort is how other modules reach account functionality.
type IdentityPort interface {
	Register(ctx context.Context, req RegisterRequest) (UserResponse, error)
	Login(ctx context.Context, email, password string) (TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (TokenResponse, error)
	ValidateToken(ctx context.Context, token string) (domain.Principal, error)
	GetUser(ctx context.Context, userID string) (UserResponse, error)
	UpdateProfile(ctx context.Context, req UpdateProfileRequest) (UserResponse, error)
}

// IdentityAdapter implements IdentityPort using the service container.
type IdentityAdapter struct {
	container mono.ServiceContainer
}

var _ IdentityPort = (*IdentityAdapter)(nil)

// NewIdentityAdapter creates a new IdentityAdapter.
func NewIdentityAdapter(container mono.ServiceContainer) *IdentityAdapter {
	return &IdentityAdapter{
		container: container,
	}
}

func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	return nil
}

// Register creates an account.
func (a *IdentityAdapter) Register(ctx context.Context, req RegisterRequest) (UserResponse, error) {
	var resp UserResponse
	err := call(ctx, a.container, "register", &req, &resp)
	return resp, err
}

// Login exchanges credentials for a token pair.
func (a *IdentityAdapter) Login(ctx context.Context, email, password string) (TokenResponse, error) {
	req := LoginRequest{Email: email, Password: password}
	var resp TokenResponse
	err := call(ctx, a.container, "login", &req, &resp)
	return resp, err
}

// Refresh exchanges a refresh token for a new token pair.
func (a *IdentityAdapter) Refresh(ctx context.Context, refreshToken string) (TokenResponse, error) {
	req := RefreshRequest{RefreshToken: refreshToken}
	var resp TokenResponse
	err := call(ctx, a.container, "refresh-token", &req, &resp)
	return resp, err
}

// ValidateToken validates an access token and returns the principal it identifies.
func (a *IdentityAdapter) ValidateToken(ctx context.Context, token string) (domain.Principal, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse
	if err := call(ctx, a.container, "validate-token", &req, &resp); err != nil {
		return domain.Principal{}, err
	}

	if !resp.Valid {
		return domain.Principal{}, fmt.Errorf("token validation failed: %s", resp.Error)
	}
	return resp.Principal, nil
}

// GetUser retrieves a user by ID.
func (a *IdentityAdapter) GetUser(ctx context.Context, userID string) (UserResponse, error) {
	req := GetUserRequest{UserID: userID}
	var resp UserResponse
	err := call(ctx, a.container, "get-user", &req, &resp)
	return resp, err
}

// UpdateProfile changes the caller's display fields.
func (a *IdentityAdapter) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (UserResponse, error) {
	var resp UserResponse
	err := call(ctx, a.container, "update-profile", &req, &resp)
	return resp, err
}
