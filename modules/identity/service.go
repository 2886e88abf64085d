package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	domain "github.com/khalidAdell/quick-task/domain/user"
)

const maxDisplayNameLength = 80

var (
	// ErrInvalidCredentials is returned when login credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidEmail is returned when email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrWeakPassword is returned when password is too weak.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong is returned when password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
	// ErrInvalidProfile is returned when a display name or photo URL is rejected.
	ErrInvalidProfile = errors.New("invalid profile")
)

// IdentityService handles accounts and token issuance.
type IdentityService struct {
	repo   *UserRepository
	hasher *PasswordHasher
	jwt    *JWTManager
	now    func() time.Time
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(repo *UserRepository, hasher *PasswordHasher, jwt *JWTManager) *IdentityService {
	return &IdentityService{
		repo:   repo,
		hasher: hasher,
		jwt:    jwt,
		now:    time.Now,
	}
}

// Register creates a new user account. An empty display name defaults to
// the local part of the email address.
func (s *IdentityService) Register(ctx context.Context, email, password, displayName, photoURL string) (*domain.User, error) {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}

	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	if len(password) > 72 {
		return nil, ErrPasswordTooLong
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = email[:strings.Index(email, "@")]
	}
	if err := validateProfile(displayName, photoURL); err != nil {
		return nil, err
	}

	exists, err := s.repo.EmailExists(ctx, email)
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

	now := s.now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		PhotoURL:     photoURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Login authenticates a user and returns tokens.
func (s *IdentityService) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.generateTokenPair(user.ID, user.Email)
}

// RefreshTokens generates new access and refresh tokens.
func (s *IdentityService) RefreshTokens(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwt.Validate(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return s.generateTokenPair(user.ID, user.Email)
}

// ValidateToken checks an access token and resolves the principal it
// belongs to. Display fields come from the stored account so profile edits
// apply to tokens issued before them.
func (s *IdentityService) ValidateToken(ctx context.Context, token string) (domain.Principal, error) {
	claims, err := s.jwt.Validate(token, tokenTypeAccess)
	if err != nil {
		return domain.Principal{}, err
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return domain.Principal{}, ErrInvalidToken
		}
		return domain.Principal{}, fmt.Errorf("failed to find user: %w", err)
	}
	return user.Principal(), nil
}

// GetUser retrieves a user by ID.
func (s *IdentityService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.FindByID(ctx, userID)
}

// UpdateProfile changes the display name and photo of a user.
func (s *IdentityService) UpdateProfile(ctx context.Context, userID, displayName, photoURL string) (*domain.User, error) {
	displayName = strings.TrimSpace(displayName)
	if err := validateProfile(displayName, photoURL); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProfile(ctx, userID, displayName, photoURL); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, userID)
}

func (s *IdentityService) generateTokenPair(userID, email string) (*domain.TokenPair, error) {
	accessToken, err := s.jwt.GenerateAccessToken(userID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.jwt.GenerateRefreshToken(userID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.jwt.AccessTokenDuration(),
		TokenType:    "Bearer",
	}, nil
}

func validateProfile(displayName, photoURL string) error {
	if displayName == "" {
		return fmt.Errorf("%w: display name is required", ErrInvalidProfile)
	}
	if len(displayName) > maxDisplayNameLength {
		return fmt.Errorf("%w: display name must be at most %d characters", ErrInvalidProfile, maxDisplayNameLength)
	}
	if photoURL == "" {
		return nil
	}
	u, err := url.Parse(photoURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: photo URL must be an absolute http(s) URL", ErrInvalidProfile)
	}
	return nil
}
