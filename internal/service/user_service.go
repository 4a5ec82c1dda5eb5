package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost = 10

	AccessTokenExpiration  = 15 * time.Minute
	RefreshTokenExpiration = 7 * 24 * time.Hour

	// MinPasswordLength is the shortest password accepted at registration.
	MinPasswordLength = 6
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
)

// UserService owns accounts and sessions. A session is a short-lived JWT
// access token plus a persisted refresh token that can be revoked.
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *domain.User, err error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// RegisterInput carries the fields of a new account
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        domain.Role
}

// Claims represents the JWT claims
type Claims struct {
	UserID uuid.UUID   `json:"user_id"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type userService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	jwtSecret        string
	accessTTL        time.Duration
	refreshTTL       time.Duration
	now              func() time.Time
}

// UserServiceOption tunes a UserService
type UserServiceOption func(*userService)

// WithTokenLifetimes overrides the default access and refresh token lifetimes.
// Non-positive values keep the defaults.
func WithTokenLifetimes(access, refresh time.Duration) UserServiceOption {
	return func(s *userService) {
		if access > 0 {
			s.accessTTL = access
		}
		if refresh > 0 {
			s.refreshTTL = refresh
		}
	}
}

func NewUserService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	jwtSecret string,
	opts ...UserServiceOption,
) UserService {
	s := &userService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		jwtSecret:        jwtSecret,
		accessTTL:        AccessTokenExpiration,
		refreshTTL:       RefreshTokenExpiration,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a client or business account. The role defaults to client.
func (s *userService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if len(in.Password) < MinPasswordLength {
		return nil, invalid("password", fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}

	role := in.Role
	if role == "" {
		role = domain.RoleClient
	}
	if !role.Valid() {
		return nil, invalid("role", "Role must be client or business")
	}

	email := normalizeEmail(in.Email)
	switch _, err := s.userRepo.FindByEmail(ctx, email); {
	case err == nil:
		return nil, repository.ErrUserAlreadyExists
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// Sellers without a display name are shown by the local part of their email.
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// A concurrent registration of the same email loses on the unique index.
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login opens a session. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *userService) Login(ctx context.Context, email, password string) (string, string, *domain.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return "", "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to find user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	access, err := s.signAccessToken(user)
	if err != nil {
		return "", "", nil, err
	}

	refresh := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		CreatedAt: s.now(),
	}
	refresh.ExpiresAt = refresh.CreatedAt.Add(s.refreshTTL)
	if err := s.refreshTokenRepo.Create(ctx, refresh); err != nil {
		return "", "", nil, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	return access, refresh.Token, user, nil
}

// Logout revokes the refresh token. Unknown tokens count as logged out.
func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	err := s.refreshTokenRepo.Revoke(ctx, refreshToken)
	if err == nil || errors.Is(err, repository.ErrRefreshTokenNotFound) {
		return nil
	}
	return fmt.Errorf("failed to revoke refresh token: %w", err)
}

// RefreshToken exchanges a live refresh token for a new access token.
// The refresh token itself is not rotated.
func (s *userService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	stored, err := s.refreshTokenRepo.FindByToken(ctx, refreshToken)
	switch {
	case errors.Is(err, repository.ErrRefreshTokenNotFound), errors.Is(err, repository.ErrRefreshTokenRevoked):
		return "", ErrInvalidToken
	case err != nil:
		return "", fmt.Errorf("failed to find refresh token: %w", err)
	case !s.now().Before(stored.ExpiresAt):
		return "", ErrTokenExpired
	}

	user, err := s.userRepo.FindByID(ctx, stored.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to load session owner: %w", err)
	}
	return s.signAccessToken(user)
}

// ValidateToken verifies an HS256 access token and returns its claims.
func (s *userService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *userService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// PurgeExpiredTokens deletes refresh tokens that can no longer be exchanged.
func (s *userService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.refreshTokenRepo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge refresh tokens: %w", err)
	}
	return n, nil
}

func (s *userService) signAccessToken(user *domain.User) (string, error) {
	issued := s.now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.accessTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}
