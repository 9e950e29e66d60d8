package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kevinaaaquil/library/backend/auth"
	"github.com/kevinaaaquil/library/backend/config"
	"github.com/kevinaaaquil/library/backend/models"
	"github.com/kevinaaaquil/library/backend/store"
	"github.com/kevinaaaquil/library/backend/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuthService struct {
	cfg    *config.Config
	store  Store
	tokens *auth.Manager
	log    *slog.Logger
	now    func() time.Time
}

func NewAuthService(cfg *config.Config, st Store, tokens *auth.Manager, log *slog.Logger) *AuthService {
	return &AuthService{
		cfg:    cfg,
		store:  st,
		tokens: tokens,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

type LoginResult struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
}

// Register creates a user. It never returns a session; callers continue with Login.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = models.RoleUser
	}
	if !models.RoleValid(role) {
		return nil, fmt.Errorf("%w: role must be one of %s", ErrInvalidInput, strings.Join(models.ValidRoles, ", "))
	}
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", ErrInvalidInput)
	}

	_, err := s.store.UserByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: user already exists", ErrConflict)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	user := &models.User{
		Name:      in.Name,
		Email:     in.Email,
		Role:      role,
		Password:  hash,
		Borrowed:  []models.BorrowRecord{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: user already exists", ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.InfoContext(ctx, "user registered", "user_id", user.ID.Hex())
	return user, nil
}

// Login checks email, password and role. All three must match; any mismatch is ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, email, password, role string) (*LoginResult, error) {
	user, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: authentication failed", ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !utils.CheckPasswordHash(password, user.Password) || user.Role != role {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	userID := user.ID.Hex()
	access, err := s.tokens.GenerateAccessToken(userID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.GenerateRefreshToken(userID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveRefreshToken(ctx, models.RefreshToken{
		ID:        s.tokens.HashRefreshToken(refresh.Raw),
		JTI:       refresh.JTI,
		UserID:    user.ID,
		ExpiresAt: refresh.ExpiresAt,
		CreatedAt: s.now(),
	}); err != nil {
		return nil, fmt.Errorf("record refresh token: %w", err)
	}

	user.Password = ""
	return &LoginResult{User: user, AccessToken: access.Raw, RefreshToken: refresh.Raw}, nil
}

// Refresh mints a new access token from a registered refresh token. The refresh token is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", fmt.Errorf("%w: invalid refresh token", ErrForbidden)
	}
	if _, err := s.store.RefreshTokenByID(ctx, s.tokens.HashRefreshToken(refreshToken)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: invalid refresh token", ErrForbidden)
		}
		return "", fmt.Errorf("lookup refresh token: %w", err)
	}
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: invalid refresh token", ErrForbidden)
	}
	access, err := s.tokens.GenerateAccessToken(claims.UserID, claims.Email, claims.Role)
	if err != nil {
		return "", err
	}
	return access.Raw, nil
}

// Logout drops a refresh token from the registry. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("%w: refreshToken is required", ErrInvalidInput)
	}
	return s.store.DeleteRefreshToken(ctx, s.tokens.HashRefreshToken(refreshToken))
}

// DeleteAccount removes the user, revokes their refresh tokens and, when configured,
// pulls their likes and reviews from every book. Cleanup failures are logged, not returned:
// the user document is already gone at that point.
func (s *AuthService) DeleteAccount(ctx context.Context, userID primitive.ObjectID) error {
	if _, err := s.store.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("user")
		}
		return fmt.Errorf("delete user: %w", err)
	}
	log := s.log.With("user_id", userID.Hex())
	if n, err := s.store.DeleteRefreshTokensForUser(ctx, userID); err != nil {
		log.ErrorContext(ctx, "revoke refresh tokens after delete", "error", err)
	} else if n > 0 {
		log.InfoContext(ctx, "revoked refresh tokens", "count", n)
	}
	if s.cfg.CascadeUserDelete {
		if n, err := s.store.PullUserReferences(ctx, userID); err != nil {
			log.ErrorContext(ctx, "cascade user references", "error", err)
		} else {
			log.InfoContext(ctx, "cascaded user references", "books", n)
		}
	}
	log.InfoContext(ctx, "user deleted")
	return nil
}
