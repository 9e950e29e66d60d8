package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kevinaaaquil/library/backend/config"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenType    = errors.New("invalid token type")
)

type Claims struct {
	UserID    string `json:"userId"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Manager signs and verifies access and refresh tokens. Access and refresh tokens use separate secrets.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		accessSecret:  []byte(cfg.JWTSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Issued is a freshly signed token together with its identifiers.
type Issued struct {
	Raw       string
	JTI       string
	ExpiresAt time.Time
}

func (m *Manager) GenerateAccessToken(userID, email, role string) (Issued, error) {
	return m.sign(m.accessSecret, m.accessTTL, Claims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		TokenType: TypeAccess,
	})
}

// GenerateRefreshToken carries email and role so a refreshed access token matches the one issued at login.
func (m *Manager) GenerateRefreshToken(userID, email, role string) (Issued, error) {
	return m.sign(m.refreshSecret, m.refreshTTL, Claims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		TokenType: TypeRefresh,
	})
}

func (m *Manager) sign(secret []byte, ttl time.Duration, claims Claims) (Issued, error) {
	now := m.now()
	jti := uuid.NewString()
	exp := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        jti,
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return Issued{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return Issued{Raw: raw, JTI: jti, ExpiresAt: exp}, nil
}

func (m *Manager) parse(tokenStr string, secret []byte, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrTokenType
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing userId", ErrInvalidToken)
	}
	return claims, nil
}

func (m *Manager) VerifyAccessToken(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, m.accessSecret, TypeAccess)
}

func (m *Manager) VerifyRefreshToken(tokenStr string) (*Claims, error) {
	claims, err := m.parse(tokenStr, m.refreshSecret, TypeRefresh)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}
	return claims, nil
}

// HashRefreshToken is the registry key for a raw refresh token; the raw value is never persisted.
func (m *Manager) HashRefreshToken(raw string) string {
	h := hmac.New(sha256.New, m.refreshSecret)
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}
