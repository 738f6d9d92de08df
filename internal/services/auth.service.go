package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sysaura/internal/logger"
	"sysaura/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenExpiry matches the lifetime of dashboard sessions.
	DefaultTokenExpiry = 24 * time.Hour
	tokenIssuer        = "sysaura-server"
	secretKeyFile      = ".sysaura-secret-key"
	minSecretLength    = 32
)

// AuthService manages JWT token generation and validation
type AuthService struct {
	secretKey   string
	tokenExpiry time.Duration
	now         func() time.Time
}

// CustomClaims represents the JWT claims structure
type CustomClaims struct {
	UserID string      `json:"id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// NewAuthService creates the token service. An empty secretKey is loaded from
// (or generated into) a key file in the home directory so tokens survive restarts.
func NewAuthService(secretKey string, tokenExpiry time.Duration, log logger.Logger) *AuthService {
	if log == nil {
		log = logger.Noop()
	}
	if secretKey == "" {
		secretKey = loadOrCreateSecret(secretKeyPath(), log)
	}

	if tokenExpiry <= 0 {
		tokenExpiry = DefaultTokenExpiry
	}

	secretKey = strings.TrimSpace(secretKey)

	// HMAC-SHA256 wants at least 32 bytes of key
	if len(secretKey) < minSecretLength {
		log.Warn("secret key is only %d bytes, recommended minimum is %d", len(secretKey), minSecretLength)
	}

	return &AuthService{
		secretKey:   secretKey,
		tokenExpiry: tokenExpiry,
		now:         time.Now,
	}
}

func secretKeyPath() string {
	homeDir, _ := os.UserHomeDir()
	if homeDir == "" {
		return filepath.Join(os.TempDir(), secretKeyFile)
	}
	return filepath.Join(homeDir, secretKeyFile)
}

func loadOrCreateSecret(keyFile string, log logger.Logger) string {
	if data, err := os.ReadFile(keyFile); err == nil && len(strings.TrimSpace(string(data))) > 0 {
		secret := strings.TrimSpace(string(data))
		log.Info("loaded persisted secret key from %s (length: %d bytes)", keyFile, len(secret))
		return secret
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "sysaura"
	}

	randomBytes := make([]byte, 24)
	var secret string
	if _, err := rand.Read(randomBytes); err != nil {
		secret = fmt.Sprintf("sysaura-%s-%d-backup-key-material", hostname, time.Now().UnixNano())
		log.Warn("random generation failed, using fallback key")
	} else {
		secret = fmt.Sprintf("sysaura-%s-%s", hostname, hex.EncodeToString(randomBytes))
	}

	if err := os.WriteFile(keyFile, []byte(secret), 0600); err != nil {
		log.Warn("could not persist secret key to %s: %v", keyFile, err)
	} else {
		log.Info("generated and persisted secret key to %s (length: %d bytes)", keyFile, len(secret))
	}
	return secret
}

// TokenExpiry returns the lifetime of issued tokens.
func (a *AuthService) TokenExpiry() time.Duration {
	return a.tokenExpiry
}

// GenerateToken issues a signed token for identity.
func (a *AuthService) GenerateToken(identity models.Identity) (string, error) {
	if identity.UserID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if identity.Role == "" {
		identity.Role = models.RoleUser
	}

	now := a.now()
	claims := CustomClaims{
		UserID: identity.UserID,
		Role:   identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.secretKey))
}

// ValidateToken verifies a token and returns the identity it carries.
func (a *AuthService) ValidateToken(tokenString string) (models.Identity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return models.Identity{}, fmt.Errorf("%w: no token provided", ErrAuthFailure)
	}

	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.secretKey), nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, fmt.Errorf("%w: token expired", ErrAuthFailure)
		}
		return models.Identity{}, fmt.Errorf("%w: %v", ErrAuthFailure, err)
	}
	if !token.Valid || claims.UserID == "" {
		return models.Identity{}, fmt.Errorf("%w: invalid token", ErrAuthFailure)
	}

	role := claims.Role
	if role == "" {
		role = models.RoleUser
	}
	return models.Identity{UserID: claims.UserID, Role: role}, nil
}
