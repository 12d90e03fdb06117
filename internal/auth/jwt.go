// Package auth - jwt.go handles session token creation, signing, and verification
// with a shared HS256 secret, including lazy secret initialization and claims parsing.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// JWTSecretEnv names the environment variable holding the signing secret.
	JWTSecretEnv = "SHAREBOOK_JWT_SECRET"
	// MinSecretLength is the shortest secret accepted outside dev mode.
	MinSecretLength = 32
	// DefaultTokenTTL is used when GenerateJWT is called with a zero duration.
	DefaultTokenTTL = 24 * time.Hour

	issuer = "sharebook"
)

var (
	// jwtSecret holds the validated JWT secret
	jwtSecret     string
	jwtSecretOnce sync.Once
	jwtSecretErr  error
)

// Claims represents the JWT claims structure
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// IsDevMode reports whether the process runs in development mode
// (SHAREBOOK_DEV_MODE=true|1 or GIN_MODE=debug).
func IsDevMode() bool {
	devMode := os.Getenv("SHAREBOOK_DEV_MODE")
	return devMode == "true" || devMode == "1" || os.Getenv("GIN_MODE") == "debug"
}

// generateRandomSecret creates a cryptographically secure random secret
func generateRandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// ValidateJWTSecret checks that the JWT secret is properly configured.
// In production the secret must be set and at least MinSecretLength bytes.
// In dev mode a missing secret is replaced by a random one and a short secret
// only logs a warning. Call this at application startup.
func ValidateJWTSecret() error {
	jwtSecretOnce.Do(func() {
		secret := os.Getenv(JWTSecretEnv)
		dev := IsDevMode()

		switch {
		case secret == "" && dev:
			jwtSecret = generateRandomSecret()
			slog.Warn(JWTSecretEnv+" not set; using an auto-generated secret for development",
				"consequence", "sessions will not survive restarts")
		case secret == "":
			jwtSecretErr = errors.New("SECURITY ERROR: " + JWTSecretEnv + " environment variable is required in production. " +
				"Generate a secure secret with: openssl rand -hex 32")
		case len(secret) < MinSecretLength && !dev:
			jwtSecretErr = fmt.Errorf("SECURITY ERROR: %s must be at least %d bytes", JWTSecretEnv, MinSecretLength)
		default:
			if len(secret) < MinSecretLength {
				slog.Warn(JWTSecretEnv+" is shorter than recommended", "min_length", MinSecretLength)
			}
			jwtSecret = secret
		}
	})

	return jwtSecretErr
}

// GetJWTSecret retrieves the validated JWT secret.
// Panics if ValidateJWTSecret() fails.
func GetJWTSecret() string {
	if jwtSecret == "" {
		if err := ValidateJWTSecret(); err != nil {
			panic(err)
		}
	}
	return jwtSecret
}

// GenerateJWT creates a session token for an authenticated user
func GenerateJWT(userID, email string, expiresIn time.Duration) (string, error) {
	if expiresIn == 0 {
		expiresIn = DefaultTokenTTL
	}

	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(GetJWTSecret()))
}

// ValidateJWT parses and validates a session token
func ValidateJWT(tokenString string) (*Claims, error) {
	secret := GetJWTSecret()

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user id")
	}

	return claims, nil
}
