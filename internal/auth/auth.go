package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const principalContextKey contextKey = "principal"

// SyncSecretHeader carries the shared secret on sync trigger requests.
const SyncSecretHeader = "X-Sync-Secret"

// Principals recorded in the request context by RequireSync.
const (
	PrincipalSyncSecret = "sync-secret"
	PrincipalAdmin      = "admin"
)

var (
	ErrLoginDisabled      = errors.New("admin login is not configured")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Config holds authentication configuration. An empty SyncSecret rejects
// every secret-header request; an empty AdminPasswordHash or JWTSecret
// disables admin login and bearer tokens.
type Config struct {
	SyncSecret        string
	AdminPasswordHash string
	JWTSecret         string
	TokenDuration     time.Duration
}

// LoadConfigFromEnv loads auth config from SYNC_SECRET, ADMIN_PASSWORD and
// ADMIN_JWT_SECRET. ADMIN_PASSWORD may be plain text or a bcrypt hash.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		SyncSecret:    os.Getenv("SYNC_SECRET"),
		JWTSecret:     os.Getenv("ADMIN_JWT_SECRET"),
		TokenDuration: 24 * time.Hour,
	}

	password := os.Getenv("ADMIN_PASSWORD")
	switch {
	case password == "":
	case isBcryptHash(password):
		cfg.AdminPasswordHash = password
	default:
		hash, err := HashPassword(password)
		if err != nil {
			return Config{}, fmt.Errorf("failed to hash ADMIN_PASSWORD: %w", err)
		}
		cfg.AdminPasswordHash = hash
	}

	if cfg.AdminPasswordHash != "" && cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("ADMIN_JWT_SECRET must be set when ADMIN_PASSWORD is set")
	}

	return cfg, nil
}

func isBcryptHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// LoginEnabled reports whether admin login can issue tokens.
func (c Config) LoginEnabled() bool {
	return c.AdminPasswordHash != "" && c.JWTSecret != ""
}

// Claims represents the JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateToken creates a new JWT token
func GenerateToken(userID string, secret string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "eventhub",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken validates a JWT token and returns the user ID
func ValidateToken(tokenString string, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer("eventhub"))

	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims.UserID, nil
	}

	return "", fmt.Errorf("invalid token")
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a password with a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Login exchanges the admin password for a bearer token.
func (c Config) Login(password string) (string, error) {
	if !c.LoginEnabled() {
		return "", ErrLoginDisabled
	}
	if !CheckPassword(password, c.AdminPasswordHash) {
		return "", ErrInvalidCredentials
	}
	return GenerateToken(PrincipalAdmin, c.JWTSecret, c.TokenDuration)
}

// Authenticate returns the principal a request proves, or "" when it proves
// none. The sync secret is compared in constant time.
func (c Config) Authenticate(r *http.Request) string {
	if c.SyncSecret != "" {
		provided := r.Header.Get(SyncSecretHeader)
		if provided != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(c.SyncSecret)) == 1 {
			return PrincipalSyncSecret
		}
	}

	if c.JWTSecret == "" {
		return ""
	}
	tokenString, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return ""
	}
	userID, err := ValidateToken(tokenString, c.JWTSecret)
	if err != nil {
		return ""
	}
	return userID
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RequireSync rejects requests that carry neither the sync secret nor a
// valid admin token with 401 {"error":"Unauthorized"}.
func RequireSync(config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := config.Authenticate(r)
			if principal == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext extracts the authenticated principal from the request context
func PrincipalFromContext(ctx context.Context) (string, bool) {
	principal, ok := ctx.Value(principalContextKey).(string)
	return principal, ok
}
