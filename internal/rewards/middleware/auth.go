package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/25x8/rewards/internal/rewards/models"
	"github.com/25x8/rewards/internal/rewards/utils"
	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const (
	// ClaimsKey is the key for token claims in the request context
	ClaimsKey contextKey = "claims"

	authCookieName = "auth_token"
	bearerSchema   = "Bearer "
)

// JWTConfig contains configuration for JWT authentication
type JWTConfig struct {
	SecretKey string
}

// JWTClaims represents JWT claims
type JWTClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken generates a JWT token for a user
func GenerateToken(user *models.User, secretKey string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secretKey))
}

// ParseToken validates a signed token and returns its claims
func ParseToken(tokenString, secretKey string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// AuthMiddleware rejects requests without a valid token.
// A missing token is 401, a bad one is 403.
func AuthMiddleware(jwtConfig *JWTConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, present := extractToken(r)
			if !present {
				utils.WriteError(w, http.StatusUnauthorized, "Authorization header missing")
				return
			}
			if tokenString == "" {
				utils.WriteError(w, http.StatusUnauthorized, "Token missing")
				return
			}

			claims, err := ParseToken(tokenString, jwtConfig.SecretKey)
			if err != nil {
				utils.WriteError(w, http.StatusForbidden, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminMiddleware must run after AuthMiddleware
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetClaims(r.Context())
		if !ok || claims.Role != models.RoleAdmin {
			utils.WriteError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractToken extracts JWT token from Authorization header or cookie.
// present reports whether any credential was sent at all.
func extractToken(r *http.Request) (token string, present bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if !strings.HasPrefix(authHeader, bearerSchema) {
			return "", true
		}
		return strings.TrimSpace(strings.TrimPrefix(authHeader, bearerSchema)), true
	}

	cookie, err := r.Cookie(authCookieName)
	if err == nil {
		return cookie.Value, true
	}

	return "", false
}

// SetAuthCookie sets authentication cookie
func SetAuthCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(ttl.Seconds()),
	})
}

// GetClaims extracts token claims from request context
func GetClaims(ctx context.Context) (*JWTClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*JWTClaims)
	return claims, ok
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	claims, ok := GetClaims(ctx)
	if !ok {
		return "", false
	}
	return claims.UserID, true
}
