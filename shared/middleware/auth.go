package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// InternalTokenHeader authenticates service-to-service calls.
const InternalTokenHeader = "X-Internal-Token"

// LocalInternalToken stands in for an unset INTERNAL_TOKEN when APP_ENV is
// local, so every service on a developer machine agrees on it.
const LocalInternalToken = "local-internal-token"

var (
	jwtSecretOnce sync.Once
	jwtSecretVal  []byte
)

func jwtSecret() []byte {
	jwtSecretOnce.Do(func() {
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			panic("JWT_SECRET environment variable is not set")
		}
		jwtSecretVal = []byte(secret)
	})
	return jwtSecretVal
}

// MustInitJWTSecret reads JWT_SECRET at startup so a misconfigured service
// fails before serving traffic instead of on the first request.
func MustInitJWTSecret() {
	_ = jwtSecret()
}

type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			RespondWithError(c, http.StatusUnauthorized, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			RespondWithError(c, http.StatusUnauthorized, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (any, error) {
			return jwtSecret(), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || !token.Valid || claims.UserID == "" {
			RespondWithError(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("userId", claims.UserID)
		c.Set("email", claims.Email)
		c.Next()
	}
}

// MustInternalToken returns the shared service token. It panics when the
// token is unset outside the local environment.
func MustInternalToken(token, environment string) string {
	if token != "" {
		return token
	}
	if environment == "local" {
		return LocalInternalToken
	}
	panic("INTERNAL_TOKEN environment variable is not set")
}

// InternalAuth guards /internal routes with a shared service token. With an
// empty token every call is refused.
func InternalAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(InternalTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			RespondWithError(c, http.StatusUnauthorized, "Invalid service credentials")
			c.Abort()
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userId")
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok && id != ""
}
