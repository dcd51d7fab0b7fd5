package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"yield-service/internal/models"
	"yield-service/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const identityKey = "identity"

// Claims mirrors the token issued by the auth service.
type Claims struct {
	jwt.RegisteredClaims
	Id     string
	UserID string
	Email  string
	Phone  string
	Roles  []string
}

type Middleware struct {
	jwtSecret []byte
	required  bool
	logger    *slog.Logger
}

// NewMiddleware verifies bearer tokens with secret. When required is false a missing token
// is allowed and the request proceeds anonymously; an invalid token is always rejected.
func NewMiddleware(secret string, required bool, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		jwtSecret: []byte(secret),
		required:  required,
		logger:    logger.With("component", "auth-middleware"),
	}
}

func (m *Middleware) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if m.required {
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					utils.CreateErrorResponse(utils.CodeUnauthorized, "authorization header required"))
				return
			}
			c.Next()
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := m.VerifyToken(tokenString)
		if err != nil {
			m.logger.Warn("token validation failed", "path", c.Request.URL.Path, "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				utils.CreateErrorResponse(utils.CodeUnauthorized, models.ErrUnauthorized.Error()))
			return
		}

		c.Set(identityKey, &models.Identity{UserID: claims.UserID, Email: claims.Email, Token: tokenString})
		c.Next()
	}
}

func (m *Middleware) VerifyToken(tokenString string) (*Claims, error) {
	if len(m.jwtSecret) == 0 {
		return nil, errors.New("no jwt secret configured")
	}
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.jwtSecret, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// IdentityFrom returns the caller's identity, or nil for anonymous requests.
func IdentityFrom(c *gin.Context) *models.Identity {
	value, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := value.(*models.Identity)
	return identity
}
