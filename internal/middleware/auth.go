package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/contentforge/api/pkg/response"
)

const (
	tokenIssuer = "contentforge-api"

	localUserID = "user_id"
	localClaims = "claims"
)

// AuthMiddleware guards the content API with HMAC bearer tokens.
type AuthMiddleware struct {
	jwtSecret []byte
	parser    *jwt.Parser
}

// UserClaims identifies the caller a job is submitted for.
type UserClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: []byte(jwtSecret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// Authenticate validates JWT token from Authorization header
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scheme, token, found := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
		if !found {
			return response.Unauthorized(c, "Missing bearer token")
		}
		if !strings.EqualFold(scheme, "bearer") {
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		claims, err := m.ParseToken(strings.TrimSpace(token))
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired token")
		}

		c.Locals(localUserID, claims.UserID)
		c.Locals(localClaims, claims)
		return c.Next()
	}
}

// ParseToken validates an HMAC signed token and returns its claims.
func (m *AuthMiddleware) ParseToken(tokenString string) (*UserClaims, error) {
	claims := &UserClaims{}
	_, err := m.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return m.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// GetUserID returns the authenticated caller, or "" on open routes.
func GetUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals(localUserID).(string)
	return userID
}

// GenerateToken creates a signed token valid for ttl (zero means no expiry)
func (m *AuthMiddleware) GenerateToken(userID, email string, ttl time.Duration) (string, error) {
	claims := UserClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   tokenIssuer,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.jwtSecret)
}
