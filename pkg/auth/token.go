package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	bearerPrefix = "Bearer "

	// Context keys set by the middleware.
	ContextMemberID = "member_id"
	ContextIsAdmin  = "is_admin"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoToken      = errors.New("missing authorization header")
)

type memberClaims struct {
	jwt.RegisteredClaims
	MemberID string `json:"member_id"`
	Admin    bool   `json:"admin"`
}

// TokenAuth validates member bearer tokens and the static service token
// used by the external scheduler.
type TokenAuth struct {
	secret       []byte
	serviceToken string
}

func NewTokenAuth(secret, serviceToken string) *TokenAuth {
	return &TokenAuth{
		secret:       []byte(secret),
		serviceToken: serviceToken,
	}
}

// IssueToken signs a member token. Mainly used by tooling and tests; the
// login flow issuing these lives outside this service.
func (a *TokenAuth) IssueToken(memberID uuid.UUID, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := memberClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		MemberID: memberID.String(),
		Admin:    admin,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *TokenAuth) parse(tokenString string) (uuid.UUID, bool, error) {
	var claims memberClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, false, ErrInvalidToken
	}

	memberID, err := uuid.Parse(claims.MemberID)
	if err != nil {
		return uuid.Nil, false, ErrInvalidToken
	}

	return memberID, claims.Admin, nil
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", ErrNoToken
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrInvalidToken
	}
	return strings.TrimPrefix(header, bearerPrefix), nil
}

// AuthMiddleware authenticates member requests and stores the member id
// and admin claim on the request context.
func (a *TokenAuth) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		memberID, admin, err := a.parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(ContextMemberID, memberID)
		c.Set(ContextIsAdmin, admin)
		c.Next()
	}
}

// ServiceMiddleware guards scheduler-facing endpoints with the static
// service token.
func (a *TokenAuth) ServiceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c)
		if err != nil || a.serviceToken == "" ||
			subtle.ConstantTimeCompare([]byte(tokenString), []byte(a.serviceToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// MemberID extracts the authenticated member id stored by AuthMiddleware.
func MemberID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(ContextMemberID)
	if !exists {
		return uuid.Nil, false
	}
	memberID, ok := value.(uuid.UUID)
	return memberID, ok
}
