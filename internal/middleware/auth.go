package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

// IdentityResolver turns request credentials into an account id.
type IdentityResolver interface {
	Resolve(ctx context.Context, r *http.Request) (int, error)
}

// HeaderResolver trusts the X-User-ID header set by the upstream gateway.
type HeaderResolver struct{}

func (HeaderResolver) Resolve(_ context.Context, r *http.Request) (int, error) {
	header := r.Header.Get("X-User-ID")
	if header == "" {
		return 0, fmt.Errorf("%w: missing X-User-ID", ErrUnauthorized)
	}
	id, err := strconv.Atoi(header)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid X-User-ID", ErrUnauthorized)
	}
	return id, nil
}

// JWTResolver validates HS256 bearer tokens whose subject is the account id.
// Browsers cannot set headers on websocket upgrades, so a token query
// parameter is accepted as well.
type JWTResolver struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

func (j *JWTResolver) Resolve(_ context.Context, r *http.Request) (int, error) {
	tok := bearerToken(r)
	if tok == "" {
		return 0, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}
	var claims jwt.RegisteredClaims
	if _, err := j.parser.ParseWithClaims(tok, &claims, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	}); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid subject", ErrUnauthorized)
	}
	return id, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return r.URL.Query().Get("token")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// AuthMiddleware resolves the caller and stores it under "userID".
func AuthMiddleware(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := resolver.Resolve(c.Request.Context(), c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
