package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"go-directchat/internal/config"
	chat "go-directchat/internal/pkg/chat/application/domain"
)

const userIDKey = "user_id"

// Verifier turns an identity token into a UserID.
// Failures wrap chat.ErrUnauthorized.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// JWTVerifier validates HS256 tokens; the subject claim is the UserID.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing token", chat.ErrUnauthorized)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", chat.ErrUnauthorized, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: token has no subject", chat.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// IssueToken signs an HS256 token for userID. Used by tests and the CLI.
func IssueToken(secret, issuer, userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: empty user id")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// InsecureVerifier accepts the token itself as the UserID. Development only.
type InsecureVerifier struct{}

func (InsecureVerifier) Verify(_ context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: missing token", chat.ErrUnauthorized)
	}
	return token, nil
}

// NewVerifier picks the verifier for the configuration.
func NewVerifier(cfg *config.Config) Verifier {
	if !cfg.AuthEnabled {
		return InsecureVerifier{}
	}
	return NewJWTVerifier(cfg.AuthJWTSecret, cfg.AuthIssuer)
}

// Middleware authenticates every request and stores the UserID in the gin context.
func Middleware(v Verifier, log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "auth").Logger()
	return func(c *gin.Context) {
		userID, err := v.Verify(c.Request.Context(), TokenFromRequest(c.Request))
		if err != nil {
			log.Debug().Err(err).Str("path", c.FullPath()).Msg("authentication failed")
			abortUnauthorized(c)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated UserID set by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// TokenFromRequest reads a bearer token, falling back to the token query
// parameter that browser websocket clients use.
func TokenFromRequest(r *http.Request) string {
	if t := bearerToken(r.Header.Get("Authorization")); t != "" {
		return t
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": "unauthorized",
	})
}
