package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-directchat/internal/config"
	chat "go-directchat/internal/pkg/chat/application/domain"
)

func TestJWTVerifier(t *testing.T) {
	v := NewJWTVerifier("secret", "directchat")
	ctx := context.Background()

	token, err := IssueToken("secret", "directchat", "alice", time.Minute)
	require.NoError(t, err)
	userID, err := v.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)

	wrongKey, _ := IssueToken("other", "directchat", "alice", time.Minute)
	_, err = v.Verify(ctx, wrongKey)
	assert.ErrorIs(t, err, chat.ErrUnauthorized)

	wrongIssuer, _ := IssueToken("secret", "elsewhere", "alice", time.Minute)
	_, err = v.Verify(ctx, wrongIssuer)
	assert.ErrorIs(t, err, chat.ErrUnauthorized)

	expired, _ := IssueToken("secret", "directchat", "alice", -time.Hour)
	_, err = v.Verify(ctx, expired)
	assert.ErrorIs(t, err, chat.ErrUnauthorized)

	_, err = v.Verify(ctx, "")
	assert.ErrorIs(t, err, chat.ErrUnauthorized)
}

func TestJWTVerifierRejectsOtherAlgorithms(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "alice", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTVerifier("secret", "").Verify(context.Background(), none)
	assert.ErrorIs(t, err, chat.ErrUnauthorized)
}

func TestInsecureVerifier(t *testing.T) {
	userID, err := InsecureVerifier{}.Verify(context.Background(), " bob ")
	require.NoError(t, err)
	assert.Equal(t, "bob", userID)

	_, err = InsecureVerifier{}.Verify(context.Background(), "  ")
	assert.ErrorIs(t, err, chat.ErrUnauthorized)
}

func TestNewVerifier(t *testing.T) {
	assert.IsType(t, InsecureVerifier{}, NewVerifier(&config.Config{}))
	assert.IsType(t, &JWTVerifier{}, NewVerifier(&config.Config{AuthEnabled: true, AuthJWTSecret: "s"}))
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=fromquery", nil)
	assert.Equal(t, "fromquery", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer fromheader")
	assert.Equal(t, "fromheader", TokenFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, TokenFromRequest(r))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(InsecureVerifier{}, zerolog.Nop()))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer carol")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "carol", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
}
