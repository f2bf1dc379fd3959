package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ChatRelay/config"
	"ChatRelay/pkg/ctxmeta"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("u1")
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestParseTokenRejectsTampering(t *testing.T) {
	token, err := GenerateToken("u1")
	require.NoError(t, err)

	_, err = ParseToken(token + "x")
	assert.ErrorIs(t, err, ErrTokenMalformed)

	_, err = ParseToken("")
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestParseTokenExpired(t *testing.T) {
	cfg := config.DefaultJWTConfig()
	InitJWT(config.JWTConfig{Secret: cfg.Secret, Issuer: cfg.Issuer, AccessTokenTTL: -time.Minute})
	defer InitJWT(cfg)

	token, err := GenerateToken("u1")
	require.NoError(t, err)

	_, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("u1")
	require.NoError(t, err)

	cfg := config.DefaultJWTConfig()
	InitJWT(config.JWTConfig{Secret: "other", Issuer: cfg.Issuer, AccessTokenTTL: cfg.AccessTokenTTL})
	defer InitJWT(cfg)

	_, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestNextIDMonotonic(t *testing.T) {
	prev := NextID()
	for i := 0; i < 1000; i++ {
		id := NextID()
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestInitSnowflakeRejectsBadNode(t *testing.T) {
	assert.Error(t, InitSnowflake(-1))
}

func TestTraceLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceLogger())
	var fromCtx string
	r.GET("/", func(c *gin.Context) {
		fromCtx = ctxmeta.TraceID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "abc")
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc", w.Header().Get(HeaderXRequestID))
	assert.Equal(t, "abc", fromCtx)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(HeaderXRequestID))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "138****8000", MaskPhone("13800138000"))
	assert.Equal(t, "12345", MaskPhone("12345"))
	assert.Equal(t, "550e****0000", MaskID("550e8400-e29b-41d4-a716-446655440000"))
	assert.Equal(t, "short", MaskID("short"))
}
