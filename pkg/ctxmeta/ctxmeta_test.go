package ctxmeta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestDetachKeepsMetadataButDropsCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	parent = WithTraceID(parent, "t1")
	parent = WithUserID(parent, "u1")
	parent = WithClientIP(parent, "127.0.0.1")
	cancel()

	detached := Detach(parent)

	assert.NoError(t, detached.Err())
	assert.Equal(t, "t1", TraceID(detached))
	assert.Equal(t, "u1", UserID(detached))
	assert.Equal(t, "127.0.0.1", ClientIP(detached))
}

func TestFromGin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set(GinTraceID, "t2")
	c.Set(GinUserID, "u2")

	ctx := FromGin(c)

	assert.Equal(t, "t2", TraceID(ctx))
	assert.Equal(t, "u2", UserID(ctx))
	assert.Empty(t, ClientIP(ctx))
}
