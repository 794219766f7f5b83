package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"persona-craft-go/pkg/database"
	"persona-craft-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func newAuthTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	jwtManager := token.NewJWTManager("test-secret", 1, 1)
	// userService 在黑名单检查失败后不会被访问
	r.GET("/protected", AuthMiddleware(jwtManager, nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAuthMiddlewareBlacklistUnavailable(t *testing.T) {
	// 指向一个不可达的 Redis 地址，使黑名单查询返回错误
	database.RDB = redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
	})

	r := newAuthTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// 黑名单不可用时必须拒绝请求，不允许跳过登出校验
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "token 校验失败")
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	r := newAuthTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
