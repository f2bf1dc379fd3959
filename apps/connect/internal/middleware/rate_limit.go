package middleware

import (
	"context"
	"net/http"
	"time"

	"ChatRelay/consts"
	rediskey "ChatRelay/consts/redisKey"
	"ChatRelay/pkg/logger"
	"ChatRelay/pkg/result"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// tokenBucketScript Redis 令牌桶
//
//	KEYS[1]: 限流 key (如: rate:limit:ip:{ip})
//	ARGV[1]: 当前时间戳 (毫秒)
//	ARGV[2]: 令牌桶容量
//	ARGV[3]: 每秒产生的令牌数
//	ARGV[4]: 每次请求消耗的令牌数
//
// 返回 1 允许通过，0 令牌不足
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local info = redis.call('HMGET', key, 'tokens', 'last_time')
local current_tokens = tonumber(info[1])
local last_time = tonumber(info[2])

if current_tokens == nil then
    current_tokens = capacity
end
if last_time == nil then
    last_time = now
end

-- 补充令牌: (时间差ms * 速率) / 1000
local time_diff = math.max(0, now - last_time)
local new_tokens = math.floor((time_diff * rate) / 1000)
if new_tokens > 0 then
    current_tokens = math.min(capacity, current_tokens + new_tokens)
    last_time = now
end

local allowed = 0
if current_tokens >= requested then
    current_tokens = current_tokens - requested
    allowed = 1
end

redis.call('HSET', key, 'tokens', current_tokens, 'last_time', last_time)

-- 过期时间：桶填满所需时间 * 2，至少 60 秒
local fill_time = math.ceil(capacity / rate)
redis.call('EXPIRE', key, math.max(60, fill_time * 2))

return allowed
`)

// redisCallTimeout 限流检查的独立短超时，防止 Redis 响应慢拖住登录注册
const redisCallTimeout = 50 * time.Millisecond

// RedisRateLimiter 基于 Redis 的令牌桶限流器，多实例共享配额
type RedisRateLimiter struct {
	client redis.Scripter
	rate   float64 // 每秒产生的令牌数
	burst  int     // 令牌桶容量
}

// NewRedisRateLimiter 创建限流器，client 为 nil 时全部放行
func NewRedisRateLimiter(client redis.Scripter, rate float64, burst int) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, rate: rate, burst: burst}
}

// Allow 检查是否允许请求通过，Redis 不可用时降级放行
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	if r == nil || r.client == nil {
		return true
	}

	redisCtx, cancel := context.WithTimeout(ctx, redisCallTimeout)
	defer cancel()

	allowed, err := tokenBucketScript.Run(redisCtx, r.client, []string{key},
		time.Now().UnixMilli(), r.burst, r.rate, 1).Int64()
	if err != nil {
		logger.Warn(ctx, "Redis 限流检查失败，降级放行",
			logger.String("key", key),
			logger.ErrorField("error", err),
		)
		return true
	}
	return allowed == 1
}

// IPRateLimitMiddleware 基于 Redis 的 IP 级别限流中间件，用于注册、登录等公开接口
func IPRateLimitMiddleware(limiter *RedisRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := NewContextWithGin(c)

		// 1. 获取客户端 IP，拿不到时放行
		ip, ok := GetClientIPSafe(c)
		if !ok {
			c.Next()
			return
		}

		// 2. 令牌桶检查
		if !limiter.Allow(ctx, rediskey.IPRateLimitKey(ip)) {
			logger.Warn(ctx, "IP 请求被限流",
				logger.String("ip", ip),
				logger.String("path", c.Request.URL.Path),
				logger.String("method", c.Request.Method),
			)
			result.Abort(c, http.StatusTooManyRequests, consts.CodeTooManyRequests)
			return
		}

		// 3. 通过检查，继续处理请求
		c.Next()
	}
}
