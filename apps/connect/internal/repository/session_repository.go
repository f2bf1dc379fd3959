package repository

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"time"

	"ChatRelay/apps/connect/mq"
	rediskey "ChatRelay/consts/redisKey"

	"github.com/redis/go-redis/v9"
)

// sessionRepositoryImpl 登录态与在线状态，redisClient 为 nil 时全部降级为空操作
type sessionRepositoryImpl struct {
	redisClient *redis.Client
}

// NewSessionRepository 创建登录态仓储实例
func NewSessionRepository(redisClient *redis.Client) ISessionRepository {
	return &sessionRepositoryImpl{redisClient: redisClient}
}

// md5Hash 计算字符串的 MD5 哈希
func md5Hash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (r *sessionRepositoryImpl) StoreAccessToken(ctx context.Context, userID, token string) error {
	if r.redisClient == nil {
		return nil
	}
	key := rediskey.AccessTokenKey(userID)
	value := md5Hash(token)
	if err := r.redisClient.Set(ctx, key, value, rediskey.AccessTokenTTL).Err(); err != nil {
		task := mq.BuildSetTask(key, value, rediskey.AccessTokenTTL).WithSource("SessionRepository.StoreAccessToken")
		LogAndRetryRedisError(ctx, task, err)
		return WrapRedisError(err)
	}
	return nil
}

func (r *sessionRepositoryImpl) VerifyAccessToken(ctx context.Context, userID, token string) (bool, error) {
	if r.redisClient == nil {
		return true, nil
	}
	stored, err := r.redisClient.Get(ctx, rediskey.AccessTokenKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, WrapRedisError(err)
	}
	return stored == md5Hash(token), nil
}

func (r *sessionRepositoryImpl) DeleteAccessToken(ctx context.Context, userID string) error {
	if r.redisClient == nil {
		return nil
	}
	key := rediskey.AccessTokenKey(userID)
	if err := r.redisClient.Del(ctx, key).Err(); err != nil {
		LogAndRetryRedisError(ctx, mq.BuildDelTask(key).WithSource("SessionRepository.DeleteAccessToken").WithMaxRetries(5), err)
		return WrapRedisError(err)
	}
	return nil
}

func (r *sessionRepositoryImpl) MarkOnline(ctx context.Context, userID string) error {
	return r.setPresence(ctx, userID, true, "SessionRepository.MarkOnline")
}

func (r *sessionRepositoryImpl) MarkOffline(ctx context.Context, userID string) error {
	return r.setPresence(ctx, userID, false, "SessionRepository.MarkOffline")
}

// TouchActive 只刷新最近活跃时间
func (r *sessionRepositoryImpl) TouchActive(ctx context.Context, userID string) error {
	if r.redisClient == nil {
		return nil
	}
	key := rediskey.UserActiveKey(userID)
	now := time.Now().Unix()

	pipe := r.redisClient.Pipeline()
	pipe.HSet(ctx, key, "last_active", now)
	pipe.Expire(ctx, key, rediskey.UserActiveTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		task := mq.BuildPipelineTask([]mq.RedisCmd{
			{Command: "hset", Args: []interface{}{key, "last_active", now}},
			{Command: "expire", Args: []interface{}{key, int(rediskey.UserActiveTTL.Seconds())}},
		}).WithSource("SessionRepository.TouchActive")
		LogAndRetryRedisError(ctx, task, err)
		return WrapRedisError(err)
	}
	return nil
}

func (r *sessionRepositoryImpl) setPresence(ctx context.Context, userID string, online bool, source string) error {
	if r.redisClient == nil {
		return nil
	}
	activeKey := rediskey.UserActiveKey(userID)
	onlineKey := rediskey.OnlineUsersKey()
	now := time.Now().Unix()
	flag := 0
	setCmd := "srem"
	if online {
		flag = 1
		setCmd = "sadd"
	}

	pipe := r.redisClient.Pipeline()
	pipe.HSet(ctx, activeKey, "last_active", now, "online", flag)
	pipe.Expire(ctx, activeKey, rediskey.UserActiveTTL)
	if online {
		pipe.SAdd(ctx, onlineKey, userID)
	} else {
		pipe.SRem(ctx, onlineKey, userID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		task := mq.BuildPipelineTask([]mq.RedisCmd{
			{Command: "hset", Args: []interface{}{activeKey, "last_active", now, "online", flag}},
			{Command: "expire", Args: []interface{}{activeKey, int(rediskey.UserActiveTTL.Seconds())}},
			{Command: setCmd, Args: []interface{}{onlineKey, userID}},
		}).WithSource(source)
		LogAndRetryRedisError(ctx, task, err)
		return WrapRedisError(err)
	}
	return nil
}
