package util

import (
	"errors"
	"sync"
	"time"

	"ChatRelay/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenMalformed token 无法解析或签名不匹配
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenExpired token 已过期
	ErrTokenExpired = errors.New("token expired")
)

// Claims 访问令牌载荷。
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

var (
	jwtMu  sync.RWMutex
	jwtCfg = config.DefaultJWTConfig()
)

// InitJWT 设置签名配置，进程启动时调用一次。
func InitJWT(cfg config.JWTConfig) {
	jwtMu.Lock()
	defer jwtMu.Unlock()
	jwtCfg = cfg
}

func currentJWTConfig() config.JWTConfig {
	jwtMu.RLock()
	defer jwtMu.RUnlock()
	return jwtCfg
}

// GenerateToken 为用户签发 HS256 访问令牌。
func GenerateToken(userID string) (string, error) {
	cfg := currentJWTConfig()
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessTokenTTL)),
			ID:        NewUUID(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

// ParseToken 校验签名与有效期并返回载荷。
func ParseToken(tokenString string) (*Claims, error) {
	cfg := currentJWTConfig()
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(cfg.Issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
