package notifier

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"ChatRelay/apps/connect/internal/repository"
	"ChatRelay/config"
	"ChatRelay/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"
)

const (
	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionTTL   = time.Hour
	// tokenRefreshSkew 提前刷新，避免请求途中 access token 过期
	tokenRefreshSkew = time.Minute
)

// serviceAccount Google service account JSON 中用到的字段
type serviceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmBody struct {
	Message fcmMessage `json:"message"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// FCMNotifier FCM HTTP v1 推送。
// access token 由 service account 签发的 RS256 断言换取并缓存到过期前；发送请求经熔断器保护。
type FCMNotifier struct {
	userTokens

	account  serviceAccount
	key      *rsa.PrivateKey
	cfg      config.FCMConfig
	tokenURL string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

var _ Notifier = (*FCMNotifier)(nil)

// NewFCMNotifier 读取 cfg.ServiceAccountPath 指向的 service account
func NewFCMNotifier(cfg config.FCMConfig, users repository.IUserRepository) (*FCMNotifier, error) {
	raw, err := os.ReadFile(cfg.ServiceAccountPath)
	if err != nil {
		return nil, fmt.Errorf("read service account: %w", err)
	}
	return newFCMNotifier(cfg, raw, users)
}

func newFCMNotifier(cfg config.FCMConfig, rawAccount []byte, users repository.IUserRepository) (*FCMNotifier, error) {
	var account serviceAccount
	if err := json.Unmarshal(rawAccount, &account); err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	if account.ProjectID == "" || account.ClientEmail == "" || account.PrivateKey == "" {
		return nil, errors.New("service account missing project_id, client_email or private_key")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse service account private key: %w", err)
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = account.TokenURI
	}
	if tokenURL == "" {
		tokenURL = "https://oauth2.googleapis.com/token"
	}

	return &FCMNotifier{
		userTokens: userTokens{users: users},
		account:    account,
		key:        key,
		cfg:        cfg,
		tokenURL:   tokenURL,
		client:     &http.Client{Timeout: cfg.RequestTimeout},
		breaker:    newBreaker("fcm"),
	}, nil
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,                // 半开状态下最多放行 3 个请求
		Interval:    15 * time.Second, // 闭合状态下清零计数的周期
		Timeout:     45 * time.Second, // 打开后多久进入半开
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info(context.Background(), "熔断器状态变化",
				logger.String("name", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
}

// SendNotification 发送一条通知，熔断打开时返回 ErrUnavailable
func (n *FCMNotifier) SendNotification(ctx context.Context, token, title, body string, data map[string]string) error {
	_, err := n.breaker.Execute(func() (interface{}, error) {
		return nil, n.send(ctx, token, title, body, data)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit breaker [%s] is open", ErrUnavailable, n.breaker.Name())
	}
	return err
}

func (n *FCMNotifier) send(ctx context.Context, token, title, body string, data map[string]string) error {
	accessToken, err := n.token(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(fcmBody{Message: fcmMessage{
		Token:        token,
		Notification: fcmNotification{Title: title, Body: body},
		Data:         data,
	}})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/projects/%s/messages:send", strings.TrimRight(n.cfg.Endpoint, "/"), n.account.ProjectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		n.invalidate()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("send notification: status %d: %s", resp.StatusCode, strings.TrimSpace(string(reason)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// token 返回缓存的 access token，过期前 tokenRefreshSkew 重新换取
func (n *FCMNotifier) token(ctx context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.accessToken != "" && time.Now().Add(tokenRefreshSkew).Before(n.expiresAt) {
		return n.accessToken, nil
	}

	assertion, err := n.assertion(time.Now())
	if err != nil {
		return "", err
	}
	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("mint access token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		reason, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("mint access token: status %d: %s", resp.StatusCode, strings.TrimSpace(string(reason)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode access token: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("mint access token: empty access_token")
	}
	if tr.ExpiresIn <= 0 {
		tr.ExpiresIn = int64(assertionTTL.Seconds())
	}

	n.accessToken = tr.AccessToken
	n.expiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	logger.Info(ctx, "FCM access token 已刷新", logger.Time("expires_at", n.expiresAt))
	return n.accessToken, nil
}

// assertion service account 私钥签发的 RS256 JWT
func (n *FCMNotifier) assertion(now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   n.account.ClientEmail,
		"scope": n.cfg.Scope,
		"aud":   n.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
	})
	if n.account.PrivateKeyID != "" {
		token.Header["kid"] = n.account.PrivateKeyID
	}
	return token.SignedString(n.key)
}

func (n *FCMNotifier) invalidate() {
	n.mu.Lock()
	n.accessToken = ""
	n.expiresAt = time.Time{}
	n.mu.Unlock()
}
