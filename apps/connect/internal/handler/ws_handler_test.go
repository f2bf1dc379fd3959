package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ChatRelay/apps/connect/internal/manager"
	"ChatRelay/apps/connect/internal/notifier"
	"ChatRelay/apps/connect/internal/protocol"
	"ChatRelay/apps/connect/internal/repository"
	"ChatRelay/apps/connect/internal/svc"
	"ChatRelay/config"
	"ChatRelay/model"
	"ChatRelay/pkg/async"
	"ChatRelay/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsEnv 内存仓储 + 真实 Registry + 真实 svc，挂在 httptest 服务上
type wsEnv struct {
	store    *repository.MemoryStore
	registry *manager.ConnectionManager
	notifier *notifier.MemoryNotifier
	srv      *httptest.Server
}

func newWSEnv(t *testing.T, cfg config.SessionConfig) *wsEnv {
	return newWSEnvWithSessions(t, cfg, repository.NewSessionRepository(nil))
}

func newWSEnvWithSessions(t *testing.T, cfg config.SessionConfig, sessions repository.ISessionRepository) *wsEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	registry := manager.NewConnectionManager()
	n := notifier.NewMemoryNotifier(store.Users())
	relay := svc.NewRelay(registry, store.Chats(), store.Users(), n)
	h := NewWSHandler(
		registry,
		svc.NewConnectService(sessions),
		relay,
		svc.NewFriendService(store.Friends(), store.Users(), relay),
		svc.NewChatService(store.Chats(), cfg),
		cfg,
	)

	r := gin.New()
	r.GET("/ws", h.ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		registry.Shutdown()
		srv.Close()
	})

	env := &wsEnv{store: store, registry: registry, notifier: n, srv: srv}
	for _, u := range []struct{ id, phone, token string }{
		{"A", "13800000001", ""},
		{"B", "13800000002", ""},
		{"C", "13800000003", "device-C"},
	} {
		require.NoError(t, store.Users().Create(t.Context(), &model.UserInfo{
			ID: u.id, Phone: u.phone, Password: "x", PushToken: u.token,
		}))
	}
	return env
}

func (e *wsEnv) url(query string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?" + query
}

// dialAs 以 userID 身份建连，并等待服务端完成注册
func (e *wsEnv) dialAs(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	prev, _ := e.registry.Get(userID)
	token, err := util.GenerateToken(userID)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(e.url("token="+token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		cur, ok := e.registry.Get(userID)
		return ok && cur != prev
	}, 2*time.Second, 5*time.Millisecond)
	return conn
}

type wsEnvelope struct {
	Typ    string          `json:"typ"`
	Status int             `json:"status"`
	Reason string          `json:"reason"`
	Data   json.RawMessage `json:"data"`
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func read(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, msgType)
	var env wsEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func TestServeWSRejectsBadToken(t *testing.T) {
	env := newWSEnv(t, config.DefaultSessionConfig())

	for _, query := range []string{"", "token=garbage", "auth_token="} {
		_, resp, err := websocket.DefaultDialer.Dial(env.url(query), nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake, query)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, query)
		_ = resp.Body.Close()
	}
	assert.Zero(t, env.registry.Count())
}

func TestServeWSAcceptsAuthTokenParam(t *testing.T) {
	env := newWSEnv(t, config.DefaultSessionConfig())
	token, err := util.GenerateToken("A")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(env.url("auth_token="+token), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Eventually(t, func() bool { return env.registry.Count() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestChatBetweenOnlineUsers(t *testing.T) {
	env := newWSEnv(t, config.DefaultSessionConfig())
	a := env.dialAs(t, "A")
	b := env.dialAs(t, "B")

	send(t, a, `{"Chat":{"to":"B","content":"hello"}}`)

	ack := read(t, a)
	assert.Equal(t, protocol.TypChatMessage, ack.Typ)
	assert.Equal(t, http.StatusOK, ack.Status)
	var row model.ChatMessage
	require.NoError(t, json.Unmarshal(ack.Data, &row))
	assert.Equal(t, "A", row.FromID)
	assert.Equal(t, "hello", row.Content)
	assert.NotZero(t, row.ID)

	got := read(t, b)
	assert.Equal(t, protocol.TypChatMessage, got.Typ)
	assert.JSONEq(t, string(ack.Data), string(got.Data))

	// 对方已读
	send(t, b, `{"Read":{"id":"`+strconv.FormatInt(row.ID, 10)+`"}}`)
	readAck := read(t, b)
	assert.Equal(t, protocol.TypRead, readAck.Typ)
	assert.Equal(t, http.StatusOK, readAck.Status)
	stored, err := env.store.Chats().GetByID(t.Context(), row.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasRead)
}

func TestChatToOfflineUserPushes(t *testing.T) {
	env := newWSEnv(t, config.DefaultSessionConfig())
	a := env.dialAs(t, "A")

	send(t, a, `{"Chat":{"to":"C","content":"are you there"}}`)
	ack := read(t, a)
	assert.Equal(t, http.StatusOK, ack.Status)

	sent := env.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "device-C", sent[0].Token)
	assert.Equal(t, "are you there", sent[0].Body)
}

func TestInvalidFramesKeepSessionOpen(t *testing.T) {
	env := newWSEnv(t, config.DefaultSessionConfig())
	a := env.dialAs(t, "A")

	for _, frame := range []string{`not json`, `{"Unknown":{}}`, `{"Chat":{"to":"B"}}`, `{"Chat":{},"RTC":{}}`} {
		send(t, a, frame)
		got := read(t, a)
		assert.Equal(t, protocol.TypError, got.Typ, frame)
		assert.Equal(t, http.StatusBadRequest, got.Status, frame)
	}

	require.NoError(t, a.WriteMessage(websocket.BinaryMessage, []byte{0x1, 0x2}))
	got := read(t, a)
	assert.Equal(t, protocol.TypError, got.Typ)
	assert.Equal(t, http.StatusBadRequest, got.Status)
	assert.Equal(t, reasonUnsupportedType, got.Reason)

	// 会话仍可用
	send(t, a, `"FriendRequests"`)
	list := read(t, a)
	assert.Equal(t, protocol.TypFriendRequests, list.Typ)
	assert.JSONEq(t, `[]`, string(list.Data))
	assert.Equal(t, 1, env.registry.Count())
}

func TestRelayToOfflinePeer(t *testing.T) {
	env := newWSEnv(t, config.DefaultSessionConfig())
	a := env.dialAs(t, "A")

	send(t, a, `{"RTC":{"to":"B","typ":"Answer","payload":{"sdp":"x"}}}`)
	got := read(t, a)
	assert.Equal(t, protocol.TypRTC, got.Typ)
	assert.Equal(t, http.StatusNotFound, got.Status)

	send(t, a, `{"Message":{"to":"B","content":"ping"}}`)
	got = read(t, a)
	assert.Equal(t, protocol.TypMessage, got.Typ)
	assert.Equal(t, http.StatusNotFound, got.Status)

	assert.Empty(t, env.notifier.Sent())
}

func TestRTCSignalingBetweenOnlineUsers(t *testing.T) {
	env := newWSEnv(t, config.DefaultSessionConfig())
	a := env.dialAs(t, "A")
	b := env.dialAs(t, "B")

	send(t, a, `{"RTC":{"to":"B","typ":"Offer","payload":{"sdp":"v=0"}}}`)
	got := read(t, b)
	assert.Equal(t, protocol.TypRTC, got.Typ)
	assert.JSONEq(t, `{"from":"A","typ":"Offer","payload":{"sdp":"v=0"}}`, string(got.Data))
}

func TestFriendWorkflowOverSocket(t *testing.T) {
	env := newWSEnv(t, config.DefaultSessionConfig())
	a := env.dialAs(t, "A")
	b := env.dialAs(t, "B")

	send(t, a, `{"AddFriend":{"friend_id":"B"}}`)
	ack := read(t, a)
	assert.Equal(t, protocol.TypAddFriend, ack.Typ)
	var id struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(ack.Data, &id))
	require.NotEmpty(t, id.ID)

	notice := read(t, b)
	assert.Equal(t, protocol.TypSystemFriendRequest, notice.Typ)
	assert.Contains(t, string(notice.Data), `"phone":"13800000001"`)

	// 申请人自己不能同意
	send(t, a, `{"Accept":{"id":"`+id.ID+`"}}`)
	denied := read(t, a)
	assert.Equal(t, protocol.TypAccept, denied.Typ)
	assert.Equal(t, http.StatusForbidden, denied.Status)

	send(t, b, `{"Accept":{"id":"`+id.ID+`"}}`)
	accepted := read(t, b)
	assert.Equal(t, protocol.TypAccept, accepted.Typ)
	assert.Equal(t, http.StatusOK, accepted.Status)

	friendAccept := read(t, a)
	assert.Equal(t, protocol.TypSystemFriendAccept, friendAccept.Typ)
	assert.JSONEq(t, `{"id":"`+id.ID+`"}`, string(friendAccept.Data))

	send(t, b, `{"Reject":{"id":"`+id.ID+`"}}`)
	conflict := read(t, b)
	assert.Equal(t, protocol.TypReject, conflict.Typ)
	assert.Equal(t, http.StatusConflict, conflict.Status)
}

func TestReconnectReplacesOldSession(t *testing.T) {
	env := newWSEnv(t, config.DefaultSessionConfig())
	first := env.dialAs(t, "A")
	second := env.dialAs(t, "A")

	// 旧连接被服务端关闭
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	require.Error(t, err)

	// 旧会话的清理不会注销新会话
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, env.registry.Count())
	send(t, second, `"FriendRequests"`)
	assert.Equal(t, protocol.TypFriendRequests, read(t, second).Typ)
}

func TestCloseUnregisters(t *testing.T) {
	env := newWSEnv(t, config.DefaultSessionConfig())
	a := env.dialAs(t, "A")

	require.NoError(t, a.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = a.Close()
	assert.Eventually(t, func() bool { return env.registry.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestInboundRateLimit(t *testing.T) {
	cfg := config.DefaultSessionConfig()
	cfg.InboundRate = 0.001
	cfg.InboundBurst = 1
	env := newWSEnv(t, cfg)
	a := env.dialAs(t, "A")

	send(t, a, `"FriendRequests"`)
	assert.Equal(t, protocol.TypFriendRequests, read(t, a).Typ)

	send(t, a, `"FriendRequests"`)
	limited := read(t, a)
	assert.Equal(t, protocol.TypError, limited.Typ)
	assert.Equal(t, http.StatusTooManyRequests, limited.Status)
	assert.Equal(t, 1, env.registry.Count(), "限流不断开连接")
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "Connecting", stateConnecting.String())
	assert.Equal(t, "Authenticated", stateAuthenticated.String())
	assert.Equal(t, "Closed", stateClosed.String())
}

// countingSessions 只统计在线状态写入，其余沿用无 Redis 实现
type countingSessions struct {
	repository.ISessionRepository
	online  atomic.Int32
	offline atomic.Int32
}

func (c *countingSessions) MarkOnline(context.Context, string) error {
	c.online.Add(1)
	return nil
}

func (c *countingSessions) MarkOffline(context.Context, string) error {
	c.offline.Add(1)
	return nil
}

func TestLogoutMarksLiveSessionOffline(t *testing.T) {
	require.NoError(t, async.Init(config.DefaultAsyncConfig()))
	sessions := &countingSessions{ISessionRepository: repository.NewSessionRepository(nil)}
	env := newWSEnvWithSessions(t, config.DefaultSessionConfig(), sessions)
	auth := svc.NewAuthService(env.store.Users(), sessions, env.registry)

	a := env.dialAs(t, "A")
	require.Eventually(t, func() bool { return sessions.online.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, auth.Logout(t.Context(), "A"))

	_ = a.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := a.ReadMessage()
	require.Error(t, err)

	assert.Eventually(t, func() bool { return sessions.offline.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, env.registry.Count())

	// 会话清理不会重复标记离线
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), sessions.offline.Load())
}
