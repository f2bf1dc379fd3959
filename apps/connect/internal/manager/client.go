package manager

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultSendQueueSize = 64
	wsWriteTimeout       = 5 * time.Second
)

// Handle 在线连接的可投递引用。Registry 只通过它与会话交互，不接触会话内部状态。
type Handle interface {
	UserID() string
	// Enqueue 非阻塞投递，返回 false 表示连接已关闭或邮箱已满（消息被丢弃）。
	Enqueue(msg []byte) bool
	Close()
	Done() <-chan struct{}
}

// MessageHandler 上行文本帧回调。
type MessageHandler func(raw []byte)

// ControlHandler 非文本帧（二进制）回调。
type ControlHandler func(messageType int)

// CloseHandler 读写循环退出后的清理回调，每个 Client 只会调用一次。
type CloseHandler func()

// Client 封装单条 WebSocket 连接。
// - send 是有界邮箱，发送方永远不会阻塞在对端的网络写上；
// - done 是统一关闭信号；
// - once 保证 Close 幂等。
type Client struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

var _ Handle = (*Client)(nil)

// NewClient 创建连接包装对象。
func NewClient(conn *websocket.Conn, userID string) *Client {
	return &Client{
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, defaultSendQueueSize),
		done:   make(chan struct{}),
	}
}

func (c *Client) UserID() string {
	return c.userID
}

// Done 返回连接关闭信号通道。
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Enqueue 将待发送消息投递到写队列，调用方不会被慢连接拖住。
func (c *Client) Enqueue(msg []byte) bool {
	if len(msg) == 0 {
		return true
	}
	select {
	case <-c.done:
		return false
	default:
	}
	cloned := append([]byte(nil), msg...)
	select {
	case <-c.done:
		return false
	case c.send <- cloned:
		return true
	default:
		return false
	}
}

// Run 启动读写循环并阻塞到 readLoop 结束。
// onPing 在收到 ping 时调用（pong 已由 Client 自动回复）；onClose 在连接彻底关闭后调用一次。
func (c *Client) Run(ctx context.Context, onMessage MessageHandler, onControl ControlHandler, onPing func(), onClose CloseHandler) {
	defer func() {
		c.Close()
		if onClose != nil {
			onClose()
		}
	}()

	c.conn.SetPingHandler(func(appData string) error {
		// WriteControl 可与 writeLoop 并发调用
		err := c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(wsWriteTimeout))
		if onPing != nil {
			onPing()
		}
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	go c.writeLoop(ctx)
	c.readLoop(ctx, onMessage, onControl)
}

// Close 幂等关闭：先广播 done，再关闭底层连接。
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// readLoop 顺序读取上行帧，单 goroutine 驱动分发，保证同一连接内按到达顺序处理。
func (c *Client) readLoop(ctx context.Context, onMessage MessageHandler, onControl ControlHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		msgType, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.TextMessage:
			if onMessage != nil {
				onMessage(raw)
			}
		default:
			if onControl != nil {
				onControl(msgType)
			}
		}
	}
}

// writeLoop 从邮箱取消息写到对端，每次写设置超时，写失败即关闭连接。
func (c *Client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		}
	}
}
