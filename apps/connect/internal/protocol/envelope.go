package protocol

import (
	"encoding/json"
	"net/http"
)

// 下行信封 typ。
const (
	TypMessage        = "Message"
	TypChatMessage    = "ChatMessage"
	TypAddFriend      = "AddFriend"
	TypFriendRequests = "FriendRequests"
	TypAccept         = "Accept"
	TypReject         = "Reject"
	TypRead           = "Read"
	TypRTC            = "RTC"
	TypError          = "Error"

	TypSystemFriendRequest = "System/FriendRequest"
	TypSystemFriendAccept  = "System/FriendAccept"
)

// Envelope 统一下行结构 {typ, status, reason?, data?}。
type Envelope struct {
	Typ    string `json:"typ"`
	Status int    `json:"status"`
	Reason string `json:"reason,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// Success 200 信封。
func Success(typ string, data any) Envelope {
	return Envelope{Typ: typ, Status: http.StatusOK, Data: data}
}

// Failure 错误信封，status 沿用 HTTP 语义（400/403/404/409/429/500）。
func Failure(typ string, status int, reason string) Envelope {
	return Envelope{Typ: typ, Status: status, Reason: reason}
}

// Encode 序列化信封。data 中若有不可序列化的值，退化为 500 错误信封。
func Encode(env Envelope) []byte {
	raw, err := json.Marshal(env)
	if err != nil {
		raw, _ = json.Marshal(Failure(env.Typ, http.StatusInternalServerError, "encode envelope failed"))
	}
	return raw
}

// RTCPayload 转发给对端的 RTC 信令。
type RTCPayload struct {
	From    string          `json:"from"`
	Typ     string          `json:"typ"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessagePayload 转发给对端的即时消息。
type MessagePayload struct {
	From    string `json:"from"`
	Content string `json:"content"`
}

// FriendRequestNotice System/FriendRequest 的 data。
type FriendRequestNotice struct {
	ID     int64  `json:"id,string"`
	Phone  string `json:"phone"`
	Avatar string `json:"avatar"`
}

// FriendAcceptNotice System/FriendAccept 的 data。
type FriendAcceptNotice struct {
	ID int64 `json:"id,string"`
}

// IDPayload 只带 id 的应答。
type IDPayload struct {
	ID int64 `json:"id,string"`
}
