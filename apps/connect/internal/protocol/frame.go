// Package protocol 定义 WebSocket 文本帧的上行解码与下行信封编码。
//
// 上行帧是外部标签（externally tagged）JSON：对象只有一个 key，key 即帧类型，
// 例如 {"Chat":{"to":"u2","content":"hi"}}；无参数的帧也可以是裸字符串 "FriendRequests"。
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidFrame 帧格式非法或类型未知，对应 400 错误信封，连接保持。
var ErrInvalidFrame = errors.New("invalid frame")

// Kind 上行帧类型。
type Kind string

const (
	KindChat           Kind = "Chat"
	KindRTC            Kind = "RTC"
	KindMessage        Kind = "Message"
	KindAddFriend      Kind = "AddFriend"
	KindAccept         Kind = "Accept"
	KindReject         Kind = "Reject"
	KindFriendRequests Kind = "FriendRequests"
	KindRead           Kind = "Read"
)

// Frame 解码后的上行帧，具体类型见下方各结构体。
type Frame interface {
	Kind() Kind
}

// ChatFrame 持久化聊天消息。
type ChatFrame struct {
	To       string `json:"to"`
	Content  string `json:"content"`
	MimeType string `json:"mime_type"`
}

// RTCFrame WebRTC 信令，payload 原样透传，不落库。
type RTCFrame struct {
	To      string          `json:"to"`
	Typ     string          `json:"typ"`
	Payload json.RawMessage `json:"payload"`
}

// MessageFrame 不落库的即时文本消息，对端不在线直接返回 404。
type MessageFrame struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

// AddFriendFrame 发送好友申请。
type AddFriendFrame struct {
	FriendID string `json:"friend_id"`
}

// AcceptFrame 同意好友申请。
type AcceptFrame struct {
	ID int64
}

// RejectFrame 拒绝好友申请。
type RejectFrame struct {
	ID int64
}

// FriendRequestsFrame 拉取待处理好友申请。
type FriendRequestsFrame struct{}

// ReadFrame 单条消息已读回执。
type ReadFrame struct {
	ID int64
}

func (ChatFrame) Kind() Kind           { return KindChat }
func (RTCFrame) Kind() Kind            { return KindRTC }
func (MessageFrame) Kind() Kind        { return KindMessage }
func (AddFriendFrame) Kind() Kind      { return KindAddFriend }
func (AcceptFrame) Kind() Kind         { return KindAccept }
func (RejectFrame) Kind() Kind         { return KindReject }
func (FriendRequestsFrame) Kind() Kind { return KindFriendRequests }
func (ReadFrame) Kind() Kind           { return KindRead }

// idBody 兼容 id 为字符串或数字两种写法（雪花 id 超出 JS 安全整数，客户端通常传字符串）。
type idBody struct {
	ID json.RawMessage `json:"id"`
}

// Decode 解析一条上行文本帧。所有失败都包装 ErrInvalidFrame。
func Decode(raw []byte) (Frame, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, invalid("empty frame")
	}

	if raw[0] == '"' {
		var unit string
		if err := json.Unmarshal(raw, &unit); err != nil {
			return nil, invalid(err.Error())
		}
		if Kind(unit) == KindFriendRequests {
			return FriendRequestsFrame{}, nil
		}
		return nil, invalid("unknown frame type " + strconv.Quote(unit))
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, invalid(err.Error())
	}
	if len(tagged) != 1 {
		return nil, invalid("frame must have exactly one type key")
	}

	var (
		kind Kind
		body json.RawMessage
	)
	for k, b := range tagged {
		kind, body = Kind(k), b
	}
	return decodeBody(kind, body)
}

func decodeBody(kind Kind, body json.RawMessage) (Frame, error) {
	switch kind {
	case KindChat:
		var f ChatFrame
		if err := unmarshalObject(body, &f); err != nil {
			return nil, err
		}
		if f.To == "" || f.Content == "" {
			return nil, invalid("Chat requires to and content")
		}
		return f, nil
	case KindRTC:
		var f RTCFrame
		if err := unmarshalObject(body, &f); err != nil {
			return nil, err
		}
		if f.To == "" || f.Typ == "" {
			return nil, invalid("RTC requires to and typ")
		}
		return f, nil
	case KindMessage:
		var f MessageFrame
		if err := unmarshalObject(body, &f); err != nil {
			return nil, err
		}
		if f.To == "" {
			return nil, invalid("Message requires to")
		}
		return f, nil
	case KindAddFriend:
		var f AddFriendFrame
		if err := unmarshalObject(body, &f); err != nil {
			return nil, err
		}
		if f.FriendID == "" {
			return nil, invalid("AddFriend requires friend_id")
		}
		return f, nil
	case KindAccept:
		id, err := decodeID(body)
		if err != nil {
			return nil, err
		}
		return AcceptFrame{ID: id}, nil
	case KindReject:
		id, err := decodeID(body)
		if err != nil {
			return nil, err
		}
		return RejectFrame{ID: id}, nil
	case KindRead:
		id, err := decodeID(body)
		if err != nil {
			return nil, err
		}
		return ReadFrame{ID: id}, nil
	case KindFriendRequests:
		return FriendRequestsFrame{}, nil
	default:
		return nil, invalid("unknown frame type " + strconv.Quote(string(kind)))
	}
}

func unmarshalObject(body json.RawMessage, v any) error {
	if len(body) == 0 || body[0] != '{' {
		return invalid("frame body must be an object")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return invalid(err.Error())
	}
	return nil
}

func decodeID(body json.RawMessage) (int64, error) {
	var b idBody
	if err := unmarshalObject(body, &b); err != nil {
		return 0, err
	}
	id, err := ParseID(strings.Trim(string(b.ID), `"`))
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ParseID 解析正整数 id（HTTP 路径参数也复用）。
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("id must be a positive integer")
	}
	return id, nil
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidFrame, reason)
}
