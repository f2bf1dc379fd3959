package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"ChatRelay/model"
	"ChatRelay/pkg/util"
)

// MemoryStore 进程内存储，DB_DRIVER=memory 时使用，也作为测试替身。
// 三个仓储视图共享同一把锁，联表类查询（好友未读数、待处理申请人资料）与 SQL 实现语义一致。
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*model.UserInfo
	phones   map[string]string
	requests map[int64]*model.FriendRequest
	pairs    map[[2]string]int64
	messages []*model.ChatMessage // 按 id 升序
}

// NewMemoryStore 创建空存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*model.UserInfo),
		phones:   make(map[string]string),
		requests: make(map[int64]*model.FriendRequest),
		pairs:    make(map[[2]string]int64),
	}
}

// Users 用户仓储视图
func (s *MemoryStore) Users() IUserRepository { return memoryUsers{s} }

// Friends 好友申请仓储视图
func (s *MemoryStore) Friends() IFriendRepository { return memoryFriends{s} }

// Chats 聊天消息仓储视图
func (s *MemoryStore) Chats() IChatRepository { return memoryChats{s} }

// ==================== 用户 ====================

type memoryUsers struct{ s *MemoryStore }

func (m memoryUsers) Create(_ context.Context, user *model.UserInfo) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return ErrDuplicateKey
	}
	if _, ok := s.phones[user.Phone]; ok {
		return ErrDuplicateKey
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	cp := *user
	s.users[user.ID] = &cp
	s.phones[user.Phone] = user.ID
	return nil
}

func (m memoryUsers) GetByID(_ context.Context, id string) (*model.UserInfo, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (m memoryUsers) GetByPhone(ctx context.Context, phone string) (*model.UserInfo, error) {
	m.s.mu.RLock()
	id, ok := m.s.phones[phone]
	m.s.mu.RUnlock()
	if !ok {
		return nil, ErrRecordNotFound
	}
	return m.GetByID(ctx, id)
}

func (m memoryUsers) BatchGetByIDs(_ context.Context, ids []string) ([]*model.UserInfo, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.UserInfo, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if u, ok := s.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m memoryUsers) UpdateAvatar(_ context.Context, id, avatar string) error {
	return m.update(id, func(u *model.UserInfo) { u.Avatar = avatar })
}

func (m memoryUsers) UpdatePushToken(_ context.Context, id, token string) error {
	return m.update(id, func(u *model.UserInfo) { u.PushToken = token })
}

func (m memoryUsers) update(id string, fn func(u *model.UserInfo)) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrRecordNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}

// ==================== 好友申请 ====================

type memoryFriends struct{ s *MemoryStore }

func (m memoryFriends) Upsert(_ context.Context, fromID, toID string) (int64, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	key := [2]string{fromID, toID}
	if id, ok := s.pairs[key]; ok {
		req := s.requests[id]
		req.Status = model.FriendRequestPending
		req.UpdatedAt = now
		return id, nil
	}
	req := &model.FriendRequest{
		ID:        util.NextID(),
		FromID:    fromID,
		ToID:      toID,
		Status:    model.FriendRequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.requests[req.ID] = req
	s.pairs[key] = req.ID
	return req.ID, nil
}

func (m memoryFriends) GetByID(_ context.Context, id int64) (*model.FriendRequest, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *req
	return &cp, nil
}

func (m memoryFriends) Transition(_ context.Context, id int64, status model.FriendRequestStatus) (bool, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || req.Status != model.FriendRequestPending {
		return false, nil
	}
	req.Status = status
	req.UpdatedAt = time.Now()
	return true, nil
}

func (m memoryFriends) ListPending(_ context.Context, toID string) ([]*model.PendingFriendRequest, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	reqs := make([]*model.FriendRequest, 0)
	for _, req := range s.requests {
		if req.ToID == toID && req.Status == model.FriendRequestPending {
			if _, ok := s.users[req.FromID]; ok {
				reqs = append(reqs, req)
			}
		}
	}
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].UpdatedAt.Equal(reqs[j].UpdatedAt) {
			return reqs[i].ID > reqs[j].ID
		}
		return reqs[i].UpdatedAt.After(reqs[j].UpdatedAt)
	})
	out := make([]*model.PendingFriendRequest, 0, len(reqs))
	for _, req := range reqs {
		u := s.users[req.FromID]
		out = append(out, &model.PendingFriendRequest{ID: req.ID, From: req.FromID, Phone: u.Phone, Avatar: u.Avatar})
	}
	return out, nil
}

func (m memoryFriends) CountPending(_ context.Context, toID string) (int64, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, req := range s.requests {
		if req.ToID == toID && req.Status == model.FriendRequestPending {
			n++
		}
	}
	return n, nil
}

func (m memoryFriends) ListFriends(_ context.Context, userID string, limit, offset int) ([]*model.Friend, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make(map[string]struct{})
	for _, req := range s.requests {
		if req.Status != model.FriendRequestAccepted {
			continue
		}
		switch userID {
		case req.FromID:
			peers[req.ToID] = struct{}{}
		case req.ToID:
			peers[req.FromID] = struct{}{}
		}
	}

	friends := make([]*model.Friend, 0, len(peers))
	for id := range peers {
		u, ok := s.users[id]
		if !ok {
			continue
		}
		friends = append(friends, &model.Friend{
			ID:          u.ID,
			Phone:       u.Phone,
			Avatar:      u.Avatar,
			UnreadCount: s.unreadLocked(userID, u.ID),
		})
	}
	sort.Slice(friends, func(i, j int) bool { return friends[i].Phone < friends[j].Phone })

	if offset >= len(friends) {
		return []*model.Friend{}, nil
	}
	end := offset + limit
	if end > len(friends) {
		end = len(friends)
	}
	return friends[offset:end], nil
}

func (m memoryFriends) ListBetween(_ context.Context, a, b string) ([]*model.FriendRequest, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.FriendRequest, 0, 2)
	for _, key := range [][2]string{{a, b}, {b, a}} {
		if id, ok := s.pairs[key]; ok {
			cp := *s.requests[id]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ==================== 聊天消息 ====================

type memoryChats struct{ s *MemoryStore }

func (m memoryChats) Insert(_ context.Context, fromID, toID, mimeType, content string) (*model.ChatMessage, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	// 锁内生成 id，保证 messages 按 id 有序
	msg := newChatMessage(fromID, toID, mimeType, content)
	s.messages = append(s.messages, msg)
	cp := *msg
	return &cp, nil
}

func (m memoryChats) GetByID(_ context.Context, id int64) (*model.ChatMessage, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if msg := s.findLocked(id); msg != nil {
		cp := *msg
		return &cp, nil
	}
	return nil, ErrRecordNotFound
}

func (m memoryChats) History(_ context.Context, self, other string, limit int, before int64) ([]*model.ChatMessage, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	page := make([]*model.ChatMessage, 0, limit)
	for i := len(s.messages) - 1; i >= 0 && len(page) < limit; i-- {
		msg := s.messages[i]
		if before > 0 && msg.ID >= before {
			continue
		}
		if (msg.FromID == self && msg.ToID == other) || (msg.FromID == other && msg.ToID == self) {
			cp := *msg
			page = append(page, &cp)
		}
	}
	reverse(page)
	return page, nil
}

func (m memoryChats) MarkReadUpTo(_ context.Context, reader, author string, maxID int64) (int64, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, msg := range s.messages {
		if msg.ID > maxID {
			break
		}
		if msg.ToID == reader && msg.FromID == author && !msg.HasRead {
			msg.HasRead = true
			n++
		}
	}
	return n, nil
}

func (m memoryChats) MarkRead(_ context.Context, reader string, id int64) (bool, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.findLocked(id)
	if msg == nil || msg.ToID != reader || msg.HasRead {
		return false, nil
	}
	msg.HasRead = true
	return true, nil
}

func (m memoryChats) Sessions(_ context.Context, userID string, limit, offset int) ([]*model.SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	byPeer := make(map[string]*sessionAggregate)
	for _, msg := range s.messages {
		var peer string
		switch userID {
		case msg.FromID:
			peer = msg.ToID
		case msg.ToID:
			peer = msg.FromID
		default:
			continue
		}
		agg, ok := byPeer[peer]
		if !ok {
			agg = &sessionAggregate{PeerID: peer}
			byPeer[peer] = agg
		}
		if msg.ID > agg.LatestID {
			agg.LatestID = msg.ID
		}
		if msg.ToID == userID && !msg.HasRead {
			agg.UnreadCount++
		}
	}

	aggs := make([]sessionAggregate, 0, len(byPeer))
	for _, agg := range byPeer {
		aggs = append(aggs, *agg)
	}
	sort.Slice(aggs, func(i, j int) bool { return aggs[i].LatestID > aggs[j].LatestID })
	if offset >= len(aggs) {
		return []*model.SessionSummary{}, nil
	}
	end := offset + limit
	if end > len(aggs) {
		end = len(aggs)
	}
	aggs = aggs[offset:end]

	latest := make([]*model.ChatMessage, 0, len(aggs))
	peers := make([]*model.UserInfo, 0, len(aggs))
	for _, agg := range aggs {
		if msg := s.findLocked(agg.LatestID); msg != nil {
			latest = append(latest, msg)
		}
		if u, ok := s.users[agg.PeerID]; ok {
			peers = append(peers, u)
		}
	}
	return buildSessions(aggs, latest, peers), nil
}

// findLocked 消息按 id 升序追加，二分查找
func (s *MemoryStore) findLocked(id int64) *model.ChatMessage {
	i := sort.Search(len(s.messages), func(i int) bool { return s.messages[i].ID >= id })
	if i < len(s.messages) && s.messages[i].ID == id {
		return s.messages[i]
	}
	return nil
}

func (s *MemoryStore) unreadLocked(reader, author string) int64 {
	var n int64
	for _, msg := range s.messages {
		if msg.ToID == reader && msg.FromID == author && !msg.HasRead {
			n++
		}
	}
	return n
}
