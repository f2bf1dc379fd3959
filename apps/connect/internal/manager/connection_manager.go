package manager

import "sync"

// Registry 用户 id -> 在线连接的映射，是"谁在线"的唯一事实来源。
// 同一用户最多一个连接，后注册者覆盖先注册者。
type Registry interface {
	// Add 注册连接，返回被覆盖的旧连接（可能为 nil），由调用方负责关闭。
	Add(userID string, h Handle) (replaced Handle)
	Get(userID string) (Handle, bool)
	// Remove 无条件移除并返回当前连接。
	Remove(userID string) Handle
	// Unregister 仅当当前登记的正是 h 时才移除，防止旧会话的清理误删新会话。
	Unregister(h Handle) bool
	Count() int
}

// ConnectionManager Registry 的内存实现：单把读写锁保护一张 map。
// 查找走读锁互不阻塞，注册/注销走写锁。
type ConnectionManager struct {
	mu       sync.RWMutex
	byUser   map[string]Handle
	shutdown bool
}

var _ Registry = (*ConnectionManager)(nil)

// NewConnectionManager 创建连接管理器实例。
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byUser: make(map[string]Handle),
	}
}

// Add 注册连接。停机阶段拒绝注册并直接关闭传入连接。
func (m *ConnectionManager) Add(userID string, h Handle) (replaced Handle) {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		h.Close()
		return nil
	}
	if old, ok := m.byUser[userID]; ok && old != h {
		replaced = old
	}
	m.byUser[userID] = h
	m.mu.Unlock()
	return replaced
}

func (m *ConnectionManager) Get(userID string) (Handle, bool) {
	m.mu.RLock()
	h, ok := m.byUser[userID]
	m.mu.RUnlock()
	return h, ok
}

func (m *ConnectionManager) Remove(userID string) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.byUser[userID]
	if !ok {
		return nil
	}
	delete(m.byUser, userID)
	return h
}

func (m *ConnectionManager) Unregister(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.byUser[h.UserID()]
	if !ok || current != h {
		return false
	}
	delete(m.byUser, h.UserID())
	return true
}

// Count 当前在线连接数。
func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser)
}

// Shutdown 关闭全部连接并阻止后续注册，用于优雅停机。
func (m *ConnectionManager) Shutdown() {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true
	handles := make([]Handle, 0, len(m.byUser))
	for _, h := range m.byUser {
		handles = append(handles, h)
	}
	m.byUser = make(map[string]Handle)
	m.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
}
