package svc

import (
	"context"
	"net/http"
	"testing"

	"ChatRelay/apps/connect/internal/repository"
	"ChatRelay/config"
	"ChatRelay/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyChats 记录 History 收到的 limit 与 MarkReadUpTo 调用次数
type spyChats struct {
	repository.IChatRepository
	lastLimit int
	markCalls int
}

func (s *spyChats) History(ctx context.Context, self, other string, limit int, before int64) ([]*model.ChatMessage, error) {
	s.lastLimit = limit
	return s.IChatRepository.History(ctx, self, other, limit, before)
}

func (s *spyChats) MarkReadUpTo(ctx context.Context, reader, author string, maxID int64) (int64, error) {
	s.markCalls++
	return s.IChatRepository.MarkReadUpTo(ctx, reader, author, maxID)
}

func TestHistoryMarksCounterpartMessagesRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent, err := f.store.Chats().Insert(ctx, "A", "B", "", "hi")
	require.NoError(t, err)
	assert.False(t, sent.HasRead)

	page, err := f.chats.History(ctx, "B", "A", 0, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.True(t, page[0].HasRead)

	stored, err := f.store.Chats().GetByID(ctx, sent.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasRead)

	again, err := f.chats.History(ctx, "B", "A", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, page, again)
}

func TestHistoryDoesNotMarkOwnMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine, err := f.store.Chats().Insert(ctx, "B", "A", "", "from me")
	require.NoError(t, err)

	page, err := f.chats.History(ctx, "B", "A", 0, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.False(t, page[0].HasRead, "自己发出的消息由对方阅读")

	stored, err := f.store.Chats().GetByID(ctx, mine.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasRead)
}

func TestHistoryMarksUpToPageMaximum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		msg, err := f.store.Chats().Insert(ctx, "A", "B", "", "m")
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	page, err := f.chats.History(ctx, "B", "A", 2, ids[3])
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	for i, id := range ids {
		msg, err := f.store.Chats().GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, i <= 2, msg.HasRead, "message %d", i)
	}
}

func TestHistoryEmptyPageMarksNothing(t *testing.T) {
	store := repository.NewMemoryStore()
	spy := &spyChats{IChatRepository: store.Chats()}
	chats := NewChatService(spy, config.DefaultSessionConfig())

	page, err := chats.History(context.Background(), "B", "A", 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, page)
	assert.Empty(t, page)
	assert.Zero(t, spy.markCalls)

	_, err = chats.History(context.Background(), "B", " ", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestHistoryClampsLimit(t *testing.T) {
	store := repository.NewMemoryStore()
	spy := &spyChats{IChatRepository: store.Chats()}
	cfg := config.DefaultSessionConfig()
	chats := NewChatService(spy, cfg)
	ctx := context.Background()

	_, err := chats.History(ctx, "B", "A", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, cfg.HistoryPageSize, spy.lastLimit)

	_, err = chats.History(ctx, "B", "A", 10000, 0)
	require.NoError(t, err)
	assert.Equal(t, cfg.HistoryMaxPageSize, spy.lastLimit)

	_, err = chats.History(ctx, "B", "A", 7, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, spy.lastLimit)
}

func TestMarkAsRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.store.Chats().Insert(ctx, "A", "B", "", "hi")
	require.NoError(t, err)

	_, err = f.chats.MarkAsRead(ctx, "A", msg.ID)
	assert.ErrorIs(t, err, ErrNotMessageRecipient)
	assert.Equal(t, http.StatusForbidden, StatusOf(err))

	changed, err := f.chats.MarkAsRead(ctx, "B", msg.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.chats.MarkAsRead(ctx, "B", msg.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = f.chats.MarkAsRead(ctx, "B", 12345)
	assert.ErrorIs(t, err, ErrMessageNotFound)
	_, err = f.chats.MarkAsRead(ctx, "B", 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSessions(t *testing.T) {
	f := newFixture(t)
	f.user(t, "A", "13800000001", "")
	f.user(t, "C", "13800000003", "")
	ctx := context.Background()

	_, err := f.store.Chats().Insert(ctx, "A", "B", "", "one")
	require.NoError(t, err)
	_, err = f.store.Chats().Insert(ctx, "C", "B", "", "two")
	require.NoError(t, err)

	list, err := f.chats.Sessions(ctx, "B", 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "C", list[0].PeerID)
	assert.Equal(t, "two", list[0].LatestPreview)
	assert.Equal(t, int64(1), list[0].UnreadCount)
	assert.Equal(t, "13800000001", list[1].Phone)
}
