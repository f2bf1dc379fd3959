package svc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"ChatRelay/apps/connect/internal/metrics"
	"ChatRelay/apps/connect/internal/protocol"
	"ChatRelay/apps/connect/internal/repository"
	"ChatRelay/model"
	"ChatRelay/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type failingChats struct {
	repository.IChatRepository
	insertErr error
}

func (f failingChats) Insert(context.Context, string, string, string, string) (*model.ChatMessage, error) {
	return nil, f.insertErr
}

func TestSendChatToOnlinePeer(t *testing.T) {
	f := newFixture(t)
	f.user(t, "A", "13800000001", "")
	f.user(t, "B", "13800000002", "")
	f.online("A")
	b := f.online("B")

	before := testutil.ToFloat64(metrics.RelayTotal.WithLabelValues(kindChat, metrics.OutcomeDelivered))
	msg, err := f.relay.SendChat(context.Background(), "A", "B", "", "hello")
	require.NoError(t, err)

	got := b.envelopes(t)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.TypChatMessage, got[0].Typ)
	assert.Equal(t, http.StatusOK, got[0].Status)
	var row model.ChatMessage
	require.NoError(t, json.Unmarshal(got[0].Data, &row))
	assert.Equal(t, "hello", row.Content)
	assert.Equal(t, msg.ID, row.ID)

	stored, err := f.store.Chats().GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasRead)
	assert.Equal(t, model.DefaultMimeType, stored.MimeType)

	assert.Empty(t, f.notifier.Sent())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RelayTotal.WithLabelValues(kindChat, metrics.OutcomeDelivered)))
}

func TestSendChatToOfflinePeerNotifies(t *testing.T) {
	f := newFixture(t)
	f.user(t, "A", "13800000001", "")
	f.user(t, "C", "13800000003", "T")

	msg, err := f.relay.SendChat(context.Background(), "A", "C", "", "hello")
	require.NoError(t, err)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "T", sent[0].Token)
	assert.Equal(t, "13800000001", sent[0].Title)
	assert.Equal(t, "hello", sent[0].Body)
	assert.Equal(t, protocol.TypChatMessage, sent[0].Data["typ"])
	assert.Equal(t, "A", sent[0].Data["from"])

	page, err := f.store.Chats().History(context.Background(), "C", "A", 10, 0)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, msg.ID, page[0].ID)
}

func TestSendChatOfflineWithoutTokenOrFailingNotifier(t *testing.T) {
	f := newFixture(t)
	f.user(t, "A", "13800000001", "")
	f.user(t, "C", "13800000003", "")
	f.user(t, "D", "13800000004", "T")

	_, err := f.relay.SendChat(context.Background(), "A", "C", "", "no token")
	require.NoError(t, err)
	assert.Empty(t, f.notifier.Sent())

	f.notifier.Err = errors.New("fcm down")
	_, err = f.relay.SendChat(context.Background(), "A", "D", "", "push fails")
	require.NoError(t, err, "推送失败不影响发送结果")
}

func TestSendChatPersistenceFailureRelaysNothing(t *testing.T) {
	f := newFixture(t)
	f.user(t, "B", "13800000002", "T")
	b := f.online("B")
	relay := NewRelay(f.registry, failingChats{insertErr: repository.ErrDatabase}, f.store.Users(), f.notifier)

	_, err := relay.SendChat(context.Background(), "A", "B", "", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
	assert.Empty(t, b.envelopes(t))
	assert.Empty(t, f.notifier.Sent())
}

func TestSendChatDroppedWhenMailboxFull(t *testing.T) {
	f := newFixture(t)
	f.user(t, "B", "13800000002", "T")
	b := f.online("B")
	b.full = true

	_, err := f.relay.SendChat(context.Background(), "A", "B", "", "hello")
	require.NoError(t, err)
	assert.Empty(t, f.notifier.Sent(), "对端在线时不走推送")
}

func TestRelayRTC(t *testing.T) {
	ctx := context.Background()

	t.Run("online", func(t *testing.T) {
		f := newFixture(t)
		e := f.online("E")
		payload := json.RawMessage(`{"sdp":"v=0"}`)

		require.NoError(t, f.relay.RelayRTC(ctx, "D", "E", "Answer", payload))
		got := e.envelopes(t)
		require.Len(t, got, 1)
		assert.Equal(t, protocol.TypRTC, got[0].Typ)
		assert.JSONEq(t, `{"from":"D","typ":"Answer","payload":{"sdp":"v=0"}}`, string(got[0].Data))
	})

	t.Run("offline non-offer never notifies", func(t *testing.T) {
		f := newFixture(t)
		f.user(t, "E", "13800000005", "T")

		err := f.relay.RelayRTC(ctx, "D", "E", "Answer", nil)
		assert.ErrorIs(t, err, ErrDestinationNotFound)
		assert.Equal(t, http.StatusNotFound, StatusOf(err))
		assert.Empty(t, f.notifier.Sent())
		assert.Zero(t, f.notifier.getTokens)
	})

	t.Run("offline offer with token", func(t *testing.T) {
		f := newFixture(t)
		f.user(t, "D", "13800000004", "")
		f.user(t, "E", "13800000005", "T")

		require.NoError(t, f.relay.RelayRTC(ctx, "D", "E", RTCOffer, json.RawMessage(`{}`)))
		sent := f.notifier.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "T", sent[0].Token)
		assert.Equal(t, RTCOffer, sent[0].Data["rtc"])
	})

	t.Run("offline offer without token", func(t *testing.T) {
		f := newFixture(t)
		f.user(t, "E", "13800000005", "")

		err := f.relay.RelayRTC(ctx, "D", "E", RTCOffer, nil)
		assert.ErrorIs(t, err, ErrNoDeviceToken)
		assert.Equal(t, http.StatusNotFound, StatusOf(err))
	})

	t.Run("offline offer notifier failure is swallowed", func(t *testing.T) {
		f := newFixture(t)
		f.user(t, "E", "13800000005", "T")
		f.notifier.Err = errors.New("boom")

		assert.NoError(t, f.relay.RelayRTC(ctx, "D", "E", RTCOffer, nil))
	})

	t.Run("offline offer token lookup failure is logged", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		logger.ReplaceGlobal(zap.New(core))
		defer logger.ReplaceGlobal(zap.NewNop())

		f := newFixture(t)
		f.user(t, "E", "13800000005", "T")
		f.notifier.tokenErr = repository.ErrDatabase

		assert.NoError(t, f.relay.RelayRTC(ctx, "D", "E", RTCOffer, nil))
		assert.Empty(t, f.notifier.Sent())
		entries := logs.FilterMessage("离线推送读取设备 token 失败").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "E", entries[0].ContextMap()["to"])
	})
}

func TestRelayMessage(t *testing.T) {
	f := newFixture(t)
	b := f.online("B")

	require.NoError(t, f.relay.RelayMessage(context.Background(), "A", "B", "ping"))
	got := b.envelopes(t)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.TypMessage, got[0].Typ)
	assert.JSONEq(t, `{"from":"A","content":"ping"}`, string(got[0].Data))

	err := f.relay.RelayMessage(context.Background(), "A", "nobody", "ping")
	assert.ErrorIs(t, err, ErrDestinationNotFound)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	assert.Equal(t, 1, f.registry.Count())
}

func TestRelayRejectsEmptyDestination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.relay.SendChat(ctx, "A", "", "", "x")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, f.relay.RelayRTC(ctx, "A", "", "Offer", nil), ErrInvalidArgument)
	assert.ErrorIs(t, f.relay.RelayMessage(ctx, "A", "", "x"), ErrInvalidArgument)
}
