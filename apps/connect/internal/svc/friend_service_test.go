package svc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"ChatRelay/apps/connect/internal/protocol"
	"ChatRelay/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFriendFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.user(t, "A", "13800000001", "")
	f.user(t, "B", "13800000002", "")
	f.user(t, "C", "13800000003", "")
	return f
}

func TestAddFriendRequestNotifiesOnlineTarget(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	b := f.online("B")

	id, err := f.friends.AddFriendRequest(ctx, "A", "B")
	require.NoError(t, err)

	got := b.envelopes(t)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.TypSystemFriendRequest, got[0].Typ)
	var notice struct {
		ID     string `json:"id"`
		Phone  string `json:"phone"`
		Avatar string `json:"avatar"`
	}
	require.NoError(t, json.Unmarshal(got[0].Data, &notice))
	assert.Equal(t, strconv.FormatInt(id, 10), notice.ID)
	assert.Equal(t, "13800000001", notice.Phone)
	assert.Equal(t, "avatar-A", notice.Avatar)

	pending, err := f.friends.PendingFriendRequests(ctx, "B")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "A", pending[0].From)
}

func TestAddFriendRequestIsIdempotent(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()

	first, err := f.friends.AddFriendRequest(ctx, "A", "B")
	require.NoError(t, err)
	second, err := f.friends.AddFriendRequest(ctx, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	rows, err := f.store.Friends().ListBetween(ctx, "A", "B")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.FriendRequestPending, rows[0].Status)

	count, err := f.friends.CountPending(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAddFriendRequestValidation(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()

	_, err := f.friends.AddFriendRequest(ctx, "A", "A")
	assert.ErrorIs(t, err, ErrCannotAddSelf)
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))

	_, err = f.friends.AddFriendRequest(ctx, "A", "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.friends.AddFriendRequest(ctx, "A", " ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAcceptFriendRequestNotifiesRequesterOnce(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	a := f.online("A")

	id, err := f.friends.AddFriendRequest(ctx, "A", "B")
	require.NoError(t, err)

	require.NoError(t, f.friends.AcceptFriendRequest(ctx, "B", id))
	got := a.envelopes(t)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.TypSystemFriendAccept, got[0].Typ)
	assert.JSONEq(t, `{"id":"`+strconv.FormatInt(id, 10)+`"}`, string(got[0].Data))

	req, err := f.store.Friends().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.FriendRequestAccepted, req.Status)

	// 重复同意：幂等成功，不再推送
	require.NoError(t, f.friends.AcceptFriendRequest(ctx, "B", id))
	assert.Len(t, a.envelopes(t), 1)
}

func TestAcceptFriendRequestByNonRecipient(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	a := f.online("A")

	id, err := f.friends.AddFriendRequest(ctx, "A", "B")
	require.NoError(t, err)

	for _, caller := range []string{"C", "A"} {
		err = f.friends.AcceptFriendRequest(ctx, caller, id)
		assert.ErrorIs(t, err, ErrNotRequestRecipient)
		assert.Equal(t, http.StatusForbidden, StatusOf(err))
	}
	assert.ErrorIs(t, f.friends.RejectFriendRequest(ctx, "C", id), ErrNotRequestRecipient)

	req, err := f.store.Friends().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.FriendRequestPending, req.Status)
	assert.Empty(t, a.envelopes(t))
}

func TestRejectAndTerminalConflicts(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	a := f.online("A")

	rejected, err := f.friends.AddFriendRequest(ctx, "A", "B")
	require.NoError(t, err)
	require.NoError(t, f.friends.RejectFriendRequest(ctx, "B", rejected))
	require.NoError(t, f.friends.RejectFriendRequest(ctx, "B", rejected), "重复拒绝幂等")

	err = f.friends.AcceptFriendRequest(ctx, "B", rejected)
	assert.ErrorIs(t, err, ErrFriendRequestClosed)
	assert.Equal(t, http.StatusConflict, StatusOf(err))
	assert.Empty(t, a.envelopes(t), "拒绝不通知申请人")

	accepted, err := f.friends.AddFriendRequest(ctx, "C", "B")
	require.NoError(t, err)
	require.NoError(t, f.friends.AcceptFriendRequest(ctx, "B", accepted))
	assert.ErrorIs(t, f.friends.RejectFriendRequest(ctx, "B", accepted), ErrFriendRequestClosed)

	// 重新申请把终态重置为 Pending
	again, err := f.friends.AddFriendRequest(ctx, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, rejected, again)
	require.NoError(t, f.friends.AcceptFriendRequest(ctx, "B", again))
	assert.Len(t, a.envelopes(t), 1)

	assert.ErrorIs(t, f.friends.AcceptFriendRequest(ctx, "B", 42), ErrFriendRequestNotFound)
	assert.ErrorIs(t, f.friends.AcceptFriendRequest(ctx, "B", 0), ErrInvalidArgument)
}

func TestFriendsAndSearchUser(t *testing.T) {
	f := newFriendFixture(t)
	f.user(t, "D", "13800000004", "")
	ctx := context.Background()

	id, err := f.friends.AddFriendRequest(ctx, "A", "B")
	require.NoError(t, err)
	require.NoError(t, f.friends.AcceptFriendRequest(ctx, "B", id))
	_, err = f.friends.AddFriendRequest(ctx, "A", "C")
	require.NoError(t, err)
	_, err = f.friends.AddFriendRequest(ctx, "D", "A")
	require.NoError(t, err)

	cases := map[string]model.UserRelationType{
		"13800000001": model.RelationMyself,
		"13800000002": model.RelationFriend,
		"13800000003": model.RelationRequesting,
		"13800000004": model.RelationRequested,
	}
	for phone, want := range cases {
		res, err := f.friends.SearchUser(ctx, "A", phone)
		require.NoError(t, err)
		assert.Equal(t, want, res.Typ, phone)
	}

	res, err := f.friends.SearchUser(ctx, "B", "13800000003")
	require.NoError(t, err)
	assert.Equal(t, model.RelationStranger, res.Typ)

	_, err = f.friends.SearchUser(ctx, "A", "19999999999")
	assert.ErrorIs(t, err, ErrUserNotFound)

	friends, err := f.friends.Friends(ctx, "A", 0, -1)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "B", friends[0].ID)

	empty, err := f.friends.Friends(ctx, "C", 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestRelationOf(t *testing.T) {
	assert.Equal(t, model.RelationStranger, relationOf("a", nil))
	assert.Equal(t, model.RelationStranger, relationOf("a", []*model.FriendRequest{
		{FromID: "a", ToID: "b", Status: model.FriendRequestRejected},
	}))
	assert.Equal(t, model.RelationRequesting, relationOf("a", []*model.FriendRequest{
		{FromID: "b", ToID: "a", Status: model.FriendRequestPending},
		{FromID: "a", ToID: "b", Status: model.FriendRequestPending},
	}))
	assert.Equal(t, model.RelationFriend, relationOf("a", []*model.FriendRequest{
		{FromID: "a", ToID: "b", Status: model.FriendRequestPending},
		{FromID: "b", ToID: "a", Status: model.FriendRequestAccepted},
	}))
}
