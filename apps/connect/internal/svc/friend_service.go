package svc

import (
	"context"
	"strings"

	"ChatRelay/apps/connect/internal/protocol"
	"ChatRelay/apps/connect/internal/repository"
	"ChatRelay/model"
	"ChatRelay/pkg/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// FriendService 好友申请状态机：Pending -> Accepted | Rejected。
// 调用方身份由上层（WS 会话 / HTTP 鉴权中间件）提供，本层负责校验调用方是否为被申请人。
type FriendService struct {
	friendRepo repository.IFriendRepository
	userRepo   repository.IUserRepository
	relay      *Relay
}

// NewFriendService 创建好友服务
func NewFriendService(friendRepo repository.IFriendRepository, userRepo repository.IUserRepository, relay *Relay) *FriendService {
	return &FriendService{
		friendRepo: friendRepo,
		userRepo:   userRepo,
		relay:      relay,
	}
}

// AddFriendRequest 发送好友申请。
// 同一有序 (from,to) 只有一行，重复申请把状态重置为 Pending 并返回原 id。
// 被申请人在线时推送 System/FriendRequest（带申请人手机号与头像）。
func (s *FriendService) AddFriendRequest(ctx context.Context, from, to string) (int64, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return 0, ErrInvalidArgument
	}
	if to == from {
		return 0, ErrCannotAddSelf
	}

	if _, err := s.userRepo.GetByID(ctx, to); err != nil {
		if isNotFound(err) {
			return 0, ErrUserNotFound
		}
		return 0, persistenceError(err)
	}
	requester, err := s.userRepo.GetByID(ctx, from)
	if err != nil {
		if isNotFound(err) {
			return 0, ErrUserNotFound
		}
		return 0, persistenceError(err)
	}

	id, err := s.friendRepo.Upsert(ctx, from, to)
	if err != nil {
		logger.Error(ctx, "写入好友申请失败",
			logger.String("from", from),
			logger.String("to", to),
			logger.ErrorField("error", err),
		)
		return 0, persistenceError(err)
	}

	s.relay.Push(ctx, to, protocol.Success(protocol.TypSystemFriendRequest, protocol.FriendRequestNotice{
		ID:     id,
		Phone:  requester.Phone,
		Avatar: requester.Avatar,
	}))
	return id, nil
}

// AcceptFriendRequest 同意好友申请。
// 已同意的申请重复同意为幂等成功，且不会再次推送 FriendAccept；已拒绝的返回 ErrFriendRequestClosed。
func (s *FriendService) AcceptFriendRequest(ctx context.Context, caller string, id int64) error {
	req, changed, err := s.resolve(ctx, caller, id, model.FriendRequestAccepted)
	if err != nil {
		return err
	}
	if changed {
		s.relay.Push(ctx, req.FromID, protocol.Success(protocol.TypSystemFriendAccept, protocol.FriendAcceptNotice{ID: id}))
	}
	return nil
}

// RejectFriendRequest 拒绝好友申请，不通知申请人。
func (s *FriendService) RejectFriendRequest(ctx context.Context, caller string, id int64) error {
	_, _, err := s.resolve(ctx, caller, id, model.FriendRequestRejected)
	return err
}

// resolve 校验调用方并执行条件状态迁移，返回申请行与是否真正发生了迁移
func (s *FriendService) resolve(ctx context.Context, caller string, id int64, target model.FriendRequestStatus) (*model.FriendRequest, bool, error) {
	if id <= 0 {
		return nil, false, ErrInvalidArgument
	}
	req, err := s.friendRepo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, false, ErrFriendRequestNotFound
		}
		return nil, false, persistenceError(err)
	}
	if req.ToID != caller {
		return nil, false, ErrNotRequestRecipient
	}

	changed, err := s.friendRepo.Transition(ctx, id, target)
	if err != nil {
		return nil, false, persistenceError(err)
	}
	if changed {
		req.Status = target
		return req, true, nil
	}

	// 没有迁移：读当前状态区分幂等重放与终态冲突
	current, err := s.friendRepo.GetByID(ctx, id)
	if err != nil {
		return nil, false, persistenceError(err)
	}
	if current.Status == target {
		return current, false, nil
	}
	return nil, false, ErrFriendRequestClosed
}

// PendingFriendRequests 发给 to 的待处理申请
func (s *FriendService) PendingFriendRequests(ctx context.Context, to string) ([]*model.PendingFriendRequest, error) {
	list, err := s.friendRepo.ListPending(ctx, to)
	if err != nil {
		return nil, persistenceError(err)
	}
	if list == nil {
		list = []*model.PendingFriendRequest{}
	}
	return list, nil
}

// CountPending 待处理申请数
func (s *FriendService) CountPending(ctx context.Context, to string) (int64, error) {
	n, err := s.friendRepo.CountPending(ctx, to)
	if err != nil {
		return 0, persistenceError(err)
	}
	return n, nil
}

// Friends 好友列表，附未读数
func (s *FriendService) Friends(ctx context.Context, userID string, limit, offset int) ([]*model.Friend, error) {
	limit, offset = clampPage(limit, offset, defaultListLimit, maxListLimit)
	list, err := s.friendRepo.ListFriends(ctx, userID, limit, offset)
	if err != nil {
		return nil, persistenceError(err)
	}
	if list == nil {
		list = []*model.Friend{}
	}
	return list, nil
}

// SearchUser 按手机号查找用户，并给出与当前用户的关系
func (s *FriendService) SearchUser(ctx context.Context, self, phone string) (*model.UserSearchResult, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, ErrInvalidArgument
	}
	user, err := s.userRepo.GetByPhone(ctx, phone)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, persistenceError(err)
	}

	result := &model.UserSearchResult{
		ID:     user.ID,
		Phone:  user.Phone,
		Avatar: user.Avatar,
		Typ:    model.RelationStranger,
	}
	if user.ID == self {
		result.Typ = model.RelationMyself
		return result, nil
	}

	between, err := s.friendRepo.ListBetween(ctx, self, user.ID)
	if err != nil {
		return nil, persistenceError(err)
	}
	result.Typ = relationOf(self, between)
	return result, nil
}

// relationOf 任一方向已同意即为好友；否则看待处理申请的方向
func relationOf(self string, between []*model.FriendRequest) model.UserRelationType {
	typ := model.RelationStranger
	for _, req := range between {
		switch req.Status {
		case model.FriendRequestAccepted:
			return model.RelationFriend
		case model.FriendRequestPending:
			if req.FromID == self {
				typ = model.RelationRequesting
			} else if typ == model.RelationStranger {
				typ = model.RelationRequested
			}
		}
	}
	return typ
}

func clampPage(limit, offset, defaultLimit, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
