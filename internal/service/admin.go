package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/segfal/realtime-whiteboard-sub002/internal/repository"
)

// AdminService 维护每个活跃房间恰好一个 admin 的不变量。
// 所有转移都经过 Hub 对单房间事件的串行处理，因此同一房间内
// 不会出现两次转移交错执行。
type AdminService struct {
	sessionRepo repository.SessionRepository
	roomRepo    repository.RoomRepository
}

// NewAdminService 创建 AdminService 实例。
func NewAdminService(sessionRepo repository.SessionRepository, roomRepo repository.RoomRepository) *AdminService {
	if sessionRepo == nil || roomRepo == nil {
		panic("all repositories must be non-nil for AdminService")
	}
	return &AdminService{
		sessionRepo: sessionRepo,
		roomRepo:    roomRepo,
	}
}

// TransferAdmin 把 admin 角色从 currentAdminID 转移给 newAdminID。
// 发起者不是当前 admin 时返回 ErrNotAuthorized；
// 目标不是房间成员时返回 ErrInvalidTarget。
func (s *AdminService) TransferAdmin(ctx context.Context, roomID, currentAdminID, newAdminID string) error {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":       roomID,
		"current_admin": currentAdminID,
		"new_admin":     newAdminID,
	})

	// 1. 校验发起者确实是该房间的当前 admin
	current, err := s.sessionRepo.FindByUserID(ctx, currentAdminID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			logCtx.Warn("Transfer rejected: initiator has no session")
			return ErrNotAuthorized
		}
		logCtx.WithError(err).Error("Failed to load initiator session")
		return ErrInternalServer
	}
	if current.RoomID != roomID || !current.IsAdmin {
		logCtx.Warn("Transfer rejected: initiator is not the room admin")
		return ErrNotAuthorized
	}

	// 2. 校验目标是该房间的当前成员
	target, err := s.sessionRepo.FindByUserID(ctx, newAdminID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			logCtx.Warn("Transfer rejected: target has no session")
			return ErrInvalidTarget
		}
		logCtx.WithError(err).Error("Failed to load target session")
		return ErrInternalServer
	}
	if target.RoomID != roomID {
		logCtx.WithField("target_room_id", target.RoomID).Warn("Transfer rejected: target is in a different room")
		return ErrInvalidTarget
	}

	// 3. 更新会话标志和房间的持久化 admin 指针
	if err := s.sessionRepo.SetAdmin(ctx, roomID, currentAdminID, false); err != nil {
		logCtx.WithError(err).Error("Failed to clear old admin flag")
		return ErrInternalServer
	}
	if err := s.sessionRepo.SetAdmin(ctx, roomID, newAdminID, true); err != nil {
		logCtx.WithError(err).Error("Failed to set new admin flag")
		return ErrInternalServer
	}
	if err := s.roomRepo.SetAdmin(ctx, roomID, newAdminID); err != nil {
		logCtx.WithError(err).Error("Failed to update room admin pointer")
		return ErrInternalServer
	}

	logCtx.Info("Admin transferred")
	return nil
}

// BootstrapAdmin 把首位加入者登记为房间的持久化 admin 指针。
// 会话行的 is_admin 标志已在会话创建时写入，这里只同步房间记录。
func (s *AdminService) BootstrapAdmin(ctx context.Context, roomID, userID string) error {
	if err := s.roomRepo.SetAdmin(ctx, roomID, userID); err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).
			WithError(err).Error("Failed to bootstrap room admin pointer")
		return ErrInternalServer
	}
	return nil
}

// AutoAssignAdmin 在持有 admin 的用户离开时选出确定性的继任者：
// 剩余成员中加入最早的会话（joined_at 相同按 user_id 决胜）。
// 没有剩余成员时返回空字符串——房间即将被清理，无需继任。
func (s *AdminService) AutoAssignAdmin(ctx context.Context, roomID, departingUserID string) (string, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "departing_user": departingUserID})

	successor, err := s.sessionRepo.FindEarliestInRoom(ctx, roomID, departingUserID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			logCtx.Debug("No remaining members, skipping admin reassignment")
			return "", nil
		}
		logCtx.WithError(err).Error("Failed to find successor session")
		return "", ErrInternalServer
	}

	if err := s.sessionRepo.SetAdmin(ctx, roomID, successor.UserID, true); err != nil {
		logCtx.WithError(err).Error("Failed to set successor admin flag")
		return "", ErrInternalServer
	}
	if err := s.roomRepo.SetAdmin(ctx, roomID, successor.UserID); err != nil {
		logCtx.WithError(err).Error("Failed to update room admin pointer")
		return "", ErrInternalServer
	}

	logCtx.WithField("new_admin", successor.UserID).Info("Admin auto-assigned")
	return successor.UserID, nil
}
