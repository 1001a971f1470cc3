package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/segfal/realtime-whiteboard-sub002/internal/domain"
	"github.com/segfal/realtime-whiteboard-sub002/internal/repository"
)

// RoomService 负责房间持久化记录的管理和 "首位用户" 判定。
type RoomService struct {
	roomRepo    repository.RoomRepository
	sessionRepo repository.SessionRepository
	canvasRepo  repository.CanvasRepository
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(
	roomRepo repository.RoomRepository,
	sessionRepo repository.SessionRepository,
	canvasRepo repository.CanvasRepository,
) *RoomService {
	if roomRepo == nil || sessionRepo == nil || canvasRepo == nil {
		panic("all repositories must be non-nil for RoomService")
	}
	return &RoomService{
		roomRepo:    roomRepo,
		sessionRepo: sessionRepo,
		canvasRepo:  canvasRepo,
	}
}

// CreateRoomIfNotExists 幂等地确保房间持久化记录存在。
// 已存在的房间保持原样，尤其不会覆盖其 admin 指针。
func (s *RoomService) CreateRoomIfNotExists(ctx context.Context, roomID, initialAdminUserID string) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "initial_admin": initialAdminUserID})

	now := time.Now().UTC()
	room := &domain.Room{
		RoomID:       roomID,
		AdminUserID:  initialAdminUserID,
		LastActivity: now,
		IsActive:     true,
	}
	if err := s.roomRepo.CreateIfNotExists(ctx, room); err != nil {
		logCtx.WithError(err).Error("Failed to ensure room exists")
		return ErrInternalServer
	}
	return nil
}

// IsFirstUser 判断是否还没有任何会话引用该房间。
// 两个并发加入之间的竞争由 Hub 对单房间事件的串行处理消除，
// 这里不做额外加锁。
func (s *RoomService) IsFirstUser(ctx context.Context, roomID string) (bool, error) {
	count, err := s.sessionRepo.CountInRoom(ctx, roomID)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to count sessions in room")
		return false, ErrInternalServer
	}
	return count == 0, nil
}

// TouchActivity 更新房间的最后活跃时间。失败只记日志，不影响调用方。
func (s *RoomService) TouchActivity(ctx context.Context, roomID string) {
	if err := s.roomRepo.TouchActivity(ctx, roomID, time.Now().UTC()); err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to touch room activity")
	}
}

// CreateRoom 为 REST 接口创建一个带生成 ID 的新房间。
func (s *RoomService) CreateRoom(ctx context.Context, adminUserID string) (*domain.Room, error) {
	roomID, err := GenerateRoomID()
	if err != nil {
		logrus.WithError(err).Error("Failed to generate room id")
		return nil, ErrInternalServer
	}
	if err := s.CreateRoomIfNotExists(ctx, roomID, adminUserID); err != nil {
		return nil, err
	}
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to load created room")
		return nil, ErrInternalServer
	}
	logrus.WithFields(logrus.Fields{"room_id": roomID, "admin_user_id": adminUserID}).Info("Room created")
	return room, nil
}

// RecentRooms 返回最近活跃的房间列表。
func (s *RoomService) RecentRooms(ctx context.Context, limit int) ([]domain.Room, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rooms, err := s.roomRepo.FindRecent(ctx, limit)
	if err != nil {
		logrus.WithError(err).Error("Failed to query recent rooms")
		return nil, ErrInternalServer
	}
	return rooms, nil
}

// GlobalStats 汇总全局统计信息：活跃房间数、近 5 分钟活跃用户数、已保存画布数。
func (s *RoomService) GlobalStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	activeRooms, err := s.roomRepo.CountActive(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Stats: failed to count active rooms")
		activeRooms = 0
	}
	stats["activeRooms"] = activeRooms

	activeUsers, err := s.sessionRepo.CountSeenSince(ctx, time.Now().Add(-5*time.Minute))
	if err != nil {
		logrus.WithError(err).Warn("Stats: failed to count active users")
		activeUsers = 0
	}
	stats["activeUsers"] = activeUsers

	savedCanvases, err := s.canvasRepo.CountAll(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Stats: failed to count canvas snapshots")
		savedCanvases = 0
	}
	stats["savedCanvases"] = savedCanvases

	return stats, nil
}
