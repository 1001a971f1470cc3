package repository

import (
	"context"
	"time"

	"github.com/segfal/realtime-whiteboard-sub002/internal/domain"
)

// RoomRepository 定义了房间持久化记录的存储和检索操作。
type RoomRepository interface {
	// FindByID 根据房间 ID 查找房间。
	// 房间不存在时返回 repository.ErrRoomNotFound。
	FindByID(ctx context.Context, roomID string) (*domain.Room, error)

	// CreateIfNotExists 幂等地创建房间记录。
	// 如果房间已存在则不做任何修改（尤其不会覆盖已有的 AdminUserID）。
	CreateIfNotExists(ctx context.Context, room *domain.Room) error

	// SetAdmin 更新房间的持久化 admin 指针。
	SetAdmin(ctx context.Context, roomID, adminUserID string) error

	// TouchActivity 更新房间的 last_activity 时间戳。
	TouchActivity(ctx context.Context, roomID string, at time.Time) error

	// FindRecent 按最后活跃时间降序返回最近的活跃房间。
	FindRecent(ctx context.Context, limit int) ([]domain.Room, error)

	// CountActive 统计当前标记为活跃的房间数量。
	CountActive(ctx context.Context) (int64, error)
}
