package repository

import (
	"context"
	"time"

	"github.com/segfal/realtime-whiteboard-sub002/internal/domain"
)

// SessionRepository 定义了用户会话行的存储和检索操作。
type SessionRepository interface {
	// FindByUserID 根据用户 ID 查找会话。
	// 会话不存在时返回 repository.ErrSessionNotFound。
	FindByUserID(ctx context.Context, userID string) (*domain.Session, error)

	// Upsert 创建或更新会话（以 UserID 为主键）。
	Upsert(ctx context.Context, session *domain.Session) error

	// Delete 删除指定用户的会话。删除不存在的会话不是错误。
	Delete(ctx context.Context, userID string) error

	// CountInRoom 统计当前引用指定房间的会话数量。
	CountInRoom(ctx context.Context, roomID string) (int64, error)

	// FindEarliestInRoom 返回房间内加入最早的会话，排除指定用户。
	// 以 (joined_at, user_id) 排序保证同样输入得到同样结果。
	// 没有剩余会话时返回 repository.ErrSessionNotFound。
	FindEarliestInRoom(ctx context.Context, roomID, excludeUserID string) (*domain.Session, error)

	// SetAdmin 设置某个房间内某个用户会话的 is_admin 标志。
	SetAdmin(ctx context.Context, roomID, userID string, isAdmin bool) error

	// UpdateLastSeen 刷新会话的 last_seen 时间戳。
	UpdateLastSeen(ctx context.Context, userID string, at time.Time) error

	// CountSeenSince 统计 last_seen 晚于给定时间的会话数量（用于统计接口）。
	CountSeenSince(ctx context.Context, since time.Time) (int64, error)
}
