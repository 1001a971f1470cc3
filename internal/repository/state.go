package repository

import (
	"context"
	"time"

	"github.com/segfal/realtime-whiteboard-sub002/internal/domain"
)

// StateRepository 定义了与房间实时状态相关的易失性操作，由 Redis 实现。
// 这里的所有数据都可以安全丢失：权威数据在数据库里。
type StateRepository interface {
	// === Pending Changes（自动保存的脏标记）===

	// MarkPendingChanges 标记房间有未保存的画布变更。
	// ttl 应略长于自动保存周期，避免标记在两次检查之间过期。
	MarkPendingChanges(ctx context.Context, roomID string, ttl time.Duration) error

	// HasPendingChanges 检查房间是否有未保存的画布变更。
	HasPendingChanges(ctx context.Context, roomID string) (bool, error)

	// ClearPendingChanges 清除房间的脏标记（保存成功后调用）。
	ClearPendingChanges(ctx context.Context, roomID string) error

	// === Snapshot Caching ===

	// GetSnapshotCache 从缓存获取最新快照。
	// 缓存未命中时返回 repository.ErrNotFound。
	GetSnapshotCache(ctx context.Context, roomID string) (*domain.CanvasSnapshot, error)

	// SetSnapshotCache 将最新快照写入缓存。
	SetSnapshotCache(ctx context.Context, roomID string, snapshot *domain.CanvasSnapshot, ttl time.Duration) error

	// === Session Caching ===

	// CacheSession 将会话写入缓存，加速 GetSession 热路径。
	CacheSession(ctx context.Context, session *domain.Session) error

	// GetCachedSession 从缓存读取会话。未命中时返回 repository.ErrNotFound。
	GetCachedSession(ctx context.Context, userID string) (*domain.Session, error)

	// DropCachedSession 删除缓存的会话。
	DropCachedSession(ctx context.Context, userID string) error

	// === Rate Limiting ===

	// CheckRateLimit 递增给定 key 的计数并检查是否超限。
	// 返回 true 表示超限。
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
