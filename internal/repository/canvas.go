package repository

import (
	"context"

	"github.com/segfal/realtime-whiteboard-sub002/internal/domain"
)

// CanvasRepository 定义了画布快照在持久化存储中的操作。
type CanvasRepository interface {
	// FindLatest 返回指定房间版本号最高的快照。
	// 没有任何快照时返回 repository.ErrSnapshotNotFound。
	FindLatest(ctx context.Context, roomID string) (*domain.CanvasSnapshot, error)

	// NextVersion 返回指定房间下一个可用的版本号 (MAX(version)+1，起始为 1)。
	NextVersion(ctx context.Context, roomID string) (int, error)

	// Save 插入一条新的快照记录。
	// (room_id, version) 冲突时返回 repository.ErrDuplicateEntry。
	Save(ctx context.Context, snapshot *domain.CanvasSnapshot) error

	// CountAll 统计快照总数（用于统计接口）。
	CountAll(ctx context.Context) (int64, error)
}
