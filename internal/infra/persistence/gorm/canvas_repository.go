package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/segfal/realtime-whiteboard-sub002/internal/domain"
	"github.com/segfal/realtime-whiteboard-sub002/internal/repository"
)

// GormCanvasRepository 是 CanvasRepository 接口的 GORM 实现
type GormCanvasRepository struct {
	db *gorm.DB
}

// NewGormCanvasRepository 创建 GormCanvasRepository 实例
func NewGormCanvasRepository(db *gorm.DB) *GormCanvasRepository {
	if db == nil {
		panic("database connection cannot be nil for GormCanvasRepository")
	}
	return &GormCanvasRepository{db: db}
}

// FindLatest 实现获取指定房间版本号最高的快照
func (r *GormCanvasRepository) FindLatest(ctx context.Context, roomID string) (*domain.CanvasSnapshot, error) {
	var snapshot domain.CanvasSnapshot
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("version DESC").
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("gorm: find latest snapshot for room %s: %w", roomID, err)
	}
	return &snapshot, nil
}

// NextVersion 实现获取下一个可用版本号 (COALESCE(MAX(version),0)+1)
func (r *GormCanvasRepository) NextVersion(ctx context.Context, roomID string) (int, error) {
	var version int
	err := r.db.WithContext(ctx).
		Model(&domain.CanvasSnapshot{}).
		Where("room_id = ?", roomID).
		Select("COALESCE(MAX(version), 0) + 1").
		Scan(&version).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: next version for room %s: %w", roomID, err)
	}
	return version, nil
}

// Save 实现插入新的快照记录。
// (room_id, version) 的唯一索引把并发分配同一版本号的写入变成可识别的冲突。
func (r *GormCanvasRepository) Save(ctx context.Context, snapshot *domain.CanvasSnapshot) error {
	err := r.db.WithContext(ctx).Create(snapshot).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save snapshot (room %s, version %d): %w", snapshot.RoomID, snapshot.Version, err)
	}
	return nil
}

// CountAll 实现统计快照总数
func (r *GormCanvasRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.CanvasSnapshot{}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count snapshots: %w", err)
	}
	return count, nil
}
