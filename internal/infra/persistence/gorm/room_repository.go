package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/segfal/realtime-whiteboard-sub002/internal/domain"
	"github.com/segfal/realtime-whiteboard-sub002/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByID 实现根据房间 ID 查找房间
func (r *GormRoomRepository) FindByID(ctx context.Context, roomID string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).First(&room, "room_id = ?", roomID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %s: %w", roomID, err)
	}
	return &room, nil
}

// CreateIfNotExists 实现幂等的房间创建。
// 使用 INSERT ... ON DUPLICATE KEY 的 DoNothing 形式，
// 已存在的房间（包括其 admin 指针）保持原样。
func (r *GormRoomRepository) CreateIfNotExists(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(room).Error
	if err != nil {
		return fmt.Errorf("gorm: create room %s if not exists: %w", room.RoomID, err)
	}
	return nil
}

// SetAdmin 实现更新房间的持久化 admin 指针
func (r *GormRoomRepository) SetAdmin(ctx context.Context, roomID, adminUserID string) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("room_id = ?", roomID).
		Update("admin_user_id", adminUserID)
	if result.Error != nil {
		return fmt.Errorf("gorm: set admin for room %s: %w", roomID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrRoomNotFound
	}
	return nil
}

// TouchActivity 实现更新房间最后活跃时间
func (r *GormRoomRepository) TouchActivity(ctx context.Context, roomID string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("room_id = ?", roomID).
		Update("last_activity", at).Error
	if err != nil {
		return fmt.Errorf("gorm: touch activity for room %s: %w", roomID, err)
	}
	return nil
}

// FindRecent 实现按最后活跃时间返回最近的活跃房间
func (r *GormRoomRepository) FindRecent(ctx context.Context, limit int) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("last_activity DESC").
		Limit(limit).
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find recent rooms: %w", err)
	}
	return rooms, nil
}

// CountActive 实现统计活跃房间数量
func (r *GormRoomRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("is_active = ?", true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count active rooms: %w", err)
	}
	return count, nil
}
