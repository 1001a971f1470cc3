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

// GormSessionRepository 是 SessionRepository 接口的 GORM 实现
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository 创建 GormSessionRepository 实例
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	if db == nil {
		panic("database connection cannot be nil for GormSessionRepository")
	}
	return &GormSessionRepository{db: db}
}

// FindByUserID 实现根据用户 ID 查找会话
func (r *GormSessionRepository) FindByUserID(ctx context.Context, userID string) (*domain.Session, error) {
	var session domain.Session
	err := r.db.WithContext(ctx).First(&session, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, fmt.Errorf("gorm: find session for user %s: %w", userID, err)
	}
	return &session, nil
}

// Upsert 实现以 UserID 为主键的创建或更新。
// 冲突时刷新连接信息和 last_seen，与原有会话行合并。
func (r *GormSessionRepository) Upsert(ctx context.Context, session *domain.Session) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"room_id", "display_name", "is_admin", "connection_id", "last_seen"}),
		}).
		Create(session).Error
	if err != nil {
		return fmt.Errorf("gorm: upsert session for user %s: %w", session.UserID, err)
	}
	return nil
}

// Delete 实现删除会话。删除不存在的行不报错（幂等）。
func (r *GormSessionRepository) Delete(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).
		Delete(&domain.Session{}, "user_id = ?", userID).Error
	if err != nil {
		return fmt.Errorf("gorm: delete session for user %s: %w", userID, err)
	}
	return nil
}

// CountInRoom 实现统计房间内的会话数量
func (r *GormSessionRepository) CountInRoom(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count sessions in room %s: %w", roomID, err)
	}
	return count, nil
}

// FindEarliestInRoom 实现查找房间内加入最早的会话（排除指定用户）。
// 按 (joined_at, user_id) 排序，保证结果确定。
func (r *GormSessionRepository) FindEarliestInRoom(ctx context.Context, roomID, excludeUserID string) (*domain.Session, error) {
	var session domain.Session
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id <> ?", roomID, excludeUserID).
		Order("joined_at ASC, user_id ASC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, fmt.Errorf("gorm: find earliest session in room %s: %w", roomID, err)
	}
	return &session, nil
}

// SetAdmin 实现设置会话的 is_admin 标志
func (r *GormSessionRepository) SetAdmin(ctx context.Context, roomID, userID string, isAdmin bool) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("is_admin", isAdmin)
	if result.Error != nil {
		return fmt.Errorf("gorm: set admin flag for user %s in room %s: %w", userID, roomID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrSessionNotFound
	}
	return nil
}

// UpdateLastSeen 实现刷新会话的 last_seen 时间戳
func (r *GormSessionRepository) UpdateLastSeen(ctx context.Context, userID string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("user_id = ?", userID).
		Update("last_seen", at).Error
	if err != nil {
		return fmt.Errorf("gorm: update last_seen for user %s: %w", userID, err)
	}
	return nil
}

// CountSeenSince 实现统计近期活跃的会话数量
func (r *GormSessionRepository) CountSeenSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("last_seen > ?", since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count sessions seen since %s: %w", since.Format(time.RFC3339), err)
	}
	return count, nil
}
