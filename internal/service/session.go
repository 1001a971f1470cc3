package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/segfal/realtime-whiteboard-sub002/internal/domain"
	"github.com/segfal/realtime-whiteboard-sub002/internal/repository"
)

// SessionManager 是会话的权威注册表：数据库行是权威数据，Redis 只做热路径缓存。
type SessionManager struct {
	sessionRepo repository.SessionRepository
	stateRepo   repository.StateRepository
}

// NewSessionManager 创建 SessionManager 实例。
func NewSessionManager(sessionRepo repository.SessionRepository, stateRepo repository.StateRepository) *SessionManager {
	if sessionRepo == nil || stateRepo == nil {
		panic("all repositories must be non-nil for SessionManager")
	}
	return &SessionManager{
		sessionRepo: sessionRepo,
		stateRepo:   stateRepo,
	}
}

// CreateSession 为加入房间的用户创建会话。
// 同一用户在另一个房间的残留会话（上次断开未清理）会先被移除，
// 保证每个 userID 最多一个活跃会话。
func (m *SessionManager) CreateSession(ctx context.Context, userID, roomID, displayName, connectionID string, isAdmin bool) (*domain.Session, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})

	existing, err := m.sessionRepo.FindByUserID(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		logCtx.WithError(err).Error("Failed to check for existing session")
		return nil, ErrInternalServer
	}
	if existing != nil && existing.RoomID != roomID {
		// 残留会话指向别的房间，先清理再创建
		logCtx.WithField("stale_room_id", existing.RoomID).Warn("Removing stale session in different room")
		if err := m.RemoveSession(ctx, userID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	session := &domain.Session{
		UserID:       userID,
		RoomID:       roomID,
		DisplayName:  displayName,
		IsAdmin:      isAdmin,
		ConnectionID: connectionID,
		JoinedAt:     now,
		LastSeen:     now,
	}
	if err := m.sessionRepo.Upsert(ctx, session); err != nil {
		logCtx.WithError(err).Error("Failed to persist session")
		return nil, ErrInternalServer
	}

	// 缓存失败不影响会话创建
	if err := m.stateRepo.CacheSession(ctx, session); err != nil {
		logCtx.WithError(err).Warn("Failed to cache session")
	}

	logCtx.WithField("is_admin", isAdmin).Info("Session created")
	return session, nil
}

// GetSession 获取用户会话，缓存优先，数据库备用。
// 会话不存在时返回 ErrSessionNotFound。
func (m *SessionManager) GetSession(ctx context.Context, userID string) (*domain.Session, error) {
	cached, err := m.stateRepo.GetCachedSession(ctx, userID)
	if err == nil && cached != nil {
		return cached, nil
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logrus.WithField("user_id", userID).WithError(err).Warn("Session cache lookup failed, falling back to database")
	}

	session, err := m.sessionRepo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		logrus.WithField("user_id", userID).WithError(err).Error("Failed to load session from database")
		return nil, ErrInternalServer
	}
	return session, nil
}

// RemoveSession 删除用户会话。幂等：删除不存在的会话是无操作，不是错误。
func (m *SessionManager) RemoveSession(ctx context.Context, userID string) error {
	logCtx := logrus.WithField("user_id", userID)

	if err := m.sessionRepo.Delete(ctx, userID); err != nil {
		logCtx.WithError(err).Error("Failed to delete session row")
		return ErrInternalServer
	}
	if err := m.stateRepo.DropCachedSession(ctx, userID); err != nil {
		logCtx.WithError(err).Warn("Failed to drop cached session")
	}
	logCtx.Debug("Session removed")
	return nil
}

// UpdateLastSeen 刷新会话的 last_seen。失败只记日志。
func (m *SessionManager) UpdateLastSeen(ctx context.Context, userID string) {
	if err := m.sessionRepo.UpdateLastSeen(ctx, userID, time.Now().UTC()); err != nil {
		logrus.WithField("user_id", userID).WithError(err).Warn("Failed to update last_seen")
	}
}
