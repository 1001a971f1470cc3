package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/segfal/realtime-whiteboard-sub002/internal/domain"
	"github.com/segfal/realtime-whiteboard-sub002/internal/repository"
)

const (
	// PendingChangesTTL 略长于自动保存周期 (30s)，避免脏标记在两次检查之间过期
	PendingChangesTTL = 35 * time.Second
	// snapshotCacheTTL 是最新快照在 Redis 中的缓存时长
	snapshotCacheTTL = 10 * time.Minute
	// AutoSaveUser 是自动保存快照的 saved_by 标识
	AutoSaveUser = "auto-save"
)

// CanvasService 协调画布快照的版本化持久化和脏标记。
// 版本号对同一房间严格单调递增，由数据库的 MAX(version)+1 和
// (room_id, version) 唯一索引共同保证。
type CanvasService struct {
	canvasRepo repository.CanvasRepository
	stateRepo  repository.StateRepository
}

// NewCanvasService 创建 CanvasService 实例。
func NewCanvasService(canvasRepo repository.CanvasRepository, stateRepo repository.StateRepository) *CanvasService {
	if canvasRepo == nil || stateRepo == nil {
		panic("all repositories must be non-nil for CanvasService")
	}
	return &CanvasService{
		canvasRepo: canvasRepo,
		stateRepo:  stateRepo,
	}
}

// MarkPendingChanges 标记房间有未保存的画布变更。失败只记日志：
// 丢失脏标记最多推迟一次自动保存，不值得阻断实时转发。
func (s *CanvasService) MarkPendingChanges(ctx context.Context, roomID string) {
	if err := s.stateRepo.MarkPendingChanges(ctx, roomID, PendingChangesTTL); err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to mark pending changes")
	}
}

// SaveCanvasState 把画布文档保存为房间的下一个版本快照。
// content 为 nil 时保存约定的空画布文档。返回新快照。
func (s *CanvasService) SaveCanvasState(ctx context.Context, roomID string, content domain.CanvasDocument, savedBy string) (*domain.CanvasSnapshot, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "saved_by": savedBy})

	if content == nil {
		content = domain.EmptyCanvas(roomID)
	}

	version, err := s.canvasRepo.NextVersion(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to compute next canvas version")
		return nil, ErrInternalServer
	}

	snapshot := &domain.CanvasSnapshot{
		ID:      fmt.Sprintf("canvas_%s_v%d", roomID, version),
		RoomID:  roomID,
		Version: version,
		SavedBy: savedBy,
		SavedAt: time.Now().UTC(),
	}
	if err := snapshot.SetData(content); err != nil {
		logCtx.WithError(err).Error("Failed to serialize canvas document")
		return nil, ErrInternalServer
	}

	if err := s.canvasRepo.Save(ctx, snapshot); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// 并发保存撞了同一版本号，重算一次
			logCtx.WithField("version", version).Warn("Canvas version conflict, retrying with fresh version")
			return s.retrySave(ctx, snapshot, logCtx)
		}
		logCtx.WithError(err).Error("Failed to persist canvas snapshot")
		return nil, ErrInternalServer
	}

	s.finishSave(ctx, snapshot, logCtx)
	return snapshot, nil
}

// retrySave 在版本号冲突后重算版本并重试一次。
func (s *CanvasService) retrySave(ctx context.Context, snapshot *domain.CanvasSnapshot, logCtx *logrus.Entry) (*domain.CanvasSnapshot, error) {
	version, err := s.canvasRepo.NextVersion(ctx, snapshot.RoomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to recompute canvas version")
		return nil, ErrInternalServer
	}
	snapshot.Version = version
	snapshot.ID = fmt.Sprintf("canvas_%s_v%d", snapshot.RoomID, version)
	if err := s.canvasRepo.Save(ctx, snapshot); err != nil {
		logCtx.WithError(err).Error("Failed to persist canvas snapshot after retry")
		return nil, ErrInternalServer
	}
	s.finishSave(ctx, snapshot, logCtx)
	return snapshot, nil
}

// finishSave 在快照落库后更新缓存并清除脏标记，两者失败都只记日志。
func (s *CanvasService) finishSave(ctx context.Context, snapshot *domain.CanvasSnapshot, logCtx *logrus.Entry) {
	if err := s.stateRepo.SetSnapshotCache(ctx, snapshot.RoomID, snapshot, snapshotCacheTTL); err != nil {
		logCtx.WithError(err).Warn("Failed to cache canvas snapshot")
	}
	if err := s.stateRepo.ClearPendingChanges(ctx, snapshot.RoomID); err != nil {
		logCtx.WithError(err).Warn("Failed to clear pending changes flag")
	}
	logCtx.WithField("version", snapshot.Version).Info("Canvas snapshot saved")
}

// LoadCanvasState 返回房间的最新画布文档和版本号。
// 顺序：缓存 -> 数据库 -> 空画布默认值 (version 0)。永远不返回 nil 文档。
func (s *CanvasService) LoadCanvasState(ctx context.Context, roomID string) (domain.CanvasDocument, int, error) {
	logCtx := logrus.WithField("room_id", roomID)

	snapshot, err := s.stateRepo.GetSnapshotCache(ctx, roomID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logCtx.WithError(err).Warn("Snapshot cache lookup failed, falling back to database")
		}
		snapshot, err = s.canvasRepo.FindLatest(ctx, roomID)
		if err != nil {
			if errors.Is(err, repository.ErrSnapshotNotFound) {
				return domain.EmptyCanvas(roomID), 0, nil
			}
			logCtx.WithError(err).Error("Failed to load latest canvas snapshot")
			return nil, 0, ErrInternalServer
		}
		if cacheErr := s.stateRepo.SetSnapshotCache(ctx, roomID, snapshot, snapshotCacheTTL); cacheErr != nil {
			logCtx.WithError(cacheErr).Warn("Failed to backfill snapshot cache")
		}
	}

	doc, err := snapshot.ParseData()
	if err != nil {
		logCtx.WithField("version", snapshot.Version).WithError(err).Error("Stored canvas data is corrupt")
		return nil, 0, ErrInternalServer
	}
	return doc, snapshot.Version, nil
}

// SaveIfPending 是自动保存任务的入口：房间有脏标记时把当前最新画布
// 存为新版本，saved_by 记为 auto-save。返回保存的快照，没有脏标记时返回 nil。
func (s *CanvasService) SaveIfPending(ctx context.Context, roomID string) (*domain.CanvasSnapshot, error) {
	pending, err := s.stateRepo.HasPendingChanges(ctx, roomID)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to check pending changes flag")
		return nil, nil
	}
	if !pending {
		return nil, nil
	}

	doc, _, err := s.LoadCanvasState(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.SaveCanvasState(ctx, roomID, doc, AutoSaveUser)
}
