package worker

import (
	"context"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/segfal/realtime-whiteboard-sub002/internal/hub"
	"github.com/segfal/realtime-whiteboard-sub002/internal/service"
)

// CanvasAutosaveHandler 处理周期性的画布自动保存检查任务：
// 遍历当前有连接的房间，把带脏标记的房间画布存为新版本，
// 并通过 Hub 通知房间成员。
type CanvasAutosaveHandler struct {
	hub           *hub.Hub
	canvasService *service.CanvasService
}

// NewCanvasAutosaveHandler 创建 Handler 实例。
func NewCanvasAutosaveHandler(h *hub.Hub, canvasService *service.CanvasService) *CanvasAutosaveHandler {
	if h == nil {
		panic("Hub cannot be nil for CanvasAutosaveHandler")
	}
	if canvasService == nil {
		panic("CanvasService cannot be nil for CanvasAutosaveHandler")
	}
	return &CanvasAutosaveHandler{
		hub:           h,
		canvasService: canvasService,
	}
}

// ProcessTask 实现 asynq.Handler 接口。
// 单个房间的失败只记日志，不让整个周期任务重试：
// 下一个周期会再次覆盖所有房间。
func (h *CanvasAutosaveHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithFields(logrus.Fields{
		"task_type": t.Type(),
		"component": "autosave",
	})

	activeRoomIDs := h.hub.GetActiveRoomIDs()
	if len(activeRoomIDs) == 0 {
		logCtx.Debug("No active rooms, skipping autosave check")
		return nil
	}
	logCtx.Infof("Checking %d active rooms for pending changes", len(activeRoomIDs))

	var wg sync.WaitGroup
	for _, roomID := range activeRoomIDs {
		wg.Add(1)
		go func(rID string) {
			defer wg.Done()
			roomLogCtx := logCtx.WithField("room_id", rID)

			saveCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			snapshot, err := h.canvasService.SaveIfPending(saveCtx, rID)
			if err != nil {
				roomLogCtx.WithError(err).Error("Autosave failed for room")
				return
			}
			if snapshot == nil {
				roomLogCtx.Debug("No pending changes, nothing to save")
				return
			}

			roomLogCtx.WithField("version", snapshot.Version).Info("Canvas auto-saved")
			if payload := hub.AutosaveNotification(snapshot.Version, snapshot.SavedBy); payload != nil {
				h.hub.QueueBroadcast(rID, payload)
			}
		}(roomID)
	}
	wg.Wait()

	logCtx.Info("Autosave check completed")
	return nil
}
