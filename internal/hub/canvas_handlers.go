package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// handleStroke 处理实时绘制事件：用会话身份重新标注来源后
// 原样转发给房间内除发送者外的所有成员。笔画不落库，
// 持久化由 canvas_save / 自动保存的完整快照负责。
func (h *Hub) handleStroke(client *Client, frame StrokeFrame) {
	if frame.Raw == nil {
		return
	}

	// 来源标注以服务端会话为准，客户端自报的值被覆盖
	frame.Raw["username"] = client.UserID()

	payload, err := json.Marshal(frame.Raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"room_id": client.RoomID(),
			"user_id": client.UserID(),
		}).WithError(err).Error("Failed to marshal stroke for broadcast")
		return
	}

	h.broadcast(client.RoomID(), payload, client)
}

// handleCanvasUpdate 处理轻量画布变更：标记房间待保存，
// 并把变更转发给除发送者外的所有成员。
func (h *Hub) handleCanvasUpdate(client *Client, frame CanvasUpdateFrame) {
	ctx := context.Background()
	roomID := client.RoomID()

	h.canvasService.MarkPendingChanges(ctx, roomID)

	payload := marshalOutbound(map[string]interface{}{
		"type":        outboundCanvasUpdate,
		"user_id":     client.UserID(),
		"update_data": frame.UpdateData,
		"timestamp":   time.Now().Unix(),
	})
	if payload != nil {
		h.broadcast(roomID, payload, client)
	}
}

// handleCanvasSave 处理手动保存请求。保存失败只通知发起者，
// 成功则向全房间 (包括发起者) 广播新版本号。
func (h *Hub) handleCanvasSave(client *Client, frame CanvasSaveFrame) {
	ctx := context.Background()
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   roomID,
		"user_id":   client.UserID(),
		"operation": "handleCanvasSave",
	})

	snapshot, err := h.canvasService.SaveCanvasState(ctx, roomID, frame.Content, client.UserID())
	if err != nil {
		logCtx.WithError(err).Error("Failed to save canvas state")
		payload := marshalOutbound(map[string]interface{}{
			"type":      outboundSaveError,
			"message":   "Failed to save canvas",
			"timestamp": time.Now().Unix(),
		})
		if payload != nil {
			h.sendToClient(client, payload)
		}
		return
	}

	h.roomService.TouchActivity(ctx, roomID)
	logCtx.WithField("version", snapshot.Version).Info("Canvas saved manually")

	payload := marshalOutbound(map[string]interface{}{
		"type":      outboundCanvasSaved,
		"version":   snapshot.Version,
		"saved_by":  snapshot.SavedBy,
		"manual":    true,
		"timestamp": time.Now().Unix(),
	})
	if payload != nil {
		h.broadcast(roomID, payload, nil)
	}
}

// AutosaveNotification 构造自动保存完成后的 canvas_saved 广播消息，
// 供自动保存 worker 通过 QueueBroadcast 投递。
func AutosaveNotification(version int, savedBy string) []byte {
	return marshalOutbound(map[string]interface{}{
		"type":      outboundCanvasSaved,
		"version":   version,
		"saved_by":  savedBy,
		"manual":    false,
		"timestamp": time.Now().Unix(),
	})
}
