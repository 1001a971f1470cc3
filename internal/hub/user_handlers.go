package hub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/segfal/realtime-whiteboard-sub002/internal/service"
)

// 出站消息类型常量
const (
	outboundUserJoined   = "user_joined"
	outboundUserLeft     = "user_left"
	outboundAdminChanged = "admin_changed"
	outboundCanvasSync   = "canvas_sync"
	outboundCanvasUpdate = "canvas_update"
	outboundCanvasSaved  = "canvas_saved"
	outboundSaveError    = "save_error"
	outboundError        = "error"
)

// marshalOutbound 序列化一条出站消息。出站结构都是本包构造的，
// 序列化失败意味着编程错误，记日志后返回 nil (调用方对 nil 不发送)。
func marshalOutbound(fields map[string]interface{}) []byte {
	bytes, err := json.Marshal(fields)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal outbound message")
		return nil
	}
	return bytes
}

// handleJoin 处理用户加入：补全身份、确保房间和会话存在、
// 广播 user_joined，并把最新画布状态同步给加入者。
func (h *Hub) handleJoin(client *Client, frame JoinFrame) {
	ctx := context.Background()
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":       roomID,
		"connection_id": client.ConnectionID(),
		"operation":     "handleJoin",
	})

	// join 消息里的房间必须和连接路径完全一致 (缺省也不行)，否则丢弃
	if frame.RoomID != roomID {
		logCtx.WithField("frame_room_id", frame.RoomID).Warn("Join frame room mismatch, dropping")
		return
	}
	if client.Joined() {
		logCtx.WithField("user_id", client.UserID()).Warn("Client already joined, ignoring duplicate join")
		return
	}

	userID := frame.UserID
	if userID == "" {
		generated, err := service.GenerateUserID()
		if err != nil {
			logCtx.WithError(err).Error("Failed to generate user id")
			return
		}
		userID = generated
	}
	displayName := frame.DisplayName
	if displayName == "" {
		displayName = service.GenerateDisplayName()
	}
	logCtx = logCtx.WithField("user_id", userID)

	// 首位用户判定和会话创建之间不会有别的加入事件插入：
	// Hub 循环串行处理同一房间的所有事件
	isFirst, err := h.roomService.IsFirstUser(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to determine first user, dropping join")
		return
	}

	initialAdmin := ""
	if isFirst {
		initialAdmin = userID
	}
	if err := h.roomService.CreateRoomIfNotExists(ctx, roomID, initialAdmin); err != nil {
		logCtx.WithError(err).Error("Failed to ensure room exists, dropping join")
		return
	}

	session, err := h.sessionManager.CreateSession(ctx, userID, roomID, displayName, client.ConnectionID(), isFirst)
	if err != nil {
		logCtx.WithError(err).Error("Failed to create session, dropping join")
		return
	}
	if isFirst {
		// 房间可能早已存在 (所有人都离开过)，admin 指针需要跟上
		if err := h.adminService.BootstrapAdmin(ctx, roomID, userID); err != nil {
			logCtx.WithError(err).Warn("Failed to update room admin pointer for first user")
		}
	}

	client.userID = userID
	client.displayName = displayName
	client.joined = true

	h.roomService.TouchActivity(ctx, roomID)
	logCtx.WithField("is_admin", session.IsAdmin).Info("User joined room")

	payload := marshalOutbound(map[string]interface{}{
		"type":         outboundUserJoined,
		"user_id":      userID,
		"display_name": displayName,
		"is_admin":     session.IsAdmin,
		"timestamp":    time.Now().Unix(),
	})
	if payload != nil {
		h.broadcast(roomID, payload, nil)
	}

	h.sendCanvasSync(ctx, client)
}

// sendCanvasSync 把房间最新画布状态发给刚加入的客户端，
// 让迟到者能追平当前画面。失败只记日志，不影响加入。
func (h *Hub) sendCanvasSync(ctx context.Context, client *Client) {
	doc, version, err := h.canvasService.LoadCanvasState(ctx, client.RoomID())
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"room_id": client.RoomID(),
			"user_id": client.UserID(),
		}).WithError(err).Error("Failed to load canvas state for sync")
		return
	}

	payload := marshalOutbound(map[string]interface{}{
		"type":        outboundCanvasSync,
		"canvas_data": doc,
		"version":     version,
		"timestamp":   time.Now().Unix(),
	})
	if payload != nil {
		h.sendToClient(client, payload)
	}
}

// handleAdminTransfer 处理 admin 角色转移请求。
// 拒绝时只给发起者回错误消息，不向房间广播任何内容。
func (h *Hub) handleAdminTransfer(client *Client, frame AdminTransferFrame) {
	ctx := context.Background()
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   roomID,
		"user_id":   client.UserID(),
		"new_admin": frame.NewAdminID,
		"operation": "handleAdminTransfer",
	})

	if err := h.adminService.TransferAdmin(ctx, roomID, client.UserID(), frame.NewAdminID); err != nil {
		logCtx.WithError(err).Warn("Admin transfer rejected")
		message := "Failed to transfer admin role"
		if errors.Is(err, service.ErrNotAuthorized) {
			message = "Only the current admin can transfer the admin role"
		} else if errors.Is(err, service.ErrInvalidTarget) {
			message = "Target user is not a member of this room"
		}
		payload := marshalOutbound(map[string]interface{}{
			"type":      outboundError,
			"message":   message,
			"timestamp": time.Now().Unix(),
		})
		if payload != nil {
			h.sendToClient(client, payload)
		}
		return
	}

	h.roomService.TouchActivity(ctx, roomID)
	logCtx.Info("Admin transferred, broadcasting")

	payload := marshalOutbound(map[string]interface{}{
		"type":         outboundAdminChanged,
		"new_admin_id": frame.NewAdminID,
		"timestamp":    time.Now().Unix(),
	})
	if payload != nil {
		h.broadcast(roomID, payload, nil)
	}
}

// handleLeave 处理已加入客户端的离开：admin 继任、会话清理、user_left 广播。
// 在客户端从成员集合移除之后同步执行，保证后续事件看到一致的 admin 状态。
func (h *Hub) handleLeave(client *Client) {
	ctx := context.Background()
	roomID := client.RoomID()
	userID := client.UserID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   roomID,
		"user_id":   userID,
		"operation": "handleLeave",
	})

	session, err := h.sessionManager.GetSession(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			logCtx.Debug("No session found during leave, skipping cleanup")
		} else {
			logCtx.WithError(err).Error("Failed to load session during leave")
		}
		return
	}

	// 同一用户的新连接已经接管了会话，旧连接的清理是无操作
	if session.ConnectionID != client.ConnectionID() {
		logCtx.Debug("Session belongs to a newer connection, skipping cleanup")
		return
	}

	if session.IsAdmin {
		newAdmin, err := h.adminService.AutoAssignAdmin(ctx, roomID, userID)
		if err != nil {
			logCtx.WithError(err).Error("Failed to auto-assign admin")
		} else if newAdmin != "" {
			payload := marshalOutbound(map[string]interface{}{
				"type":         outboundAdminChanged,
				"new_admin_id": newAdmin,
				"timestamp":    time.Now().Unix(),
			})
			if payload != nil {
				h.broadcast(roomID, payload, nil)
			}
		}
	}

	if err := h.sessionManager.RemoveSession(ctx, userID); err != nil {
		logCtx.WithError(err).Error("Failed to remove session during leave")
	}

	h.roomService.TouchActivity(ctx, roomID)
	logCtx.Info("User left room")

	payload := marshalOutbound(map[string]interface{}{
		"type":      outboundUserLeft,
		"user_id":   userID,
		"timestamp": time.Now().Unix(),
	})
	if payload != nil {
		h.broadcast(roomID, payload, nil)
	}
}
