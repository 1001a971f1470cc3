package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/segfal/realtime-whiteboard-sub002/internal/hub"
	"github.com/segfal/realtime-whiteboard-sub002/internal/service"
)

// RoomHandler 封装了与房间管理相关的 HTTP 处理逻辑。
type RoomHandler struct {
	roomService *service.RoomService
	hub         *hub.Hub
}

// NewRoomHandler 创建 RoomHandler 实例。
func NewRoomHandler(roomService *service.RoomService, h *hub.Hub) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	if h == nil {
		panic("Hub cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService, hub: h}
}

// CreateRoomRequest 定义创建房间请求的结构体。
// admin_user_id 可选：创建者稍后通过 WebSocket 加入时也能成为 admin。
type CreateRoomRequest struct {
	AdminUserID string `json:"admin_user_id"`
}

// CreateRoomResponse 定义创建房间成功的响应结构体。
type CreateRoomResponse struct {
	Message string `json:"message"`
	RoomID  string `json:"room_id"`
}

// CreateRoom 处理创建新房间的请求。
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	// 请求体可以为空，绑定失败视为空请求
	_ = c.ShouldBindJSON(&req)

	room, err := h.roomService.CreateRoom(c.Request.Context(), req.AdminUserID)
	if err != nil {
		logrus.WithError(err).Error("Handler.CreateRoom: Failed to create room via service")
		HandleServiceError(c, err)
		return
	}

	logrus.WithField("room_id", room.RoomID).Info("Handler.CreateRoom: Room created successfully")
	SuccessResponse(c, http.StatusCreated, CreateRoomResponse{
		Message: "Room created successfully",
		RoomID:  room.RoomID,
	})
}

// RoomSummary 是最近房间列表里单个房间的响应结构体。
type RoomSummary struct {
	RoomID       string    `json:"room_id"`
	AdminUserID  string    `json:"admin_user_id"`
	LastActivity time.Time `json:"last_activity"`
	ActiveUsers  int       `json:"active_users"`
}

// RecentRooms 返回最近活跃的房间列表，按最后活跃时间倒序。
func (h *RoomHandler) RecentRooms(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	rooms, err := h.roomService.RecentRooms(c.Request.Context(), limit)
	if err != nil {
		logrus.WithError(err).Error("Handler.RecentRooms: Failed to query recent rooms")
		HandleServiceError(c, err)
		return
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, RoomSummary{
			RoomID:       room.RoomID,
			AdminUserID:  room.AdminUserID,
			LastActivity: room.LastActivity,
			ActiveUsers:  h.hub.CountClients(room.RoomID),
		})
	}

	SuccessResponse(c, http.StatusOK, gin.H{"rooms": summaries})
}

// Stats 返回全局统计信息。
func (h *RoomHandler) Stats(c *gin.Context) {
	stats, err := h.roomService.GlobalStats(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Handler.Stats: Failed to collect stats")
		HandleServiceError(c, err)
		return
	}

	stats["connectedRooms"] = len(h.hub.GetActiveRoomIDs())
	SuccessResponse(c, http.StatusOK, stats)
}
