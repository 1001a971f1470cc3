package websocket

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/segfal/realtime-whiteboard-sub002/internal/hub"
	"github.com/segfal/realtime-whiteboard-sub002/internal/service"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册。
// 连接匿名建立，身份在 join 消息中协商，因此这里不做认证。
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
func NewWebSocketHandler(h *hub.Hub) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// 允许所有来源连接 (生产环境应配置具体的允许来源)
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return &WebSocketHandler{
		upgrader: upgrader,
		hub:      h,
	}
}

// HandleConnection 处理 WebSocket 连接请求。
// URL 预期格式: /ws/room/{roomId}
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	roomID := strings.TrimSpace(c.Param("roomId"))
	logCtx := logrus.WithField("room_id", roomID)

	if roomID == "" {
		logCtx.Warn("WS Handler: Missing room ID in path")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Room ID is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经发送了 HTTP 错误响应，这里只记日志
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	connectionID := service.NewConnectionID()
	logCtx = logCtx.WithField("connection_id", connectionID)
	logCtx.Info("WS Handler: Connection upgraded to WebSocket")

	client := hub.NewClient(h.hub, conn, roomID, connectionID)

	if !h.hub.QueueRegister(client) {
		logCtx.Error("WS Handler: Hub event channel full, failed to register client")
		conn.Close()
		return
	}

	client.Run()
	logCtx.Debug("WS Handler: Client read/write pumps started")
}
