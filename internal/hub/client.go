package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一条连接到 Hub 的 WebSocket 连接。
// userID / displayName / joined 只在 Hub 的 Run goroutine 中读写
// (join 处理器赋值，后续处理器读取)，因此不需要加锁。
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	roomID       string
	connectionID string
	send         chan []byte

	// 以下字段由 Hub goroutine 独占
	userID      string
	displayName string
	joined      bool
}

// NewClient 创建一个新的 Client 实例。
func NewClient(hub *Hub, conn *websocket.Conn, roomID, connectionID string) *Client {
	return &Client{
		hub:          hub,
		conn:         conn,
		roomID:       roomID,
		connectionID: connectionID,
		send:         make(chan []byte, 256),
	}
}

// Run 启动客户端的读写 goroutine。
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) RoomID() string       { return c.roomID }
func (c *Client) UserID() string       { return c.userID }
func (c *Client) DisplayName() string  { return c.displayName }
func (c *Client) ConnectionID() string { return c.connectionID }
func (c *Client) Joined() bool         { return c.joined }

// ReadPump 将消息从 WebSocket 连接解码后泵送到 Hub 的事件通道。
// 它在自己的 goroutine 中运行，退出时恰好发送一次 unregister。
func (c *Client) ReadPump() {
	defer func() {
		// 清理：请求 Hub 注销此客户端。带超时阻塞发送，
		// 保证正常情况下 unregister 不会被丢弃。
		select {
		case c.hub.events <- Event{Type: eventUnregister, Client: c}:
		case <-c.hub.done:
			// Hub 已停止，没有循环在消费了
		case <-time.After(1 * time.Second):
			logrus.WithFields(logrus.Fields{
				"room_id":       c.roomID,
				"connection_id": c.connectionID,
			}).Warn("Timeout sending unregister event to Hub channel")
		}
		c.conn.Close()
		logrus.WithFields(logrus.Fields{
			"room_id":       c.roomID,
			"connection_id": c.connectionID,
		}).Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithFields(logrus.Fields{
				"room_id":       c.roomID,
				"connection_id": c.connectionID,
			})
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			break
		}

		// 任何入站帧都证明连接活跃，顺带刷新读超时
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if messageType != websocket.TextMessage {
			continue
		}

		frame := DecodeFrame(message)
		if unknown, ok := frame.(UnknownFrame); ok {
			// 未知类型在网关丢弃，不进入 Hub
			logrus.WithFields(logrus.Fields{
				"room_id":       c.roomID,
				"connection_id": c.connectionID,
				"frame_type":    unknown.Type,
			}).Debug("Dropping unknown frame at gateway")
			continue
		}

		if !c.hub.QueueEvent(Event{Type: eventFrame, Client: c, Frame: frame}) {
			logrus.WithFields(logrus.Fields{
				"room_id":       c.roomID,
				"connection_id": c.connectionID,
			}).Warn("Hub did not accept frame, dropped")
		}
	}
}

// WritePump 将消息从 Client 的 send 通道泵送到 WebSocket 连接，
// 并按 pingPeriod 定期发送 Ping。它在自己的 goroutine 中运行。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logrus.WithFields(logrus.Fields{
			"room_id":       c.roomID,
			"connection_id": c.connectionID,
		}).Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道被 Hub 关闭 (注销时)
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithFields(logrus.Fields{
					"room_id":       c.roomID,
					"connection_id": c.connectionID,
				}).WithError(err).Warn("Failed to write message to websocket")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithFields(logrus.Fields{
					"room_id":       c.roomID,
					"connection_id": c.connectionID,
				}).WithError(err).Warn("Failed to send ping message")
				return
			}
		}
	}
}
