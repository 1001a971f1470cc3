package hub

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/segfal/realtime-whiteboard-sub002/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	// 手动保存会携带完整画布文档，上限要足够大。
	maxMessageSize = 256 * 1024
)

// 事件类型常量
const (
	eventRegister   = "register"
	eventUnregister = "unregister"
	eventFrame      = "frame"
	eventBroadcast  = "broadcast"
)

// Event 是 Hub 内部事件通道上传递的消息。
type Event struct {
	Type    string  // register / unregister / frame / broadcast
	Client  *Client // register/unregister/frame
	Frame   Frame   // 仅 frame
	RoomID  string  // 仅 broadcast
	Payload []byte  // 仅 broadcast
}

// Hub 维护活跃客户端集合并串行处理所有房间事件。
// 事件处理器在 Run 循环内同步执行，因此同一房间的两个事件
// 永远不会交错——这是 admin 唯一性等不变量的并发基础。
type Hub struct {
	// 内部事件通道，所有状态变更都经过它
	events chan Event
	// 关闭信号。events 永远不 close：存活的读泵随时可能往里发，
	// 生产者和 Run 循环都以 done 为准退出
	done     chan struct{}
	stopOnce sync.Once

	// 客户端集合，按 RoomID 组织：map[roomID]map[*Client]bool
	rooms map[string]map[*Client]bool
	// 保护 rooms map：Run 循环写，外部观察者 (autosave worker、统计) 读
	roomsMu sync.RWMutex

	// 注入的 Service
	roomService    *service.RoomService
	sessionManager *service.SessionManager
	adminService   *service.AdminService
	canvasService  *service.CanvasService
}

// NewHub 创建并返回一个新的 Hub 实例。
func NewHub(
	roomService *service.RoomService,
	sessionManager *service.SessionManager,
	adminService *service.AdminService,
	canvasService *service.CanvasService,
) *Hub {
	if roomService == nil || sessionManager == nil || adminService == nil || canvasService == nil {
		panic("all services must be non-nil for Hub")
	}
	return &Hub{
		events:         make(chan Event, 512),
		done:           make(chan struct{}),
		rooms:          make(map[string]map[*Client]bool),
		roomService:    roomService,
		sessionManager: sessionManager,
		adminService:   adminService,
		canvasService:  canvasService,
	}
}

// Run 启动 Hub 的主事件处理循环。应在单独的 goroutine 中运行。
// 所有处理器同步执行：慢存储调用会推迟后续事件，但保证了
// 单房间内的严格事件顺序。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for {
		select {
		case <-h.done:
			log.Info("Hub is shutting down...")
			return
		case ev := <-h.events:
			switch ev.Type {
			case eventRegister:
				h.registerClient(ev.Client)
			case eventUnregister:
				h.unregisterClient(ev.Client)
			case eventFrame:
				h.dispatchFrame(ev.Client, ev.Frame)
			case eventBroadcast:
				h.broadcast(ev.RoomID, ev.Payload, nil)
			default:
				log.Warnf("Received unknown event type: %s", ev.Type)
			}
		}
	}
}

// Stop 通知 Run 循环退出。幂等，且对仍在投递事件的连接安全：
// 停止后的事件被丢弃而不是 panic。
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// registerClient 把客户端加入其房间的成员集合。
// 此时客户端还没有会话；会话在 join 消息到达时创建。
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":       roomID,
		"connection_id": client.ConnectionID(),
	})

	h.roomsMu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
		logCtx.Info("Client list created for new room")
	}
	h.rooms[roomID][client] = true
	h.roomsMu.Unlock()

	logCtx.Info("Client registered to Hub")
}

// unregisterClient 把客户端从房间移除并触发离开处理。
// 幂等：对已移除的客户端再次调用是无操作。
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	if !h.removeClient(client) {
		return
	}

	// 会话清理和继任者选举在成员移除之后、下一个事件之前完成，
	// 因此后续加入者观察到的 admin 状态是一致的
	if client.Joined() {
		h.handleLeave(client)
	}
}

// removeClient 从 rooms map 中移除客户端并关闭其 send 通道。
// 返回客户端此前是否在房间中。
func (h *Hub) removeClient(client *Client) bool {
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":       roomID,
		"user_id":       client.UserID(),
		"connection_id": client.ConnectionID(),
	})

	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	roomClients, roomExists := h.rooms[roomID]
	if !roomExists {
		return false
	}
	if _, clientExists := roomClients[client]; !clientExists {
		return false
	}

	delete(roomClients, client)
	close(client.send)

	if len(roomClients) == 0 {
		delete(h.rooms, roomID)
		logCtx.Info("Room empty, removed from Hub")
	}
	logCtx.Info("Client unregistered from Hub")
	return true
}

// dispatchFrame 把解码后的消息分发给对应的处理器。
// 未加入的客户端只允许发送 join。
func (h *Hub) dispatchFrame(client *Client, frame Frame) {
	if client == nil || frame == nil {
		return
	}

	if join, ok := frame.(JoinFrame); ok {
		h.handleJoin(client, join)
		return
	}

	if !client.Joined() {
		logrus.WithFields(logrus.Fields{
			"room_id":       client.RoomID(),
			"connection_id": client.ConnectionID(),
			"frame_type":    frame.frameType(),
		}).Warn("Dropping frame from client that has not joined")
		return
	}

	switch f := frame.(type) {
	case AdminTransferFrame:
		h.handleAdminTransfer(client, f)
	case StrokeFrame:
		h.handleStroke(client, f)
	case CanvasUpdateFrame:
		h.handleCanvasUpdate(client, f)
	case CanvasSaveFrame:
		h.handleCanvasSave(client, f)
	default:
		// UnknownFrame 在网关就被丢弃，到这里说明有遗漏
		logrus.WithField("frame_type", frame.frameType()).Warn("Hub received unhandled frame type")
	}
}

// broadcast 将消息发送给指定房间的所有客户端，sender 非 nil 时排除它。
// 发送是非阻塞的：send 通道已满的客户端视为跟不上节奏，直接移除。
func (h *Hub) broadcast(roomID string, message []byte, sender *Client) {
	h.roomsMu.RLock()
	roomClients, ok := h.rooms[roomID]
	clientsToSend := make([]*Client, 0, len(roomClients))
	if ok {
		for client := range roomClients {
			if client != sender {
				clientsToSend = append(clientsToSend, client)
			}
		}
	}
	h.roomsMu.RUnlock()

	if len(clientsToSend) == 0 {
		return
	}

	var slow []*Client
	for _, client := range clientsToSend {
		select {
		case client.send <- message:
		default:
			logrus.WithFields(logrus.Fields{
				"room_id": roomID,
				"user_id": client.UserID(),
			}).Warn("Client send channel full during broadcast, removing client")
			slow = append(slow, client)
		}
	}

	// 移除在锁外收集的慢客户端；broadcast 只在 Run 循环里调用，
	// 所以这里不会和其他处理器并发
	for _, client := range slow {
		if h.removeClient(client) && client.Joined() {
			h.handleLeave(client)
		}
	}
}

// sendToClient 向单个客户端发送消息，通道满时丢弃。
func (h *Hub) sendToClient(client *Client, message []byte) {
	select {
	case client.send <- message:
	default:
		logrus.WithFields(logrus.Fields{
			"room_id": client.RoomID(),
			"user_id": client.UserID(),
		}).Warn("Client send channel full, message dropped")
	}
}

// QueueEvent 将事件放入 Hub 的处理队列 (非阻塞)。
// 返回 false 表示 Hub 已停止或队列已满、事件被丢弃。
func (h *Hub) QueueEvent(ev Event) bool {
	select {
	case <-h.done:
		logrus.WithFields(logrus.Fields{
			"event_type": ev.Type,
			"room_id":    ev.RoomID,
		}).Debug("Hub stopped, dropping event")
		return false
	default:
	}

	select {
	case h.events <- ev:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"event_type": ev.Type,
			"room_id":    ev.RoomID,
		}).Warn("Hub event channel full, dropping event")
		return false
	}
}

// QueueRegister 请求注册一个新客户端。供连接网关使用。
func (h *Hub) QueueRegister(client *Client) bool {
	return h.QueueEvent(Event{Type: eventRegister, Client: client})
}

// QueueBroadcast 请求向指定房间广播一条已序列化的消息。
// 供 Hub 外部的组件 (如自动保存 worker) 使用。
func (h *Hub) QueueBroadcast(roomID string, payload []byte) bool {
	return h.QueueEvent(Event{Type: eventBroadcast, RoomID: roomID, Payload: payload})
}

// GetActiveRoomIDs 返回当前至少有一个连接的房间 ID 列表。
func (h *Hub) GetActiveRoomIDs() []string {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()

	ids := make([]string, 0, len(h.rooms))
	for roomID := range h.rooms {
		ids = append(ids, roomID)
	}
	return ids
}

// CountClients 返回指定房间的当前连接数。
func (h *Hub) CountClients(roomID string) int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms[roomID])
}
