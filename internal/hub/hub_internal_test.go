package hub

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segfal/realtime-whiteboard-sub002/internal/domain"
	"github.com/segfal/realtime-whiteboard-sub002/internal/repository"
	"github.com/segfal/realtime-whiteboard-sub002/internal/repository/mocks"
	"github.com/segfal/realtime-whiteboard-sub002/internal/service"
)

// testMocks 聚合了搭一个 Hub 需要的全部 repo mock。
type testMocks struct {
	roomRepo    *mocks.RoomRepository
	sessionRepo *mocks.SessionRepository
	canvasRepo  *mocks.CanvasRepository
	stateRepo   *mocks.StateRepository
}

// newTestHub 用 mock 仓储搭一个不启动 Run 循环的 Hub。
// 测试直接调用处理器方法，和 Run 循环的串行语义一致。
func newTestHub() (*Hub, *testMocks) {
	m := &testMocks{
		roomRepo:    new(mocks.RoomRepository),
		sessionRepo: new(mocks.SessionRepository),
		canvasRepo:  new(mocks.CanvasRepository),
		stateRepo:   new(mocks.StateRepository),
	}
	roomService := service.NewRoomService(m.roomRepo, m.sessionRepo, m.canvasRepo)
	sessionManager := service.NewSessionManager(m.sessionRepo, m.stateRepo)
	adminService := service.NewAdminService(m.sessionRepo, m.roomRepo)
	canvasService := service.NewCanvasService(m.canvasRepo, m.stateRepo)
	return NewHub(roomService, sessionManager, adminService, canvasService), m
}

// newTestClient 创建一个不带真实连接的客户端，只用 send 通道交互。
func newTestClient(h *Hub, roomID, connectionID string) *Client {
	return &Client{
		hub:          h,
		roomID:       roomID,
		connectionID: connectionID,
		send:         make(chan []byte, 16),
	}
}

// drainMessages 读出客户端 send 通道里已有的全部消息并按 type 解码。
func drainMessages(t *testing.T, c *Client) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for {
		select {
		case raw := <-c.send:
			var msg map[string]interface{}
			require.NoError(t, json.Unmarshal(raw, &msg))
			out = append(out, msg)
		default:
			return out
		}
	}
}

func messageTypes(msgs []map[string]interface{}) []string {
	types := make([]string, 0, len(msgs))
	for _, m := range msgs {
		types = append(types, m["type"].(string))
	}
	return types
}

// --- 注册 / 注销 ---

func TestHub_RegisterAndUnregister(t *testing.T) {
	h, _ := newTestHub()
	client := newTestClient(h, "room_1", "conn-1")

	h.registerClient(client)
	assert.Equal(t, 1, h.CountClients("room_1"))
	assert.Equal(t, []string{"room_1"}, h.GetActiveRoomIDs())

	h.unregisterClient(client)
	assert.Equal(t, 0, h.CountClients("room_1"))
	assert.Empty(t, h.GetActiveRoomIDs(), "空房间应从注册表移除")

	// send 通道应已被关闭
	_, open := <-client.send
	assert.False(t, open)
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	h, _ := newTestHub()
	client := newTestClient(h, "room_1", "conn-1")

	h.registerClient(client)
	h.unregisterClient(client)
	// 第二次注销必须是无操作，不能重复 close 通道
	h.unregisterClient(client)

	assert.Equal(t, 0, h.CountClients("room_1"))
}

// --- 广播 ---

func TestHub_BroadcastExcludesSender(t *testing.T) {
	h, _ := newTestHub()
	sender := newTestClient(h, "room_1", "conn-1")
	receiver := newTestClient(h, "room_1", "conn-2")
	outsider := newTestClient(h, "room_2", "conn-3")
	h.registerClient(sender)
	h.registerClient(receiver)
	h.registerClient(outsider)

	h.broadcast("room_1", []byte(`{"type":"stroke"}`), sender)

	assert.Empty(t, drainMessages(t, sender), "发送者不应收到自己的广播")
	assert.Len(t, drainMessages(t, receiver), 1)
	assert.Empty(t, drainMessages(t, outsider), "其他房间不应收到广播")
}

func TestHub_BroadcastRemovesSlowClient(t *testing.T) {
	h, m := newTestHub()
	healthy := newTestClient(h, "room_1", "conn-1")
	slow := newTestClient(h, "room_1", "conn-2")
	// 慢客户端的通道容量为 0 且没人消费，任何发送都会失败
	slow.send = make(chan []byte)
	h.registerClient(healthy)
	h.registerClient(slow)

	// 慢客户端没加入过会话，离开处理只需要容忍查询
	m.stateRepo.On("GetCachedSession", mock.Anything, mock.Anything).Return(nil, repository.ErrNotFound).Maybe()
	m.sessionRepo.On("FindByUserID", mock.Anything, mock.Anything).Return(nil, repository.ErrSessionNotFound).Maybe()

	h.broadcast("room_1", []byte(`{"type":"stroke"}`), nil)

	assert.Equal(t, 1, h.CountClients("room_1"), "跟不上的客户端应被移除")
	assert.Len(t, drainMessages(t, healthy), 1)
}

// --- join 流程 ---

func TestHub_HandleJoin_FirstUserBecomesAdmin(t *testing.T) {
	h, m := newTestHub()
	client := newTestClient(h, "room_1", "conn-1")
	h.registerClient(client)

	// 房间还没有任何会话
	m.sessionRepo.On("CountInRoom", mock.Anything, "room_1").Return(int64(0), nil).Once()
	m.roomRepo.On("CreateIfNotExists", mock.Anything, mock.MatchedBy(func(r *domain.Room) bool {
		return r.RoomID == "room_1" && r.AdminUserID == "alice"
	})).Return(nil).Once()
	m.sessionRepo.On("FindByUserID", mock.Anything, "alice").Return(nil, repository.ErrSessionNotFound).Once()
	m.sessionRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
		return s.UserID == "alice" && s.IsAdmin
	})).Return(nil).Once()
	m.stateRepo.On("CacheSession", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil).Once()
	m.roomRepo.On("SetAdmin", mock.Anything, "room_1", "alice").Return(nil).Once()
	m.roomRepo.On("TouchActivity", mock.Anything, "room_1", mock.AnythingOfType("time.Time")).Return(nil).Once()
	// 加入者的画布同步：房间还没有快照
	m.stateRepo.On("GetSnapshotCache", mock.Anything, "room_1").Return(nil, repository.ErrNotFound).Once()
	m.canvasRepo.On("FindLatest", mock.Anything, "room_1").Return(nil, repository.ErrSnapshotNotFound).Once()

	h.dispatchFrame(client, JoinFrame{RoomID: "room_1", UserID: "alice", DisplayName: "Alice"})

	assert.True(t, client.Joined())
	assert.Equal(t, "alice", client.UserID())

	msgs := drainMessages(t, client)
	types := messageTypes(msgs)
	assert.Contains(t, types, "user_joined")
	assert.Contains(t, types, "canvas_sync", "加入者应收到画布同步")

	for _, msg := range msgs {
		if msg["type"] == "user_joined" {
			assert.Equal(t, "alice", msg["user_id"])
			assert.Equal(t, true, msg["is_admin"], "首位用户应成为 admin")
		}
		if msg["type"] == "canvas_sync" {
			assert.Equal(t, float64(0), msg["version"], "无快照时同步版本 0 的空画布")
		}
	}
	m.sessionRepo.AssertExpectations(t)
	m.roomRepo.AssertExpectations(t)
}

func TestHub_HandleJoin_GeneratesIdentityWhenMissing(t *testing.T) {
	h, m := newTestHub()
	client := newTestClient(h, "room_1", "conn-1")
	h.registerClient(client)

	m.sessionRepo.On("CountInRoom", mock.Anything, "room_1").Return(int64(2), nil).Once()
	m.roomRepo.On("CreateIfNotExists", mock.Anything, mock.AnythingOfType("*domain.Room")).Return(nil).Once()
	m.sessionRepo.On("FindByUserID", mock.Anything, mock.AnythingOfType("string")).Return(nil, repository.ErrSessionNotFound).Once()
	m.sessionRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
		return s.UserID != "" && s.DisplayName != "" && !s.IsAdmin
	})).Return(nil).Once()
	m.stateRepo.On("CacheSession", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil).Once()
	m.roomRepo.On("TouchActivity", mock.Anything, "room_1", mock.AnythingOfType("time.Time")).Return(nil).Once()
	m.stateRepo.On("GetSnapshotCache", mock.Anything, "room_1").Return(nil, repository.ErrNotFound).Once()
	m.canvasRepo.On("FindLatest", mock.Anything, "room_1").Return(nil, repository.ErrSnapshotNotFound).Once()

	h.dispatchFrame(client, JoinFrame{RoomID: "room_1"})

	assert.True(t, client.Joined())
	assert.Regexp(t, `^user_[0-9a-f]{8}_\d+$`, client.UserID(), "缺省身份应由服务端生成")
	assert.NotEmpty(t, client.DisplayName())
	// 非首位用户不应改动 admin 指针
	m.roomRepo.AssertNotCalled(t, "SetAdmin", mock.Anything, mock.Anything, mock.Anything)
}

func TestHub_HandleJoin_RoomMismatchDropped(t *testing.T) {
	h, _ := newTestHub()
	client := newTestClient(h, "room_1", "conn-1")
	h.registerClient(client)

	// join 消息里的房间和连接路径不一致
	h.dispatchFrame(client, JoinFrame{RoomID: "room_other", UserID: "alice"})

	assert.False(t, client.Joined(), "房间不一致的 join 应被丢弃")
	assert.Empty(t, drainMessages(t, client))
}

func TestHub_HandleJoin_EmptyRoomIDDropped(t *testing.T) {
	h, _ := newTestHub()
	client := newTestClient(h, "room_1", "conn-1")
	h.registerClient(client)

	// 缺省 room_id 也视为不一致
	h.dispatchFrame(client, JoinFrame{UserID: "alice"})

	assert.False(t, client.Joined(), "缺 room_id 的 join 应被丢弃")
	assert.Empty(t, drainMessages(t, client))
}

func TestHub_FramesBeforeJoinAreDropped(t *testing.T) {
	h, m := newTestHub()
	client := newTestClient(h, "room_1", "conn-1")
	other := newTestClient(h, "room_1", "conn-2")
	h.registerClient(client)
	h.registerClient(other)

	h.dispatchFrame(client, StrokeFrame{Raw: map[string]interface{}{"type": "stroke"}})

	assert.Empty(t, drainMessages(t, other), "未加入的客户端的笔画不应被转发")
	m.stateRepo.AssertNotCalled(t, "MarkPendingChanges", mock.Anything, mock.Anything, mock.Anything)
}

// --- 离开流程 ---

func TestHub_HandleLeave_AdminDepartureElectsSuccessor(t *testing.T) {
	h, m := newTestHub()
	admin := newTestClient(h, "room_1", "conn-1")
	admin.userID = "alice"
	admin.joined = true
	member := newTestClient(h, "room_1", "conn-2")
	member.userID = "bob"
	member.joined = true
	h.registerClient(admin)
	h.registerClient(member)

	adminSession := &domain.Session{UserID: "alice", RoomID: "room_1", IsAdmin: true, ConnectionID: "conn-1"}
	successor := &domain.Session{UserID: "bob", RoomID: "room_1", ConnectionID: "conn-2"}

	m.stateRepo.On("GetCachedSession", mock.Anything, "alice").Return(adminSession, nil).Once()
	m.sessionRepo.On("FindEarliestInRoom", mock.Anything, "room_1", "alice").Return(successor, nil).Once()
	m.sessionRepo.On("SetAdmin", mock.Anything, "room_1", "bob", true).Return(nil).Once()
	m.roomRepo.On("SetAdmin", mock.Anything, "room_1", "bob").Return(nil).Once()
	m.sessionRepo.On("Delete", mock.Anything, "alice").Return(nil).Once()
	m.stateRepo.On("DropCachedSession", mock.Anything, "alice").Return(nil).Once()
	m.roomRepo.On("TouchActivity", mock.Anything, "room_1", mock.AnythingOfType("time.Time")).Return(nil).Once()

	h.unregisterClient(admin)

	msgs := drainMessages(t, member)
	types := messageTypes(msgs)
	assert.Contains(t, types, "admin_changed", "admin 离开后剩余成员应收到继任通知")
	assert.Contains(t, types, "user_left")

	for _, msg := range msgs {
		if msg["type"] == "admin_changed" {
			assert.Equal(t, "bob", msg["new_admin_id"])
		}
		if msg["type"] == "user_left" {
			assert.Equal(t, "alice", msg["user_id"])
		}
	}
	m.sessionRepo.AssertExpectations(t)
	m.roomRepo.AssertExpectations(t)
}

func TestHub_HandleLeave_LastUserNoSuccessor(t *testing.T) {
	h, m := newTestHub()
	admin := newTestClient(h, "room_1", "conn-1")
	admin.userID = "alice"
	admin.joined = true
	h.registerClient(admin)

	adminSession := &domain.Session{UserID: "alice", RoomID: "room_1", IsAdmin: true, ConnectionID: "conn-1"}
	m.stateRepo.On("GetCachedSession", mock.Anything, "alice").Return(adminSession, nil).Once()
	m.sessionRepo.On("FindEarliestInRoom", mock.Anything, "room_1", "alice").
		Return(nil, repository.ErrSessionNotFound).Once()
	m.sessionRepo.On("Delete", mock.Anything, "alice").Return(nil).Once()
	m.stateRepo.On("DropCachedSession", mock.Anything, "alice").Return(nil).Once()
	m.roomRepo.On("TouchActivity", mock.Anything, "room_1", mock.AnythingOfType("time.Time")).Return(nil).Once()

	h.unregisterClient(admin)

	// 空房间：不应有任何 SetAdmin 调用
	m.sessionRepo.AssertNotCalled(t, "SetAdmin", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.roomRepo.AssertNotCalled(t, "SetAdmin", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, h.GetActiveRoomIDs())
}

func TestHub_HandleLeave_StaleConnectionSkipsCleanup(t *testing.T) {
	// 同一用户的新连接已接管会话，旧连接的注销不应删掉新会话
	h, m := newTestHub()
	stale := newTestClient(h, "room_1", "conn-old")
	stale.userID = "alice"
	stale.joined = true
	h.registerClient(stale)

	current := &domain.Session{UserID: "alice", RoomID: "room_1", ConnectionID: "conn-new"}
	m.stateRepo.On("GetCachedSession", mock.Anything, "alice").Return(current, nil).Once()

	h.unregisterClient(stale)

	m.sessionRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

// --- 画布帧 ---

func TestHub_HandleStroke_RestampedAndFannedOut(t *testing.T) {
	h, _ := newTestHub()
	sender := newTestClient(h, "room_1", "conn-1")
	sender.userID = "alice"
	sender.joined = true
	receiver := newTestClient(h, "room_1", "conn-2")
	receiver.joined = true
	h.registerClient(sender)
	h.registerClient(receiver)

	// 客户端自报的 username 必须被会话身份覆盖
	h.dispatchFrame(sender, StrokeFrame{Raw: map[string]interface{}{
		"type":     "stroke",
		"username": "forged",
		"points":   []interface{}{},
	}})

	assert.Empty(t, drainMessages(t, sender), "笔画不应回发给发送者")
	msgs := drainMessages(t, receiver)
	require.Len(t, msgs, 1)
	assert.Equal(t, "alice", msgs[0]["username"])
	assert.Contains(t, msgs[0], "points", "笔画其余字段应原样保留")
}

func TestHub_HandleCanvasUpdate_MarksPendingAndExcludesSender(t *testing.T) {
	h, m := newTestHub()
	sender := newTestClient(h, "room_1", "conn-1")
	sender.userID = "alice"
	sender.joined = true
	receiver := newTestClient(h, "room_1", "conn-2")
	receiver.joined = true
	h.registerClient(sender)
	h.registerClient(receiver)

	m.stateRepo.On("MarkPendingChanges", mock.Anything, "room_1", mock.AnythingOfType("time.Duration")).Return(nil).Once()

	h.dispatchFrame(sender, CanvasUpdateFrame{UpdateData: map[string]interface{}{"op": "clear"}})

	assert.Empty(t, drainMessages(t, sender))
	msgs := drainMessages(t, receiver)
	require.Len(t, msgs, 1)
	assert.Equal(t, "canvas_update", msgs[0]["type"])
	assert.Equal(t, "alice", msgs[0]["user_id"])
	m.stateRepo.AssertExpectations(t)
}

func TestHub_HandleCanvasSave_BroadcastsNewVersion(t *testing.T) {
	h, m := newTestHub()
	sender := newTestClient(h, "room_1", "conn-1")
	sender.userID = "alice"
	sender.joined = true
	other := newTestClient(h, "room_1", "conn-2")
	other.joined = true
	h.registerClient(sender)
	h.registerClient(other)

	m.canvasRepo.On("NextVersion", mock.Anything, "room_1").Return(2, nil).Once()
	m.canvasRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.CanvasSnapshot")).Return(nil).Once()
	m.stateRepo.On("SetSnapshotCache", mock.Anything, "room_1", mock.AnythingOfType("*domain.CanvasSnapshot"), mock.AnythingOfType("time.Duration")).Return(nil).Once()
	m.stateRepo.On("ClearPendingChanges", mock.Anything, "room_1").Return(nil).Once()
	m.roomRepo.On("TouchActivity", mock.Anything, "room_1", mock.AnythingOfType("time.Time")).Return(nil).Once()

	h.dispatchFrame(sender, CanvasSaveFrame{Content: domain.CanvasDocument{"strokes": []interface{}{}}})

	// 保存成功的通知发给包括发起者在内的所有成员
	for _, c := range []*Client{sender, other} {
		msgs := drainMessages(t, c)
		require.Len(t, msgs, 1)
		assert.Equal(t, "canvas_saved", msgs[0]["type"])
		assert.Equal(t, float64(2), msgs[0]["version"])
		assert.Equal(t, "alice", msgs[0]["saved_by"])
		assert.Equal(t, true, msgs[0]["manual"])
	}
	m.canvasRepo.AssertExpectations(t)
}

func TestHub_HandleCanvasSave_FailureNotifiesOnlySender(t *testing.T) {
	h, m := newTestHub()
	sender := newTestClient(h, "room_1", "conn-1")
	sender.userID = "alice"
	sender.joined = true
	other := newTestClient(h, "room_1", "conn-2")
	other.joined = true
	h.registerClient(sender)
	h.registerClient(other)

	m.canvasRepo.On("NextVersion", mock.Anything, "room_1").Return(0, assert.AnError).Once()

	h.dispatchFrame(sender, CanvasSaveFrame{Content: domain.CanvasDocument{}})

	msgs := drainMessages(t, sender)
	require.Len(t, msgs, 1)
	assert.Equal(t, "save_error", msgs[0]["type"])
	assert.Empty(t, drainMessages(t, other), "保存失败不应打扰其他成员")
}

// --- admin 转移帧 ---

func TestHub_HandleAdminTransfer_RejectionSendsErrorToInitiatorOnly(t *testing.T) {
	h, m := newTestHub()
	initiator := newTestClient(h, "room_1", "conn-1")
	initiator.userID = "carol"
	initiator.joined = true
	other := newTestClient(h, "room_1", "conn-2")
	other.joined = true
	h.registerClient(initiator)
	h.registerClient(other)

	// 发起者不是 admin
	nonAdmin := &domain.Session{UserID: "carol", RoomID: "room_1", IsAdmin: false}
	m.sessionRepo.On("FindByUserID", mock.Anything, "carol").Return(nonAdmin, nil).Once()

	h.dispatchFrame(initiator, AdminTransferFrame{NewAdminID: "bob"})

	msgs := drainMessages(t, initiator)
	require.Len(t, msgs, 1)
	assert.Equal(t, "error", msgs[0]["type"])
	assert.Empty(t, drainMessages(t, other), "被拒绝的转移不应广播任何消息")
}

func TestHub_HandleAdminTransfer_SuccessBroadcastsAdminChanged(t *testing.T) {
	h, m := newTestHub()
	admin := newTestClient(h, "room_1", "conn-1")
	admin.userID = "alice"
	admin.joined = true
	target := newTestClient(h, "room_1", "conn-2")
	target.userID = "bob"
	target.joined = true
	h.registerClient(admin)
	h.registerClient(target)

	adminSession := &domain.Session{UserID: "alice", RoomID: "room_1", IsAdmin: true}
	targetSession := &domain.Session{UserID: "bob", RoomID: "room_1"}
	m.sessionRepo.On("FindByUserID", mock.Anything, "alice").Return(adminSession, nil).Once()
	m.sessionRepo.On("FindByUserID", mock.Anything, "bob").Return(targetSession, nil).Once()
	m.sessionRepo.On("SetAdmin", mock.Anything, "room_1", "alice", false).Return(nil).Once()
	m.sessionRepo.On("SetAdmin", mock.Anything, "room_1", "bob", true).Return(nil).Once()
	m.roomRepo.On("SetAdmin", mock.Anything, "room_1", "bob").Return(nil).Once()
	m.roomRepo.On("TouchActivity", mock.Anything, "room_1", mock.AnythingOfType("time.Time")).Return(nil).Once()

	h.dispatchFrame(admin, AdminTransferFrame{NewAdminID: "bob"})

	// 双方都应收到 admin_changed
	for _, c := range []*Client{admin, target} {
		msgs := drainMessages(t, c)
		require.Len(t, msgs, 1)
		assert.Equal(t, "admin_changed", msgs[0]["type"])
		assert.Equal(t, "bob", msgs[0]["new_admin_id"])
	}
	m.sessionRepo.AssertExpectations(t)
	m.roomRepo.AssertExpectations(t)
}

// --- 停止 ---

func TestHub_StopIsSafeForLateEvents(t *testing.T) {
	h, _ := newTestHub()
	client := newTestClient(h, "room_1", "conn-1")

	runExited := make(chan struct{})
	go func() {
		h.Run()
		close(runExited)
	}()

	h.Stop()
	<-runExited

	// 存活连接在停止后还可能投递事件，必须被丢弃而不是 panic
	assert.NotPanics(t, func() {
		assert.False(t, h.QueueRegister(client), "停止后的事件应被拒绝")
		assert.False(t, h.QueueBroadcast("room_1", []byte(`{"type":"user_left"}`)))
	})
	// Stop 幂等
	assert.NotPanics(t, h.Stop)
}

// --- 外部入口 ---

func TestHub_QueueBroadcastDeliversToRoom(t *testing.T) {
	h, _ := newTestHub()
	client := newTestClient(h, "room_1", "conn-1")
	h.registerClient(client)

	ok := h.QueueBroadcast("room_1", []byte(`{"type":"canvas_saved","manual":false}`))
	require.True(t, ok)

	// 手动驱动一次事件循环
	ev := <-h.events
	assert.Equal(t, eventBroadcast, ev.Type)
	h.broadcast(ev.RoomID, ev.Payload, nil)

	msgs := drainMessages(t, client)
	require.Len(t, msgs, 1)
	assert.Equal(t, "canvas_saved", msgs[0]["type"])
}
