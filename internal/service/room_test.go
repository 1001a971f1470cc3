package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/segfal/realtime-whiteboard-sub002/internal/domain"
	"github.com/segfal/realtime-whiteboard-sub002/internal/repository/mocks"
	"github.com/segfal/realtime-whiteboard-sub002/internal/service"
)

func newRoomServiceWithMocks() (*service.RoomService, *mocks.RoomRepository, *mocks.SessionRepository, *mocks.CanvasRepository) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockSessionRepo := new(mocks.SessionRepository)
	mockCanvasRepo := new(mocks.CanvasRepository)
	return service.NewRoomService(mockRoomRepo, mockSessionRepo, mockCanvasRepo), mockRoomRepo, mockSessionRepo, mockCanvasRepo
}

// --- 测试 IsFirstUser 方法 ---

func TestRoomService_IsFirstUser_EmptyRoom(t *testing.T) {
	// Arrange
	roomService, _, mockSessionRepo, _ := newRoomServiceWithMocks()
	ctx := context.Background()

	mockSessionRepo.On("CountInRoom", ctx, "room_1").Return(int64(0), nil).Once()

	// Act
	isFirst, err := roomService.IsFirstUser(ctx, "room_1")

	// Assert
	assert.NoError(t, err)
	assert.True(t, isFirst, "没有会话的房间里第一个加入者是首位用户")

	mockSessionRepo.AssertExpectations(t)
}

func TestRoomService_IsFirstUser_OccupiedRoom(t *testing.T) {
	// Arrange
	roomService, _, mockSessionRepo, _ := newRoomServiceWithMocks()
	ctx := context.Background()

	mockSessionRepo.On("CountInRoom", ctx, "room_1").Return(int64(3), nil).Once()

	// Act
	isFirst, err := roomService.IsFirstUser(ctx, "room_1")

	// Assert
	assert.NoError(t, err)
	assert.False(t, isFirst)
}

// --- 测试 CreateRoomIfNotExists 方法 ---

func TestRoomService_CreateRoomIfNotExists_Idempotent(t *testing.T) {
	// Arrange: 底层 CreateIfNotExists 对已存在的房间是无操作
	roomService, mockRoomRepo, _, _ := newRoomServiceWithMocks()
	ctx := context.Background()

	mockRoomRepo.On("CreateIfNotExists", ctx, mock.MatchedBy(func(r *domain.Room) bool {
		assert.Equal(t, "room_1", r.RoomID)
		assert.Equal(t, "alice", r.AdminUserID)
		assert.True(t, r.IsActive)
		return true
	})).Return(nil).Twice()

	// Act
	err1 := roomService.CreateRoomIfNotExists(ctx, "room_1", "alice")
	err2 := roomService.CreateRoomIfNotExists(ctx, "room_1", "alice")

	// Assert
	assert.NoError(t, err1)
	assert.NoError(t, err2, "重复创建应是无操作")

	mockRoomRepo.AssertExpectations(t)
}

// --- 测试 CreateRoom 方法 ---

func TestRoomService_CreateRoom_GeneratesRoomID(t *testing.T) {
	// Arrange
	roomService, mockRoomRepo, _, _ := newRoomServiceWithMocks()
	ctx := context.Background()

	var createdID string
	mockRoomRepo.On("CreateIfNotExists", ctx, mock.MatchedBy(func(r *domain.Room) bool {
		createdID = r.RoomID
		return r.RoomID != ""
	})).Return(nil).Once()
	mockRoomRepo.On("FindByID", ctx, mock.AnythingOfType("string")).
		Return(&domain.Room{RoomID: "room_generated", AdminUserID: "alice", IsActive: true}, nil).Once()

	// Act
	room, err := roomService.CreateRoom(ctx, "alice")

	// Assert
	assert.NoError(t, err)
	require.NotNil(t, room)
	assert.Regexp(t, `^room_[0-9a-f]{8}$`, createdID, "生成的房间 ID 应符合约定格式")

	mockRoomRepo.AssertExpectations(t)
}

// --- 测试 GlobalStats 方法 ---

func TestRoomService_GlobalStats_AggregatesCounts(t *testing.T) {
	// Arrange
	roomService, mockRoomRepo, mockSessionRepo, mockCanvasRepo := newRoomServiceWithMocks()
	ctx := context.Background()

	mockRoomRepo.On("CountActive", ctx).Return(int64(4), nil).Once()
	mockSessionRepo.On("CountSeenSince", ctx, mock.AnythingOfType("time.Time")).Return(int64(12), nil).Once()
	mockCanvasRepo.On("CountAll", ctx).Return(int64(57), nil).Once()

	// Act
	stats, err := roomService.GlobalStats(ctx)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, int64(4), stats["activeRooms"])
	assert.Equal(t, int64(12), stats["activeUsers"])
	assert.Equal(t, int64(57), stats["savedCanvases"])

	mockRoomRepo.AssertExpectations(t)
	mockSessionRepo.AssertExpectations(t)
	mockCanvasRepo.AssertExpectations(t)
}

// --- 测试身份生成 ---

func TestGenerateUserID_Format(t *testing.T) {
	userID, err := service.GenerateUserID()
	require.NoError(t, err)
	assert.Regexp(t, `^user_[0-9a-f]{8}_\d+$`, userID)
}

func TestGenerateDisplayName_NotEmpty(t *testing.T) {
	name := service.GenerateDisplayName()
	assert.NotEmpty(t, name)
	assert.Contains(t, name, " ", "显示名应是 '形容词 名词' 两个词")
}

func TestGenerateUserID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := service.GenerateUserID()
		require.NoError(t, err)
		assert.False(t, seen[id], "生成的用户 ID 不应重复")
		seen[id] = true
	}
}
