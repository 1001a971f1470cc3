package domain

import "time"

// Session 表示一个已加入房间的用户会话。
// 每个 UserID 最多存在一个活跃会话；Session 的 RoomID 必须与其
// WebSocket 连接绑定的房间一致（由 Hub 的 join 处理保证）。
type Session struct {
	UserID       string    `gorm:"primaryKey;size:64" json:"user_id"`
	RoomID       string    `gorm:"index;size:64;not null" json:"room_id"`
	DisplayName  string    `gorm:"size:100" json:"display_name"`
	IsAdmin      bool      `json:"is_admin"`
	ConnectionID string    `gorm:"size:64" json:"connection_id"`
	JoinedAt     time.Time `gorm:"autoCreateTime;index" json:"joined_at"`
	LastSeen     time.Time `json:"last_seen"`
}
