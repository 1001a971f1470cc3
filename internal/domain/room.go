package domain

import "time"

// Room 表示一个协作白板房间的持久化记录。
// 内存中的成员集合由 Hub 维护，这里只保存需要跨连接存活的字段。
// 持久化的房间记录一旦创建就不会被本服务删除，只会更新 IsActive 和时间戳。
type Room struct {
	RoomID       string    `gorm:"primaryKey;size:64" json:"room_id"`
	AdminUserID  string    `gorm:"size:64;index" json:"admin_user_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	LastActivity time.Time `gorm:"index" json:"last_activity"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
}
