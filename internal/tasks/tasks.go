package tasks

import (
	"encoding/json"
	"time"
)

// 任务类型常量
const (
	// TypeCanvasAutosave 是周期性画布自动保存检查任务
	TypeCanvasAutosave = "canvas:autosave"
)

// CanvasAutosavePayload 是自动保存检查任务的数据结构。
// 任务本身不携带房间列表——活跃房间在执行时从 Hub 查询，
// 这里只记录调度时间用于排查。
type CanvasAutosavePayload struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

// NewCanvasAutosaveTask 创建一个自动保存检查任务的 payload。
func NewCanvasAutosaveTask() ([]byte, error) {
	payload := CanvasAutosavePayload{
		ScheduledAt: time.Now().UTC(),
	}
	return json.Marshal(payload)
}
