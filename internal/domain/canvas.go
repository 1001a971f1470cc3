package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// CanvasDocument 是画布状态的结构化文档。
// 具体的笔画/对象结构由前端绘图引擎定义，服务端将其视为不透明文档，
// 只保证序列化往返无损。
type CanvasDocument map[string]interface{}

// EmptyCanvas 返回约定的空画布默认文档：无笔画、白色背景、单位缩放。
// 调用方永远不会拿到 nil 画布。
func EmptyCanvas(roomID string) CanvasDocument {
	return CanvasDocument{
		"strokes":    []interface{}{},
		"objects":    []interface{}{},
		"background": "#ffffff",
		"zoom":       1.0,
		"pan":        map[string]float64{"x": 0, "y": 0},
		"metadata": map[string]interface{}{
			"room_id":      roomID,
			"last_updated": time.Now().Unix(),
		},
	}
}

// CanvasSnapshot 表示某个房间画布状态的一个持久化版本。
// Version 对同一 RoomID 严格单调递增，最新版本是迟到者同步的权威数据。
type CanvasSnapshot struct {
	ID         string    `gorm:"primaryKey;size:128" json:"id"`
	RoomID     string    `gorm:"uniqueIndex:idx_room_version;size:64;not null" json:"room_id"`
	Version    int       `gorm:"uniqueIndex:idx_room_version;not null" json:"version"`
	CanvasData string    `gorm:"type:text;not null" json:"-"`
	SavedBy    string    `gorm:"size:64" json:"saved_by"`
	SavedAt    time.Time `json:"saved_at"`
}

// ParseData 将 CanvasData 字段 (JSON 字符串) 解析为 CanvasDocument。
func (s *CanvasSnapshot) ParseData() (CanvasDocument, error) {
	if s.CanvasData == "" {
		return CanvasDocument{}, nil
	}
	var doc CanvasDocument
	if err := json.Unmarshal([]byte(s.CanvasData), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal canvas data for room %s version %d: %w", s.RoomID, s.Version, err)
	}
	return doc, nil
}

// SetData 将 CanvasDocument 序列化后写入 CanvasData 字段。
func (s *CanvasSnapshot) SetData(doc CanvasDocument) error {
	bytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal canvas data: %w", err)
	}
	s.CanvasData = string(bytes)
	return nil
}
