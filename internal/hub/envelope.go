package hub

import (
	"encoding/json"

	"github.com/segfal/realtime-whiteboard-sub002/internal/domain"
)

// 入站消息类型常量
const (
	frameTypeJoin          = "join"
	frameTypeAdminTransfer = "transfer_admin"
	frameTypeStroke        = "stroke"
	frameTypeCanvasUpdate  = "canvas_update"
	frameTypeCanvasSave    = "canvas_save"
)

// Frame 是网关解码后的入站消息的封闭集合。
// 每条原始消息在网关解码恰好一次，Hub 内部只处理这些结构化变体，
// 不再接触原始字节。
type Frame interface {
	frameType() string
}

// JoinFrame 表示用户加入房间的请求。
// UserID 和 DisplayName 可以为空，由服务端生成。
type JoinFrame struct {
	RoomID      string `json:"room_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// AdminTransferFrame 表示当前 admin 发起的角色转移请求。
type AdminTransferFrame struct {
	NewAdminID string `json:"new_admin_id"`
}

// StrokeFrame 表示一次实时绘制事件。
// 笔画内容对服务端不透明，保留原始字段以便重新标注后原样转发。
type StrokeFrame struct {
	Raw map[string]interface{}
}

// CanvasUpdateFrame 表示一次轻量画布变更通知。
type CanvasUpdateFrame struct {
	UpdateData map[string]interface{} `json:"update_data"`
}

// CanvasSaveFrame 表示一次手动保存请求。
// Content 为 nil 时保存空画布默认文档。
type CanvasSaveFrame struct {
	Content domain.CanvasDocument `json:"content"`
}

// UnknownFrame 表示类型未知或格式损坏的消息，网关直接丢弃。
type UnknownFrame struct {
	Type string
}

func (JoinFrame) frameType() string          { return frameTypeJoin }
func (AdminTransferFrame) frameType() string { return frameTypeAdminTransfer }
func (StrokeFrame) frameType() string        { return frameTypeStroke }
func (CanvasUpdateFrame) frameType() string  { return frameTypeCanvasUpdate }
func (CanvasSaveFrame) frameType() string    { return frameTypeCanvasSave }
func (f UnknownFrame) frameType() string     { return f.Type }

// DecodeFrame 将一条原始 WebSocket 文本消息解码为 Frame 变体。
// 无法解析或类型未知的消息返回 UnknownFrame，永远不返回错误：
// 一条坏消息只应被丢弃，不应影响连接。
func DecodeFrame(raw []byte) Frame {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return UnknownFrame{}
	}

	switch envelope.Type {
	case frameTypeJoin:
		var frame JoinFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return UnknownFrame{Type: envelope.Type}
		}
		return frame
	case frameTypeAdminTransfer:
		var frame AdminTransferFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return UnknownFrame{Type: envelope.Type}
		}
		return frame
	case frameTypeStroke:
		var fields map[string]interface{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return UnknownFrame{Type: envelope.Type}
		}
		return StrokeFrame{Raw: fields}
	case frameTypeCanvasUpdate:
		var frame CanvasUpdateFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return UnknownFrame{Type: envelope.Type}
		}
		return frame
	case frameTypeCanvasSave:
		var frame CanvasSaveFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return UnknownFrame{Type: envelope.Type}
		}
		return frame
	default:
		return UnknownFrame{Type: envelope.Type}
	}
}
