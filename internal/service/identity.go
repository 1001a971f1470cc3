package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// GenerateUserID 生成格式为 user_<8位hex>_<unix时间戳> 的用户 ID，
// 用于没有在 join 消息中自带身份的匿名用户。
func GenerateUserID() (string, error) {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes for user id: %w", err)
	}
	return fmt.Sprintf("user_%s_%d", hex.EncodeToString(bytes), time.Now().Unix()), nil
}

// GenerateRoomID 生成格式为 room_<8位hex> 的房间 ID
func GenerateRoomID() (string, error) {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes for room id: %w", err)
	}
	return fmt.Sprintf("room_%s", hex.EncodeToString(bytes)), nil
}

// NewConnectionID 为一条物理连接生成稳定的标识符
func NewConnectionID() string {
	return uuid.NewString()
}

// GenerateDisplayName 生成随机的 "形容词 名词" 显示名
func GenerateDisplayName() string {
	adjectives := []string{"Creative", "Artistic", "Smart", "Quick", "Bold", "Bright", "Cool", "Swift"}
	nouns := []string{"Artist", "Designer", "Creator", "Sketcher", "Drawer", "Painter", "Builder", "Maker"}

	adjIdx, _ := rand.Int(rand.Reader, big.NewInt(int64(len(adjectives))))
	nounIdx, _ := rand.Int(rand.Reader, big.NewInt(int64(len(nouns))))

	return fmt.Sprintf("%s %s", adjectives[adjIdx.Int64()], nouns[nounIdx.Int64()])
}
