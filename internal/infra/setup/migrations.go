package setup

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/segfal/realtime-whiteboard-sub002/internal/domain"
)

// MigrateDB 迁移 rooms / sessions / canvas_states 表结构。
// 返回错误以便调用者知道迁移是否成功。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	err := db.AutoMigrate(
		&domain.Room{},
		&domain.Session{},
		&domain.CanvasSnapshot{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}
	return nil
}
