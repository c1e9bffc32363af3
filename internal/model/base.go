package model

import (
	"time"

	"gorm.io/gorm"
)

type BaseModel struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// All 需要自动迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&Shop{},
		&Order{}, &OrderItem{}, &OrderPackage{},
	}
}
