package entity

import "gorm.io/gorm"

// AutoMigrate 自动迁移购物车表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&BasketLine{},
	)
}
