package repository

import (
	"context"
	"errors"

	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BasketRepository struct {
	db *gorm.DB
}

func NewBasketRepository(db *gorm.DB) *BasketRepository {
	return &BasketRepository{db: db}
}

// ListByUser 按加入顺序返回操作员的全部购物车行
func (r *BasketRepository) ListByUser(ctx context.Context, userID string) ([]entity.BasketLine, error) {
	var lines []entity.BasketLine
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at ASC").
		Find(&lines).Error
	return lines, err
}

// Upsert 新增或更新一行。同一 (user, unit) 冲突时只更新数量
func (r *BasketRepository) Upsert(ctx context.Context, line *entity.BasketLine) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "unit_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity"}),
		}).
		Create(line).Error
}

// Remove 删除一行
func (r *BasketRepository) Remove(ctx context.Context, userID, unitID string) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND unit_id = ?", userID, unitID).
		Delete(&entity.BasketLine{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear 清空操作员的购物车
func (r *BasketRepository) Clear(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&entity.BasketLine{}).Error
}

// RemoveHeld 删除已被预留的行，返回删除数量
func (r *BasketRepository) RemoveHeld(ctx context.Context, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND has_hold = ?", userID, true).
		Delete(&entity.BasketLine{})
	return result.RowsAffected, result.Error
}

// ReplaceAll 用内存快照整体替换持久化购物车（转换前的同步）
func (r *BasketRepository) ReplaceAll(ctx context.Context, userID string, lines []entity.BasketLine) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&entity.BasketLine{}).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		return tx.Create(&lines).Error
	})
}

// IsNotFound 是否为未找到错误
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
