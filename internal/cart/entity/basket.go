package entity

import "time"

// BasketLine 持久化购物车行：一个操作员选中的一个库存单元
// 同一操作员同一单元只允许一行（唯一约束），否则聚合会重复计数
type BasketLine struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	UserID       string    `json:"user_id" gorm:"size:64;not null;uniqueIndex:idx_basket_user_unit"`
	UnitID       string    `json:"unit_id" gorm:"size:64;not null;uniqueIndex:idx_basket_user_unit"`
	LotID        string    `json:"lot_id" gorm:"size:64;not null"`
	LotName      string    `json:"lot_name" gorm:"size:128"`
	ProductID    string    `json:"product_id" gorm:"size:64;not null;index"`
	ProductName  string    `json:"product_name" gorm:"size:256"`
	Quantity     float64   `json:"quantity" gorm:"type:decimal(12,4);not null"`
	LocationName string    `json:"location_name" gorm:"size:256"`
	HasHold      bool      `json:"has_hold" gorm:"default:false"`
	HoldInfo     string    `json:"hold_info" gorm:"size:256"`
	SellerName   string    `json:"seller_name" gorm:"size:128"`
	UnitType     string    `json:"unit_type" gorm:"size:32"`
	AddedAt      time.Time `json:"added_at" gorm:"autoCreateTime"`
}

func (BasketLine) TableName() string {
	return "cart_basket_lines"
}

// Item 把持久化行转换为会话内的购物车条目
func (l *BasketLine) Item() CartItem {
	return CartItem{
		ID:           l.UnitID,
		LotID:        l.LotID,
		LotName:      l.LotName,
		ProductID:    l.ProductID,
		ProductName:  l.ProductName,
		Quantity:     l.Quantity,
		LocationName: l.LocationName,
		HasHold:      l.HasHold,
		HoldInfo:     l.HoldInfo,
		SellerName:   l.SellerName,
		UnitType:     l.UnitType,
	}
}
