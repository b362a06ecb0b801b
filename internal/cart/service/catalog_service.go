package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/antonioqueb/inventory-shopping-cart/internal/shared/erpgw"
	"github.com/redis/go-redis/v9"
)

// CatalogService 产品明细目录。单元列表缓存在Redis中，购物车变更后
// 通过 Invalidate 显式失效并广播 detail_update 事件，由订阅方决定是否重取
type CatalogService struct {
	gw       ERPGateway
	rdb      *redis.Client
	notifier Notifier
	ttl      time.Duration
}

// NewCatalogService 创建目录服务
func NewCatalogService(gw ERPGateway, rdb *redis.Client, notifier Notifier, ttl time.Duration) *CatalogService {
	return &CatalogService{gw: gw, rdb: rdb, notifier: notifier, ttl: ttl}
}

// ListUnits 返回产品的可选单元列表，优先命中缓存
func (s *CatalogService) ListUnits(ctx context.Context, operatorID, productID string) ([]erpgw.ProductUnit, error) {
	if s.rdb != nil {
		raw, err := s.rdb.Get(ctx, unitCacheKey(productID)).Bytes()
		if err == nil {
			var units []erpgw.ProductUnit
			if json.Unmarshal(raw, &units) == nil {
				return units, nil
			}
		}
	}

	units, err := s.gw.ListProductUnits(ctx, operatorID, productID)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(units); err == nil {
			s.rdb.Set(ctx, unitCacheKey(productID), raw, s.ttl)
		}
	}
	return units, nil
}

// Invalidate 失效产品明细缓存并广播更新事件
func (s *CatalogService) Invalidate(ctx context.Context, productID string) {
	if productID == "" {
		return
	}
	if s.rdb != nil {
		s.rdb.Del(ctx, unitCacheKey(productID))
	}
	if s.notifier != nil {
		s.notifier.PublishDetailUpdate(productID)
	}
}

func unitCacheKey(productID string) string {
	return "cart:units:" + productID
}
