package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// PermissionService 会话权限门。每个用户的销售/库存权限在会话内只解析一次，
// 结果先查内存，再查Redis，最后回源到ERP网关
type PermissionService struct {
	mu    sync.Mutex
	cache map[string]permissionFlags

	gw  ERPGateway
	rdb *redis.Client
	ttl time.Duration
}

type permissionFlags struct {
	Sales     bool
	Inventory bool
}

// NewPermissionService 创建权限服务
func NewPermissionService(gw ERPGateway, rdb *redis.Client, ttl time.Duration) *PermissionService {
	return &PermissionService{
		cache: make(map[string]permissionFlags),
		gw:    gw,
		rdb:   rdb,
		ttl:   ttl,
	}
}

// Load 返回用户的销售和库存权限标志。任何一层解析失败都按无权限处理，
// 宁可少显示操作入口也不能放行未授权的转换
func (s *PermissionService) Load(ctx context.Context, userID string) (bool, bool, error) {
	s.mu.Lock()
	if flags, ok := s.cache[userID]; ok {
		s.mu.Unlock()
		return flags.Sales, flags.Inventory, nil
	}
	s.mu.Unlock()

	if flags, ok := s.loadFromRedis(ctx, userID); ok {
		s.remember(userID, flags)
		return flags.Sales, flags.Inventory, nil
	}

	sales, err := s.gw.CheckSalesPermission(ctx, userID)
	if err != nil {
		return false, false, fmt.Errorf("查询销售权限失败: %w", err)
	}
	inventory, err := s.gw.CheckInventoryPermission(ctx, userID)
	if err != nil {
		return false, false, fmt.Errorf("查询库存权限失败: %w", err)
	}

	flags := permissionFlags{Sales: sales, Inventory: inventory}
	s.remember(userID, flags)
	s.saveToRedis(ctx, userID, flags)
	return sales, inventory, nil
}

// Invalidate 清除用户的权限缓存（角色变更后由管理端调用）
func (s *PermissionService) Invalidate(ctx context.Context, userID string) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
	if s.rdb != nil {
		s.rdb.Del(ctx, permSalesKey(userID), permInventoryKey(userID))
	}
}

func (s *PermissionService) remember(userID string, flags permissionFlags) {
	s.mu.Lock()
	s.cache[userID] = flags
	s.mu.Unlock()
}

func (s *PermissionService) loadFromRedis(ctx context.Context, userID string) (permissionFlags, bool) {
	if s.rdb == nil {
		return permissionFlags{}, false
	}
	sales, err := s.rdb.Get(ctx, permSalesKey(userID)).Result()
	if err != nil {
		return permissionFlags{}, false
	}
	inventory, err := s.rdb.Get(ctx, permInventoryKey(userID)).Result()
	if err != nil {
		return permissionFlags{}, false
	}
	return permissionFlags{Sales: sales == "1", Inventory: inventory == "1"}, true
}

func (s *PermissionService) saveToRedis(ctx context.Context, userID string, flags permissionFlags) {
	if s.rdb == nil {
		return
	}
	s.rdb.Set(ctx, permSalesKey(userID), boolFlag(flags.Sales), s.ttl)
	s.rdb.Set(ctx, permInventoryKey(userID), boolFlag(flags.Inventory), s.ttl)
}

func permSalesKey(userID string) string {
	return "cart:perm:" + userID + ":sales"
}

func permInventoryKey(userID string) string {
	return "cart:perm:" + userID + ":inventory"
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
