package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/entity"
	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/repository"
	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/sse"
	"github.com/antonioqueb/inventory-shopping-cart/internal/shared/erpgw"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// CartService 会话内购物车引擎。购物车本体是乐观的内存镜像：
// 变更先落在镜像上并立刻重算聚合，再异步感知持久化结果，
// 只有加入失败需要回滚，移除失败保持已移除状态
type CartService struct {
	mu       sync.Mutex
	sessions map[string]*cartSession

	basket     BasketStore
	catalog    UnitCatalog
	permission PermissionSource
	notifier   Notifier
	logger     *zap.Logger
}

// cartSession 一个操作员的会话状态
type cartSession struct {
	cart entity.Cart

	// 手动输入的数量覆盖，按单元ID记录。只影响尚未入车的单元的默认数量
	overrides map[string]float64

	// 当前浏览的产品，批量选择以它为展开范围
	activeProductID   string
	activeProductName string
}

// NewCartService 创建购物车服务
func NewCartService(basket BasketStore, catalog UnitCatalog, permission PermissionSource, notifier Notifier, logger *zap.Logger) *CartService {
	return &CartService{
		sessions:   make(map[string]*cartSession),
		basket:     basket,
		catalog:    catalog,
		permission: permission,
		notifier:   notifier,
		logger:     logger,
	}
}

func (s *CartService) session(userID string) *cartSession {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &cartSession{overrides: make(map[string]float64)}
		s.sessions[userID] = sess
	}
	return sess
}

// LoadCart 从持久化存储恢复购物车镜像并解析会话权限标志
func (s *CartService) LoadCart(ctx context.Context, userID string) (*entity.Cart, error) {
	lines, err := s.basket.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("加载购物车失败: %w", err)
	}

	items := make([]entity.CartItem, 0, len(lines))
	for i := range lines {
		items = append(items, lines[i].Item())
	}

	sales, inventory, err := s.permission.Load(ctx, userID)
	if err != nil {
		// 权限解析失败按无权限处理，购物车本身仍可用
		s.logger.Warn("加载权限标志失败", zap.String("user_id", userID), zap.Error(err))
		sales, inventory = false, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(userID)
	sess.cart.Items = items
	sess.cart.HasSalesPermission = sales
	sess.cart.HasInventoryPermission = inventory
	sess.cart.Recompute()

	cart := sess.cart
	return &cart, nil
}

// Snapshot 返回购物车镜像的副本
func (s *CartService) Snapshot(userID string) entity.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(userID)
	cart := sess.cart
	cart.Items = append([]entity.CartItem(nil), sess.cart.Items...)
	cart.Recompute()
	return cart
}

// SetActiveProduct 记录当前浏览的产品
func (s *CartService) SetActiveProduct(userID, productID, productName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(userID)
	sess.activeProductID = productID
	sess.activeProductName = productName
}

// ActiveProduct 返回当前浏览的产品ID
func (s *CartService) ActiveProduct(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session(userID).activeProductID
}

// Toggle 对称切换一个单元的选中状态，返回切换后是否在购物车中。
// 加入走乐观路径：先入镜像，持久化失败再回滚并通知；
// 移除不回滚，持久化失败只记录并通知
func (s *CartService) Toggle(ctx context.Context, userID string, unit erpgw.ProductUnit) (bool, error) {
	s.mu.Lock()
	sess := s.session(userID)
	idx := sess.cart.Find(unit.ID)

	if idx >= 0 {
		sess.cart.Items = append(sess.cart.Items[:idx], sess.cart.Items[idx+1:]...)
		sess.cart.Recompute()
		s.mu.Unlock()

		// 行已不存在视为移除成功
		if err := s.basket.Remove(ctx, userID, unit.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("移除购物车行失败",
				zap.String("user_id", userID),
				zap.String("unit_id", unit.ID),
				zap.Error(err))
			s.notifier.Notify(userID, sse.Notice{
				Type:    sse.NoticeDanger,
				Message: fmt.Sprintf("从购物车移除 %s 失败", unit.LotName),
			})
		}
		return false, nil
	}

	quantity, clamped := s.resolveQuantity(sess, unit)
	item := itemFromUnit(unit, quantity)
	sess.cart.Items = append(sess.cart.Items, item)
	sess.cart.Recompute()
	s.mu.Unlock()

	if clamped {
		s.notifier.Notify(userID, sse.Notice{
			Type:    sse.NoticeInfo,
			Message: fmt.Sprintf("%s 可用数量不足，已调整为 %s", unit.LotName, formatQuantity(quantity)),
		})
	}

	line := lineFromItem(userID, item)
	if err := s.basket.Upsert(ctx, &line); err != nil {
		// 回滚乐观加入
		s.mu.Lock()
		if i := sess.cart.Find(unit.ID); i >= 0 {
			sess.cart.Items = append(sess.cart.Items[:i], sess.cart.Items[i+1:]...)
			sess.cart.Recompute()
		}
		s.mu.Unlock()

		s.logger.Error("写入购物车行失败",
			zap.String("user_id", userID),
			zap.String("unit_id", unit.ID),
			zap.Error(err))
		s.notifier.Notify(userID, sse.Notice{
			Type:    sse.NoticeDanger,
			Message: fmt.Sprintf("加入购物车 %s 失败", unit.LotName),
		})
		return false, fmt.Errorf("写入购物车行失败: %w", err)
	}
	return true, nil
}

// resolveQuantity 按覆盖值优先、可用量封顶的规则确定入车数量。调用方持有锁
func (s *CartService) resolveQuantity(sess *cartSession, unit erpgw.ProductUnit) (float64, bool) {
	quantity := unit.Quantity
	if override, ok := sess.overrides[unit.ID]; ok && override > 0 {
		quantity = override
	}
	if quantity > unit.Quantity {
		return unit.Quantity, true
	}
	return quantity, false
}

// SetManualQuantity 记录手动输入的数量。非正数或无法解析的输入清除覆盖；
// 单元已在购物车中时实时套用封顶规则更新数量，失败只记录不回滚
func (s *CartService) SetManualQuantity(ctx context.Context, userID string, unit erpgw.ProductUnit, raw string) error {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	valid := err == nil && value > 0

	s.mu.Lock()
	sess := s.session(userID)
	if !valid {
		delete(sess.overrides, unit.ID)
		s.mu.Unlock()
		return nil
	}
	sess.overrides[unit.ID] = value

	idx := sess.cart.Find(unit.ID)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}

	quantity := value
	if quantity > unit.Quantity {
		quantity = unit.Quantity
	}
	sess.cart.Items[idx].Quantity = quantity
	sess.cart.Recompute()
	item := sess.cart.Items[idx]
	s.mu.Unlock()

	line := lineFromItem(userID, item)
	if err := s.basket.Upsert(ctx, &line); err != nil {
		s.logger.Error("更新购物车行数量失败",
			zap.String("user_id", userID),
			zap.String("unit_id", unit.ID),
			zap.Error(err))
	}
	return nil
}

// DisplayQuantity 返回单元应展示的数量：购物车内数量 > 手动覆盖 > 无
func (s *CartService) DisplayQuantity(userID, unitID string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(userID)
	if idx := sess.cart.Find(unitID); idx >= 0 {
		return sess.cart.Items[idx].Quantity, true
	}
	if override, ok := sess.overrides[unitID]; ok && override > 0 {
		return override, false
	}
	return 0, false
}

// SelectAllActive 把当前产品的所有未入车单元依次加入购物车。
// 逐个串行执行，避免对同一购物车的并发写；完成后失效产品明细缓存
func (s *CartService) SelectAllActive(ctx context.Context, userID string) error {
	return s.bulkToggle(ctx, userID, true)
}

// DeselectAllActive 把当前产品的所有已入车单元依次移出购物车
func (s *CartService) DeselectAllActive(ctx context.Context, userID string) error {
	return s.bulkToggle(ctx, userID, false)
}

func (s *CartService) bulkToggle(ctx context.Context, userID string, selecting bool) error {
	s.mu.Lock()
	productID := s.session(userID).activeProductID
	s.mu.Unlock()
	if productID == "" {
		return nil
	}

	units, err := s.catalog.ListUnits(ctx, userID, productID)
	if err != nil {
		return fmt.Errorf("展开产品单元失败: %w", err)
	}

	for _, unit := range units {
		s.mu.Lock()
		inCart := s.session(userID).cart.Contains(unit.ID)
		s.mu.Unlock()
		if inCart == selecting {
			continue
		}
		// 串行切换：上一个写完成后才开始下一个。失败的单元已回滚并通知，跳过继续
		_, _ = s.Toggle(ctx, userID, unit)
	}

	s.catalog.Invalidate(ctx, productID)
	return nil
}

// AreAllSelected 当前产品的所有单元是否都在购物车中。
// 无激活产品或产品没有单元时返回 false
func (s *CartService) AreAllSelected(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	productID := s.session(userID).activeProductID
	s.mu.Unlock()
	if productID == "" {
		return false, nil
	}

	units, err := s.catalog.ListUnits(ctx, userID, productID)
	if err != nil {
		return false, fmt.Errorf("展开产品单元失败: %w", err)
	}
	if len(units) == 0 {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cart := &s.session(userID).cart
	for _, unit := range units {
		if !cart.Contains(unit.ID) {
			return false, nil
		}
	}
	return true, nil
}

// Clear 清空购物车
func (s *CartService) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	sess := s.session(userID)
	sess.cart.Items = nil
	sess.cart.Recompute()
	s.mu.Unlock()

	if err := s.basket.Clear(ctx, userID); err != nil {
		return fmt.Errorf("清空购物车失败: %w", err)
	}
	return nil
}

// RemoveHeld 移除购物车中所有已被预留的 lot，返回移除数量
func (s *CartService) RemoveHeld(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	sess := s.session(userID)
	kept := sess.cart.Items[:0]
	removed := 0
	for _, item := range sess.cart.Items {
		if item.HasHold {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	sess.cart.Items = kept
	sess.cart.Recompute()
	s.mu.Unlock()

	if _, err := s.basket.RemoveHeld(ctx, userID); err != nil {
		return removed, fmt.Errorf("移除已预留行失败: %w", err)
	}
	return removed, nil
}

// Sync 把内存镜像整体写回持久化存储。转换操作出发前调用，
// 保证后端看到的购物车与操作员看到的一致
func (s *CartService) Sync(ctx context.Context, userID string) error {
	s.mu.Lock()
	sess := s.session(userID)
	lines := make([]entity.BasketLine, 0, len(sess.cart.Items))
	for _, item := range sess.cart.Items {
		lines = append(lines, lineFromItem(userID, item))
	}
	s.mu.Unlock()

	if err := s.basket.ReplaceAll(ctx, userID, lines); err != nil {
		return fmt.Errorf("同步购物车失败: %w", err)
	}
	return nil
}

// InvalidateCartProducts 失效购物车内所有产品的明细缓存。转换成功后调用
func (s *CartService) InvalidateCartProducts(ctx context.Context, userID string) {
	s.mu.Lock()
	sess := s.session(userID)
	seen := make(map[string]struct{})
	products := make([]string, 0, len(sess.cart.Items))
	for _, item := range sess.cart.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		products = append(products, item.ProductID)
	}
	s.mu.Unlock()

	for _, productID := range products {
		s.catalog.Invalidate(ctx, productID)
	}
}

// Export 把购物车导出为按产品分组的Excel
func (s *CartService) Export(userID string) (*excelize.File, string, error) {
	cart := s.Snapshot(userID)

	f := excelize.NewFile()
	sheet := "Cart"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"产品", "Lot", "数量", "库位", "类型", "供应商", "预留"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, item := range cart.Items {
		hold := ""
		if item.HasHold {
			hold = item.HoldInfo
			if hold == "" {
				hold = "已预留"
			}
		}
		values := []interface{}{item.ProductName, item.LotName, item.Quantity, item.LocationName, item.UnitType, item.SellerName, hold}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	f.SetCellValue(sheet, fmt.Sprintf("A%d", row+1), "合计")
	f.SetCellValue(sheet, fmt.Sprintf("C%d", row+1), cart.TotalQuantity)

	filename := fmt.Sprintf("cart_%s.xlsx", userID)
	return f, filename, nil
}

func itemFromUnit(unit erpgw.ProductUnit, quantity float64) entity.CartItem {
	return entity.CartItem{
		ID:           unit.ID,
		LotID:        unit.LotID,
		LotName:      unit.LotName,
		ProductID:    unit.ProductID,
		ProductName:  unit.ProductName,
		Quantity:     quantity,
		LocationName: unit.LocationName,
		HasHold:      unit.HasHold,
		HoldInfo:     unit.HoldInfo,
		SellerName:   unit.SellerName,
		UnitType:     unit.UnitType,
	}
}

func lineFromItem(userID string, item entity.CartItem) entity.BasketLine {
	return entity.BasketLine{
		UserID:       userID,
		UnitID:       item.ID,
		LotID:        item.LotID,
		LotName:      item.LotName,
		ProductID:    item.ProductID,
		ProductName:  item.ProductName,
		Quantity:     item.Quantity,
		LocationName: item.LocationName,
		HasHold:      item.HasHold,
		HoldInfo:     item.HoldInfo,
		SellerName:   item.SellerName,
		UnitType:     item.UnitType,
	}
}

func formatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
