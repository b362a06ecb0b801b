package handler

import (
	"fmt"

	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/service"
	"github.com/antonioqueb/inventory-shopping-cart/internal/shared/erpgw"
	"github.com/gin-gonic/gin"
)

// CartHandler 购物车接口
type CartHandler struct {
	cart    *service.CartService
	catalog *service.CatalogService
}

// NewCartHandler 创建购物车处理器
func NewCartHandler(cart *service.CartService, catalog *service.CatalogService) *CartHandler {
	return &CartHandler{cart: cart, catalog: catalog}
}

// Get 返回购物车镜像（会话初始化时从持久化存储恢复）
// GET /api/v1/cart
func (h *CartHandler) Get(c *gin.Context) {
	userID := GetUserID(c)

	cart, err := h.cart.LoadCart(c.Request.Context(), userID)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, cart)
}

type toggleRequest struct {
	Unit erpgw.ProductUnit `json:"unit" binding:"required"`
}

// Toggle 切换单元的选中状态
// POST /api/v1/cart/toggle
func (h *CartHandler) Toggle(c *gin.Context) {
	userID := GetUserID(c)

	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数无效: "+err.Error())
		return
	}
	if req.Unit.ID == "" {
		BadRequest(c, "缺少单元ID")
		return
	}

	inCart, err := h.cart.Toggle(c.Request.Context(), userID, req.Unit)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, gin.H{
		"in_cart": inCart,
		"cart":    h.cart.Snapshot(userID),
	})
}

type quantityRequest struct {
	Unit  erpgw.ProductUnit `json:"unit" binding:"required"`
	Value string            `json:"value"`
}

// SetQuantity 记录手动输入的数量
// POST /api/v1/cart/quantity
func (h *CartHandler) SetQuantity(c *gin.Context) {
	userID := GetUserID(c)

	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数无效: "+err.Error())
		return
	}
	if req.Unit.ID == "" {
		BadRequest(c, "缺少单元ID")
		return
	}

	if err := h.cart.SetManualQuantity(c.Request.Context(), userID, req.Unit, req.Value); err != nil {
		InternalError(c, err.Error())
		return
	}
	quantity, inCart := h.cart.DisplayQuantity(userID, req.Unit.ID)
	Success(c, gin.H{
		"display_quantity": quantity,
		"in_cart":          inCart,
	})
}

type activeProductRequest struct {
	ProductID   string `json:"product_id" binding:"required"`
	ProductName string `json:"product_name"`
}

// SetActiveProduct 记录当前浏览的产品
// POST /api/v1/cart/active-product
func (h *CartHandler) SetActiveProduct(c *gin.Context) {
	userID := GetUserID(c)

	var req activeProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	h.cart.SetActiveProduct(userID, req.ProductID, req.ProductName)

	allSelected, err := h.cart.AreAllSelected(c.Request.Context(), userID)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, gin.H{"all_selected": allSelected})
}

// SelectAll 把当前产品的全部单元加入购物车
// POST /api/v1/cart/select-all
func (h *CartHandler) SelectAll(c *gin.Context) {
	userID := GetUserID(c)

	if err := h.cart.SelectAllActive(c.Request.Context(), userID); err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, h.cart.Snapshot(userID))
}

// DeselectAll 把当前产品的全部单元移出购物车
// POST /api/v1/cart/deselect-all
func (h *CartHandler) DeselectAll(c *gin.Context) {
	userID := GetUserID(c)

	if err := h.cart.DeselectAllActive(c.Request.Context(), userID); err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, h.cart.Snapshot(userID))
}

// Clear 清空购物车
// POST /api/v1/cart/clear
func (h *CartHandler) Clear(c *gin.Context) {
	userID := GetUserID(c)

	if err := h.cart.Clear(c.Request.Context(), userID); err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, h.cart.Snapshot(userID))
}

// RemoveHeld 移除购物车中已被预留的lot
// POST /api/v1/cart/remove-held
func (h *CartHandler) RemoveHeld(c *gin.Context) {
	userID := GetUserID(c)

	removed, err := h.cart.RemoveHeld(c.Request.Context(), userID)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, gin.H{
		"removed": removed,
		"cart":    h.cart.Snapshot(userID),
	})
}

// Units 返回产品展开后的单元列表
// GET /api/v1/cart/units/:productId
func (h *CartHandler) Units(c *gin.Context) {
	userID := GetUserID(c)
	productID := c.Param("productId")

	units, err := h.catalog.ListUnits(c.Request.Context(), userID, productID)
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, units)
}

// Export 导出购物车Excel
// GET /api/v1/cart/export
func (h *CartHandler) Export(c *gin.Context) {
	userID := GetUserID(c)

	f, filename, err := h.cart.Export(userID)
	if err != nil {
		InternalError(c, err.Error())
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "导出失败: "+err.Error())
	}
}
