package service

import (
	"context"

	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/entity"
	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/repository"
	"github.com/antonioqueb/inventory-shopping-cart/internal/cart/sse"
	"github.com/antonioqueb/inventory-shopping-cart/internal/config"
	"github.com/antonioqueb/inventory-shopping-cart/internal/shared/erpgw"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ERPGateway ERP网关的固定RPC面。生产实现是 erpgw.Client，测试用假实现
type ERPGateway interface {
	SearchCandidates(ctx context.Context, operatorID string, field erpgw.SearchField, term string) ([]erpgw.Candidate, error)
	ListProductUnits(ctx context.Context, operatorID, productID string) ([]erpgw.ProductUnit, error)
	ListPricelists(ctx context.Context, operatorID string) ([]erpgw.Pricelist, error)
	GetPriceOptions(ctx context.Context, operatorID, productID, currency string) ([]erpgw.PriceOption, error)
	CheckSalesPermission(ctx context.Context, operatorID string) (bool, error)
	CheckInventoryPermission(ctx context.Context, operatorID string) (bool, error)
	CreateHolds(ctx context.Context, operatorID string, req *erpgw.HoldRequest) (*erpgw.HoldResult, error)
	CreateSaleOrder(ctx context.Context, operatorID string, req *erpgw.SaleOrderRequest) (*erpgw.SaleOrderResult, error)
	CreateTransfer(ctx context.Context, operatorID string, req *erpgw.TransferRequest) (*erpgw.TransferResult, error)
	GenerateLabels(ctx context.Context, operatorID string, req *erpgw.LabelRequest) (*erpgw.LabelResult, error)
	CreateCounterpart(ctx context.Context, operatorID string, req *erpgw.CreateRecordRequest) (*erpgw.Candidate, error)
	CreateProject(ctx context.Context, operatorID string, req *erpgw.CreateRecordRequest) (*erpgw.Candidate, error)
	CreateContact(ctx context.Context, operatorID string, req *erpgw.CreateRecordRequest) (*erpgw.Candidate, error)
}

// BasketStore 持久化购物车行的存储面（生产实现是 repository.BasketRepository）
type BasketStore interface {
	ListByUser(ctx context.Context, userID string) ([]entity.BasketLine, error)
	Upsert(ctx context.Context, line *entity.BasketLine) error
	Remove(ctx context.Context, userID, unitID string) error
	Clear(ctx context.Context, userID string) error
	RemoveHeld(ctx context.Context, userID string) (int64, error)
	ReplaceAll(ctx context.Context, userID string, lines []entity.BasketLine) error
}

// Notifier 操作通知的投递面（生产实现是 sse.Hub）
type Notifier interface {
	Notify(userID string, notice sse.Notice)
	PublishDetailUpdate(productID string)
	PublishSearchResults(userID, wizardID, field string, payload interface{})
	PublishDocumentCreated(userID, docType, docID, docName string)
}

// UnitCatalog 产品明细目录：批量选择需要展开当前产品的全部单元，
// 购物车变更后需要显式失效对应产品的明细缓存
type UnitCatalog interface {
	ListUnits(ctx context.Context, operatorID, productID string) ([]erpgw.ProductUnit, error)
	Invalidate(ctx context.Context, productID string)
}

// PermissionSource 会话级权限标志来源
type PermissionSource interface {
	Load(ctx context.Context, userID string) (sales, inventory bool, err error)
}

// LabelStore 标签批次文件的存储面（生产实现是MinIO）
type LabelStore interface {
	Save(ctx context.Context, filename string, data []byte) (url string, err error)
}

// Services 服务集合
type Services struct {
	Cart       *CartService
	Catalog    *CatalogService
	Permission *PermissionService
	Wizard     *WizardService
	Conversion *ConversionService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, rdb *redis.Client, gw *erpgw.Client, hub *sse.Hub, minioClient *minio.Client, cfg *config.Config, logger *zap.Logger) *Services {
	permission := NewPermissionService(gw, rdb, cfg.Cart.PermissionCacheTTL)
	catalog := NewCatalogService(gw, rdb, hub, cfg.Cart.DetailCacheTTL)
	cart := NewCartService(repos.Basket, catalog, permission, hub, logger)
	wizard := NewWizardService(cart, gw, hub, permission, cfg.Cart.SearchDebounce, logger)

	var labels LabelStore
	if minioClient != nil {
		labels = NewMinIOLabelStore(minioClient, cfg.MinIO.Bucket)
	}

	conversion := NewConversionService(cart, wizard, catalog, gw, hub, labels, cfg.Cart.HoldExpiryDays, logger)

	return &Services{
		Cart:       cart,
		Catalog:    catalog,
		Permission: permission,
		Wizard:     wizard,
		Conversion: conversion,
	}
}
