package erpgw

import (
	"context"
	"fmt"
	"net/http"
)

// CreateHolds 从购物车创建预留，逐lot结算，部分失败不会回滚已成功的lot
func (c *Client) CreateHolds(ctx context.Context, operatorID string, req *HoldRequest) (*HoldResult, error) {
	var result HoldResult
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/erp/cart/holds", operatorID, req, &result); err != nil {
		return nil, fmt.Errorf("创建预留失败: %w", err)
	}
	return &result, nil
}

// CreateSaleOrder 从购物车创建销售订单
// 价格低于最低档位时网关返回 needs_authorization 而非订单号
func (c *Client) CreateSaleOrder(ctx context.Context, operatorID string, req *SaleOrderRequest) (*SaleOrderResult, error) {
	var result SaleOrderResult
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/erp/cart/sale-orders", operatorID, req, &result); err != nil {
		return nil, fmt.Errorf("创建销售订单失败: %w", err)
	}
	return &result, nil
}

// CreateTransfer 从购物车创建调拨，按源库位拆分生成多张调拨单
func (c *Client) CreateTransfer(ctx context.Context, operatorID string, req *TransferRequest) (*TransferResult, error) {
	var result TransferResult
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/erp/cart/transfers", operatorID, req, &result); err != nil {
		return nil, fmt.Errorf("创建调拨失败: %w", err)
	}
	return &result, nil
}

// GenerateLabels 为选中单元生成标签批次（ZPL原始数据）
func (c *Client) GenerateLabels(ctx context.Context, operatorID string, req *LabelRequest) (*LabelResult, error) {
	var result LabelResult
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/erp/cart/labels", operatorID, req, &result); err != nil {
		return nil, fmt.Errorf("生成标签失败: %w", err)
	}
	return &result, nil
}

// CreateCounterpart 内联创建客户
func (c *Client) CreateCounterpart(ctx context.Context, operatorID string, req *CreateRecordRequest) (*Candidate, error) {
	var record Candidate
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/erp/catalog/counterparts", operatorID, req, &record); err != nil {
		return nil, fmt.Errorf("创建客户失败: %w", err)
	}
	return &record, nil
}

// CreateProject 内联创建项目
func (c *Client) CreateProject(ctx context.Context, operatorID string, req *CreateRecordRequest) (*Candidate, error) {
	var record Candidate
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/erp/catalog/projects", operatorID, req, &record); err != nil {
		return nil, fmt.Errorf("创建项目失败: %w", err)
	}
	return &record, nil
}

// CreateContact 内联创建联系人
func (c *Client) CreateContact(ctx context.Context, operatorID string, req *CreateRecordRequest) (*Candidate, error) {
	var record Candidate
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/erp/catalog/contacts", operatorID, req, &record); err != nil {
		return nil, fmt.Errorf("创建联系人失败: %w", err)
	}
	return &record, nil
}
