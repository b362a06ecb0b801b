package erpgw

import (
	"context"
	"fmt"
	"net/http"
)

type permissionResponse struct {
	Granted bool `json:"granted"`
}

// CheckSalesPermission 操作员是否具备销售操作权限（预留、销售订单）
func (c *Client) CheckSalesPermission(ctx context.Context, operatorID string) (bool, error) {
	var resp permissionResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/erp/permissions/sales", operatorID, nil, &resp); err != nil {
		return false, fmt.Errorf("校验销售权限失败: %w", err)
	}
	return resp.Granted, nil
}

// CheckInventoryPermission 操作员是否具备库存操作权限（调拨）
func (c *Client) CheckInventoryPermission(ctx context.Context, operatorID string) (bool, error) {
	var resp permissionResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/erp/permissions/inventory", operatorID, nil, &resp); err != nil {
		return false, fmt.Errorf("校验库存权限失败: %w", err)
	}
	return resp.Granted, nil
}
