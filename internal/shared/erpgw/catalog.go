package erpgw

import (
	"context"
	"fmt"
	"net/http"
)

// SearchCandidates 按类别搜索候选（客户/项目/联系人/服务/产品/库位）
func (c *Client) SearchCandidates(ctx context.Context, operatorID string, field SearchField, term string) ([]Candidate, error) {
	path := queryPath("/api/v1/erp/catalog/search", map[string]string{
		"field": string(field),
		"term":  term,
	})
	var candidates []Candidate
	if err := c.doRequest(ctx, http.MethodGet, path, operatorID, nil, &candidates); err != nil {
		return nil, fmt.Errorf("搜索候选失败(%s): %w", field, err)
	}
	return candidates, nil
}

// ListProductUnits 展开产品的全部库存单元明细
func (c *Client) ListProductUnits(ctx context.Context, operatorID, productID string) ([]ProductUnit, error) {
	var units []ProductUnit
	path := "/api/v1/erp/catalog/products/" + productID + "/units"
	if err := c.doRequest(ctx, http.MethodGet, path, operatorID, nil, &units); err != nil {
		return nil, fmt.Errorf("获取产品明细失败: %w", err)
	}
	return units, nil
}

// ListPricelists 列出可用价格表
func (c *Client) ListPricelists(ctx context.Context, operatorID string) ([]Pricelist, error) {
	var lists []Pricelist
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/erp/catalog/pricelists", operatorID, nil, &lists); err != nil {
		return nil, fmt.Errorf("获取价格表失败: %w", err)
	}
	return lists, nil
}

// GetPriceOptions 获取产品在指定币种下的已发布价格档位
func (c *Client) GetPriceOptions(ctx context.Context, operatorID, productID, currency string) ([]PriceOption, error) {
	path := queryPath("/api/v1/erp/catalog/products/"+productID+"/prices", map[string]string{
		"currency": currency,
	})
	var options []PriceOption
	if err := c.doRequest(ctx, http.MethodGet, path, operatorID, nil, &options); err != nil {
		return nil, fmt.Errorf("获取价格档位失败: %w", err)
	}
	return options, nil
}
