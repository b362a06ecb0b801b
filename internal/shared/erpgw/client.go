package erpgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// =============================================================================
// Client — ERP网关基础客户端
// 提供统一的HTTP请求封装，候选搜索、权限校验、单据创建等子模块共用
// 本服务与ERP之间的全部交互都经过这里，固定的RPC面之外不做任何直连
// =============================================================================

// Client ERP网关客户端
type Client struct {
	baseURL      string       // 网关基础地址
	serviceToken string       // 服务间调用令牌
	httpClient   *http.Client // HTTP客户端
}

// NewClient 创建ERP网关客户端实例
func NewClient(baseURL, serviceToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      baseURL,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseResponse ERP网关统一响应外层
type BaseResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// doRequest 执行ERP网关请求
// 自动添加服务令牌和操作员标识，处理统一错误码
// method: HTTP方法（GET/POST/PUT/DELETE）
// path: API路径（如 /api/v1/erp/cart/holds）
// operatorID: 操作员ID，网关以此确定权限上下文
// body: 请求体（会被JSON序列化，nil则不发送body）
// result: data字段的反序列化目标（nil则丢弃data）
func (c *Client) doRequest(ctx context.Context, method, path, operatorID string, body interface{}, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	if operatorID != "" {
		req.Header.Set("X-Operator-ID", operatorID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应体失败: %w", err)
	}

	var base BaseResponse
	if err := json.Unmarshal(respBody, &base); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if base.Code != 0 {
		return fmt.Errorf("ERP网关错误[%d]: %s (path=%s)", base.Code, base.Message, path)
	}

	if result != nil && len(base.Data) > 0 {
		if err := json.Unmarshal(base.Data, result); err != nil {
			return fmt.Errorf("解析响应数据失败: %w", err)
		}
	}

	return nil
}

func queryPath(path string, params map[string]string) string {
	q := url.Values{}
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
