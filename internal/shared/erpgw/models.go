package erpgw

// SearchField 候选搜索的目标类别
type SearchField string

const (
	FieldCounterpart SearchField = "counterpart"
	FieldProject     SearchField = "project"
	FieldContact     SearchField = "contact"
	FieldService     SearchField = "service"
	FieldProduct     SearchField = "product"
	FieldLocation    SearchField = "location"
)

// Candidate 一条候选搜索结果
type Candidate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	VAT         string `json:"vat,omitempty"`
	Ref         string `json:"ref,omitempty"`
}

// Label 用于展示的名称，优先 display_name
func (c Candidate) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Name
}

// ProductUnit 某产品展开后的一个库存单元（lot明细行）
type ProductUnit struct {
	ID           string  `json:"id"`
	LotID        string  `json:"lot_id"`
	LotName      string  `json:"lot_name"`
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	Quantity     float64 `json:"quantity"` // 可用数量
	LocationName string  `json:"location_name"`
	HasHold      bool    `json:"has_hold"`
	HoldInfo     string  `json:"hold_info,omitempty"`
	SellerName   string  `json:"seller_name,omitempty"`
	UnitType     string  `json:"unit_type"`
}

// PriceOption 产品在某币种下的一个已发布价格档位
type PriceOption struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Pricelist 价格表（币种维度）
type Pricelist struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// ExtraLine 服务项目或补单行
type ExtraLine struct {
	ProductID   string  `json:"product_id"`
	DisplayName string  `json:"display_name"`
	UOMName     string  `json:"uom_name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// HoldRequest 从购物车创建预留
type HoldRequest struct {
	CounterpartID string             `json:"counterpart_id"`
	ProjectID     string             `json:"project_id"`
	ContactID     string             `json:"contact_id"`
	UnitIDs       []string           `json:"unit_ids"`
	Notes         string             `json:"notes"`
	Currency      string             `json:"currency"`
	ProductPrices map[string]float64 `json:"product_prices,omitempty"`
	Services      []ExtraLine        `json:"services,omitempty"`
	BackOrders    []ExtraLine        `json:"back_orders,omitempty"`
	ExpiresAt     string             `json:"expires_at,omitempty"` // RFC3339
}

// FailedUnit 单个失败的单元及原因
type FailedUnit struct {
	Label string `json:"label"`
	Error string `json:"error"`
}

// HoldResult 预留创建结果，成功与失败可同时出现
type HoldResult struct {
	SuccessCount       int          `json:"success_count"`
	ErrorCount         int          `json:"error_count"`
	Failed             []FailedUnit `json:"failed,omitempty"`
	NeedsAuthorization bool         `json:"needs_authorization,omitempty"`
	Message            string       `json:"message,omitempty"`
	OrderID            string       `json:"order_id,omitempty"`
}

// SaleLine 销售订单行（由产品分组重建）
type SaleLine struct {
	ProductID    string   `json:"product_id"`
	Quantity     float64  `json:"quantity"`
	UnitPrice    float64  `json:"unit_price"`
	SelectedLots []string `json:"selected_lots"`
}

// SaleOrderRequest 从购物车创建销售订单
type SaleOrderRequest struct {
	CounterpartID string      `json:"counterpart_id"`
	ProjectID     string      `json:"project_id,omitempty"`
	ContactID     string      `json:"contact_id,omitempty"`
	Lines         []SaleLine  `json:"lines"`
	Services      []ExtraLine `json:"services,omitempty"`
	Notes         string      `json:"notes"`
	PricelistID   string      `json:"pricelist_id"`
	ApplyTax      bool        `json:"apply_tax"`
}

// SaleOrderResult 销售订单创建结果
type SaleOrderResult struct {
	Success            bool   `json:"success"`
	OrderID            string `json:"order_id,omitempty"`
	OrderName          string `json:"order_name,omitempty"`
	NeedsAuthorization bool   `json:"needs_authorization,omitempty"`
	Message            string `json:"message,omitempty"`
}

// TransferRequest 从购物车创建调拨
type TransferRequest struct {
	UnitIDs               []string `json:"unit_ids"`
	DestinationLocationID string   `json:"destination_location_id"`
	Notes                 string   `json:"notes"`
}

// Picking 生成的调拨单
type Picking struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	OriginLocation string `json:"origin_location"`
}

// TransferResult 调拨创建结果
type TransferResult struct {
	Success  bool      `json:"success"`
	Pickings []Picking `json:"pickings"`
}

// LabelRequest 生成标签批次
type LabelRequest struct {
	UnitIDs  []string `json:"unit_ids"`
	FormatID string   `json:"format_id"`
}

// LabelResult 标签批次生成结果
type LabelResult struct {
	Success      bool   `json:"success"`
	Filename     string `json:"filename,omitempty"`
	RawLabelData string `json:"raw_label_data,omitempty"`
	Message      string `json:"message,omitempty"`
}

// CreateRecordRequest 内联创建客户/项目/联系人
type CreateRecordRequest struct {
	Name string `json:"name"`
	VAT  string `json:"vat,omitempty"`
	Ref  string `json:"ref,omitempty"`
}
