package entity

// WizardKind 转换向导类型
type WizardKind string

const (
	WizardHold     WizardKind = "hold"     // 预留（apartado）
	WizardSale     WizardKind = "sale"     // 销售订单
	WizardTransfer WizardKind = "transfer" // 库间调拨
	WizardLabel    WizardKind = "label"    // 标签批次
)

// StepKind 向导步骤类型，每种步骤有自己的必填校验规则
type StepKind string

const (
	StepCounterpart StepKind = "counterpart" // 客户
	StepProject     StepKind = "project"
	StepContact     StepKind = "contact" // 项目联系人（原型中的 arquitecto）
	StepPricing     StepKind = "pricing"
	StepServices    StepKind = "services"
	StepBackOrders  StepKind = "backorders"
	StepLocation    StepKind = "location" // 调拨目的库位
	StepFormat      StepKind = "format"   // 标签格式
	StepConfirm     StepKind = "confirm"
)

// NamedRef 已选中的业务对象引用
type NamedRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ExtraLine 附加行：服务项目或无库存补单（按数量+单价添加，不选 lot）
type ExtraLine struct {
	ProductID   string  `json:"product_id"`
	DisplayName string  `json:"display_name"`
	UOMName     string  `json:"uom_name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// PriceOption 产品的一个已发布价格档位
type PriceOption struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// WizardOptions 控制向导的步骤组合
type WizardOptions struct {
	Priced         bool `json:"priced"`
	WithServices   bool `json:"with_services"`
	WithBackOrders bool `json:"with_back_orders"`
}

// WizardState 一次转换流程的全部状态。步骤线性推进，CurrentStep 从 1 开始
type WizardState struct {
	ID     string     `json:"id"`
	UserID string     `json:"user_id"`
	Kind   WizardKind `json:"kind"`
	Steps  []StepKind `json:"steps"`

	CurrentStep  int  `json:"current_step"`
	IsSubmitting bool `json:"is_submitting"`

	Counterpart *NamedRef `json:"counterpart,omitempty"`
	Project     *NamedRef `json:"project,omitempty"`
	Contact     *NamedRef `json:"contact,omitempty"`
	Destination *NamedRef `json:"destination,omitempty"`

	Currency      string                   `json:"currency"`
	PricelistID   string                   `json:"pricelist_id,omitempty"`
	ProductPrices map[string]float64       `json:"product_prices"`
	PriceOptions  map[string][]PriceOption `json:"price_options"`

	Services   []ExtraLine `json:"services,omitempty"`
	BackOrders []ExtraLine `json:"back_orders,omitempty"`

	Notes       string `json:"notes"`
	ApplyTax    bool   `json:"apply_tax"`
	LabelFormat string `json:"label_format,omitempty"`
}

// StepsFor 按向导类型和选项展开步骤序列
func StepsFor(kind WizardKind, opts WizardOptions) []StepKind {
	switch kind {
	case WizardTransfer:
		return []StepKind{StepLocation, StepConfirm}
	case WizardLabel:
		return []StepKind{StepFormat}
	case WizardSale:
		return []StepKind{StepCounterpart, StepPricing, StepServices, StepConfirm}
	case WizardHold:
		steps := []StepKind{StepCounterpart, StepProject, StepContact}
		if opts.Priced {
			steps = append(steps, StepPricing)
		}
		if opts.WithServices {
			steps = append(steps, StepServices)
		}
		if opts.WithBackOrders {
			steps = append(steps, StepBackOrders)
		}
		if opts.Priced || opts.WithServices || opts.WithBackOrders {
			steps = append(steps, StepConfirm)
		}
		return steps
	}
	return nil
}

// Current 当前步骤类型
func (w *WizardState) Current() StepKind {
	if w.CurrentStep < 1 || w.CurrentStep > len(w.Steps) {
		return ""
	}
	return w.Steps[w.CurrentStep-1]
}

// OnLastStep 是否处于最后一步（只有最后一步允许提交）
func (w *WizardState) OnLastStep() bool {
	return w.CurrentStep == len(w.Steps)
}

// ValidateStep 校验某一步的必填项。productIDs 为购物车当前产品分组的键集合
// 定价步允许低于最低档位的价格通过（由服务端判定是否转入授权流程）
func (w *WizardState) ValidateStep(step StepKind, productIDs []string) (bool, string) {
	switch step {
	case StepCounterpart:
		if w.Counterpart == nil {
			return false, "必须选择或创建客户"
		}
	case StepProject:
		if w.Project == nil {
			return false, "必须选择或创建项目"
		}
	case StepContact:
		if w.Contact == nil {
			return false, "必须选择或创建联系人"
		}
	case StepLocation:
		if w.Destination == nil {
			return false, "必须选择目的库位"
		}
	case StepPricing:
		for _, pid := range productIDs {
			if w.ProductPrices[pid] <= 0 {
				return false, "存在未配置价格的产品"
			}
		}
	case StepFormat:
		if w.LabelFormat == "" {
			return false, "必须选择标签格式"
		}
	case StepServices, StepBackOrders, StepConfirm:
		// 可选步骤，无必填项
	}
	return true, ""
}
