package entity

// CartItem 购物车条目：一个被选中的库存单元（lot 的一个 quant）
type CartItem struct {
	ID           string  `json:"id"` // 库存单元ID，购物车内唯一
	LotID        string  `json:"lot_id"`
	LotName      string  `json:"lot_name"`
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	Quantity     float64 `json:"quantity"`
	LocationName string  `json:"location_name"`
	HasHold      bool    `json:"has_hold"`
	HoldInfo     string  `json:"hold_info,omitempty"`
	SellerName   string  `json:"seller_name,omitempty"`
	UnitType     string  `json:"unit_type"`
}

// ProductGroup 按产品分组的购物车视图
type ProductGroup struct {
	Name          string     `json:"name"`
	Lots          []CartItem `json:"lots"`
	TotalQuantity float64    `json:"total_quantity"`
}

// Cart 购物车聚合根。Items 保持插入顺序；派生字段由 Recompute 重算
type Cart struct {
	Items         []CartItem               `json:"items"`
	TotalLots     int                      `json:"total_lots"`
	TotalQuantity float64                  `json:"total_quantity"`
	TypeLabel     string                   `json:"type_label"`
	ProductGroups map[string]*ProductGroup `json:"product_groups"`

	HasSalesPermission     bool `json:"has_sales_permission"`
	HasInventoryPermission bool `json:"has_inventory_permission"`
}

// 单位类型的单复数标签。未登记的类型回退到通用标签
var unitTypeLabels = map[string][2]string{
	"plate":  {"Plate", "Plates"},
	"piece":  {"Piece", "Pieces"},
	"format": {"Format", "Formats"},
	"slab":   {"Slab", "Slabs"},
}

const (
	emptyCartLabel  = "Items"
	mixedTypesLabel = "Units"
)

// Recompute 重算全部派生字段。对 Items 是纯函数；每次变更后必须调用
func (c *Cart) Recompute() {
	c.TotalLots = len(c.Items)

	c.TotalQuantity = 0
	groups := make(map[string]*ProductGroup)
	distinctTypes := make(map[string]struct{})

	for _, item := range c.Items {
		c.TotalQuantity += item.Quantity
		distinctTypes[item.UnitType] = struct{}{}

		g, ok := groups[item.ProductID]
		if !ok {
			// 保留首次出现的产品名
			g = &ProductGroup{Name: item.ProductName}
			groups[item.ProductID] = g
		}
		g.Lots = append(g.Lots, item)
		g.TotalQuantity += item.Quantity
	}
	c.ProductGroups = groups

	c.TypeLabel = typeLabel(distinctTypes, c.TotalLots)
}

func typeLabel(distinctTypes map[string]struct{}, totalLots int) string {
	switch len(distinctTypes) {
	case 0:
		return emptyCartLabel
	case 1:
		var only string
		for t := range distinctTypes {
			only = t
		}
		forms, ok := unitTypeLabels[only]
		if !ok {
			return mixedTypesLabel
		}
		if totalLots == 1 {
			return forms[0]
		}
		return forms[1]
	default:
		return mixedTypesLabel
	}
}

// Contains 单元是否已在购物车中
func (c *Cart) Contains(unitID string) bool {
	for _, item := range c.Items {
		if item.ID == unitID {
			return true
		}
	}
	return false
}

// Find 返回指定单元的条目索引，不存在返回 -1
func (c *Cart) Find(unitID string) int {
	for i, item := range c.Items {
		if item.ID == unitID {
			return i
		}
	}
	return -1
}

// HasHeldItems 购物车内是否存在已被预留的 lot
func (c *Cart) HasHeldItems() bool {
	for _, item := range c.Items {
		if item.HasHold {
			return true
		}
	}
	return false
}

// UnitIDs 按插入顺序返回所有单元ID
func (c *Cart) UnitIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ID)
	}
	return ids
}
