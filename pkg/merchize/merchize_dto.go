package merchize

import "encoding/json"

// ==========================================
// DTO: 用于接收 Merchize 目录 API 返回的原始 JSON 数据
// ==========================================

// CatalogPageResp 目录分页接口响应
// GET /catalog/products?page=N&limit=M
type CatalogPageResp struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    CatalogPageData `json:"data"`
}

// CatalogPageData 分页数据体
type CatalogPageData struct {
	Page     int          `json:"page"`
	Limit    int          `json:"limit"`
	Total    int          `json:"total"`
	Products []ProductDTO `json:"products"`
}

// ProductDTO 供应商商品
type ProductDTO struct {
	ID                  string       `json:"_id"`
	SKU                 string       `json:"sku"`
	Slug                string       `json:"slug"`
	Title               string       `json:"title"`
	Attributes          []string     `json:"attributes"`
	ProductionTime      string       `json:"production_time"`
	FulfillmentLocation string       `json:"fulfillment_location"`
	Variants            []VariantDTO `json:"variants"`
}

// VariantDTO 供应商变体
type VariantDTO struct {
	ID             string             `json:"_id"`
	SKU            string             `json:"sku"`
	Attributes     json.RawMessage    `json:"attributes"`
	ShippingPrices []ShippingPriceDTO `json:"shipping_prices"`
	Tiers          []TierDTO          `json:"tiers"`
}

// TierDTO 零售阶梯价
type TierDTO struct {
	Level int     `json:"level"`
	Price float64 `json:"price"`
}

// ShippingPriceDTO 变体到单个分区的运费档
// 费用字段存在两代历史命名：新接口用 *_fee，旧接口用 *_price
// 指针区分"缺数据"(null) 与"免运费"(0)
type ShippingPriceDTO struct {
	To string `json:"to"`

	// 新字段名
	FirstItemFee      *float64 `json:"first_item_fee"`
	AdditionalItemFee *float64 `json:"additional_item_fee"`
	ImportTaxFee      *float64 `json:"import_tax_fee"`

	// 旧字段名
	FirstItemPrice      *float64 `json:"first_item_price"`
	AdditionalItemPrice *float64 `json:"additional_item_price"`
	ImportTax           *float64 `json:"import_tax"`
}

// NormalizedFees 归一化两代字段名，新字段优先、旧字段兜底
// 所有 upsert 逻辑只消费这一个入口，不允许在落库处散落可选链判断
func (p ShippingPriceDTO) NormalizedFees() (first, additional, importTax *float64) {
	first = p.FirstItemFee
	if first == nil {
		first = p.FirstItemPrice
	}
	additional = p.AdditionalItemFee
	if additional == nil {
		additional = p.AdditionalItemPrice
	}
	importTax = p.ImportTaxFee
	if importTax == nil {
		importTax = p.ImportTax
	}
	return first, additional, importTax
}
