package dto

// ==================== 运费报价 ====================

// CartLineReq 购物车行
type CartLineReq struct {
	SKU      string `json:"sku" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

// ShippingEstimateReq 运费报价请求
type ShippingEstimateReq struct {
	Cart        []CartLineReq `json:"cart" binding:"required,min=1,dive"`
	CountryISO3 string        `json:"country_iso3" binding:"required,len=3"`
	StateISO2   string        `json:"state_iso2"`
}
