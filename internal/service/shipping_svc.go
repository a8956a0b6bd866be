package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"merch_store_v1_202601/internal/model"
)

// ==================== 兜底常量 ====================

const (
	// 目录完全未命中时的固定兜底运费档 (USD)
	flatFirstItemFee      = 7.0
	flatAdditionalItemFee = 5.0

	// 每件最低运费保底，防止脏数据把运费算成 0
	minFeePerUnit = 5.0
)

// ==================== 报价数据结构 ====================

// CartLine 购物车行，同一 SKU 允许出现多行（计价前按数量合并）
type CartLine struct {
	SKU      string `json:"sku" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

// WarningKind 降级类型
type WarningKind string

const (
	WarnSkuMissing   WarningKind = "sku_missing"   // 精确与模糊匹配都未命中，走固定兜底档
	WarnBandMissing  WarningKind = "band_missing"  // 行存在但该分区无有效档，走固定兜底档
	WarnRowFallback  WarningKind = "row_fallback"  // 分区档缺失，改用 ROW 档
	WarnFuzzyMatched WarningKind = "fuzzy_matched" // 精确未命中，用了前缀模糊匹配
	WarnFXDegraded   WarningKind = "fx_degraded"   // 汇率不可用，按 USD 报价
)

// PricingWarning 报价过程中发生的降级事实
// 作为一等返回值暴露，调用方与测试可以直接断言，不必扒日志
type PricingWarning struct {
	Kind   WarningKind `json:"kind"`
	SKU    string      `json:"sku,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

// QuoteOptions 报价选项
type QuoteOptions struct {
	StateISO2     string // 仅 US 分区有意义
	FallbackToRow bool   // 分区档缺失时是否回退 ROW 档
}

// DefaultQuoteOptions 默认选项
func DefaultQuoteOptions() *QuoteOptions {
	return &QuoteOptions{FallbackToRow: true}
}

// Quote 运费报价结果
type Quote struct {
	ShippingPrice  float64          `json:"shipping_price_num"` // 目的货币金额，已向上取整到分
	Currency       string           `json:"currency"`
	CurrencySymbol string           `json:"currency_symbol"`
	Multiplier     float64          `json:"multiplier"`
	BaseUSD        float64          `json:"base_usd"` // 换汇前的 USD 基线（保底后）
	Warnings       []PricingWarning `json:"warnings,omitempty"`
}

// ==================== 运费报价服务 ====================

// ShippingQuoteService 运费与到岸成本计算引擎
// 结账路径的"永不抛错"边界：目录缺数据、汇率失败一律降级出价
type ShippingQuoteService struct {
	table    *RateTable
	matcher  *SkuMatcher
	currency *CurrencyService
}

// NewShippingQuoteService 创建报价服务
func NewShippingQuoteService(table *RateTable, matcher *SkuMatcher, currency *CurrencyService) *ShippingQuoteService {
	return &ShippingQuoteService{
		table:    table,
		matcher:  matcher,
		currency: currency,
	}
}

// ComputeShipping 计算一车货到目的地的运费报价
// 流程：合并行 -> 解析分区 -> 逐 SKU 解析运费档 -> 保底 -> 换汇 -> 向上取整到分
func (s *ShippingQuoteService) ComputeShipping(ctx context.Context, lines []CartLine, destISO3 string, opts *QuoteOptions) Quote {
	if opts == nil {
		opts = DefaultQuoteOptions()
	}

	zone := ResolveZone(destISO3)
	surcharge := zone == model.ZoneUS && IsSurchargeState(opts.StateISO2)

	var warnings []PricingWarning
	var sumUSD float64
	var totalUnits int

	for _, entry := range combineLines(lines) {
		totalUnits += entry.Quantity

		row, lineWarnings := s.resolveRow(ctx, entry.SKU, zone)
		warnings = append(warnings, lineWarnings...)

		band, bandWarnings := resolveBand(row, entry.SKU, zone, opts.FallbackToRow)
		warnings = append(warnings, bandWarnings...)

		lineCost := lineCostUSD(band, entry.Quantity)

		// 附加费按行收一次，不随件数放大
		if surcharge && row != nil && row.Extras.USPostServiceAddedFee != nil {
			lineCost += *row.Extras.USPostServiceAddedFee
		}

		sumUSD += lineCost
	}

	// 保底规则：无论档位算出什么，每件至少 5 USD
	baseUSD := math.Max(sumUSD, minFeePerUnit*float64(totalUnits))

	fx := s.currency.GetMultiplier(ctx, destISO3)
	if expected, ok := ResolveCurrency(destISO3); ok && expected != "USD" && fx.Currency == "USD" {
		warnings = append(warnings, PricingWarning{
			Kind:   WarnFXDegraded,
			Detail: fmt.Sprintf("期望货币 %s，降级按 USD 报价", expected),
		})
	}

	quote := Quote{
		ShippingPrice:  CeilToCent(baseUSD * fx.Multiplier),
		Currency:       fx.Currency,
		CurrencySymbol: fx.CurrencySymbol,
		Multiplier:     fx.Multiplier,
		BaseUSD:        baseUSD,
		Warnings:       warnings,
	}

	if len(warnings) > 0 {
		log.Printf("[Shipping] 报价降级 %d 处 (dest=%s zone=%s): %+v", len(warnings), destISO3, zone, warnings)
	}
	return quote
}

// combineLines 按 SKU 合并重复行，数量求和，保持首次出现顺序
func combineLines(lines []CartLine) []CartLine {
	index := make(map[string]int, len(lines))
	combined := make([]CartLine, 0, len(lines))
	for _, line := range lines {
		sku := strings.ToUpper(strings.TrimSpace(line.SKU))
		if sku == "" || line.Quantity <= 0 {
			continue
		}
		if i, ok := index[sku]; ok {
			combined[i].Quantity += line.Quantity
			continue
		}
		index[sku] = len(combined)
		combined = append(combined, CartLine{SKU: sku, Quantity: line.Quantity})
	}
	return combined
}

// resolveRow 精确查找，未命中转模糊匹配；都失败返回 nil
// 行存储自身的加载失败也吞掉（checkout 不能因为目录挂了而阻塞）
func (s *ShippingQuoteService) resolveRow(ctx context.Context, sku string, zone model.DestZone) (*ShippingRow, []PricingWarning) {
	row, err := s.table.GetRowBySku(ctx, sku)
	if err != nil {
		log.Printf("[Shipping] 行存储不可用: %v", err)
	}
	if row != nil {
		return row, nil
	}

	row, err = s.matcher.BestRowForSku(ctx, sku, zone)
	if err != nil {
		log.Printf("[Shipping] 模糊匹配不可用: %v", err)
	}
	if row != nil {
		return row, []PricingWarning{{
			Kind:   WarnFuzzyMatched,
			SKU:    sku,
			Detail: fmt.Sprintf("按前缀 %s 匹配到 %s", row.SkuPrefix, row.SKU),
		}}
	}

	return nil, []PricingWarning{{Kind: WarnSkuMissing, SKU: sku}}
}

// resolveBand 解析单行在目标分区的运费档
// 分区档首件费缺失时先回退 ROW 档（整档一起换，首续件保持同源），再不行走固定兜底
func resolveBand(row *ShippingRow, sku string, zone model.DestZone, fallbackToRow bool) (Band, []PricingWarning) {
	flat := flatBand()
	if row == nil {
		return flat, nil
	}

	band, _ := row.BandFor(zone)
	if validFee(band.FirstItem) {
		return band, nil
	}

	if fallbackToRow && zone != model.ZoneROW {
		rowBand, ok := row.BandFor(model.ZoneROW)
		if ok && validFee(rowBand.FirstItem) {
			return rowBand, []PricingWarning{{Kind: WarnRowFallback, SKU: sku}}
		}
	}

	return flat, []PricingWarning{{Kind: WarnBandMissing, SKU: sku, Detail: string(zone)}}
}

func flatBand() Band {
	first, additional := flatFirstItemFee, flatAdditionalItemFee
	return Band{FirstItem: &first, AdditionalItem: &additional}
}

func validFee(fee *float64) bool {
	return fee != nil && !math.IsNaN(*fee) && !math.IsInf(*fee, 0)
}

// lineCostUSD 首件 + (数量-1)×续件；续件缺失按 0 计
func lineCostUSD(band Band, quantity int) float64 {
	first := *band.FirstItem
	var additional float64
	if validFee(band.AdditionalItem) {
		additional = *band.AdditionalItem
	}
	return first + math.Max(0, float64(quantity-1))*additional
}
