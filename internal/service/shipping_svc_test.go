package service

import (
	"context"
	"testing"
	"time"

	"merch_store_v1_202601/internal/model"
)

// ==================== 测试辅助 ====================

func rowWithFees(sku, prefix string, zone model.DestZone, first, additional float64) ShippingRow {
	return ShippingRow{
		SKU:              sku,
		SkuPrefix:        prefix,
		ProductionRegion: "US",
		Bands: map[model.DestZone]Band{
			zone: {FirstItem: fee(first), AdditionalItem: fee(additional)},
		},
	}
}

// newQuoteService fxBaseURL 为空时给一个必然连不上的地址（USD 目的地不会用到）
func newQuoteService(fxBaseURL string, rows ...ShippingRow) *ShippingQuoteService {
	if fxBaseURL == "" {
		fxBaseURL = "http://127.0.0.1:1"
	}
	table := NewRateTable(&stubSource{name: "stub", rows: rows})
	matcher := NewSkuMatcher(table)
	currency := NewCurrencyService(&FXConfig{BaseURL: fxBaseURL, Timeout: time.Second})
	return NewShippingQuoteService(table, matcher, currency)
}

func hasWarning(quote Quote, kind WarningKind) bool {
	for _, w := range quote.Warnings {
		if w.Kind == kind {
			return true
		}
	}
	return false
}

// ==================== 运费计算 ====================

func TestComputeShipping_ExactHit(t *testing.T) {
	svc := newQuoteService("", rowWithFees("MUG-11OZ", "MUG", model.ZoneUS, 8, 6))

	quote := svc.ComputeShipping(context.Background(),
		[]CartLine{{SKU: "MUG-11OZ", Quantity: 3}}, "USA", nil)

	// 8 + 2*6 = 20
	if quote.BaseUSD != 20 {
		t.Errorf("base = %v, want 20", quote.BaseUSD)
	}
	if quote.ShippingPrice != 20 || quote.Currency != "USD" {
		t.Errorf("quote = %+v, want 20 USD", quote)
	}
	if len(quote.Warnings) != 0 {
		t.Errorf("不应有降级: %+v", quote.Warnings)
	}
}

// 目录完全未命中走固定兜底档，并报 sku_missing
func TestComputeShipping_FlatFallback(t *testing.T) {
	svc := newQuoteService("")

	quote := svc.ComputeShipping(context.Background(),
		[]CartLine{{SKU: "UNKNOWN-SKU", Quantity: 2}}, "USA", nil)

	// 兜底档 7 + 1*5 = 12
	if quote.BaseUSD != 12 {
		t.Errorf("base = %v, want 12", quote.BaseUSD)
	}
	if !hasWarning(quote, WarnSkuMissing) {
		t.Errorf("应报 sku_missing: %+v", quote.Warnings)
	}
}

// 保底规则：每件至少 5 USD，脏数据压不穿
func TestComputeShipping_MinFeeFloor(t *testing.T) {
	svc := newQuoteService("", rowWithFees("STICKER-S", "STICKER", model.ZoneUS, 1, 0.5))

	quote := svc.ComputeShipping(context.Background(),
		[]CartLine{{SKU: "STICKER-S", Quantity: 4}}, "USA", nil)

	// 档位算出 1 + 3*0.5 = 2.5，保底 4*5 = 20
	if quote.BaseUSD != 20 {
		t.Errorf("base = %v, want 20 (保底)", quote.BaseUSD)
	}
}

// 同 SKU 多行先合并再计价：首件只收一次
func TestComputeShipping_CombinesDuplicateLines(t *testing.T) {
	svc := newQuoteService("", rowWithFees("TEE-L", "TEE", model.ZoneUS, 9, 6))

	quote := svc.ComputeShipping(context.Background(), []CartLine{
		{SKU: "TEE-L", Quantity: 1},
		{SKU: "tee-l ", Quantity: 2},
	}, "USA", nil)

	// 合并为 qty=3：9 + 2*6 = 21，而不是两行各收首件
	if quote.BaseUSD != 21 {
		t.Errorf("base = %v, want 21", quote.BaseUSD)
	}
}

// 件数增加运费不能变少（单调性）
func TestComputeShipping_Monotonic(t *testing.T) {
	svc := newQuoteService("", rowWithFees("POSTER-A2", "POSTER", model.ZoneUS, 7, 6))

	prev := 0.0
	for qty := 1; qty <= 6; qty++ {
		quote := svc.ComputeShipping(context.Background(),
			[]CartLine{{SKU: "POSTER-A2", Quantity: qty}}, "USA", nil)
		if quote.BaseUSD < prev {
			t.Errorf("qty=%d base=%v 小于 qty=%d 的 %v", qty, quote.BaseUSD, qty-1, prev)
		}
		prev = quote.BaseUSD
	}
}

// ==================== ROW 回退 ====================

func TestComputeShipping_RowFallback(t *testing.T) {
	// 只有 ROW 档，目的地是 CA 分区
	svc := newQuoteService("", rowWithFees("HAT-NAVY", "HAT", model.ZoneROW, 10, 6))

	quote := svc.ComputeShipping(context.Background(),
		[]CartLine{{SKU: "HAT-NAVY", Quantity: 1}}, "CAN", nil)

	if quote.BaseUSD != 10 {
		t.Errorf("base = %v, want 10 (ROW 档)", quote.BaseUSD)
	}
	if !hasWarning(quote, WarnRowFallback) {
		t.Errorf("应报 row_fallback: %+v", quote.Warnings)
	}
}

func TestComputeShipping_RowFallbackDisabled(t *testing.T) {
	svc := newQuoteService("", rowWithFees("HAT-NAVY", "HAT", model.ZoneROW, 10, 6))

	quote := svc.ComputeShipping(context.Background(),
		[]CartLine{{SKU: "HAT-NAVY", Quantity: 1}}, "CAN",
		&QuoteOptions{FallbackToRow: false})

	// 禁用 ROW 回退后直接走固定兜底档
	if quote.BaseUSD != 7 {
		t.Errorf("base = %v, want 7 (兜底档)", quote.BaseUSD)
	}
	if !hasWarning(quote, WarnBandMissing) {
		t.Errorf("应报 band_missing: %+v", quote.Warnings)
	}
}

// ==================== 偏远州附加费 ====================

func TestComputeShipping_SurchargeState(t *testing.T) {
	row := rowWithFees("MUG-11OZ", "MUG", model.ZoneUS, 8, 6)
	row.Extras.USPostServiceAddedFee = fee(3.5)
	svc := newQuoteService("", row)

	// 附加费按行收一次，不随件数放大：8 + 2*6 + 3.5 = 23.5
	quote := svc.ComputeShipping(context.Background(),
		[]CartLine{{SKU: "MUG-11OZ", Quantity: 3}}, "USA",
		&QuoteOptions{StateISO2: "HI", FallbackToRow: true})
	if quote.BaseUSD != 23.5 {
		t.Errorf("base = %v, want 23.5", quote.BaseUSD)
	}

	// CA 是加州，不是偏远州
	quote = svc.ComputeShipping(context.Background(),
		[]CartLine{{SKU: "MUG-11OZ", Quantity: 3}}, "USA",
		&QuoteOptions{StateISO2: "CA", FallbackToRow: true})
	if quote.BaseUSD != 20 {
		t.Errorf("base = %v, want 20 (加州无附加费)", quote.BaseUSD)
	}
}

// 附加费只在 US 分区生效
func TestComputeShipping_SurchargeOnlyUS(t *testing.T) {
	var hits int32
	ts := newFXServer(t, &hits)
	defer ts.Close()

	row := rowWithFees("MUG-11OZ", "MUG", model.ZoneCA, 8, 6)
	row.Extras.USPostServiceAddedFee = fee(3.5)
	svc := newQuoteService(ts.URL, row)

	quote := svc.ComputeShipping(context.Background(),
		[]CartLine{{SKU: "MUG-11OZ", Quantity: 1}}, "CAN",
		&QuoteOptions{StateISO2: "HI", FallbackToRow: true})

	if quote.BaseUSD != 8 {
		t.Errorf("base = %v, want 8 (非 US 分区不收附加费)", quote.BaseUSD)
	}
}

// ==================== 模糊匹配路径 ====================

func TestComputeShipping_FuzzyMatched(t *testing.T) {
	svc := newQuoteService("", rowWithFees("MUG-11OZ", "MUG", model.ZoneUS, 8, 6))

	quote := svc.ComputeShipping(context.Background(),
		[]CartLine{{SKU: "MUG-15OZ-BLACK", Quantity: 1}}, "USA", nil)

	if quote.BaseUSD != 8 {
		t.Errorf("base = %v, want 8 (模糊匹配到 MUG 行)", quote.BaseUSD)
	}
	if !hasWarning(quote, WarnFuzzyMatched) {
		t.Errorf("应报 fuzzy_matched: %+v", quote.Warnings)
	}
}

// ==================== 换汇 ====================

func TestComputeShipping_CurrencyConversion(t *testing.T) {
	var hits int32
	ts := newFXServer(t, &hits)
	defer ts.Close()

	svc := newQuoteService(ts.URL, rowWithFees("MUG-11OZ", "MUG", model.ZoneEU, 8, 6))

	quote := svc.ComputeShipping(context.Background(),
		[]CartLine{{SKU: "MUG-11OZ", Quantity: 1}}, "DEU", nil)

	// 8 * 0.92 = 7.36
	if quote.Currency != "EUR" || quote.Multiplier != 0.92 {
		t.Errorf("fx = %s/%v, want EUR/0.92", quote.Currency, quote.Multiplier)
	}
	if quote.ShippingPrice != 7.36 {
		t.Errorf("price = %v, want 7.36", quote.ShippingPrice)
	}
	if hasWarning(quote, WarnFXDegraded) {
		t.Errorf("汇率正常时不应报降级: %+v", quote.Warnings)
	}
}

// 汇率挂掉时按 USD 报价并报 fx_degraded，绝不失败
func TestComputeShipping_FXDegraded(t *testing.T) {
	svc := newQuoteService("", rowWithFees("MUG-11OZ", "MUG", model.ZoneEU, 8, 6))

	quote := svc.ComputeShipping(context.Background(),
		[]CartLine{{SKU: "MUG-11OZ", Quantity: 1}}, "DEU", nil)

	if quote.Currency != "USD" || quote.Multiplier != 1 {
		t.Errorf("降级报价 = %+v, want USD/1", quote)
	}
	if quote.ShippingPrice != 8 {
		t.Errorf("price = %v, want 8", quote.ShippingPrice)
	}
	if !hasWarning(quote, WarnFXDegraded) {
		t.Errorf("应报 fx_degraded: %+v", quote.Warnings)
	}
}

// 空购物车与非法行不参与计价
func TestComputeShipping_EmptyCart(t *testing.T) {
	svc := newQuoteService("")

	quote := svc.ComputeShipping(context.Background(), []CartLine{
		{SKU: "", Quantity: 3},
		{SKU: "MUG-11OZ", Quantity: 0},
		{SKU: "MUG-11OZ", Quantity: -1},
	}, "USA", nil)

	if quote.BaseUSD != 0 || quote.ShippingPrice != 0 {
		t.Errorf("空车报价 = %+v, want 0", quote)
	}
}
