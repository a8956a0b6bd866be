package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"merch_store_v1_202601/internal/model"
)

// ==================== 测试辅助 ====================

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shipping_rates.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入测试数据集失败: %v", err)
	}
	return path
}

// ==================== 数据集解析 ====================

func TestDatasetSource_LoadRows(t *testing.T) {
	path := writeDataset(t, `[
		{
			"sku": "mug-11oz-white",
			"sku_prefix_all_sheets": "mug-11oz",
			"product_name": "White Mug 11oz",
			"production_region": "CN",
			"shipping": {
				"US": {"first_item": 6.5, "additional_item": 3.0},
				"ROW": {"first_item": 9.0, "additional_item": 5.5}
			},
			"extras": {"us_post_service_added_fee": 3.5, "vendor_note": "fragile"}
		}
	]`)

	rows, err := NewDatasetSource(path).LoadRows(context.Background())
	if err != nil {
		t.Fatalf("加载数据集失败: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}

	row := rows[0]
	if row.SKU != "MUG-11OZ-WHITE" {
		t.Errorf("sku = %s, want MUG-11OZ-WHITE (大写归一)", row.SKU)
	}
	if row.SkuPrefix != "MUG-11OZ" {
		t.Errorf("prefix = %s, want MUG-11OZ", row.SkuPrefix)
	}
	if row.ProductionRegion != "CN" {
		t.Errorf("region = %s, want CN", row.ProductionRegion)
	}

	band, ok := row.BandFor(model.ZoneUS)
	if !ok || band.FirstItem == nil || *band.FirstItem != 6.5 {
		t.Errorf("US band = %+v, want first_item 6.5", band)
	}
	if _, ok := row.BandFor(model.ZoneEU); ok {
		t.Error("不应存在 EU band")
	}

	if row.Extras.USPostServiceAddedFee == nil || *row.Extras.USPostServiceAddedFee != 3.5 {
		t.Errorf("附加费 = %v, want 3.5", row.Extras.USPostServiceAddedFee)
	}
	if _, ok := row.Extras.Unknown["vendor_note"]; !ok {
		t.Error("未识别的 extras 字段应保留在 Unknown 里")
	}
}

// 数据集里的非标准数值 token 必须按缺数据处理，不能炸解析器
func TestDatasetSource_BadNumericTokens(t *testing.T) {
	path := writeDataset(t, `[
		{
			"sku": "POSTER-A2",
			"sku_prefix_all_sheets": "POSTER",
			"production_region": "XX",
			"shipping": {
				"US": {"first_item": Infinity, "additional_item": NaN},
				"EU": {"first_item": None, "additional_item": -Infinity},
				"ROW": {"first_item": 8.0, "additional_item": 4.0}
			}
		}
	]`)

	rows, err := NewDatasetSource(path).LoadRows(context.Background())
	if err != nil {
		t.Fatalf("含脏 token 的数据集解析失败: %v", err)
	}

	row := rows[0]
	if row.ProductionRegion != "US" {
		t.Errorf("未识别地区应归一为 US, got %s", row.ProductionRegion)
	}

	us, _ := row.BandFor(model.ZoneUS)
	if us.FirstItem != nil || us.AdditionalItem != nil {
		t.Errorf("脏 token 应视为缺数据, got %+v", us)
	}
	eu, _ := row.BandFor(model.ZoneEU)
	if eu.FirstItem != nil || eu.AdditionalItem != nil {
		t.Errorf("脏 token 应视为缺数据, got %+v", eu)
	}
	row8, _ := row.BandFor(model.ZoneROW)
	if row8.FirstItem == nil || *row8.FirstItem != 8.0 {
		t.Errorf("正常数值不应被误伤, got %+v", row8)
	}
}

func TestSanitizeDataset(t *testing.T) {
	in := `{"a": Infinity, "b": [NaN, None, -Infinity], "c": 1.5, "d": "None of this"}`
	want := `{"a": null, "b": [null, null, null], "c": 1.5, "d": "None of this"}`
	if got := string(sanitizeDataset([]byte(in))); got != want {
		t.Errorf("sanitize 结果:\n got %s\nwant %s", got, want)
	}
}

// ==================== 运费表缓存与覆盖 ====================

func TestRateTable_CachedLoad(t *testing.T) {
	src := &countingSource{rows: []ShippingRow{rowWithBand("A-1", "A", "US", model.ZoneUS)}}
	table := NewRateTable(src)

	for i := 0; i < 3; i++ {
		if _, err := table.Load(context.Background()); err != nil {
			t.Fatalf("加载失败: %v", err)
		}
	}
	if src.calls != 1 {
		t.Errorf("来源被加载 %d 次, want 1 (缓存)", src.calls)
	}

	table.Invalidate()
	if _, err := table.Load(context.Background()); err != nil {
		t.Fatalf("失效后重载失败: %v", err)
	}
	if src.calls != 2 {
		t.Errorf("失效后来源被加载 %d 次, want 2", src.calls)
	}
}

// 后面的来源按 SKU 覆盖前面的（DB 覆盖数据集）
func TestRateTable_LaterSourceOverrides(t *testing.T) {
	seed := rowWithBand("MUG-11OZ", "MUG", "CN", model.ZoneUS)
	override := rowWithBand("MUG-11OZ", "MUG", "US", model.ZoneUS, model.ZoneEU)
	extra := rowWithBand("TEE-BASIC", "TEE", "US", model.ZoneUS)

	table := NewRateTable(
		&stubSource{name: "seed", rows: []ShippingRow{seed}},
		&stubSource{name: "db", rows: []ShippingRow{override, extra}},
	)

	rows, err := table.Load(context.Background())
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	row, err := table.GetRowBySku(context.Background(), "mug-11oz")
	if err != nil || row == nil {
		t.Fatalf("查找失败: %v", err)
	}
	if row.ProductionRegion != "US" {
		t.Errorf("应取覆盖后的行, region = %s, want US", row.ProductionRegion)
	}
	if _, ok := row.BandFor(model.ZoneEU); !ok {
		t.Error("覆盖后的行应有 EU band")
	}
}

// 单个来源失败只降级，不中断整体加载
func TestRateTable_PartialSourceFailure(t *testing.T) {
	table := NewRateTable(
		&stubSource{name: "broken", err: os.ErrNotExist},
		&stubSource{name: "ok", rows: []ShippingRow{rowWithBand("A-1", "A", "US", model.ZoneUS)}},
	)

	rows, err := table.Load(context.Background())
	if err != nil {
		t.Fatalf("部分来源失败不应中断: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1", len(rows))
	}
}

// 全部来源失败才报错
func TestRateTable_AllSourcesFail(t *testing.T) {
	table := NewRateTable(&stubSource{name: "broken", err: os.ErrNotExist})
	if _, err := table.Load(context.Background()); err == nil {
		t.Error("全部来源失败应返回错误")
	}
}

// countingSource 记录加载次数的来源
type countingSource struct {
	rows  []ShippingRow
	calls int
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) LoadRows(ctx context.Context) ([]ShippingRow, error) {
	s.calls++
	return s.rows, nil
}
