package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"merch_store_v1_202601/internal/model"
	"merch_store_v1_202601/internal/repository"
)

// ==================== 运费行数据结构 ====================

// Band 单个分区的运费档
// 空指针表示缺数据，0 是合法费用（免运费）
type Band struct {
	FirstItem      *float64
	AdditionalItem *float64
	ImportTaxItem  *float64
}

// RowExtras 每行的附加字段
// 已识别的字段显式建模，未识别的供应商字段保留在 Unknown 里向前兼容
type RowExtras struct {
	USPostServiceAddedFee *float64
	Unknown               map[string]json.RawMessage
}

// ShippingRow 一个 SKU 的运费记录
type ShippingRow struct {
	SKU              string
	SkuPrefix        string // 为空时该行不参与模糊匹配索引
	ProductName      string
	ProductionRegion string
	Bands            map[model.DestZone]Band
	Extras           RowExtras
}

// BandFor 取指定分区的运费档
func (r *ShippingRow) BandFor(zone model.DestZone) (Band, bool) {
	band, ok := r.Bands[zone]
	return band, ok
}

// ==================== 行来源 ====================

// RowSource 运费行来源，批量数据集与持久化目录统一走这一个接口
type RowSource interface {
	Name() string
	LoadRows(ctx context.Context) ([]ShippingRow, error)
}

// ==================== 批量数据集来源 (JSON 文件) ====================

// DatasetSource 批量 JSON 数据集来源
type DatasetSource struct {
	Path string
}

// NewDatasetSource 创建数据集来源
func NewDatasetSource(path string) *DatasetSource {
	return &DatasetSource{Path: path}
}

func (s *DatasetSource) Name() string { return "dataset:" + s.Path }

// datasetRow 数据集文件的原始行结构
type datasetRow struct {
	SKU                string                     `json:"sku"`
	SkuPrefixAllSheets string                     `json:"sku_prefix_all_sheets"`
	ProductName        string                     `json:"product_name"`
	ProductionRegion   string                     `json:"production_region"`
	Shipping           map[string]datasetBand     `json:"shipping"`
	Extras             map[string]json.RawMessage `json:"extras"`
}

type datasetBand struct {
	FirstItem      *float64 `json:"first_item"`
	AdditionalItem *float64 `json:"additional_item"`
	ImportTaxItem  *float64 `json:"import_tax_item"`
}

// badNumericToken 数据集里混入的非标准数值字面量
// 出现在数值位置时（冒号/逗号/方括号之后）整体替换为 null，视为缺数据
var badNumericToken = regexp.MustCompile(`([:\[,]\s*)(-?Infinity|NaN|None)(\s*[,\]}])`)

// sanitizeDataset 清洗非法数值 token，使其可以被标准 JSON 解析
// 相邻 token 需要多轮替换（正则消耗了右侧分隔符）
func sanitizeDataset(raw []byte) []byte {
	for badNumericToken.Match(raw) {
		raw = badNumericToken.ReplaceAll(raw, []byte("${1}null${3}"))
	}
	return raw
}

func (s *DatasetSource) LoadRows(ctx context.Context) ([]ShippingRow, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("读取数据集失败: %w", err)
	}

	var rawRows []datasetRow
	if err := json.Unmarshal(sanitizeDataset(raw), &rawRows); err != nil {
		return nil, fmt.Errorf("解析数据集失败: %w", err)
	}

	rows := make([]ShippingRow, 0, len(rawRows))
	for _, dr := range rawRows {
		if dr.SKU == "" {
			continue
		}
		rows = append(rows, ShippingRow{
			SKU:              strings.ToUpper(dr.SKU),
			SkuPrefix:        strings.ToUpper(dr.SkuPrefixAllSheets),
			ProductName:      dr.ProductName,
			ProductionRegion: NormalizeRegion(dr.ProductionRegion),
			Bands:            convertDatasetBands(dr.Shipping),
			Extras:           parseExtras(dr.Extras),
		})
	}
	return rows, nil
}

func convertDatasetBands(shipping map[string]datasetBand) map[model.DestZone]Band {
	bands := make(map[model.DestZone]Band, len(shipping))
	for _, zone := range model.AllZones {
		if db, ok := shipping[string(zone)]; ok {
			bands[zone] = Band{
				FirstItem:      db.FirstItem,
				AdditionalItem: db.AdditionalItem,
				ImportTaxItem:  db.ImportTaxItem,
			}
		}
	}
	return bands
}

// parseExtras 拆出已识别的附加字段，其余原样保留
func parseExtras(raw map[string]json.RawMessage) RowExtras {
	extras := RowExtras{}
	for key, val := range raw {
		if key == "us_post_service_added_fee" {
			var fee float64
			if err := json.Unmarshal(val, &fee); err == nil {
				extras.USPostServiceAddedFee = &fee
			}
			continue
		}
		if extras.Unknown == nil {
			extras.Unknown = make(map[string]json.RawMessage)
		}
		extras.Unknown[key] = val
	}
	return extras
}

// ==================== 持久化目录来源 (DB) ====================

// RepoSource 持久化目录来源，读取同步落库的变体与运费档
type RepoSource struct {
	repo repository.CatalogRepository
}

// NewRepoSource 创建持久化目录来源
func NewRepoSource(repo repository.CatalogRepository) *RepoSource {
	return &RepoSource{repo: repo}
}

func (s *RepoSource) Name() string { return "catalog-db" }

func (s *RepoSource) LoadRows(ctx context.Context) ([]ShippingRow, error) {
	variants, err := s.repo.ListVariantsWithBands(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取持久化目录失败: %w", err)
	}

	rows := make([]ShippingRow, 0, len(variants))
	for _, v := range variants {
		if v.SKU == "" {
			continue
		}
		row := ShippingRow{
			SKU:              strings.ToUpper(v.SKU),
			ProductionRegion: "US",
			Bands:            make(map[model.DestZone]Band, len(v.Bands)),
		}
		if v.Product != nil {
			row.SkuPrefix = strings.ToUpper(v.Product.SkuPrefix)
			row.ProductName = v.Product.Title
			row.ProductionRegion = NormalizeRegion(v.Product.ProductionRegion)
		}
		for _, b := range v.Bands {
			row.Bands[b.ToZone] = Band{
				FirstItem:      b.FirstItem,
				AdditionalItem: b.AdditionalItem,
				ImportTaxItem:  b.ImportTaxItem,
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ==================== 运费表（带缓存的行存储） ====================

// RateTable 归一化运费行的进程内视图
// 多个来源按顺序加载，后面的来源按 SKU 覆盖前面的（DB 覆盖数据集）
// 结果在进程内缓存，同步成功后由调用方显式 Invalidate
type RateTable struct {
	sources []RowSource

	mu     sync.RWMutex
	loaded bool
	rows   []ShippingRow
	bySku  map[string]*ShippingRow
}

// NewRateTable 创建运费表
func NewRateTable(sources ...RowSource) *RateTable {
	return &RateTable{sources: sources}
}

// Load 加载全部运费行（带缓存）
// 单个来源失败只告警不中断；全部来源失败才返回错误
func (t *RateTable) Load(ctx context.Context) ([]ShippingRow, error) {
	t.mu.RLock()
	if t.loaded {
		rows := t.rows
		t.mu.RUnlock()
		return rows, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loaded {
		return t.rows, nil
	}

	merged := make(map[string]ShippingRow)
	var order []string
	var lastErr error
	okCount := 0

	for _, src := range t.sources {
		rows, err := src.LoadRows(ctx)
		if err != nil {
			log.Printf("[RateTable] 来源 %s 加载失败: %v", src.Name(), err)
			lastErr = err
			continue
		}
		okCount++
		for _, row := range rows {
			if _, exists := merged[row.SKU]; !exists {
				order = append(order, row.SKU)
			}
			merged[row.SKU] = row
		}
	}

	if okCount == 0 && lastErr != nil {
		return nil, fmt.Errorf("所有运费行来源均不可用: %w", lastErr)
	}

	sort.Strings(order)
	t.rows = make([]ShippingRow, 0, len(order))
	t.bySku = make(map[string]*ShippingRow, len(order))
	for _, sku := range order {
		row := merged[sku]
		t.rows = append(t.rows, row)
	}
	for i := range t.rows {
		t.bySku[t.rows[i].SKU] = &t.rows[i]
	}
	t.loaded = true

	log.Printf("[RateTable] 已加载 %d 行运费数据 (%d/%d 来源可用)", len(t.rows), okCount, len(t.sources))
	return t.rows, nil
}

// GetRowBySku 精确查找，未命中返回 nil
func (t *RateTable) GetRowBySku(ctx context.Context, sku string) (*ShippingRow, error) {
	if _, err := t.Load(ctx); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bySku[strings.ToUpper(strings.TrimSpace(sku))], nil
}

// Invalidate 失效缓存，下次访问重新加载
// 同步成功后必须调用，否则新目录要等进程重启才可见
func (t *RateTable) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loaded = false
	t.rows = nil
	t.bySku = nil
}
