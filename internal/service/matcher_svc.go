package service

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/cloudflare/ahocorasick"

	"merch_store_v1_202601/internal/model"
)

// ==================== 模糊 SKU 匹配器 ====================

// SkuMatcher 基于 SKU 前缀的多模式匹配器
// 前缀可以出现在完整 SKU 的任意位置，不限于开头
// 索引构建一次后缓存，目录同步成功后由调用方 Invalidate
type SkuMatcher struct {
	table *RateTable

	mu       sync.RWMutex
	built    bool
	patterns []string                 // 去重后的前缀（大写）
	byPrefix map[string][]ShippingRow // 前缀 -> 共享该前缀的行
	automata *ahocorasick.Matcher
}

// NewSkuMatcher 创建匹配器
func NewSkuMatcher(table *RateTable) *SkuMatcher {
	return &SkuMatcher{table: table}
}

// build 构建前缀自动机（懒加载）
func (m *SkuMatcher) build(ctx context.Context) error {
	m.mu.RLock()
	if m.built {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.built {
		return nil
	}

	rows, err := m.table.Load(ctx)
	if err != nil {
		return err
	}

	byPrefix := make(map[string][]ShippingRow)
	for _, row := range rows {
		prefix := strings.ToUpper(strings.TrimSpace(row.SkuPrefix))
		if prefix == "" {
			// 无前缀的行只参与精确查找
			continue
		}
		byPrefix[prefix] = append(byPrefix[prefix], row)
	}

	patterns := make([]string, 0, len(byPrefix))
	for prefix := range byPrefix {
		patterns = append(patterns, prefix)
	}
	// 固定模式顺序，保证自动机命中下标可复现
	sort.Strings(patterns)

	// 同一前缀下的行按 SKU 排序，兜底平局时结果稳定
	for prefix := range byPrefix {
		rows := byPrefix[prefix]
		sort.Slice(rows, func(i, j int) bool { return rows[i].SKU < rows[j].SKU })
	}

	m.patterns = patterns
	m.byPrefix = byPrefix
	m.automata = ahocorasick.NewStringMatcher(patterns)
	m.built = true

	log.Printf("[SkuMatcher] 前缀索引构建完成，共 %d 个前缀", len(patterns))
	return nil
}

// Invalidate 失效索引，下次查询重新构建
func (m *SkuMatcher) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.built = false
	m.patterns = nil
	m.byPrefix = nil
	m.automata = nil
}

// candidate 参与排序的候选行
type candidate struct {
	row      ShippingRow
	prefix   string
	anchored bool // 前缀命中在 SKU 开头或结尾
	hasBand  bool // 该行有请求分区的运费档
	distance int  // 前缀与完整 SKU 的编辑距离
}

// BestRowForSku 为未精确命中的 SKU 找最佳匹配行
// 排序规则（先命中的规则优先）：
//  1. 命中前缀更长（更具体）
//  2. 前缀锚定在 SKU 首/尾
//  3. 生产地区按固定优先级 [US,VN,CN,EU,GB,AU,CA]
//  4. 行在请求分区有运费档
//  5. 前缀与完整 SKU 的编辑距离更小
//
// 零命中返回 nil，由调用方执行兜底策略
func (m *SkuMatcher) BestRowForSku(ctx context.Context, fullSku string, zone model.DestZone) (*ShippingRow, error) {
	if err := m.build(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sku := strings.ToUpper(strings.TrimSpace(fullSku))
	if sku == "" || m.automata == nil {
		return nil, nil
	}

	hits := m.automata.Match([]byte(sku))
	if len(hits) == 0 {
		return nil, nil
	}

	var candidates []candidate
	for _, idx := range hits {
		prefix := m.patterns[idx]
		anchored := strings.HasPrefix(sku, prefix) || strings.HasSuffix(sku, prefix)
		for _, row := range m.byPrefix[prefix] {
			_, hasBand := row.BandFor(zone)
			candidates = append(candidates, candidate{
				row:      row,
				prefix:   prefix,
				anchored: anchored,
				hasBand:  hasBand,
				distance: levenshtein.ComputeDistance(prefix, sku),
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if len(a.prefix) != len(b.prefix) {
			return len(a.prefix) > len(b.prefix)
		}
		if a.anchored != b.anchored {
			return a.anchored
		}
		ra, rb := RegionRank(a.row.ProductionRegion), RegionRank(b.row.ProductionRegion)
		if ra != rb {
			return ra < rb
		}
		if a.hasBand != b.hasBand {
			return a.hasBand
		}
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		return a.row.SKU < b.row.SKU
	})

	best := candidates[0].row
	return &best, nil
}
