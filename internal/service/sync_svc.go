package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"merch_store_v1_202601/internal/model"
	"merch_store_v1_202601/internal/repository"
	"merch_store_v1_202601/pkg/merchize"
)

// ==================== 同步配置与结果 ====================

const (
	// 供应商分页异常时的硬性保险丝，防止无限翻页
	defaultMaxPages    = 200
	defaultMaxVariants = 50000
)

// SyncResult 一轮同步的结果计数
type SyncResult struct {
	IngestedVariants int `json:"ingested_variants"`
	TotalProducts    int `json:"total_products"`
	Pages            int `json:"pages"`
}

// ==================== 目录同步服务 ====================

// CatalogSyncService 供应商目录同步
// 管理端触发、可安全重跑：所有写入按供应商 ID 幂等 upsert
// 这是核心里唯一"失败必须外抛"的边界——同步失败要让操作者看见
type CatalogSyncService struct {
	client      *merchize.Client
	catalogRepo repository.CatalogRepository
	stateRepo   repository.SyncStateRepository
	table       *RateTable
	matcher     *SkuMatcher

	maxPages    int
	maxVariants int
}

// NewCatalogSyncService 创建同步服务
func NewCatalogSyncService(
	client *merchize.Client,
	catalogRepo repository.CatalogRepository,
	stateRepo repository.SyncStateRepository,
	table *RateTable,
	matcher *SkuMatcher,
) *CatalogSyncService {
	return &CatalogSyncService{
		client:      client,
		catalogRepo: catalogRepo,
		stateRepo:   stateRepo,
		table:       table,
		matcher:     matcher,
		maxPages:    defaultMaxPages,
		maxVariants: defaultMaxVariants,
	}
}

// RefreshCatalog 全量刷新供应商目录
// 顺序翻页，页内商品逐个落库；上一页写完才拉下一页，崩溃时前 k 页已持久化
// 页与页之间检查取消信号
func (s *CatalogSyncService) RefreshCatalog(ctx context.Context) (*SyncResult, error) {
	log.Println("[CatalogSync] 开始同步供应商目录...")
	start := time.Now()

	result := &SyncResult{}
	runErr := s.run(ctx, result)

	// 无论成败都推进 last_run_at；last_success_at 只在成功时推进
	now := time.Now()
	state, stateErr := s.stateRepo.Get(ctx)
	if stateErr != nil {
		log.Printf("[CatalogSync] 读取同步状态失败: %v", stateErr)
		state = &model.CatalogSyncState{ID: model.SyncStateID}
	}
	state.LastPage = result.Pages
	state.LastTotal = result.TotalProducts
	state.LastRunAt = &now
	if runErr == nil {
		state.LastSuccessAt = &now
	}
	if err := s.stateRepo.Save(ctx, state); err != nil {
		log.Printf("[CatalogSync] 写入同步状态失败: %v", err)
	}

	if runErr != nil {
		log.Printf("[CatalogSync] 同步失败 (已入库 %d 变体): %v", result.IngestedVariants, runErr)
		return result, runErr
	}

	// 同步成功后立刻失效内存视图，否则新目录要等进程重启才生效
	s.table.Invalidate()
	s.matcher.Invalidate()

	log.Printf("[CatalogSync] 同步完成: %d 商品 / %d 变体 / %d 页, 耗时 %v",
		result.TotalProducts, result.IngestedVariants, result.Pages, time.Since(start))
	return result, nil
}

// State 读取最近一次同步的运行状态（管理页展示用）
func (s *CatalogSyncService) State(ctx context.Context) (*model.CatalogSyncState, error) {
	return s.stateRepo.Get(ctx)
}

func (s *CatalogSyncService) run(ctx context.Context, result *SyncResult) error {
	page := 1
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("同步被取消: %w", ctx.Err())
		default:
		}

		data, err := s.client.FetchCatalogPage(ctx, page, merchize.MaxPageLimit)
		if err != nil {
			return err
		}

		if len(data.Products) == 0 {
			break
		}

		for i := range data.Products {
			count, err := s.ingestProduct(ctx, &data.Products[i])
			if err != nil {
				return fmt.Errorf("商品 %s 入库失败: %w", data.Products[i].ID, err)
			}
			result.IngestedVariants += count
		}

		result.Pages = page
		result.TotalProducts = data.Total

		limit := data.Limit
		if limit <= 0 {
			limit = merchize.MaxPageLimit
		}
		lastPage := (data.Total + limit - 1) / limit
		if page >= lastPage {
			break
		}

		if page >= s.maxPages || result.IngestedVariants >= s.maxVariants {
			log.Printf("[CatalogSync] 触发翻页保险丝 (page=%d, variants=%d)，提前结束", page, result.IngestedVariants)
			break
		}
		page++
	}
	return nil
}

// ingestProduct 落库单个商品及其变体、运费档
func (s *CatalogSyncService) ingestProduct(ctx context.Context, dto *merchize.ProductDTO) (int, error) {
	if dto.ID == "" {
		return 0, nil
	}

	product := &model.Product{
		MerchizeID:       dto.ID,
		SkuPrefix:        strings.ToUpper(dto.SKU),
		Title:            dto.Title,
		Slug:             dto.Slug,
		ProductionRegion: regionFromLocation(dto.FulfillmentLocation),
		ProductionTime:   dto.ProductionTime,
		FulfillmentFrom:  dto.FulfillmentLocation,
		Attributes:       pq.StringArray(dto.Attributes),
	}
	if err := s.catalogRepo.UpsertProduct(ctx, product); err != nil {
		return 0, err
	}

	// upsert 冲突路径下主键不回填，重新捞一次拿内部 ID
	stored, err := s.catalogRepo.GetProductByMerchizeID(ctx, dto.ID)
	if err != nil {
		return 0, err
	}

	ingested := 0
	for i := range dto.Variants {
		if err := s.ingestVariant(ctx, stored.ID, &dto.Variants[i]); err != nil {
			return ingested, err
		}
		ingested++
	}
	return ingested, nil
}

func (s *CatalogSyncService) ingestVariant(ctx context.Context, productID int64, dto *merchize.VariantDTO) error {
	if dto.ID == "" {
		return nil
	}

	variant := &model.ProductVariant{
		ProductID:  productID,
		MerchizeID: dto.ID,
		SKU:        strings.ToUpper(dto.SKU),
	}
	for _, tier := range dto.Tiers {
		switch tier.Level {
		case 1:
			variant.Tier1Price = tier.Price
		case 2:
			variant.Tier2Price = tier.Price
		case 3:
			variant.Tier3Price = tier.Price
		}
	}
	if len(dto.Attributes) > 0 {
		variant.RawAttributes = datatypes.JSON(dto.Attributes)
	}

	if err := s.catalogRepo.UpsertVariant(ctx, variant); err != nil {
		return err
	}
	stored, err := s.catalogRepo.GetVariantByMerchizeID(ctx, dto.ID)
	if err != nil {
		return err
	}

	for _, price := range dto.ShippingPrices {
		zone, ok := parseZoneLabel(price.To)
		if !ok {
			log.Printf("[CatalogSync] 未识别的分区标签 %q (variant=%s)，跳过", price.To, dto.ID)
			continue
		}
		first, additional, importTax := price.NormalizedFees()
		band := &model.ShippingBand{
			VariantID:      stored.ID,
			ToZone:         zone,
			FirstItem:      first,
			AdditionalItem: additional,
			ImportTaxItem:  importTax,
		}
		if err := s.catalogRepo.UpsertBand(ctx, band); err != nil {
			return err
		}
	}
	return nil
}

// parseZoneLabel 供应商分区标签 -> 内部分区
func parseZoneLabel(label string) (model.DestZone, bool) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "US":
		return model.ZoneUS, true
	case "EU":
		return model.ZoneEU, true
	case "GB", "UK":
		return model.ZoneGB, true
	case "CA":
		return model.ZoneCA, true
	case "AU":
		return model.ZoneAU, true
	case "ROW", "WW", "REST_OF_WORLD":
		return model.ZoneROW, true
	default:
		return "", false
	}
}

// regionFromLocation 从履约仓位置推断生产地区（如 "VN-02" -> VN）
func regionFromLocation(location string) string {
	code := strings.ToUpper(strings.TrimSpace(location))
	for sep := range code {
		if code[sep] == '-' || code[sep] == '_' || code[sep] == ' ' {
			code = code[:sep]
			break
		}
	}
	return NormalizeRegion(code)
}
