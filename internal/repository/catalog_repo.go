package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"merch_store_v1_202601/internal/model"
)

// ==================== 接口定义 ====================

// CatalogRepository 商品目录仓储接口
type CatalogRepository interface {
	// 商品
	UpsertProduct(ctx context.Context, product *model.Product) error
	GetProductByMerchizeID(ctx context.Context, merchizeID string) (*model.Product, error)
	ListProducts(ctx context.Context, page, pageSize int) ([]model.Product, int64, error)
	CountProducts(ctx context.Context) (int64, error)

	// 变体
	UpsertVariant(ctx context.Context, variant *model.ProductVariant) error
	GetVariantByMerchizeID(ctx context.Context, merchizeID string) (*model.ProductVariant, error)
	GetVariantBySKU(ctx context.Context, sku string) (*model.ProductVariant, error)
	ListVariantsWithBands(ctx context.Context) ([]model.ProductVariant, error)
	CountVariants(ctx context.Context) (int64, error)

	// 运费档
	UpsertBand(ctx context.Context, band *model.ShippingBand) error
	GetBandsByVariantID(ctx context.Context, variantID int64) ([]model.ShippingBand, error)
	CountBands(ctx context.Context) (int64, error)
}

// ==================== 仓储实现 ====================

type catalogRepo struct {
	db *gorm.DB
}

// NewCatalogRepository 创建目录仓储
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepo{db: db}
}

// UpsertProduct 按 merchize_id 幂等写入商品
// 冲突时只更新业务字段，内部主键与创建时间保持不变
func (r *catalogRepo) UpsertProduct(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "merchize_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"sku_prefix", "title", "slug",
			"production_region", "production_time", "fulfillment_from",
			"attributes", "updated_at",
		}),
	}).Create(product).Error
}

func (r *catalogRepo) GetProductByMerchizeID(ctx context.Context, merchizeID string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("merchize_id = ?", merchizeID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *catalogRepo) ListProducts(ctx context.Context, page, pageSize int) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Product{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Preload("Variants").
		Order("id ASC").
		Limit(pageSize).
		Offset(offset).
		Find(&products).Error
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (r *catalogRepo) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).Count(&count).Error
	return count, err
}

// UpsertVariant 按 merchize_id 幂等写入变体
func (r *catalogRepo) UpsertVariant(ctx context.Context, variant *model.ProductVariant) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "merchize_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"product_id", "sku",
			"tier1_price", "tier2_price", "tier3_price",
			"raw_attributes", "updated_at",
		}),
	}).Create(variant).Error
}

func (r *catalogRepo) GetVariantByMerchizeID(ctx context.Context, merchizeID string) (*model.ProductVariant, error) {
	var variant model.ProductVariant
	err := r.db.WithContext(ctx).
		Where("merchize_id = ?", merchizeID).
		First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *catalogRepo) GetVariantBySKU(ctx context.Context, sku string) (*model.ProductVariant, error) {
	var variant model.ProductVariant
	err := r.db.WithContext(ctx).
		Preload("Bands").
		Preload("Product").
		Where("sku = ?", sku).
		First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *catalogRepo) ListVariantsWithBands(ctx context.Context) ([]model.ProductVariant, error) {
	var variants []model.ProductVariant
	err := r.db.WithContext(ctx).
		Preload("Bands").
		Preload("Product").
		Order("id ASC").
		Find(&variants).Error
	if err != nil {
		return nil, err
	}
	return variants, nil
}

func (r *catalogRepo) CountVariants(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ProductVariant{}).Count(&count).Error
	return count, err
}

// UpsertBand 按 (variant_id, to_zone) 幂等写入运费档
// 变体被重新同步时不会产生重复档位，也不会遗留旧分区的孤儿行
func (r *catalogRepo) UpsertBand(ctx context.Context, band *model.ShippingBand) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "variant_id"}, {Name: "to_zone"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"first_item", "additional_item", "import_tax_item", "updated_at",
		}),
	}).Create(band).Error
}

func (r *catalogRepo) GetBandsByVariantID(ctx context.Context, variantID int64) ([]model.ShippingBand, error) {
	var bands []model.ShippingBand
	err := r.db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		Find(&bands).Error
	if err != nil {
		return nil, err
	}
	return bands, nil
}

func (r *catalogRepo) CountBands(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ShippingBand{}).Count(&count).Error
	return count, err
}
