package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// ==================== 目的地分区 ====================

// DestZone 运费分区（六个定价目的地）
type DestZone string

const (
	ZoneUS  DestZone = "US"
	ZoneEU  DestZone = "EU"
	ZoneGB  DestZone = "GB"
	ZoneCA  DestZone = "CA"
	ZoneAU  DestZone = "AU"
	ZoneROW DestZone = "ROW" // Rest of World 兜底分区
)

// AllZones 所有分区（固定顺序，便于遍历与落库）
var AllZones = []DestZone{ZoneUS, ZoneEU, ZoneGB, ZoneCA, ZoneAU, ZoneROW}

// ==================== 商品目录（Merchize 同步落库实体） ====================

// Product 供应商商品主表
// 以 merchize_id 作为幂等 upsert 的唯一键，重复同步永远更新同一行
type Product struct {
	BaseModel

	// --- Merchize 核心身份字段 ---
	MerchizeID string `gorm:"size:64;uniqueIndex;not null;comment:供应商侧唯一ID"`

	// --- 商品基本信息 ---
	SkuPrefix        string `gorm:"size:100;index;comment:SKU前缀(模糊匹配用)"`
	Title            string `gorm:"size:255"`
	Slug             string `gorm:"size:255;index"`
	ProductionRegion string `gorm:"size:10;default:US;comment:生产地区"`
	ProductionTime   string `gorm:"size:50;comment:生产时效"`
	FulfillmentFrom  string `gorm:"size:100;comment:履约仓位置"`

	// --- 属性数组 (Postgres Array) ---
	Attributes pq.StringArray `gorm:"type:text[]"`

	// --- 关联关系 ---
	Variants []ProductVariant `gorm:"foreignKey:ProductID"`
}

func (Product) TableName() string {
	return "products"
}

// ProductVariant 商品变体表
type ProductVariant struct {
	BaseModel

	// --- 关联 ---
	ProductID int64    `gorm:"index;not null"`
	Product   *Product `gorm:"foreignKey:ProductID"`

	// --- Merchize 身份字段 ---
	MerchizeID string `gorm:"size:64;uniqueIndex;not null"`
	SKU        string `gorm:"size:100;index;not null"`

	// --- 零售阶梯价 (USD) ---
	Tier1Price float64 `gorm:"default:0"`
	Tier2Price float64 `gorm:"default:0"`
	Tier3Price float64 `gorm:"default:0"`

	// --- 供应商原始属性（回溯用，结构不固定） ---
	RawAttributes datatypes.JSON `gorm:"type:jsonb"`

	// --- 关联关系 ---
	Bands []ShippingBand `gorm:"foreignKey:VariantID"`
}

func (ProductVariant) TableName() string {
	return "product_variants"
}

// ShippingBand 变体到单个分区的运费档
// 唯一键 (variant_id, to_zone)：同一变体同一分区只有一行
// 费用为空指针表示供应商缺数据，0 是合法费用（免运费），二者必须区分
type ShippingBand struct {
	BaseModel

	VariantID int64           `gorm:"not null;uniqueIndex:uk_variant_zone"`
	Variant   *ProductVariant `gorm:"foreignKey:VariantID"`

	ToZone         DestZone `gorm:"size:10;not null;uniqueIndex:uk_variant_zone"`
	FirstItem      *float64 `gorm:"comment:首件运费(USD)"`
	AdditionalItem *float64 `gorm:"comment:续件运费(USD)"`
	ImportTaxItem  *float64 `gorm:"comment:单件进口税(USD)"`
}

func (ShippingBand) TableName() string {
	return "shipping_bands"
}

// ==================== 同步状态 ====================

// SyncStateID 同步状态单例行的固定主键
const SyncStateID = "merchize_catalog"

// CatalogSyncState 目录同步运行状态（单例行）
// last_success_at 仅在整轮同步无错误完成时推进
type CatalogSyncState struct {
	ID            string     `gorm:"primaryKey;size:64"`
	LastPage      int        `gorm:"default:0"`
	LastTotal     int        `gorm:"default:0"`
	LastRunAt     *time.Time `gorm:"comment:最近一次运行时间(成功或失败)"`
	LastSuccessAt *time.Time `gorm:"comment:最近一次成功时间"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (CatalogSyncState) TableName() string {
	return "catalog_sync_states"
}
