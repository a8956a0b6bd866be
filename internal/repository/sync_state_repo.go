package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"merch_store_v1_202601/internal/model"
)

// ==================== 接口定义 ====================

// SyncStateRepository 同步状态仓储接口（单例行）
type SyncStateRepository interface {
	Get(ctx context.Context) (*model.CatalogSyncState, error)
	Save(ctx context.Context, state *model.CatalogSyncState) error
}

// ==================== 仓储实现 ====================

type syncStateRepo struct {
	db *gorm.DB
}

// NewSyncStateRepository 创建同步状态仓储
func NewSyncStateRepository(db *gorm.DB) SyncStateRepository {
	return &syncStateRepo{db: db}
}

// Get 读取单例状态行，不存在时返回零值行（尚未同步过）
func (r *syncStateRepo) Get(ctx context.Context) (*model.CatalogSyncState, error) {
	var state model.CatalogSyncState
	err := r.db.WithContext(ctx).
		Where("id = ?", model.SyncStateID).
		First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.CatalogSyncState{ID: model.SyncStateID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Save 按主键幂等写入状态行
func (r *syncStateRepo) Save(ctx context.Context, state *model.CatalogSyncState) error {
	state.ID = model.SyncStateID
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"last_page", "last_total", "last_run_at", "last_success_at", "updated_at",
		}),
	}).Create(state).Error
}
