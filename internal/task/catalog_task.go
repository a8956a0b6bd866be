package task

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"merch_store_v1_202601/internal/service"
)

// ==================== CatalogSyncTask 目录同步任务 ====================

// CatalogSyncTask 目录定时同步
// 同步策略：每日凌晨 4 点全量刷新一次（手动触发走同一条代码路径）
type CatalogSyncTask struct {
	syncService *service.CatalogSyncService
	cron        *cron.Cron
}

// NewCatalogSyncTask 创建目录同步任务
func NewCatalogSyncTask(syncService *service.CatalogSyncService) *CatalogSyncTask {
	return &CatalogSyncTask{
		syncService: syncService,
		cron:        cron.New(cron.WithSeconds()), // 支持秒级控制
	}
}

// Start 启动定时任务
func (t *CatalogSyncTask) Start() {
	// 全量同步：每日凌晨 4 点
	_, _ = t.cron.AddFunc("0 0 4 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()

		log.Println("[CatalogSyncTask] 开始每日目录同步...")
		if _, err := t.syncService.RefreshCatalog(ctx); err != nil {
			log.Printf("[CatalogSyncTask] 每日目录同步失败: %v", err)
		}
	})

	t.cron.Start()
	log.Println("[CatalogSyncTask] 已启动 (每日4点全量)")
}

// Stop 停止任务
func (t *CatalogSyncTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	log.Println("[CatalogSyncTask] 已停止")
}
