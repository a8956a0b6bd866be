package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"merch_store_v1_202601/internal/service"
)

// SyncController 目录同步控制器（管理端）
type SyncController struct {
	syncService *service.CatalogSyncService
}

// NewSyncController 创建同步控制器
func NewSyncController(syncService *service.CatalogSyncService) *SyncController {
	return &SyncController{syncService: syncService}
}

// RefreshCatalog 手动触发目录同步
// POST /api/catalog/refresh
// 同步失败的错误信息直接回给管理端——操作者必须看见失败
func (c *SyncController) RefreshCatalog(ctx *gin.Context) {
	result, err := c.syncService.RefreshCatalog(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": err.Error(),
			"data":    result,
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": "目录同步完成",
		"data":    result,
	})
}

// GetSyncState 查询最近同步状态
// GET /api/catalog/sync-state
func (c *SyncController) GetSyncState(ctx *gin.Context) {
	state, err := c.syncService.State(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": state,
	})
}
