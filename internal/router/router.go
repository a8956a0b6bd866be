package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"merch_store_v1_202601/internal/controller"
	"merch_store_v1_202601/internal/middleware"
)

// Controllers 控制器集合
type Controllers struct {
	Shipping *controller.ShippingController
	Sync     *controller.SyncController
	Catalog  *controller.CatalogController
}

// SetupRouter 注册所有路由
func SetupRouter(c *Controllers) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		// shipping 运费报价（结账路径）
		shipping := api.Group("/shipping")
		{
			// POST /api/shipping/estimate
			shipping.POST("/estimate", c.Shipping.Estimate)
		}

		// catalog 目录管理（管理端）
		catalog := api.Group("/catalog")
		{
			// POST /api/catalog/refresh
			catalog.POST("/refresh",
				middleware.SyncRateLimit("catalog_refresh", 5*time.Minute),
				c.Sync.RefreshCatalog,
			)
			// GET /api/catalog/sync-state
			catalog.GET("/sync-state", c.Sync.GetSyncState)
			// GET /api/catalog/products
			catalog.GET("/products", c.Catalog.GetProducts)
		}
	}

	return r
}
