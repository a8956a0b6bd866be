package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"merch_store_v1_202601/internal/repository"
)

// CatalogController 目录查询控制器（管理端）
type CatalogController struct {
	catalogRepo repository.CatalogRepository
}

// NewCatalogController 创建目录控制器
func NewCatalogController(catalogRepo repository.CatalogRepository) *CatalogController {
	return &CatalogController{catalogRepo: catalogRepo}
}

// GetProducts 分页查询已同步的商品
// GET /api/catalog/products?page=1&page_size=20
func (c *CatalogController) GetProducts(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	products, total, err := c.catalogRepo.ListProducts(ctx.Request.Context(), page, pageSize)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": gin.H{
			"total": total,
			"page":  page,
			"list":  products,
		},
	})
}
