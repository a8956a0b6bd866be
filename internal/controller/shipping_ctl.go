package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"merch_store_v1_202601/internal/api/dto"
	"merch_store_v1_202601/internal/service"
)

// ShippingController 运费报价控制器
type ShippingController struct {
	quoteService *service.ShippingQuoteService
}

// NewShippingController 创建运费控制器
func NewShippingController(quoteService *service.ShippingQuoteService) *ShippingController {
	return &ShippingController{quoteService: quoteService}
}

// Estimate 结账运费预估
// POST /api/shipping/estimate
// 报价路径永不返回 500：目录/汇率异常在服务层降级，降级事实在 warnings 里
func (c *ShippingController) Estimate(ctx *gin.Context) {
	var req dto.ShippingEstimateReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	lines := make([]service.CartLine, 0, len(req.Cart))
	for _, line := range req.Cart {
		lines = append(lines, service.CartLine{SKU: line.SKU, Quantity: line.Quantity})
	}

	quote := c.quoteService.ComputeShipping(ctx.Request.Context(), lines, req.CountryISO3, &service.QuoteOptions{
		StateISO2:     req.StateISO2,
		FallbackToRow: true,
	})

	ctx.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": quote,
	})
}
