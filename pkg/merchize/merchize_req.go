package merchize

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// ==================== 配置 ====================

// MaxPageLimit 供应商单页上限
const MaxPageLimit = 50

type Config struct {
	BaseURL string // 默认 https://bo.merchize.com/bo-api
	APIKey  string
	Timeout time.Duration
}

// ==================== 客户端 ====================

// Client Merchize 目录 API 客户端
type Client struct {
	config *Config
	http   *resty.Client
}

// NewClient 创建客户端
func NewClient(cfg *Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://bo.merchize.com/bo-api"
	}
	if cfg.Timeout == 0 {
		// 拉取整页商品可能比较慢，给 20s
		cfg.Timeout = 20 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetHeader("User-Agent", "Merch-Store-Go/1.0").
		SetHeader("X-API-Key", cfg.APIKey)

	return &Client{config: cfg, http: client}
}

// FetchCatalogPage 拉取一页商品目录
// limit 超过供应商上限时按上限截断
func (c *Client) FetchCatalogPage(ctx context.Context, page, limit int) (*CatalogPageData, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	var res CatalogPageResp
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&res).
		Get("/product/products")

	if err != nil {
		return nil, fmt.Errorf("目录请求失败 (page=%d): %w", page, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("目录接口异常 [%d]: %s", resp.StatusCode(), resp.String())
	}
	if !res.Success {
		return nil, fmt.Errorf("目录接口返回失败: %s", res.Message)
	}

	return &res.Data, nil
}
