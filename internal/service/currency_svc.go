package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"merch_store_v1_202601/pkg/utils"
)

// ==================== 汇率结果 ====================

// FXResult 一次汇率解析结果，取得后不可变
type FXResult struct {
	Multiplier     float64 `json:"multiplier"` // 1 USD 等于多少目标货币
	Currency       string  `json:"currency"`
	CurrencySymbol string  `json:"currency_symbol"`
}

// fallbackFX 任何失败场景的安全兜底：按美元原价报价
// 结账路径宁可报价失真也不能抛错
var fallbackFX = FXResult{Multiplier: 1, Currency: "USD", CurrencySymbol: "$"}

// ==================== 静态映射表 ====================

// eurozoneCountries 欧元区国家，一律强制按 EUR 报价
// （个别映射表会给出历史本币，这里统一覆盖）
var eurozoneCountries = map[string]struct{}{
	"AUT": {}, "BEL": {}, "HRV": {}, "CYP": {}, "EST": {}, "FIN": {},
	"FRA": {}, "DEU": {}, "GRC": {}, "IRL": {}, "ITA": {}, "LVA": {},
	"LTU": {}, "LUX": {}, "MLT": {}, "NLD": {}, "PRT": {}, "SVK": {},
	"SVN": {}, "ESP": {},
}

// countryCurrency ISO-3166 alpha-3 -> ISO-4217
var countryCurrency = map[string]string{
	"USA": "USD", "CAN": "CAD", "AUS": "AUD", "GBR": "GBP", "NZL": "NZD",
	"JPN": "JPY", "KOR": "KRW", "CHN": "CNY", "TWN": "TWD", "HKG": "HKD",
	"SGP": "SGD", "MYS": "MYR", "THA": "THB", "VNM": "VND", "PHL": "PHP",
	"IDN": "IDR", "IND": "INR", "ARE": "AED", "SAU": "SAR", "ISR": "ILS",
	"TUR": "TRY", "ZAF": "ZAR", "EGY": "EGP", "NGA": "NGN", "KEN": "KES",
	"BRA": "BRL", "MEX": "MXN", "ARG": "ARS", "CHL": "CLP", "COL": "COP",
	"PER": "PEN", "CHE": "CHF", "NOR": "NOK", "SWE": "SEK", "DNK": "DKK",
	"ISL": "ISK", "POL": "PLN", "CZE": "CZK", "HUN": "HUF", "RON": "RON",
	"ROU": "RON", "BGR": "BGN", "UKR": "UAH", "RUS": "RUB",
	"AUT": "EUR", "BEL": "EUR", "HRV": "EUR", "CYP": "EUR", "EST": "EUR",
	"FIN": "EUR", "FRA": "EUR", "DEU": "EUR", "GRC": "EUR", "IRL": "EUR",
	"ITA": "EUR", "LVA": "EUR", "LTU": "EUR", "LUX": "EUR", "MLT": "EUR",
	"NLD": "EUR", "PRT": "EUR", "SVK": "EUR", "SVN": "EUR", "ESP": "EUR",
}

// currencySymbols 常用货币符号，缺省回退货币码本身
var currencySymbols = map[string]string{
	"USD": "$", "EUR": "€", "GBP": "£", "JPY": "¥", "CNY": "¥",
	"KRW": "₩", "INR": "₹", "CAD": "CA$", "AUD": "A$", "NZD": "NZ$",
	"HKD": "HK$", "SGD": "S$", "CHF": "CHF", "SEK": "kr", "NOK": "kr",
	"DKK": "kr", "PLN": "zł", "THB": "฿", "VND": "₫", "BRL": "R$",
	"MXN": "MX$", "TRY": "₺", "ILS": "₪", "RUB": "₽", "UAH": "₴",
}

// zeroDecimalCurrencies 无小数位货币，金额取整到整数单位
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "ISK": {}, "JPY": {},
	"KMF": {}, "KRW": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {},
	"VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

var iso3Pattern = regexp.MustCompile(`^[A-Za-z]{3}$`)

// ==================== 汇率服务 ====================

type FXConfig struct {
	BaseURL string // 默认 https://open.er-api.com/v6
	Timeout time.Duration
	TTL     time.Duration // 默认 24h
}

// fxRatesResp 汇率提供方日频接口响应
// GET /latest/USD
type fxRatesResp struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

// CurrencyService 货币换算服务
// 按目的国缓存 24h；任何失败都降级为 USD 原价，绝不向结账路径抛错
type CurrencyService struct {
	config *FXConfig
	http   *resty.Client
	cache  *utils.TTLCache
}

// NewCurrencyService 创建货币换算服务
func NewCurrencyService(cfg *FXConfig) *CurrencyService {
	if cfg == nil {
		cfg = &FXConfig{}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://open.er-api.com/v6"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2)

	return &CurrencyService{
		config: cfg,
		http:   client,
		cache:  utils.NewTTLCache(),
	}
}

// ResolveCurrency 目的国 -> 报价货币
// 欧元区强制 EUR；映射缺失返回 false
func ResolveCurrency(iso3 string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(iso3))
	if _, ok := eurozoneCountries[code]; ok {
		return "EUR", true
	}
	currency, ok := countryCurrency[code]
	return currency, ok
}

// CurrencySymbol 货币符号，未知货币回退货币码
func CurrencySymbol(currency string) string {
	if symbol, ok := currencySymbols[currency]; ok {
		return symbol
	}
	return currency
}

// GetMultiplier 取目的国的汇率乘数（1 USD -> 目标货币）
// 失败策略：非法国家码、缺映射、提供方异常、非正汇率，全部降级为 {1, USD}
func (s *CurrencyService) GetMultiplier(ctx context.Context, iso3 string) FXResult {
	code := strings.ToUpper(strings.TrimSpace(iso3))
	if !iso3Pattern.MatchString(code) {
		log.Printf("[Currency] 非法国家码 %q，按 USD 报价", iso3)
		return fallbackFX
	}

	if cached, ok := s.cache.Get(code); ok {
		return cached.(FXResult)
	}

	result, err := s.lookup(ctx, code)
	if err != nil {
		log.Printf("[Currency] 汇率解析失败 (%s): %v，按 USD 报价", code, err)
		return fallbackFX
	}

	s.cache.Set(code, result, s.config.TTL)
	return result
}

func (s *CurrencyService) lookup(ctx context.Context, iso3 string) (FXResult, error) {
	currency, ok := ResolveCurrency(iso3)
	if !ok {
		return fallbackFX, fmt.Errorf("无货币映射")
	}
	if currency == "USD" {
		return fallbackFX, nil
	}

	var res fxRatesResp
	resp, err := s.http.R().
		SetContext(ctx).
		SetResult(&res).
		Get("/latest/USD")
	if err != nil {
		return fallbackFX, fmt.Errorf("汇率请求失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fallbackFX, fmt.Errorf("汇率接口异常 [%d]", resp.StatusCode())
	}
	if res.Result != "success" {
		return fallbackFX, fmt.Errorf("汇率接口返回失败: %s", res.Result)
	}

	rate, ok := res.Rates[currency]
	if !ok {
		return fallbackFX, fmt.Errorf("不支持的货币 %s", currency)
	}
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fallbackFX, fmt.Errorf("非法汇率 %v (%s)", rate, currency)
	}

	return FXResult{
		Multiplier:     rate,
		Currency:       currency,
		CurrencySymbol: CurrencySymbol(currency),
	}, nil
}

// ==================== 取整策略 ====================

// RemoveOrKeepDecimalPrecision 零售金额取整
// 无小数位货币四舍五入到整数单位；其余货币加 epsilon 后按 round-half-up 保留两位
func RemoveOrKeepDecimalPrecision(currency string, value float64) float64 {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(currency)]; ok {
		return math.Floor(value + 0.5)
	}
	return math.Floor((value+1e-9)*100+0.5) / 100
}

// CeilToCent 向上取整到分，运费换汇后使用（利润保护，绝不向下取整）
func CeilToCent(value float64) float64 {
	return math.Ceil(value*100-1e-9) / 100
}
