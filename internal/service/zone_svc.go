package service

import (
	"strings"

	"merch_store_v1_202601/internal/model"
)

// ==================== 目的地解析 ====================

// euCountries 欧盟 27 国 ISO-3166 alpha-3
var euCountries = map[string]struct{}{
	"AUT": {}, "BEL": {}, "BGR": {}, "HRV": {}, "CYP": {}, "CZE": {},
	"DNK": {}, "EST": {}, "FIN": {}, "FRA": {}, "DEU": {}, "GRC": {},
	"HUN": {}, "IRL": {}, "ITA": {}, "LVA": {}, "LTU": {}, "LUX": {},
	"MLT": {}, "NLD": {}, "POL": {}, "PRT": {}, "ROU": {}, "SVK": {},
	"SVN": {}, "ESP": {}, "SWE": {},
}

// surchargeStates 美国非本土州/军邮编码，命中时叠加邮政附加费
var surchargeStates = map[string]struct{}{
	"HI": {}, "AK": {}, "PR": {}, "VI": {}, "GU": {},
	"AS": {}, "MP": {}, "AA": {}, "AE": {}, "AP": {},
}

// ResolveZone 将 ISO-3166 alpha-3 国家码解析为运费分区
// 对任意字符串输入都是全函数：未知/空输入一律落到 ROW
func ResolveZone(iso3 string) model.DestZone {
	switch code := strings.ToUpper(strings.TrimSpace(iso3)); {
	case code == "USA":
		return model.ZoneUS
	case code == "CAN":
		return model.ZoneCA
	case code == "AUS":
		return model.ZoneAU
	case code == "GBR":
		return model.ZoneGB
	default:
		if _, ok := euCountries[code]; ok {
			return model.ZoneEU
		}
		return model.ZoneROW
	}
}

// IsSurchargeState 州编码是否属于附加费地区（仅在 US 分区下有意义）
func IsSurchargeState(stateCode string) bool {
	_, ok := surchargeStates[strings.ToUpper(strings.TrimSpace(stateCode))]
	return ok
}

// ==================== 生产地区 ====================

// regionPreference 模糊匹配时的生产地区优先级，越靠前越优先
var regionPreference = []string{"US", "VN", "CN", "EU", "GB", "AU", "CA"}

// NormalizeRegion 归一化生产地区，未识别的值按 US 处理
func NormalizeRegion(region string) string {
	code := strings.ToUpper(strings.TrimSpace(region))
	for _, r := range regionPreference {
		if code == r {
			return r
		}
	}
	return "US"
}

// RegionRank 生产地区的优先级序号，越小越优先
func RegionRank(region string) int {
	code := NormalizeRegion(region)
	for i, r := range regionPreference {
		if code == r {
			return i
		}
	}
	return len(regionPreference)
}
