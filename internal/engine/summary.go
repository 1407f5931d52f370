package engine

import (
	"fmt"
	"strings"

	"StockSentinel/internal/domain/models"
)

var (
	trendLabels = map[string]string{
		models.TrendGoldenCross: "金叉",
		models.TrendDeathCross:  "死叉",
		models.TrendBullish:     "多头",
		models.TrendBearish:     "空头",
	}
	powerLabels = map[string]string{
		models.PowerSuperStrong: "超强",
		models.PowerStrong:      "强势",
		models.PowerSuperWeak:   "超弱",
		models.PowerWeak:        "弱势",
	}
	divergenceLabels = map[string]string{
		models.DivergenceBottom: "底背驰",
		models.DivergenceTop:    "顶背驰",
	}
	flowLabels = map[string]string{
		models.FlowInflow:  "资金流入",
		models.FlowOutflow: "资金流出",
		models.FlowNeutral: "资金平衡",
	}
	kdjLabels = map[string]string{
		models.KDJOverbought:      "超买",
		models.KDJOverboughtDeath: "超买死叉",
		models.KDJOversold:        "超卖",
		models.KDJOversoldGolden:  "超卖金叉",
		models.KDJNeutral:         "中性",
	}
	volatilityLabels = map[string]string{
		models.VolatilityHigh:   "高波动",
		models.VolatilityLow:    "低波动",
		models.VolatilityNormal: "正常波动",
	}
	bandLabels = map[string]string{
		models.BandAboveUpper: "突破上轨",
		models.BandBelowLower: "跌破下轨",
		models.BandUpperHalf:  "上半区",
		models.BandLowerHalf:  "下半区",
	}
)

func label(m map[string]string, key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return "未知"
}

// buildTechSummary renders the structural tag line attached to each
// processed stock. The bracket grammar is the persisted contract the
// downstream reporters parse.
func buildTechSummary(s *models.ProcessedStock) string {
	ind := s.Indicators
	tags := make([]string, 0, 7)

	macdStatus := label(trendLabels, ind.MACD.Trend)
	if ind.MACD.Power != "" && ind.MACD.Power != models.PowerUnknown {
		macdStatus += "-" + label(powerLabels, ind.MACD.Power)
	}
	macdSupp := "无背驰"
	if v, ok := divergenceLabels[ind.MACD.Divergence]; ok {
		macdSupp = v
	}
	tags = append(tags, fmt.Sprintf("[日线_MACD_%s_%s_0]", macdStatus, macdSupp))

	tags = append(tags, fmt.Sprintf("[日线_OBV_%s_0]", label(flowLabels, ind.OBV.Trend)))
	tags = append(tags, fmt.Sprintf("[日线_KDJ_%s_0]", label(kdjLabels, ind.KDJ.Signal)))

	rsiStatus := "中性"
	switch {
	case ind.RSI > 70:
		rsiStatus = "超买"
	case ind.RSI < 30:
		rsiStatus = "超卖"
	}
	tags = append(tags, fmt.Sprintf("[日线_RSI_%s_%v_0]", rsiStatus, ind.RSI))

	tags = append(tags, fmt.Sprintf("[日线_ATR_%s_0]", label(volatilityLabels, ind.ATR.Volatility)))
	tags = append(tags, fmt.Sprintf("[日线_布林带_%s_0]", label(bandLabels, ind.Bollinger.Position)))

	volSupp := fmt.Sprintf("量比%vx", s.VolumeRatio)
	if s.VolumeRatio < 1.0 {
		shrink := "单缩"
		if s.ContinuousShrink {
			shrink = "连缩"
		}
		volSupp += "_" + shrink
	}
	tags = append(tags, fmt.Sprintf("[日线_量能_%s_%s_0]", s.VolumeLevel, volSupp))

	return strings.Join(tags, " ")
}
