package analysis

import (
	"fmt"
	"strings"
)

// 上游服务偶尔把自身的报错文本塞进内容字段（如 "Gemini 404: model not found"）
// 展示前扫描这些标记，命中则用结构化字段合成确定性的替代文案
var summaryNoisyTokens = []string{
	"gemini", "failed", "404", "not found", "not supported", "listmodels", "error",
}

var descriptionNoisyTokens = []string{
	"gemini", "failed", "404", "not found", "not supported", "error",
}

func containsNoisy(s string, tokens []string) bool {
	s = strings.ToLower(s)
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}

// DisplaySummary 返回可展示的摘要
// 命中噪声标记时合成：检测数量 + 整体风险 + 操作提示
func (r *Result) DisplaySummary() string {
	if !containsNoisy(r.Summary, summaryNoisyTokens) && r.Summary != "" {
		return r.Summary
	}
	count := len(r.Detections)
	plural := "s"
	if count == 1 {
		plural = ""
	}
	risk := string(r.OverallRisk)
	if risk != "" {
		risk = strings.ToUpper(risk[:1]) + risk[1:]
	}
	return fmt.Sprintf("Video analysis completed. Detected %d potential violence segment%s. Overall risk: %s. Click timeline highlights for details.",
		count, plural, risk)
}

// DisplayDescription 返回可展示的检测描述
// 描述为空或命中噪声标记时，用类型、时间范围、置信度合成
func (d Detection) DisplayDescription() string {
	raw := strings.TrimSpace(d.Description)
	if raw != "" && !containsNoisy(raw, descriptionNoisyTokens) {
		return raw
	}
	return fmt.Sprintf("Detected %s from %s to %s with %d%% confidence.",
		strings.ToLower(d.Type),
		FormatClock(d.StartTime),
		FormatClock(d.EndTime),
		int(d.Confidence*100+0.5),
	)
}
