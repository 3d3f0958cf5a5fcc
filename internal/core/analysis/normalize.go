package analysis

import "encoding/json"

// RawResult 远端分析服务的原始响应
// 字段全部可缺省，服务返回的 JSON 不可信，统一走 Normalize 补默认值
type RawResult struct {
	Summary       *string        `json:"summary"`
	TotalDuration *float64       `json:"total_duration"`
	OverallRisk   *string        `json:"overall_risk"`
	Detections    []RawDetection `json:"detections"`

	// 兼容旧版字段名
	ViolenceDetections []RawDetection `json:"violence_detections"`
	TotalDurationAlt   *float64       `json:"totalDuration"`
}

// RawDetection 原始检测区间
type RawDetection struct {
	StartTime   *float64 `json:"start_time"`
	EndTime     *float64 `json:"end_time"`
	Confidence  *float64 `json:"confidence"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
}

// DefaultSummary 摘要缺失时的通用完成提示
const DefaultSummary = "Video analysis completed."

// ParseRaw 解析服务端 JSON 响应
func ParseRaw(body []byte) (*RawResult, error) {
	var raw RawResult
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

// Normalize 按固定默认值规则归一化原始响应
// observedDuration 是媒体元素观测到的时长，响应缺失 total_duration 时回退使用。
// 归一化规则集中在这里，调用方不得对原始字段做兜底。
func Normalize(raw *RawResult, observedDuration float64) *Result {
	out := Result{
		Summary:       DefaultSummary,
		TotalDuration: observedDuration,
		OverallRisk:   RiskLow,
		Detections:    make([]Detection, 0, 4),
	}
	if raw == nil {
		return &out
	}

	if raw.Summary != nil && *raw.Summary != "" {
		out.Summary = *raw.Summary
	}
	switch {
	case raw.TotalDuration != nil && *raw.TotalDuration > 0:
		out.TotalDuration = *raw.TotalDuration
	case raw.TotalDurationAlt != nil && *raw.TotalDurationAlt > 0:
		out.TotalDuration = *raw.TotalDurationAlt
	}
	if raw.OverallRisk != nil {
		switch Risk(*raw.OverallRisk) {
		case RiskLow, RiskMedium, RiskHigh:
			out.OverallRisk = Risk(*raw.OverallRisk)
		}
	}

	src := raw.Detections
	if len(src) == 0 {
		src = raw.ViolenceDetections
	}
	for _, d := range src {
		det := Detection{
			Type:        d.Type,
			Description: d.Description,
		}
		if d.StartTime != nil {
			det.StartTime = *d.StartTime
		}
		if d.EndTime != nil {
			det.EndTime = *d.EndTime
		}
		if d.Confidence != nil {
			det.Confidence = *d.Confidence
		}
		// 丢弃非法区间，夹紧置信度
		if det.StartTime < 0 || det.EndTime <= det.StartTime {
			continue
		}
		det.Confidence = min(max(det.Confidence, 0), 1)
		out.Detections = append(out.Detections, det)
	}
	return &out
}
