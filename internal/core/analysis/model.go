package analysis

// Risk 整体风险等级
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Tier 单条检测的风险层级，由置信度阈值换算
// 时间轴着色与详情面板风险徽章共用同一套阈值
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Detection 检测区间，远端分析服务返回的带置信度的时间片段
// 收到后不可变，顺序保持服务返回的到达顺序
type Detection struct {
	StartTime   float64 `json:"start_time"`  // 开始时间（秒）
	EndTime     float64 `json:"end_time"`    // 结束时间（秒），恒大于开始时间
	Confidence  float64 `json:"confidence"`  // 置信度 [0,1]
	Type        string  `json:"type"`        // 检测类型，如 Physical Altercation
	Description string  `json:"description"` // 描述文本（可能包含上游泄漏的错误信息，展示前需清洗）
}

// Result 一次完整的分析结果
// 每次重新分析整体替换，媒体资源被替换时整体失效
type Result struct {
	Summary       string      `json:"summary"`        // 分析摘要
	TotalDuration float64     `json:"total_duration"` // 视频总时长（秒）
	OverallRisk   Risk        `json:"overall_risk"`   // 整体风险
	Detections    []Detection `json:"detections"`     // 检测区间序列，保持到达顺序
}

// TierFor 置信度换算风险层级
// >=0.8 高，>=0.6 中，其余低
func TierFor(confidence float64) Tier {
	switch {
	case confidence >= 0.8:
		return TierHigh
	case confidence >= 0.6:
		return TierMedium
	default:
		return TierLow
	}
}
