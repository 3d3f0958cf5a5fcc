package analysis

import "testing"

func TestNormalizeDefaults(t *testing.T) {
	// 空响应全部走默认值，时长回退到媒体元素观测值
	out := Normalize(&RawResult{}, 95.5)
	if out.Summary != DefaultSummary {
		t.Errorf("摘要应使用默认值，得到 %q", out.Summary)
	}
	if out.TotalDuration != 95.5 {
		t.Errorf("时长应回退到观测值 95.5，得到 %v", out.TotalDuration)
	}
	if out.OverallRisk != RiskLow {
		t.Errorf("风险应默认 low，得到 %s", out.OverallRisk)
	}
	if out.Detections == nil || len(out.Detections) != 0 {
		t.Errorf("检测序列应为空切片，得到 %v", out.Detections)
	}
}

func TestNormalizeNilRaw(t *testing.T) {
	out := Normalize(nil, 10)
	if out == nil || out.TotalDuration != 10 {
		t.Fatalf("nil 响应也必须产出可用结果: %+v", out)
	}
}

func TestNormalizePartial(t *testing.T) {
	body := []byte(`{
		"summary": "3 scenes detected",
		"overall_risk": "medium",
		"detections": [
			{"start_time": 15.5, "end_time": 18.2, "confidence": 0.89, "type": "Physical Altercation"},
			{"start_time": 20, "end_time": 10, "confidence": 0.5, "type": "Invalid"},
			{"start_time": 45.1, "end_time": 47.8, "confidence": 1.7, "type": "Weapon Detection"}
		]
	}`)
	raw, err := ParseRaw(body)
	if err != nil {
		t.Fatal(err)
	}
	out := Normalize(raw, 120)
	if out.Summary != "3 scenes detected" {
		t.Errorf("摘要不应被覆盖: %q", out.Summary)
	}
	if out.OverallRisk != RiskMedium {
		t.Errorf("风险应为 medium: %s", out.OverallRisk)
	}
	// 非法区间（end<=start）被丢弃
	if len(out.Detections) != 2 {
		t.Fatalf("应剩 2 条有效检测，得到 %d", len(out.Detections))
	}
	// 置信度夹紧到 [0,1]
	if out.Detections[1].Confidence != 1 {
		t.Errorf("置信度应夹紧到 1，得到 %v", out.Detections[1].Confidence)
	}
}

func TestNormalizeLegacyFieldNames(t *testing.T) {
	body := []byte(`{
		"totalDuration": 120,
		"violence_detections": [
			{"start_time": 1, "end_time": 2, "confidence": 0.9, "type": "t"}
		]
	}`)
	raw, err := ParseRaw(body)
	if err != nil {
		t.Fatal(err)
	}
	out := Normalize(raw, 0)
	if out.TotalDuration != 120 {
		t.Errorf("旧字段 totalDuration 应生效: %v", out.TotalDuration)
	}
	if len(out.Detections) != 1 {
		t.Errorf("旧字段 violence_detections 应生效: %d", len(out.Detections))
	}
}

func TestNormalizeUnknownRisk(t *testing.T) {
	risk := "critical"
	out := Normalize(&RawResult{OverallRisk: &risk}, 0)
	if out.OverallRisk != RiskLow {
		t.Errorf("未知风险值应回退 low: %s", out.OverallRisk)
	}
}
