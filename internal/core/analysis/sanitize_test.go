package analysis

import (
	"strings"
	"testing"
)

func TestDisplaySummaryLeakedError(t *testing.T) {
	// 上游把报错文本塞进了 summary，必须合成替代文案
	r := Result{
		Summary:     "Gemini 404: model not found",
		OverallRisk: RiskMedium,
		Detections: []Detection{
			{StartTime: 1, EndTime: 2, Confidence: 0.9, Type: "Physical Altercation"},
			{StartTime: 5, EndTime: 6, Confidence: 0.7, Type: "Weapon Detection"},
		},
	}
	got := r.DisplaySummary()
	if strings.Contains(strings.ToLower(got), "gemini") || strings.Contains(got, "404") {
		t.Fatalf("泄漏文本不应展示: %q", got)
	}
	if !strings.Contains(got, "Detected 2 potential violence segments") {
		t.Errorf("合成文案应包含检测数量: %q", got)
	}
	if !strings.Contains(got, "Overall risk: Medium") {
		t.Errorf("合成文案应包含风险等级: %q", got)
	}
}

func TestDisplaySummarySingular(t *testing.T) {
	r := Result{
		Summary:     "listModels failed",
		OverallRisk: RiskLow,
		Detections:  []Detection{{StartTime: 1, EndTime: 2, Confidence: 0.5, Type: "t"}},
	}
	got := r.DisplaySummary()
	if !strings.Contains(got, "1 potential violence segment.") {
		t.Errorf("单数形式错误: %q", got)
	}
}

func TestDisplaySummaryClean(t *testing.T) {
	r := Result{Summary: "Calm footage, nothing detected.", OverallRisk: RiskLow}
	if got := r.DisplaySummary(); got != r.Summary {
		t.Errorf("正常摘要不应被替换: %q", got)
	}
}

func TestDisplayDescription(t *testing.T) {
	d := Detection{
		StartTime:   78.3,
		EndTime:     82.1,
		Confidence:  0.94,
		Type:        "Aggressive Behavior",
		Description: "model not supported",
	}
	got := d.DisplayDescription()
	want := "Detected aggressive behavior from 1:18 to 1:22 with 94% confidence."
	if got != want {
		t.Errorf("合成描述错误:\n got  %q\n want %q", got, want)
	}

	// 空描述同样合成
	d.Description = "   "
	if got := d.DisplayDescription(); got != want {
		t.Errorf("空描述应合成: %q", got)
	}

	// 正常描述原样返回
	d.Description = "Two individuals in close contact."
	if got := d.DisplayDescription(); got != d.Description {
		t.Errorf("正常描述不应被替换: %q", got)
	}
}
