package analysis

import "fmt"

// timecodeFPS 时间码帧数换算的假定帧率
const timecodeFPS = 30

// TimeForOffset 像素偏移到播放时间的线性映射
// 纯函数，悬停预览与点击跳转共用；结果始终夹在 [0, duration]
func TimeForOffset(pixelOffset, trackWidth, duration float64) float64 {
	if trackWidth <= 0 || duration <= 0 {
		return 0
	}
	t := pixelOffset / trackWidth * duration
	return min(max(t, 0), duration)
}

// DetectionAt 返回第一个满足 start<=t<=end 的检测区间下标，未命中返回 -1
// 区间可能重叠且无序，命中多个时取存储顺序靠前者，保证结果确定
func (r *Result) DetectionAt(t float64) int {
	if r == nil {
		return -1
	}
	for i, d := range r.Detections {
		if t >= d.StartTime && t <= d.EndTime {
			return i
		}
	}
	return -1
}

// Detection 按下标取检测区间，越界返回 nil
func (r *Result) Detection(idx int) *Detection {
	if r == nil || idx < 0 || idx >= len(r.Detections) {
		return nil
	}
	return &r.Detections[idx]
}

// MarkerInterval 刻度线间隔：长视频 10 秒，短视频 5 秒
func MarkerInterval(duration float64) float64 {
	if duration > 60 {
		return 10
	}
	return 5
}

// Markers 时间轴刻度序列，从 0 到 duration（含端点内最后一个刻度）
func Markers(duration float64) []float64 {
	if duration <= 0 {
		return []float64{0}
	}
	interval := MarkerInterval(duration)
	out := make([]float64, 0, int(duration/interval)+1)
	for t := 0.0; t <= duration; t += interval {
		out = append(out, t)
	}
	return out
}

// Segment 时间轴上的一段高亮区间
type Segment struct {
	Index        int     `json:"index"`         // 在结果序列中的下标
	StartPercent float64 `json:"start_percent"` // 起点在轨道上的百分比
	WidthPercent float64 `json:"width_percent"` // 宽度百分比
	Tier         Tier    `json:"tier"`          // 着色层级
	Confidence   float64 `json:"confidence"`
	Type         string  `json:"type"`
}

// Segments 把检测区间换算为轨道百分比布局
func (r *Result) Segments() []Segment {
	if r == nil || r.TotalDuration <= 0 {
		return nil
	}
	out := make([]Segment, 0, len(r.Detections))
	for i, d := range r.Detections {
		out = append(out, Segment{
			Index:        i,
			StartPercent: d.StartTime / r.TotalDuration * 100,
			WidthPercent: (d.EndTime - d.StartTime) / r.TotalDuration * 100,
			Tier:         TierFor(d.Confidence),
			Confidence:   d.Confidence,
			Type:         d.Type,
		})
	}
	return out
}

// FormatTimecode 时间轴时间码 MM:SS:FF，按 30fps 折算帧号
func FormatTimecode(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	mins := int(seconds) / 60
	secs := int(seconds) % 60
	frames := int((seconds - float64(int(seconds))) * timecodeFPS)
	return fmt.Sprintf("%02d:%02d:%02d", mins, secs, frames)
}

// FormatClock 详情面板短时间格式 M:SS
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	mins := int(seconds) / 60
	secs := int(seconds) % 60
	return fmt.Sprintf("%d:%02d", mins, secs)
}
