package session

import (
	"github.com/chanakyavasantha/violens/internal/core/analysis"
	"github.com/ixugo/goddd/pkg/web"
)

type FindSessionInput struct {
	web.PagerFilter
	Mode string `form:"mode"` // 按模式筛选，可选
}

type FindAnalysisInput struct {
	web.PagerFilter
	SessionID string `form:"session_id"` // 按会话筛选，可选
}

// EnterModeInput 进入工作模式
type EnterModeInput struct {
	Mode string `json:"mode" binding:"required"` // live_monitoring / video_analysis
}

// MediaEventInput 播放器生命周期事件
type MediaEventInput struct {
	Kind     string  `json:"kind" binding:"required"` // time_update / loaded_metadata / playback_error
	Time     float64 `json:"time"`                    // time_update 的当前播放时间（秒）
	Duration float64 `json:"duration"`                // loaded_metadata 的媒体时长（秒）
	Message  string  `json:"message"`                 // playback_error 的错误描述
}

// SeekInput 时间轴定位，二选一：直接给时间，或给像素偏移换算
type SeekInput struct {
	Time       float64 `json:"time"`        // 目标时间（秒）
	Offset     float64 `json:"offset"`      // 点击点距轨道左缘的像素偏移
	TrackWidth float64 `json:"track_width"` // 轨道渲染宽度（像素），>0 时按偏移换算
}

// TimelineOutput 时间轴视图：刻度、检测区段、当前选中
type TimelineOutput struct {
	Duration   float64            `json:"duration"`
	CurrentPos string             `json:"current_pos"` // MM:SS:FF 时间码
	Markers    []float64          `json:"markers"`     // 刻度秒值
	Segments   []analysis.Segment `json:"segments"`    // 检测区段的百分比布局
	Selected   int                `json:"selected"`    // 选中区段下标，-1 表示无
	Summary    string             `json:"summary,omitempty"`
	Risk       string             `json:"risk,omitempty"`
}
