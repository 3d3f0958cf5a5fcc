package session

import (
	"github.com/chanakyavasantha/violens/internal/core/analysis"
)

// NoticePreviewUnsupported 预览降级提示，不阻断分析路径
const NoticePreviewUnsupported = "Preview is not supported for this format. Analysis is still available."

// State 会话状态，单一事实来源
// 不变量：Analysis 存在时必然有 Resource，且 Analysis 产生自该 Resource（ID 一致）；
// 资源被替换时 Analysis 与选中指针一并清空。
type State struct {
	Mode     Mode           `json:"mode"`
	Busy     Busy           `json:"busy"`
	Resource *MediaResource `json:"resource,omitempty"`

	Analysis          *analysis.Result `json:"analysis,omitempty"`
	AnalysisResID     string           `json:"-"`                  // Analysis 对应的资源 ID
	SelectedDetection int              `json:"selected_detection"` // 选中检测下标，-1 表示无

	CurrentTime      float64 `json:"current_time"`
	ObservedDuration float64 `json:"observed_duration"` // 媒体元素上报的时长

	ConvertPercent int    `json:"convert_percent"`
	PreviewNotice  string `json:"preview_notice,omitempty"`
	LastError      string `json:"last_error,omitempty"`
}

// NewState 初始状态：home 模式，无媒体
func NewState() State {
	return State{
		Mode:              ModeHome,
		Busy:              BusyIdle,
		SelectedDetection: -1,
	}
}

// duration 时间夹紧的上界，优先取分析结果时长，退回观测时长
func (s *State) duration() float64 {
	if s.Analysis != nil && s.Analysis.TotalDuration > 0 {
		return s.Analysis.TotalDuration
	}
	return s.ObservedDuration
}

func (s *State) clampTime(t float64) float64 {
	if t < 0 {
		return 0
	}
	if d := s.duration(); d > 0 && t > d {
		return d
	}
	return t
}

// Apply 纯转移函数：(state, event) -> (state', effects)
// 副作用只描述不执行，由调用方在转移完成后统一执行。
// 非法事件返回原状态和空副作用，不产生中间态。
func Apply(s State, ev Event) (State, []Effect) {
	switch ev.Kind {
	case EventEnterMode:
		// live_monitoring 与 video_analysis 只能从 home 进入
		if s.Mode != ModeHome {
			return s, nil
		}
		if ev.Mode != ModeLiveMonitoring && ev.Mode != ModeVideoAnalysis {
			return s, nil
		}
		next := NewState()
		next.Mode = ev.Mode
		return next, nil

	case EventReset:
		// 回到 home：先释放媒体句柄，再丢状态引用，顺序不可颠倒
		var effects []Effect
		if s.Resource != nil {
			effects = append(effects, EffectReleaseMedia{Resource: s.Resource})
		}
		return NewState(), effects

	case EventUploadStarted:
		// 上传写盘期间占用会话，与转换/分析互斥
		if s.Mode != ModeVideoAnalysis || s.Busy != BusyIdle {
			return s, nil
		}
		next := s
		next.Busy = BusyUploading
		next.LastError = ""
		return next, nil

	case EventUploadFailed:
		if s.Busy != BusyUploading {
			return s, nil
		}
		next := s
		next.Busy = BusyIdle
		next.LastError = ev.Err
		return next, nil

	case EventUploadAccepted:
		if s.Mode != ModeVideoAnalysis || ev.Resource == nil {
			return s, nil
		}
		// 资源替换：分析结果与选中指针一并失效，探测器重新武装
		next := s
		next.Resource = ev.Resource
		next.Analysis = nil
		next.AnalysisResID = ""
		next.SelectedDetection = -1
		next.CurrentTime = 0
		next.ObservedDuration = 0
		next.ConvertPercent = 0
		next.PreviewNotice = ""
		next.LastError = ""
		next.Busy = BusyIdle
		return next, []Effect{EffectProbe{Resource: ev.Resource}}

	case EventProbeResult:
		if s.Resource == nil || s.Resource.ID != ev.ResourceID {
			return s, nil
		}
		next := s
		r := *s.Resource
		r.IsPlayable = ev.Playable
		if ev.Duration > 0 {
			r.Duration = ev.Duration
		}
		next.Resource = &r
		if ev.Playable {
			next.PreviewNotice = ""
		} else {
			next.PreviewNotice = NoticePreviewUnsupported
		}
		if ev.Duration > 0 && next.ObservedDuration == 0 {
			next.ObservedDuration = ev.Duration
		}
		return next, nil

	case EventConvertRequested:
		if s.Mode != ModeVideoAnalysis || s.Resource == nil {
			return s, nil
		}
		// converting 与 analyzing 互斥，拒绝而非交错
		if s.Busy != BusyIdle {
			return s, nil
		}
		next := s
		next.Busy = BusyConverting
		next.ConvertPercent = 0
		next.LastError = ""
		return next, []Effect{EffectStartConversion{Resource: s.Resource, OnProgress: ev.OnProgress}}

	case EventConvertProgress:
		if s.Busy != BusyConverting {
			return s, nil
		}
		// 进度单调不减
		if ev.Percent <= s.ConvertPercent {
			return s, nil
		}
		next := s
		next.ConvertPercent = min(ev.Percent, 100)
		return next, nil

	case EventConvertCompleted:
		if s.Busy != BusyConverting || ev.Resource == nil {
			return s, nil
		}
		// 转换产物也是一次资源替换：新身份、清分析、重新探测
		next := s
		next.Busy = BusyIdle
		next.ConvertPercent = 100
		next.Resource = ev.Resource
		next.Analysis = nil
		next.AnalysisResID = ""
		next.SelectedDetection = -1
		next.PreviewNotice = ""
		return next, []Effect{EffectProbe{Resource: ev.Resource}}

	case EventConvertFailed:
		if s.Busy != BusyConverting {
			return s, nil
		}
		next := s
		next.Busy = BusyIdle
		next.LastError = ev.Err
		return next, nil

	case EventAnalyzeRequested:
		if s.Mode != ModeVideoAnalysis || s.Resource == nil {
			return s, nil
		}
		if s.Busy != BusyIdle {
			return s, nil
		}
		next := s
		next.Busy = BusyAnalyzing
		next.LastError = ""
		return next, []Effect{EffectStartAnalysis{Resource: s.Resource}}

	case EventAnalysisCompleted:
		// 陈旧响应守卫：响应回来时资源已被替换则整条丢弃
		if s.Resource == nil || s.Resource.ID != ev.ResourceID || ev.Result == nil {
			return s, nil
		}
		next := s
		next.Busy = BusyIdle
		next.Analysis = ev.Result
		next.AnalysisResID = ev.ResourceID
		next.SelectedDetection = -1
		next.LastError = ""
		return next, nil

	case EventAnalysisFailed:
		if s.Resource == nil || s.Resource.ID != ev.ResourceID {
			return s, nil
		}
		// 失败不触碰已有结果，仅记录错误供展示
		next := s
		next.Busy = BusyIdle
		next.LastError = ev.Err
		return next, nil

	case EventTimeUpdate:
		if s.Mode != ModeVideoAnalysis {
			return s, nil
		}
		next := s
		next.CurrentTime = s.clampTime(ev.Time)
		// 连续播放时每次时间更新都重新求值，但只在变化时改选中指针
		if idx := s.Analysis.DetectionAt(next.CurrentTime); idx != s.SelectedDetection {
			next.SelectedDetection = idx
		}
		return next, nil

	case EventLoadedMetadata:
		if s.Mode != ModeVideoAnalysis || ev.Duration <= 0 {
			return s, nil
		}
		next := s
		next.ObservedDuration = ev.Duration
		return next, nil

	case EventPlaybackError:
		if s.Resource == nil {
			return s, nil
		}
		// 原生播放失败静默降级，绝不阻断分析
		next := s
		r := *s.Resource
		r.IsPlayable = false
		next.Resource = &r
		next.PreviewNotice = NoticePreviewUnsupported
		return next, nil

	case EventTimelineSeek:
		if s.Mode != ModeVideoAnalysis {
			return s, nil
		}
		next := s
		next.CurrentTime = s.clampTime(ev.Time)
		next.SelectedDetection = s.Analysis.DetectionAt(next.CurrentTime)
		return next, nil
	}
	return s, nil
}
