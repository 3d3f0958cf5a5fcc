package session

import (
	"github.com/chanakyavasantha/violens/internal/core/analysis"
	"github.com/chanakyavasantha/violens/pkg/ffconv"
)

// EventKind 驱动状态机的离散事件类型
// 事件来源：用户操作、媒体元素回调、网络响应、转换进度
type EventKind string

const (
	EventEnterMode         EventKind = "enter_mode"
	EventReset             EventKind = "reset"
	EventUploadStarted     EventKind = "upload_started"
	EventUploadAccepted    EventKind = "upload_accepted"
	EventUploadFailed      EventKind = "upload_failed"
	EventProbeResult       EventKind = "probe_result"
	EventConvertRequested  EventKind = "convert_requested"
	EventConvertProgress   EventKind = "convert_progress"
	EventConvertCompleted  EventKind = "convert_completed"
	EventConvertFailed     EventKind = "convert_failed"
	EventAnalyzeRequested  EventKind = "analyze_requested"
	EventAnalysisCompleted EventKind = "analysis_completed"
	EventAnalysisFailed    EventKind = "analysis_failed"
	EventTimeUpdate        EventKind = "time_update"
	EventLoadedMetadata    EventKind = "loaded_metadata"
	EventPlaybackError     EventKind = "playback_error"
	EventTimelineSeek      EventKind = "timeline_seek"
)

// Event 状态机输入，字段按事件类型选用
type Event struct {
	Kind EventKind

	Mode       Mode               // EventEnterMode
	Resource   *MediaResource     // EventUploadAccepted / EventConvertCompleted
	Playable   bool               // EventProbeResult
	Duration   float64            // EventProbeResult / EventLoadedMetadata
	Percent    int                // EventConvertProgress
	Err        string             // EventUploadFailed / EventConvertFailed / EventAnalysisFailed / EventPlaybackError
	ResourceID string             // EventAnalysisCompleted / EventAnalysisFailed，陈旧响应守卫键
	Result     *analysis.Result   // EventAnalysisCompleted
	Time       float64            // EventTimeUpdate / EventTimelineSeek
	OnProgress ffconv.ProgressFunc // EventConvertRequested，进度透传给转换副作用
}

// Effect 纯转移产出的副作用描述，在转移完成后才执行，绝不在转移中途执行
type Effect any

type (
	// EffectReleaseMedia 释放媒体资源（句柄 + 磁盘文件）
	// 携带资源指针，保证先释放再丢引用的顺序
	EffectReleaseMedia struct {
		Resource *MediaResource
	}
	// EffectProbe 对新资源做一次能力探测（每次替换资源都重新武装）
	EffectProbe struct {
		Resource *MediaResource
	}
	// EffectStartConversion 启动 ffmpeg 转换
	EffectStartConversion struct {
		Resource   *MediaResource
		OnProgress ffconv.ProgressFunc
	}
	// EffectStartAnalysis 调用远端检测服务，结果以事件形式回流
	EffectStartAnalysis struct {
		Resource *MediaResource
	}
)
