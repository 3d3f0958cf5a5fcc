package session

import (
	"testing"

	"github.com/chanakyavasantha/violens/internal/core/analysis"
)

func res(id string) *MediaResource {
	return &MediaResource{ID: id, HandleID: "h-" + id, SourceName: "clip.mp4"}
}

func analysisState(resID string) State {
	s := NewState()
	s.Mode = ModeVideoAnalysis
	s.Resource = res(resID)
	return s
}

func TestEnterModeOnlyFromHome(t *testing.T) {
	s := NewState()
	s, _ = Apply(s, Event{Kind: EventEnterMode, Mode: ModeVideoAnalysis})
	if s.Mode != ModeVideoAnalysis {
		t.Fatalf("期望进入 video_analysis，实际 %s", s.Mode)
	}

	// 工作模式之间不能直接切换
	next, effects := Apply(s, Event{Kind: EventEnterMode, Mode: ModeLiveMonitoring})
	if next.Mode != ModeVideoAnalysis || len(effects) != 0 {
		t.Fatal("非 home 状态下 enter_mode 应被忽略")
	}

	// 未知模式忽略
	next, _ = Apply(NewState(), Event{Kind: EventEnterMode, Mode: Mode("settings")})
	if next.Mode != ModeHome {
		t.Fatal("未知模式应被忽略")
	}
}

func TestResetReleasesMedia(t *testing.T) {
	s := analysisState("r1")
	next, effects := Apply(s, Event{Kind: EventReset})
	if next.Mode != ModeHome || next.Resource != nil {
		t.Fatal("reset 后应回到初始状态")
	}
	if len(effects) != 1 {
		t.Fatalf("期望 1 个释放副作用，实际 %d", len(effects))
	}
	rel, ok := effects[0].(EffectReleaseMedia)
	if !ok || rel.Resource.ID != "r1" {
		t.Fatal("释放副作用应携带被替换的资源")
	}

	// 无媒体时 reset 不产生副作用
	_, effects = Apply(NewState(), Event{Kind: EventReset})
	if len(effects) != 0 {
		t.Fatal("无媒体时 reset 不应有副作用")
	}
}

func TestUploadReplacesResource(t *testing.T) {
	s := analysisState("r1")
	s.Analysis = &analysis.Result{Summary: "old", TotalDuration: 10}
	s.AnalysisResID = "r1"
	s.SelectedDetection = 0
	s.CurrentTime = 5

	next, effects := Apply(s, Event{Kind: EventUploadAccepted, Resource: res("r2")})
	if next.Resource.ID != "r2" {
		t.Fatal("上传应替换当前资源")
	}
	if next.Analysis != nil || next.SelectedDetection != -1 || next.CurrentTime != 0 {
		t.Fatal("资源替换后分析结果与选中指针应一并清空")
	}
	if len(effects) != 1 {
		t.Fatalf("期望 1 个探测副作用，实际 %d", len(effects))
	}
	if p, ok := effects[0].(EffectProbe); !ok || p.Resource.ID != "r2" {
		t.Fatal("应对新资源重新探测")
	}

	// home 模式下上传被忽略
	_, effects = Apply(NewState(), Event{Kind: EventUploadAccepted, Resource: res("r3")})
	if len(effects) != 0 {
		t.Fatal("home 模式不接受上传")
	}
}

func TestUploadMarksBusy(t *testing.T) {
	s := analysisState("r1")

	// 写盘期间标记 uploading，转换与分析被拒绝
	s, _ = Apply(s, Event{Kind: EventUploadStarted})
	if s.Busy != BusyUploading {
		t.Fatalf("上传开始后 Busy = %s，期望 uploading", s.Busy)
	}
	if next, effects := Apply(s, Event{Kind: EventConvertRequested}); next.Busy != BusyUploading || len(effects) != 0 {
		t.Fatal("上传期间转换应被拒绝")
	}
	if next, effects := Apply(s, Event{Kind: EventAnalyzeRequested}); next.Busy != BusyUploading || len(effects) != 0 {
		t.Fatal("上传期间分析应被拒绝")
	}
	if next, _ := Apply(s, Event{Kind: EventUploadStarted}); next.Busy != BusyUploading {
		t.Fatal("重复的上传开始事件应被忽略")
	}

	// 失败回到 idle，成功随资源替换回到 idle
	failed, _ := Apply(s, Event{Kind: EventUploadFailed, Err: "Upload failed. Please try again."})
	if failed.Busy != BusyIdle || failed.LastError == "" {
		t.Fatal("上传失败后应回到 idle 并记录错误")
	}
	done, _ := Apply(s, Event{Kind: EventUploadAccepted, Resource: res("r2")})
	if done.Busy != BusyIdle || done.Resource.ID != "r2" {
		t.Fatal("上传完成后应回到 idle 并持有新资源")
	}

	// 非 uploading 状态下失败事件不生效
	if next, _ := Apply(NewState(), Event{Kind: EventUploadFailed}); next.Busy != BusyIdle || next.LastError != "" {
		t.Fatal("idle 状态下上传失败事件应被忽略")
	}
}

func TestProbeResultStaleGuard(t *testing.T) {
	s := analysisState("r2")
	next, _ := Apply(s, Event{Kind: EventProbeResult, ResourceID: "r1", Playable: true, Duration: 30})
	if next.Resource.IsPlayable || next.ObservedDuration != 0 {
		t.Fatal("旧资源的探测结果应被丢弃")
	}

	next, _ = Apply(s, Event{Kind: EventProbeResult, ResourceID: "r2", Playable: false})
	if next.PreviewNotice != NoticePreviewUnsupported {
		t.Fatal("不可播放时应提示预览降级")
	}
	if next.Resource.IsPlayable {
		t.Fatal("探测结论应写回资源")
	}
}

func TestBusyGating(t *testing.T) {
	s := analysisState("r1")
	s, effects := Apply(s, Event{Kind: EventConvertRequested})
	if s.Busy != BusyConverting || len(effects) != 1 {
		t.Fatal("空闲时转换请求应被受理")
	}

	// 转换中拒绝分析
	next, effects := Apply(s, Event{Kind: EventAnalyzeRequested})
	if next.Busy != BusyConverting || len(effects) != 0 {
		t.Fatal("转换中应拒绝分析请求")
	}

	// 转换中拒绝再次转换
	_, effects = Apply(s, Event{Kind: EventConvertRequested})
	if len(effects) != 0 {
		t.Fatal("转换中应拒绝重复转换")
	}

	s2 := analysisState("r1")
	s2, _ = Apply(s2, Event{Kind: EventAnalyzeRequested})
	if s2.Busy != BusyAnalyzing {
		t.Fatal("空闲时分析请求应被受理")
	}
	_, effects = Apply(s2, Event{Kind: EventConvertRequested})
	if len(effects) != 0 {
		t.Fatal("分析中应拒绝转换请求")
	}
}

func TestConvertProgressMonotonic(t *testing.T) {
	s := analysisState("r1")
	s, _ = Apply(s, Event{Kind: EventConvertRequested})

	s, _ = Apply(s, Event{Kind: EventConvertProgress, Percent: 40})
	if s.ConvertPercent != 40 {
		t.Fatalf("期望进度 40，实际 %d", s.ConvertPercent)
	}
	// 乱序到达的旧进度不回退
	s, _ = Apply(s, Event{Kind: EventConvertProgress, Percent: 25})
	if s.ConvertPercent != 40 {
		t.Fatalf("进度不应回退，实际 %d", s.ConvertPercent)
	}
	s, _ = Apply(s, Event{Kind: EventConvertProgress, Percent: 130})
	if s.ConvertPercent != 100 {
		t.Fatalf("进度应夹紧到 100，实际 %d", s.ConvertPercent)
	}
}

func TestConvertCompletedIsReplacement(t *testing.T) {
	s := analysisState("r1")
	s.Analysis = &analysis.Result{Summary: "old"}
	s.AnalysisResID = "r1"
	s, _ = Apply(s, Event{Kind: EventConvertRequested})

	converted := res("r2")
	converted.Converted = true
	next, effects := Apply(s, Event{Kind: EventConvertCompleted, Resource: converted})
	if next.Busy != BusyIdle || next.ConvertPercent != 100 {
		t.Fatal("转换完成后应回到空闲")
	}
	if next.Resource.ID != "r2" || next.Analysis != nil {
		t.Fatal("转换产物是新身份，旧分析结果应清空")
	}
	if len(effects) != 1 {
		t.Fatal("转换产物应重新探测")
	}
	if _, ok := effects[0].(EffectProbe); !ok {
		t.Fatal("期望探测副作用")
	}
}

func TestConvertFailedKeepsResource(t *testing.T) {
	s := analysisState("r1")
	s, _ = Apply(s, Event{Kind: EventConvertRequested})
	next, _ := Apply(s, Event{Kind: EventConvertFailed, Err: "boom"})
	if next.Busy != BusyIdle || next.LastError != "boom" {
		t.Fatal("转换失败应回到空闲并记录错误")
	}
	if next.Resource == nil || next.Resource.ID != "r1" {
		t.Fatal("转换失败不应丢弃原始资源")
	}
}

func TestAnalysisStaleResponseDropped(t *testing.T) {
	s := analysisState("r1")
	s, _ = Apply(s, Event{Kind: EventAnalyzeRequested})

	// 分析在途时资源被替换
	s, _ = Apply(s, Event{Kind: EventUploadAccepted, Resource: res("r2")})

	result := &analysis.Result{Summary: "late", TotalDuration: 10}
	next, _ := Apply(s, Event{Kind: EventAnalysisCompleted, ResourceID: "r1", Result: result})
	if next.Analysis != nil {
		t.Fatal("旧资源的分析响应应被整条丢弃")
	}

	// 旧资源的失败同样被丢弃
	next, _ = Apply(s, Event{Kind: EventAnalysisFailed, ResourceID: "r1", Err: "late failure"})
	if next.LastError != "" {
		t.Fatal("旧资源的失败不应污染新状态")
	}
}

func TestAnalysisFailureKeepsPreviousResult(t *testing.T) {
	s := analysisState("r1")
	result := &analysis.Result{Summary: "ok", TotalDuration: 20}
	s, _ = Apply(s, Event{Kind: EventAnalyzeRequested})
	s, _ = Apply(s, Event{Kind: EventAnalysisCompleted, ResourceID: "r1", Result: result})
	if s.Analysis == nil {
		t.Fatal("分析完成应写入结果")
	}

	s, _ = Apply(s, Event{Kind: EventAnalyzeRequested})
	next, _ := Apply(s, Event{Kind: EventAnalysisFailed, ResourceID: "r1", Err: "server down"})
	if next.Analysis == nil || next.Analysis.Summary != "ok" {
		t.Fatal("重新分析失败时应保留上一次结果")
	}
	if next.LastError != "server down" || next.Busy != BusyIdle {
		t.Fatal("失败应记录错误并回到空闲")
	}
}

func TestTimeUpdateSelectsDetection(t *testing.T) {
	s := analysisState("r1")
	s.Analysis = &analysis.Result{
		TotalDuration: 60,
		Detections: []analysis.Detection{
			{StartTime: 10, EndTime: 20, Confidence: 0.9},
			{StartTime: 15, EndTime: 30, Confidence: 0.7},
		},
	}
	s.AnalysisResID = "r1"

	s, _ = Apply(s, Event{Kind: EventTimeUpdate, Time: 17})
	if s.SelectedDetection != 0 {
		t.Fatalf("重叠区间应选中存储顺序靠前者，实际 %d", s.SelectedDetection)
	}
	s, _ = Apply(s, Event{Kind: EventTimeUpdate, Time: 25})
	if s.SelectedDetection != 1 {
		t.Fatalf("期望选中下标 1，实际 %d", s.SelectedDetection)
	}
	s, _ = Apply(s, Event{Kind: EventTimeUpdate, Time: 40})
	if s.SelectedDetection != -1 {
		t.Fatal("空档期应取消选中")
	}
	// 超出时长的时间夹紧
	s, _ = Apply(s, Event{Kind: EventTimeUpdate, Time: 999})
	if s.CurrentTime != 60 {
		t.Fatalf("时间应夹紧到 60，实际 %f", s.CurrentTime)
	}
}

func TestTimelineSeekClamp(t *testing.T) {
	s := analysisState("r1")
	s.Analysis = &analysis.Result{
		TotalDuration: 60,
		Detections:    []analysis.Detection{{StartTime: 10, EndTime: 20, Confidence: 0.9}},
	}
	s.AnalysisResID = "r1"

	s, _ = Apply(s, Event{Kind: EventTimelineSeek, Time: -3})
	if s.CurrentTime != 0 {
		t.Fatalf("负值应夹紧到 0，实际 %f", s.CurrentTime)
	}
	s, _ = Apply(s, Event{Kind: EventTimelineSeek, Time: 12})
	if s.SelectedDetection != 0 {
		t.Fatal("定位到检测区间内应选中该区间")
	}
}

func TestPlaybackErrorDegradesQuietly(t *testing.T) {
	s := analysisState("r1")
	s.Resource.IsPlayable = true
	next, effects := Apply(s, Event{Kind: EventPlaybackError, Err: "decode error"})
	if next.Resource.IsPlayable {
		t.Fatal("播放失败后资源应标记为不可预览")
	}
	if next.PreviewNotice != NoticePreviewUnsupported {
		t.Fatal("播放失败应提示预览降级")
	}
	if next.LastError != "" || len(effects) != 0 {
		t.Fatal("播放失败静默降级，不应产生错误或副作用")
	}
}
