package session

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/chanakyavasantha/violens/internal/core/analysis"
	"github.com/chanakyavasantha/violens/pkg/ffprobe"
	"github.com/chanakyavasantha/violens/pkg/vdetect"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/jinzhu/copier"
)

// 会话 ID 前缀
const idPrefixSession = "vs"

const probeTimeout = 15 * time.Second

// CreateSession 创建新会话，初始为 home 模式
func (c Core) CreateSession(ctx context.Context) (*Session, error) {
	id := c.uni.UniqueID(idPrefixSession)
	now := orm.Now()
	out := Session{
		ID:        id,
		Mode:      string(ModeHome),
		Busy:      string(BusyIdle),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.Session().Add(ctx, &out); err != nil {
		return nil, reason.ErrDB.Withf(`Add id[%s] err[%s]`, id, err.Error())
	}

	c.runtimes.Store(id, &Runtime{
		ID:         id,
		media:      NewMediaManager(filepath.Join(c.conf.Server.Media.StorageDir, id)),
		state:      NewState(),
		lastActive: time.Now(),
	})
	return &out, nil
}

// GetSession 查询会话持久化记录
func (c Core) GetSession(ctx context.Context, id string) (*Session, error) {
	out := Session{ID: id}
	if err := c.store.Session().Get(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`Get id[%s] err[%s]`, id, err.Error())
		}
		return nil, reason.ErrDB.Withf(`Get id[%s] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// FindSessions 分页查询会话列表
func (c Core) FindSessions(ctx context.Context, in *FindSessionInput) ([]*Session, int64, error) {
	query := orm.NewQuery(2).OrderBy("created_at DESC")
	if in.Mode != "" {
		query.Where("mode = ?", in.Mode)
	}
	items := make([]*Session, 0, in.Limit())
	total, err := c.store.Session().Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}

// DeleteSession 删除会话：先释放媒体，再删运行时与记录
func (c Core) DeleteSession(ctx context.Context, id string) error {
	if r, ok := c.runtimes.Load(id); ok {
		c.dispatch(ctx, r, Event{Kind: EventReset})
		c.runtimes.Delete(id)
	}
	if err := c.store.Session().Del(ctx, &Session{ID: id}, orm.Where("id=?", id)); err != nil {
		return reason.ErrDB.Withf(`Del id[%s] err[%s]`, id, err.Error())
	}
	return nil
}

// runtime 取会话运行时，进程重启后懒重建
// 重建的运行时回到初始状态：内存媒体句柄随进程丢失，旧文件交给清理任务回收
func (c Core) runtime(ctx context.Context, id string) (*Runtime, error) {
	if r, ok := c.runtimes.Load(id); ok {
		return r, nil
	}
	if _, err := c.GetSession(ctx, id); err != nil {
		return nil, err
	}
	r := &Runtime{
		ID:         id,
		media:      NewMediaManager(filepath.Join(c.conf.Server.Media.StorageDir, id)),
		state:      NewState(),
		lastActive: time.Now(),
	}
	c.runtimes.Store(id, r)
	return r, nil
}

// StateOf 当前会话状态快照
func (c Core) StateOf(ctx context.Context, id string) (State, error) {
	r, err := c.runtime(ctx, id)
	if err != nil {
		return State{}, err
	}
	return r.State(), nil
}

// EnterMode 从 home 进入工作模式
func (c Core) EnterMode(ctx context.Context, id string, mode Mode) (State, error) {
	if mode != ModeLiveMonitoring && mode != ModeVideoAnalysis {
		return State{}, reason.ErrBadRequest.Withf("unknown mode %q", mode)
	}
	r, err := c.runtime(ctx, id)
	if err != nil {
		return State{}, err
	}
	if st := r.State(); st.Mode != ModeHome {
		return st, reason.ErrBadRequest.SetMsg("mode can only be entered from home")
	}
	next := c.dispatch(ctx, r, Event{Kind: EventEnterMode, Mode: mode})
	c.persist(ctx, r)
	return next, nil
}

// Reset 回到 home，释放媒体资源，幂等
func (c Core) Reset(ctx context.Context, id string) (State, error) {
	r, err := c.runtime(ctx, id)
	if err != nil {
		return State{}, err
	}
	next := c.dispatch(ctx, r, Event{Kind: EventReset})
	c.persist(ctx, r)
	return next, nil
}

// Upload 接收上传的视频，校验通过后替换当前媒体资源
func (c Core) Upload(ctx context.Context, id, filename string, src io.Reader, size int64) (*MediaResource, error) {
	r, err := c.runtime(ctx, id)
	if err != nil {
		return nil, err
	}
	st := r.State()
	if st.Mode != ModeVideoAnalysis {
		return nil, reason.ErrBadRequest.SetMsg("upload requires video analysis mode")
	}

	// 上传写盘期间标记 uploading，转换与分析在此期间被拒绝
	if next := c.dispatch(ctx, r, Event{Kind: EventUploadStarted}); next.Busy != BusyUploading {
		return nil, reason.ErrBadRequest.SetMsg("another operation is in progress")
	}

	br := bufio.NewReader(src)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) {
		c.dispatch(ctx, r, Event{Kind: EventUploadFailed})
		return nil, reason.ErrBadRequest.Withf("read upload: %s", err.Error())
	}
	maxBytes := c.conf.Server.Media.MaxUploadMiB << 20
	if err := ValidateUpload(filename, head, size, maxBytes); err != nil {
		c.dispatch(ctx, r, Event{Kind: EventUploadFailed})
		return nil, err
	}

	res, err := r.media.SetSource(filename, io.LimitReader(br, maxBytes+1), size)
	if err != nil {
		c.dispatch(ctx, r, Event{Kind: EventUploadFailed, Err: "Upload failed. Please try again."})
		return nil, reason.ErrServer.Withf("store upload: %s", err.Error())
	}

	c.dispatch(ctx, r, Event{Kind: EventUploadAccepted, Resource: res})
	c.persist(ctx, r)
	return res, nil
}

// Convert 把当前媒体转换为浏览器可播放的 MP4，同步执行直到结束
// onProgress 每次进度变化被调用一次，百分比单调不减
func (c Core) Convert(ctx context.Context, id string, onProgress func(percent int)) (State, error) {
	r, err := c.runtime(ctx, id)
	if err != nil {
		return State{}, err
	}
	st := r.State()
	if st.Resource == nil {
		return st, reason.ErrBadRequest.SetMsg("no media to convert")
	}
	if st.Busy != BusyIdle {
		return st, reason.ErrBadRequest.SetMsg("conversion or analysis in progress")
	}

	next := c.dispatch(ctx, r, Event{Kind: EventConvertRequested, OnProgress: onProgress})
	c.persist(ctx, r)
	if next.LastError != "" {
		return next, reason.ErrServer.SetMsg(next.LastError)
	}
	return next, nil
}

// Analyze 把原始上传文件发给远端检测服务，同步等待结果
// 失败不破坏上一次结果；响应回流时资源已被替换则整条丢弃
func (c Core) Analyze(ctx context.Context, id string) (*analysis.Result, error) {
	r, err := c.runtime(ctx, id)
	if err != nil {
		return nil, err
	}
	st := r.State()
	if st.Resource == nil {
		return nil, reason.ErrBadRequest.SetMsg("no media to analyze")
	}
	if st.Busy != BusyIdle {
		return nil, reason.ErrBadRequest.SetMsg("conversion or analysis in progress")
	}
	resID := st.Resource.ID

	c.dispatch(ctx, r, Event{Kind: EventAnalyzeRequested})
	final := r.State()
	c.persist(ctx, r)

	if final.Analysis != nil && final.AnalysisResID == resID {
		return final.Analysis, nil
	}
	if final.LastError != "" {
		return nil, reason.ErrServer.SetMsg(final.LastError)
	}
	return nil, reason.ErrBadRequest.SetMsg("analysis superseded by a newer upload")
}

// HandleMediaEvent 播放器生命周期事件回流
func (c Core) HandleMediaEvent(ctx context.Context, id string, in *MediaEventInput) (State, error) {
	r, err := c.runtime(ctx, id)
	if err != nil {
		return State{}, err
	}
	var ev Event
	switch in.Kind {
	case "time_update":
		ev = Event{Kind: EventTimeUpdate, Time: in.Time}
	case "loaded_metadata":
		ev = Event{Kind: EventLoadedMetadata, Duration: in.Duration}
	case "playback_error":
		ev = Event{Kind: EventPlaybackError, Err: in.Message}
	default:
		return r.State(), reason.ErrBadRequest.Withf("unknown media event %q", in.Kind)
	}
	return c.dispatch(ctx, r, ev), nil
}

// Seek 时间轴点击定位：像素偏移换算为时间，夹紧到 [0, duration]
func (c Core) Seek(ctx context.Context, id string, in *SeekInput) (State, error) {
	r, err := c.runtime(ctx, id)
	if err != nil {
		return State{}, err
	}
	t := in.Time
	if in.TrackWidth > 0 {
		st := r.State()
		t = analysis.TimeForOffset(in.Offset, in.TrackWidth, st.duration())
	}
	return c.dispatch(ctx, r, Event{Kind: EventTimelineSeek, Time: t}), nil
}

// MediaPath 按播放句柄取文件路径，句柄失效时报 404
func (c Core) MediaPath(ctx context.Context, id, handleID string) (string, error) {
	r, err := c.runtime(ctx, id)
	if err != nil {
		return "", err
	}
	path, ok := r.media.PathForHandle(handleID)
	if !ok {
		return "", reason.ErrNotFound.SetMsg("media handle expired")
	}
	return path, nil
}

// Timeline 时间轴视图：刻度间隔随时长自适应，区段按总时长折算为百分比
func (c Core) Timeline(ctx context.Context, id string) (*TimelineOutput, error) {
	r, err := c.runtime(ctx, id)
	if err != nil {
		return nil, err
	}
	st := r.State()
	d := st.duration()
	out := TimelineOutput{
		Duration:   d,
		CurrentPos: analysis.FormatTimecode(st.CurrentTime),
		Markers:    analysis.Markers(d),
		Selected:   st.SelectedDetection,
	}
	if st.Analysis != nil {
		out.Segments = st.Analysis.Segments()
		out.Summary = st.Analysis.DisplaySummary()
		out.Risk = string(st.Analysis.OverallRisk)
	}
	return &out, nil
}

// FindAnalyses 分页查询分析历史
func (c Core) FindAnalyses(ctx context.Context, in *FindAnalysisInput) ([]*AnalysisRecord, int64, error) {
	query := orm.NewQuery(2).OrderBy("created_at DESC")
	if in.SessionID != "" {
		query.Where("session_id = ?", in.SessionID)
	}
	items := make([]*AnalysisRecord, 0, in.Limit())
	total, err := c.store.Analysis().Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}

// dispatch 串行化状态转移并执行产出的副作用
// 副作用在转移完成、锁释放之后执行；转换与分析同步执行，探测异步回流
func (c Core) dispatch(ctx context.Context, r *Runtime, ev Event) State {
	r.m.Lock()
	next, effects := Apply(r.state, ev)
	r.state = next
	r.lastActive = time.Now()
	r.m.Unlock()

	for _, ef := range effects {
		c.execute(ctx, r, ef)
	}
	if len(effects) > 0 {
		return r.State()
	}
	return next
}

func (c Core) execute(ctx context.Context, r *Runtime, ef Effect) {
	switch v := ef.(type) {
	case EffectReleaseMedia:
		r.media.Release()

	case EffectProbe:
		go c.probe(r, v.Resource)

	case EffectStartConversion:
		c.convert(ctx, r, v.Resource, v.OnProgress)

	case EffectStartAnalysis:
		c.analyze(ctx, r, v.Resource)
	}
}

// probe 能力探测，结果以事件回流，陈旧结果由守卫丢弃
func (c Core) probe(r *Runtime, res *MediaResource) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	info, err := ffprobe.Probe(ctx, res.PlayablePath)
	if err != nil {
		slog.Warn("probe media", "resource", res.ID, "err", err)
		c.dispatch(ctx, r, Event{Kind: EventProbeResult, ResourceID: res.ID, Playable: false})
		return
	}
	c.dispatch(ctx, r, Event{
		Kind:       EventProbeResult,
		ResourceID: res.ID,
		Playable:   info.BrowserPlayable(),
		Duration:   info.Duration(),
	})
}

func (c Core) convert(ctx context.Context, r *Runtime, res *MediaResource, onProgress func(percent int)) {
	dst := filepath.Join(res.Dir, "converted.mp4")
	progress := func(percent int) {
		c.dispatch(ctx, r, Event{Kind: EventConvertProgress, Percent: percent})
		if onProgress != nil {
			onProgress(percent)
		}
	}

	if err := c.conv.Convert(ctx, res.SourcePath, dst, res.Duration, progress); err != nil {
		slog.Error("convert media", "resource", res.ID, "err", err)
		c.dispatch(ctx, r, Event{Kind: EventConvertFailed, Err: "Conversion failed. The original file is kept."})
		return
	}

	replaced, err := r.media.ReplaceWithConverted(dst)
	if err != nil {
		slog.Error("replace converted media", "resource", res.ID, "err", err)
		c.dispatch(ctx, r, Event{Kind: EventConvertFailed, Err: "Conversion failed. The original file is kept."})
		return
	}
	c.dispatch(ctx, r, Event{Kind: EventConvertCompleted, Resource: replaced})
}

func (c Core) analyze(ctx context.Context, r *Runtime, res *MediaResource) {
	if timeout := c.conf.Analysis.Timeout.Duration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// 分析永远用原始上传文件，转换只影响预览
	body, err := c.detector.Analyze(ctx, res.SourcePath)
	if err != nil {
		c.dispatch(ctx, r, Event{Kind: EventAnalysisFailed, ResourceID: res.ID, Err: analyzeErrMessage(err)})
		return
	}

	raw, err := analysis.ParseRaw(body)
	if err != nil {
		slog.Warn("parse analysis response", "resource", res.ID, "err", err)
		c.dispatch(ctx, r, Event{Kind: EventAnalysisFailed, ResourceID: res.ID, Err: "Analysis service returned an unreadable response."})
		return
	}
	result := analysis.Normalize(raw, r.State().ObservedDuration)

	next := c.dispatch(ctx, r, Event{Kind: EventAnalysisCompleted, ResourceID: res.ID, Result: result})
	if next.AnalysisResID == res.ID {
		c.saveAnalysis(ctx, r.ID, res, result)
	}
}

func analyzeErrMessage(err error) string {
	var se *vdetect.StatusError
	switch {
	case errors.Is(err, vdetect.ErrNoEndpoint):
		return "Analysis service is not configured."
	case errors.As(err, &se):
		// 状态码与响应体原样透出，便于定位远端故障
		msg := fmt.Sprintf("Analysis service rejected the request (status %d)", se.StatusCode)
		if se.Body != "" {
			msg += ": " + se.Body
		}
		return msg
	case errors.Is(err, context.DeadlineExceeded):
		return "Analysis timed out."
	}
	return "Analysis failed. Please try again."
}

// saveAnalysis 落库一条分析历史，失败只记日志不影响会话状态
func (c Core) saveAnalysis(ctx context.Context, sessionID string, res *MediaResource, result *analysis.Result) {
	detections, err := json.Marshal(result.Detections)
	if err != nil {
		slog.Error("marshal detections", "session", sessionID, "err", err)
		return
	}
	var rec AnalysisRecord
	if err := copier.Copy(&rec, result); err != nil {
		slog.ErrorContext(ctx, "Copy", "err", err)
	}
	rec.SessionID = sessionID
	rec.ResourceID = res.ID
	rec.SourceName = res.SourceName
	rec.Summary = result.DisplaySummary()
	rec.OverallRisk = string(result.OverallRisk)
	rec.DetectionCount = len(result.Detections)
	rec.Detections = string(detections)
	rec.CreatedAt = orm.Now()
	if err := c.store.Analysis().Add(ctx, &rec); err != nil {
		slog.Error("save analysis record", "session", sessionID, "err", err)
	}
}

// persist 把运行时状态同步到会话记录
func (c Core) persist(ctx context.Context, r *Runtime) {
	st := r.State()
	err := c.store.Session().Edit(ctx, &Session{}, func(s *Session) {
		s.Mode = string(st.Mode)
		s.Busy = string(st.Busy)
		s.UpdatedAt = orm.Now()
		if st.Resource != nil {
			s.ResourceID = st.Resource.ID
			s.SourceName = st.Resource.SourceName
			s.IsPlayable = st.Resource.IsPlayable
			s.Converted = st.Resource.Converted
		} else {
			s.ResourceID = ""
			s.SourceName = ""
			s.IsPlayable = false
			s.Converted = false
		}
		if st.Analysis != nil && s.AnalyzedAt == nil {
			now := orm.Now()
			s.AnalyzedAt = &now
		}
	}, orm.Where("id=?", r.ID))
	if err != nil {
		slog.Error("persist session", "session", r.ID, "err", err)
	}
}
