package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chanakyavasantha/violens/internal/conf"
	"github.com/chanakyavasantha/violens/internal/core/analysis"
	"github.com/chanakyavasantha/violens/internal/core/session"
	"github.com/chanakyavasantha/violens/internal/core/session/store/sessiondb"
	"github.com/chanakyavasantha/violens/internal/data"
	"github.com/gin-gonic/gin"
	"github.com/grafov/m3u8"
	"github.com/ixugo/goddd/domain/uniqueid"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
	"gorm.io/gorm"
)

// SessionAPI 为 http 提供业务方法
type SessionAPI struct {
	core    session.Core
	conf    *conf.Bootstrap
	limiter func(identifier string) bool
}

// NewSessionStore 创建会话存储层
func NewSessionStore(db *gorm.DB) session.Storer {
	store := sessiondb.NewDB(db).AutoMigrate(orm.GetEnabledAutoMigrate())
	if err := data.MigrateLegacyReports(db); err != nil {
		slog.Error("migrate legacy reports", "err", err)
	}
	return store
}

// NewSessionCore 创建会话核心服务
func NewSessionCore(store session.Storer, cfg *conf.Bootstrap, uni uniqueid.Core) session.Core {
	core := session.NewCore(store, cfg, uni)

	// 启动媒体清理协程
	go core.StartCleanupWorker()

	return core
}

func NewSessionAPI(core session.Core, cfg *conf.Bootstrap) SessionAPI {
	return SessionAPI{
		core: core,
		conf: cfg,
		// 分析调用远端服务，按会话限流
		limiter: web.IDRateLimiter(0.5, 2, 3*time.Minute),
	}
}

func RegisterSession(g gin.IRouter, api SessionAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/sessions", handler...)
	group.POST("", web.WrapH(api.createSession))
	group.GET("", web.WrapH(api.findSessions))
	group.GET("/:id", web.WrapH(api.getSession))
	group.DELETE("/:id", web.WrapH(api.delSession))
	group.POST("/:id/mode", web.WrapH(api.enterMode))
	group.POST("/:id/reset", web.WrapH(api.reset))
	group.POST("/:id/video", api.uploadVideo)
	group.POST("/:id/convert", api.convertVideo)
	group.POST("/:id/analyze", web.WrapH(api.analyzeVideo))
	group.POST("/:id/events", web.WrapH(api.mediaEvent))
	group.POST("/:id/seek", web.WrapH(api.seek))
	group.GET("/:id/timeline", web.WrapH(api.getTimeline))
	group.GET("/:id/media/:handle", api.serveMedia)
	group.GET("/:id/media/:handle/index.m3u8", api.mediaPlaylist)

	g.GET("/analyses", append(handler, web.WrapH(api.findAnalyses))...)
}

type sessionOutput struct {
	Session *session.Session `json:"session"`
	State   session.State    `json:"state"`
}

func (a SessionAPI) createSession(c *gin.Context, _ *struct{}) (*session.Session, error) {
	return a.core.CreateSession(c.Request.Context())
}

func (a SessionAPI) findSessions(c *gin.Context, in *session.FindSessionInput) (any, error) {
	items, total, err := a.core.FindSessions(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, err
}

func (a SessionAPI) getSession(c *gin.Context, _ *struct{}) (*sessionOutput, error) {
	id := c.Param("id")
	s, err := a.core.GetSession(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	st, err := a.core.StateOf(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	return &sessionOutput{Session: s, State: st}, nil
}

func (a SessionAPI) delSession(c *gin.Context, _ *struct{}) (gin.H, error) {
	if err := a.core.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		return nil, err
	}
	return gin.H{"msg": "ok"}, nil
}

func (a SessionAPI) enterMode(c *gin.Context, in *session.EnterModeInput) (session.State, error) {
	return a.core.EnterMode(c.Request.Context(), c.Param("id"), session.Mode(in.Mode))
}

func (a SessionAPI) reset(c *gin.Context, _ *struct{}) (session.State, error) {
	return a.core.Reset(c.Request.Context(), c.Param("id"))
}

func (a SessionAPI) mediaEvent(c *gin.Context, in *session.MediaEventInput) (session.State, error) {
	return a.core.HandleMediaEvent(c.Request.Context(), c.Param("id"), in)
}

func (a SessionAPI) seek(c *gin.Context, in *session.SeekInput) (session.State, error) {
	return a.core.Seek(c.Request.Context(), c.Param("id"), in)
}

func (a SessionAPI) getTimeline(c *gin.Context, _ *struct{}) (*session.TimelineOutput, error) {
	return a.core.Timeline(c.Request.Context(), c.Param("id"))
}

func (a SessionAPI) findAnalyses(c *gin.Context, in *session.FindAnalysisInput) (any, error) {
	items, total, err := a.core.FindAnalyses(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, err
}

type analyzeOutput struct {
	Summary    string               `json:"summary"`
	Risk       string               `json:"risk"`
	Duration   float64              `json:"duration"`
	Detections []analysis.Detection `json:"detections"`
}

func (a SessionAPI) analyzeVideo(c *gin.Context, _ *struct{}) (*analyzeOutput, error) {
	id := c.Param("id")
	if !a.limiter(id) {
		return nil, reason.ErrBadRequest.SetMsg("analysis requested too frequently")
	}
	result, err := a.core.Analyze(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	return &analyzeOutput{
		Summary:    result.DisplaySummary(),
		Risk:       string(result.OverallRisk),
		Duration:   result.TotalDuration,
		Detections: result.Detections,
	}, nil
}

// uploadVideo 接收 multipart 上传的视频文件
// 字段名 file，校验失败的提示原样透出给前端展示
func (a SessionAPI) uploadVideo(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		web.Fail(c, reason.ErrBadRequest.SetMsg("Please upload a valid video file"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		web.Fail(c, reason.ErrServer.SetMsg(err.Error()))
		return
	}
	defer f.Close()

	res, err := a.core.Upload(c.Request.Context(), c.Param("id"), fh.Filename, f, fh.Size)
	if err != nil {
		web.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// convertVideo 启动转换并以 SSE 推送进度
// 事件流: start -> progress(percent) -> complete | error
func (a SessionAPI) convertVideo(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "不支持 SSE"})
		return
	}
	sendEvent := func(event, data string) {
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	sendEvent("start", `{"msg":"conversion started"}`)

	st, err := a.core.Convert(c.Request.Context(), c.Param("id"), func(percent int) {
		sendEvent("progress", fmt.Sprintf(`{"percent":%d}`, percent))
	})
	if err != nil {
		msg := st.LastError
		if msg == "" {
			msg = err.Error()
		}
		sendEvent("error", fmt.Sprintf(`{"msg":%q}`, msg))
		return
	}
	sendEvent("complete", `{"percent":100}`)
}

// serveMedia 按播放句柄回放媒体文件
// c.File 支持 HTTP Range 请求，浏览器可拖动进度条
func (a SessionAPI) serveMedia(c *gin.Context) {
	path, err := a.core.MediaPath(c.Request.Context(), c.Param("id"), c.Param("handle"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	c.File(path)
}

// mediaPlaylist 生成单片段 VOD 播放列表
// HLS 播放器（如 hls.js）可以直接消费，与原生 video 标签互为备选
func (a SessionAPI) mediaPlaylist(c *gin.Context) {
	id, handle := c.Param("id"), c.Param("handle")
	if _, err := a.core.MediaPath(c.Request.Context(), id, handle); err != nil {
		web.Fail(c, err)
		return
	}
	st, err := a.core.StateOf(c.Request.Context(), id)
	if err != nil {
		web.Fail(c, err)
		return
	}

	duration := st.ObservedDuration
	if st.Resource != nil && st.Resource.Duration > 0 {
		duration = st.Resource.Duration
	}

	pl, err := m3u8.NewMediaPlaylist(0, 1)
	if err != nil {
		web.Fail(c, reason.ErrServer.SetMsg(err.Error()))
		return
	}
	pl.MediaType = m3u8.VOD
	_ = pl.Append(fmt.Sprintf("/sessions/%s/media/%s", id, handle), duration, "")
	pl.Close()

	c.Header("Content-Type", "application/vnd.apple.mpegurl")
	c.Header("Cache-Control", "no-cache")
	c.String(http.StatusOK, pl.String())
}
