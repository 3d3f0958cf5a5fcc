package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chanakyavasantha/violens/internal/conf"
	"github.com/chanakyavasantha/violens/internal/core/monitor"
	"github.com/chanakyavasantha/violens/internal/core/session"
	"github.com/gin-gonic/gin"
	"github.com/ixugo/goddd/pkg/web"
)

// MonitorAPI 实时监控模式接口
type MonitorAPI struct {
	core        *monitor.Core
	sessionCore session.Core
}

func NewMonitorCore(cfg *conf.Bootstrap) *monitor.Core {
	return monitor.NewCore(&cfg.Monitor)
}

func NewMonitorAPI(core *monitor.Core, sessionCore session.Core) MonitorAPI {
	return MonitorAPI{core: core, sessionCore: sessionCore}
}

func RegisterMonitor(g gin.IRouter, api MonitorAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/sessions/:id/monitor", handler...)
	group.POST("", web.WrapH(api.startMonitoring))
	group.DELETE("", web.WrapH(api.stopMonitoring))
	group.GET("/recent", web.WrapH(api.recentAlerts))
	group.GET("/alerts", api.streamAlerts)
}

// startMonitoring 开始监控：会话进入 live_monitoring 模式并启动告警流
func (a MonitorAPI) startMonitoring(c *gin.Context, _ *struct{}) (session.State, error) {
	id := c.Param("id")
	st, err := a.sessionCore.EnterMode(c.Request.Context(), id, session.ModeLiveMonitoring)
	if err != nil {
		return st, err
	}
	a.core.Start(id)
	return st, nil
}

// stopMonitoring 停止监控：关闭告警流并回到 home
func (a MonitorAPI) stopMonitoring(c *gin.Context, _ *struct{}) (session.State, error) {
	id := c.Param("id")
	a.core.Stop(id)
	return a.sessionCore.Reset(c.Request.Context(), id)
}

func (a MonitorAPI) recentAlerts(c *gin.Context, _ *struct{}) (any, error) {
	f, err := a.core.Feed(c.Param("id"))
	if err != nil {
		return nil, err
	}
	items := f.Recent()
	return gin.H{"items": items, "total": len(items)}, nil
}

// streamAlerts 以 SSE 推送实时告警
// 空闲时每 15 秒发一次心跳注释，避免代理断开连接
func (a MonitorAPI) streamAlerts(c *gin.Context) {
	f, err := a.core.Feed(c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "不支持 SSE"})
		return
	}

	ch, unsub := f.Subscribe()
	defer unsub()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": keepalive\n\n")
			flusher.Flush()
		case alert, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(alert)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: alert\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
