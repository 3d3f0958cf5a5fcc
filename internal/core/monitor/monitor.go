// Package monitor 实时监控模式的模拟告警源
// 每个监控会话对应一条告警流，周期性随机产生检测告警，
// 最近若干条保留在环形缓冲，订阅者经通道实时接收。
package monitor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/chanakyavasantha/violens/internal/conf"
	"github.com/google/uuid"
	"github.com/ixugo/goddd/pkg/queue"
	"github.com/ixugo/goddd/pkg/reason"
)

// 30% 概率产生告警
const alertChance = 0.3

// 告警类型及其置信度区间
var alertKinds = []struct {
	kind       string
	base, span float64
}{
	{"Suspicious Movement", 0.65, 0.30},
	{"Aggressive Gesture", 0.70, 0.25},
	{"Potential Weapon", 0.60, 0.35},
	{"Physical Altercation", 0.75, 0.20},
}

// BoundingBox 画面内的归一化检测框，取值 0~1
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Alert struct {
	ID          string      `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	Type        string      `json:"type"`
	Confidence  float64     `json:"confidence"`
	Description string      `json:"description"`
	Risk        string      `json:"risk"`
	Box         BoundingBox `json:"bounding_box"`
}

// riskFor 实时告警的风险分层，阈值比离线分析更敏感
func riskFor(confidence float64) string {
	switch {
	case confidence > 0.8:
		return "high"
	case confidence > 0.65:
		return "medium"
	}
	return "low"
}

// Feed 单个会话的告警流
type Feed struct {
	sessionID string
	recent    *queue.CirQueue[Alert]
	cancel    context.CancelFunc

	m    sync.Mutex
	subs map[chan Alert]struct{}
}

// Recent 最近的告警，旧的在前
// 环形缓冲本身不支持并发，读写都在 m 内
func (f *Feed) Recent() []Alert {
	f.m.Lock()
	defer f.m.Unlock()
	return f.recent.Range()
}

// Subscribe 订阅后续告警，返回退订函数
// 慢订阅者的告警直接丢弃，不阻塞生成协程
func (f *Feed) Subscribe() (<-chan Alert, func()) {
	ch := make(chan Alert, 8)
	f.m.Lock()
	f.subs[ch] = struct{}{}
	f.m.Unlock()
	return ch, func() {
		f.m.Lock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
		f.m.Unlock()
	}
}

func (f *Feed) publish(a Alert) {
	f.m.Lock()
	defer f.m.Unlock()
	f.recent.Push(a)
	for ch := range f.subs {
		select {
		case ch <- a:
		default:
		}
	}
}

func (f *Feed) closeAll() {
	f.m.Lock()
	defer f.m.Unlock()
	for ch := range f.subs {
		delete(f.subs, ch)
		close(ch)
	}
}

// ringSize 环形缓冲容量限制在 1~255，配置超限时夹紧
func ringSize(n int) uint8 {
	return uint8(min(max(n, 1), 255))
}

// Core business domain
type Core struct {
	conf *conf.Monitor

	m     sync.Mutex
	feeds map[string]*Feed
}

func NewCore(cfg *conf.Monitor) *Core {
	return &Core{
		conf:  cfg,
		feeds: make(map[string]*Feed),
	}
}

// Start 为会话启动告警流，幂等：已存在时返回现有流
func (c *Core) Start(sessionID string) *Feed {
	c.m.Lock()
	defer c.m.Unlock()
	if f, ok := c.feeds[sessionID]; ok {
		return f
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &Feed{
		sessionID: sessionID,
		recent:    queue.NewCirQueue[Alert](ringSize(c.conf.MaxAlerts)),
		cancel:    cancel,
		subs:      make(map[chan Alert]struct{}),
	}
	c.feeds[sessionID] = f

	interval := c.conf.AlertInterval.Duration()
	if interval <= 0 {
		interval = 3 * time.Second
	}
	go c.run(ctx, f, interval)
	return f
}

// Stop 停止并移除会话的告警流，幂等
func (c *Core) Stop(sessionID string) {
	c.m.Lock()
	f, ok := c.feeds[sessionID]
	if ok {
		delete(c.feeds, sessionID)
	}
	c.m.Unlock()
	if !ok {
		return
	}
	f.cancel()
	f.closeAll()
}

// Feed 取会话的告警流
func (c *Core) Feed(sessionID string) (*Feed, error) {
	c.m.Lock()
	defer c.m.Unlock()
	f, ok := c.feeds[sessionID]
	if !ok {
		return nil, reason.ErrNotFound.SetMsg("monitoring is not active for this session")
	}
	return f, nil
}

func (c *Core) run(ctx context.Context, f *Feed, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if rand.Float64() >= alertChance {
				continue
			}
			f.publish(makeAlert())
		}
	}
}

func makeAlert() Alert {
	k := alertKinds[rand.IntN(len(alertKinds))]
	confidence := k.base + rand.Float64()*k.span
	return Alert{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		Type:       k.kind,
		Confidence: confidence,
		Description: fmt.Sprintf("Detected %s with %d%% confidence",
			strings.ToLower(k.kind), int(confidence*100+0.5)),
		Risk: riskFor(confidence),
		Box: BoundingBox{
			X:      rand.Float64() * 0.6,
			Y:      rand.Float64() * 0.6,
			Width:  0.2 + rand.Float64()*0.2,
			Height: 0.2 + rand.Float64()*0.2,
		},
	}
}
