package session

import (
	"context"
	"sync"
	"time"

	"github.com/chanakyavasantha/violens/internal/conf"
	"github.com/chanakyavasantha/violens/pkg/ffconv"
	"github.com/chanakyavasantha/violens/pkg/vdetect"
	"github.com/ixugo/goddd/domain/uniqueid"
	"github.com/ixugo/goddd/pkg/conc"
	"github.com/ixugo/goddd/pkg/orm"
)

// SessionStorer Instantiation interface
type SessionStorer interface {
	Find(context.Context, *[]*Session, orm.Pager, ...orm.QueryOption) (int64, error)
	Get(context.Context, *Session, ...orm.QueryOption) error
	Add(context.Context, *Session) error
	Edit(context.Context, *Session, func(*Session), ...orm.QueryOption) error
	Del(context.Context, *Session, ...orm.QueryOption) error
}

// AnalysisStorer 分析历史存储
type AnalysisStorer interface {
	Find(context.Context, *[]*AnalysisRecord, orm.Pager, ...orm.QueryOption) (int64, error)
	Get(context.Context, *AnalysisRecord, ...orm.QueryOption) error
	Add(context.Context, *AnalysisRecord) error
	Del(context.Context, *AnalysisRecord, ...orm.QueryOption) error
}

type Storer interface {
	Session() SessionStorer
	Analysis() AnalysisStorer
}

// Runtime 单个会话的在线状态：纯状态 + 媒体管理器
// Dispatch 经 m 串行化，同一会话的事件绝不并发转移
type Runtime struct {
	ID    string
	media *MediaManager

	m          sync.Mutex
	state      State
	lastActive time.Time
}

// State 当前状态的拷贝，读操作无需拿调度锁以外的锁
func (r *Runtime) State() State {
	r.m.Lock()
	defer r.m.Unlock()
	return r.state
}

func (r *Runtime) idleSince() time.Time {
	r.m.Lock()
	defer r.m.Unlock()
	return r.lastActive
}

// Core business domain
type Core struct {
	store    Storer
	conf     *conf.Bootstrap
	conv     *ffconv.Converter
	detector vdetect.Engine
	uni      uniqueid.Core

	runtimes *conc.Map[string, *Runtime]
}

type Option func(*Core)

// WithConverter 注入 ffmpeg 转换器
func WithConverter(conv *ffconv.Converter) Option {
	return func(c *Core) {
		c.conv = conv
	}
}

// WithDetector 注入远端检测引擎
func WithDetector(engine vdetect.Engine) Option {
	return func(c *Core) {
		c.detector = engine
	}
}

// NewCore create business domain
func NewCore(store Storer, cfg *conf.Bootstrap, uni uniqueid.Core, opts ...Option) Core {
	c := Core{
		store:    store,
		conf:     cfg,
		uni:      uni,
		conv:     ffconv.New(),
		detector: vdetect.NewEngine().SetConfig(vdetect.Config{
			BaseURL: cfg.Analysis.BaseURL,
			Timeout: cfg.Analysis.Timeout.Duration(),
		}),
		runtimes: conc.NewMap[string, *Runtime](),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
