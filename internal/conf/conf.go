package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration 配置文件里的秒数
type Duration int

func (d Duration) Duration() time.Duration {
	return time.Duration(d) * time.Second
}

// Bootstrap 全局配置
type Bootstrap struct {
	BuildVersion string   `toml:"-"`
	ConfigPath   string   `toml:"-"`
	Server       Server   `toml:"server"`
	Data         Data     `toml:"data"`
	Analysis     Analysis `toml:"analysis"`
	Monitor      Monitor  `toml:"monitor"`
}

type Server struct {
	Debug    bool   `toml:"debug"`
	Username string `toml:"username"` // 管理员账号，为空时默认 admin
	Password string `toml:"password"`
	HTTP     HTTP   `toml:"http"`
	Media    Media  `toml:"media"`
}

type HTTP struct {
	Port      int    `toml:"port"`       // HTTP 监听端口
	JwtSecret string `toml:"jwt_secret"` // 为空则启动时随机生成
	PProf     PProf  `toml:"pprof"`
}

type PProf struct {
	Enabled   bool     `toml:"enabled"`
	AccessIps []string `toml:"access_ips"`
}

// Media 上传媒体的存储配置
type Media struct {
	StorageDir   string `toml:"storage_dir"`    // 上传与转换产物的根目录
	MaxUploadMiB int64  `toml:"max_upload_mib"` // 单个文件上限（MiB）
	RetainHours  int    `toml:"retain_hours"`   // 闲置会话媒体保留小时数，超时清理
}

type Data struct {
	Database Database `toml:"database"`
}

type Database struct {
	Dsn             string   `toml:"dsn"` // sqlite 文件名或 mysql/postgres DSN
	MaxIdleConns    int64    `toml:"max_idle_conns"`
	MaxOpenConns    int64    `toml:"max_open_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
	SlowThreshold   Duration `toml:"slow_threshold"`
}

// Analysis 远端检测服务配置
// base_url 为空时依次回退到环境变量 VIOLENS_ANALYSIS_URL，再缺省则分析请求报配置错误
type Analysis struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"` // 0 表示不限时
}

// Monitor 实时监控模式配置
type Monitor struct {
	AlertInterval Duration `toml:"alert_interval"` // 模拟告警的产生间隔
	MaxAlerts     int      `toml:"max_alerts"`     // 内存中保留的最近告警条数
}

// 默认配置，首次启动时落盘
func defaultBootstrap() *Bootstrap {
	return &Bootstrap{
		Server: Server{
			Debug: false,
			HTTP:  HTTP{Port: 8080},
			Media: Media{
				StorageDir:   "configs/media",
				MaxUploadMiB: 100,
				RetainHours:  24,
			},
		},
		Data: Data{
			Database: Database{
				Dsn:             "violens.db",
				MaxIdleConns:    10,
				MaxOpenConns:    50,
				ConnMaxLifetime: 3600,
				SlowThreshold:   1,
			},
		},
		Analysis: Analysis{
			Timeout: 120,
		},
		Monitor: Monitor{
			AlertInterval: 8,
			MaxAlerts:     50,
		},
	}
}

// SetupConfig 读取 TOML 配置，文件不存在时写出默认配置再返回
func SetupConfig(path string) (*Bootstrap, error) {
	bc := defaultBootstrap()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := writeDefault(path, bc); err != nil {
			return nil, err
		}
		bc.ConfigPath = path
		return bc, nil
	}

	if err := toml.Unmarshal(data, bc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	bc.ConfigPath = path
	return bc, nil
}

// WriteConfig 配置落盘，凭据修改后保存
func WriteConfig(bc *Bootstrap, path string) error {
	data, err := toml.Marshal(bc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func writeDefault(path string, bc *Bootstrap) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := toml.Marshal(bc)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}
