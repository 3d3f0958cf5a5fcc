package session

import (
	"github.com/ixugo/goddd/pkg/orm"
)

// Mode 会话顶层模式
// home 是唯一入口，live_monitoring 与 video_analysis 互为兄弟，只能经 home 往返
type Mode string

const (
	ModeHome           Mode = "home"
	ModeLiveMonitoring Mode = "live_monitoring"
	ModeVideoAnalysis  Mode = "video_analysis"
)

// Busy 互斥的进行中操作标记
// converting 与 analyzing 互斥：两者都会改写共享会话字段，不允许交错
type Busy string

const (
	BusyIdle       Busy = "idle"
	BusyUploading  Busy = "uploading"
	BusyConverting Busy = "converting"
	BusyAnalyzing  Busy = "analyzing"
)

// MediaResource 当前会话持有的媒体资源
// ID 即资源身份，是陈旧响应守卫的键：资源被替换后，旧 ID 的异步结果一律丢弃
type MediaResource struct {
	ID           string  `json:"id"`            // 资源身份（uuid）
	HandleID     string  `json:"handle_id"`     // 临时播放句柄，释放后失效
	SourceName   string  `json:"source_name"`   // 原始文件名
	SourcePath   string  `json:"-"`             // 原始上传文件路径，转换后仍然保留（分析用原始文件）
	PlayablePath string  `json:"-"`             // 当前用于预览的文件路径
	Dir          string  `json:"-"`             // 该资源的磁盘目录，释放时整目录删除
	Size         int64   `json:"size"`          // 原始文件大小（字节）
	IsPlayable   bool    `json:"is_playable"`   // 能力探测结论
	Converted    bool    `json:"converted"`     // 预览文件是否为转换产物
	Duration     float64 `json:"duration"`      // 探测到的时长（秒），可能为 0
}

// Session 会话持久化模型
type Session struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	Mode       string    `gorm:"column:mode" json:"mode"`
	Busy       string    `gorm:"column:busy" json:"busy"`
	ResourceID string    `gorm:"column:resource_id" json:"resource_id"` // 当前媒体资源 ID，无媒体时为空
	SourceName string    `gorm:"column:source_name" json:"source_name"`
	IsPlayable bool      `gorm:"column:is_playable" json:"is_playable"`
	Converted  bool      `gorm:"column:converted" json:"converted"`
	AnalyzedAt *orm.Time `gorm:"column:analyzed_at" json:"analyzed_at"`
	CreatedAt  orm.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  orm.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (*Session) TableName() string {
	return "sessions"
}

// AnalysisRecord 分析历史记录，检测区间以 JSON 形式整条落库
type AnalysisRecord struct {
	ID             int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID      string   `gorm:"column:session_id;index" json:"session_id"`
	ResourceID     string   `gorm:"column:resource_id" json:"resource_id"`
	SourceName     string   `gorm:"column:source_name" json:"source_name"`
	Summary        string   `gorm:"column:summary" json:"summary"`
	TotalDuration  float64  `gorm:"column:total_duration" json:"total_duration"`
	OverallRisk    string   `gorm:"column:overall_risk" json:"overall_risk"`
	DetectionCount int      `gorm:"column:detection_count" json:"detection_count"`
	Detections     string   `gorm:"column:detections;type:text" json:"detections"`
	CreatedAt      orm.Time `gorm:"column:created_at" json:"created_at"`
}

func (*AnalysisRecord) TableName() string {
	return "analyses"
}
