package data

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/chanakyavasantha/violens/internal/core/session"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

// LegacyReport 旧版分析报告模型（用于迁移）
// 早期版本把分析结果存在 violence_reports 单表，风险等级为大写枚举
type LegacyReport struct {
	ID         int64    `gorm:"primaryKey"`
	SessionID  string   `gorm:"column:session_id"`
	FileName   string   `gorm:"column:file_name"`
	Summary    string   `gorm:"column:summary"`
	Risk       string   `gorm:"column:risk"`
	Duration   float64  `gorm:"column:duration"`
	Detections string   `gorm:"column:detections"`
	CreatedAt  orm.Time `gorm:"column:created_at"`
}

func (*LegacyReport) TableName() string {
	return "violence_reports"
}

// MigrateLegacyReports 迁移 violence_reports 数据到 analyses 表
// 迁移完成后，旧表数据保留，建议手动确认后删除
func MigrateLegacyReports(db *gorm.DB) error {
	ctx := context.Background()

	if !db.Migrator().HasTable("violence_reports") {
		slog.Info("没有需要迁移的旧表数据")
		return nil
	}

	var reports []LegacyReport
	if err := db.WithContext(ctx).Find(&reports).Error; err != nil {
		slog.Error("查询 violence_reports 失败", "err", err)
		return err
	}

	migratedCount := 0
	for _, r := range reports {
		// 检查是否已迁移过
		var existing session.AnalysisRecord
		if err := db.WithContext(ctx).
			Where("session_id = ? AND created_at = ?", r.SessionID, r.CreatedAt).
			First(&existing).Error; err == nil {
			slog.Debug("分析记录已存在，跳过", "session", r.SessionID)
			continue
		}

		rec := session.AnalysisRecord{
			SessionID:      r.SessionID,
			SourceName:     r.FileName,
			Summary:        r.Summary,
			TotalDuration:  r.Duration,
			OverallRisk:    strings.ToLower(r.Risk),
			DetectionCount: countDetections(r.Detections),
			Detections:     r.Detections,
			CreatedAt:      r.CreatedAt,
		}
		if err := db.WithContext(ctx).Create(&rec).Error; err != nil {
			slog.Error("迁移分析记录失败", "err", err, "session", r.SessionID)
			continue
		}
		migratedCount++
	}
	slog.Info("分析记录迁移完成", "total", len(reports), "migrated", migratedCount)

	slog.Info("数据迁移全部完成！旧表数据已保留，请手动确认后删除。")
	return nil
}

func countDetections(raw string) int {
	if raw == "" {
		return 0
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return 0
	}
	return len(items)
}
