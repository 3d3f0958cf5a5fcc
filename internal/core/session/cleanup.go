package session

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// StartCleanupWorker 启动定时清理协程
// 程序启动时执行一次清理，随后每 60 分钟执行一次
func (c Core) StartCleanupWorker() {
	retain := c.conf.Server.Media.RetainHours
	if retain <= 0 {
		slog.Info("session media cleanup disabled")
		return
	}

	slog.Info("session media cleanup worker started",
		"retain_hours", retain,
		"storage_dir", c.conf.Server.Media.StorageDir,
	)

	c.runCleanup()

	ticker := time.NewTicker(60 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.runCleanup()
	}
}

// runCleanup 两段清理：闲置运行时的媒体回收 + 无主目录回收
func (c Core) runCleanup() {
	cutoff := time.Now().Add(-time.Duration(c.conf.Server.Media.RetainHours) * time.Hour)
	c.releaseIdleRuntimes(cutoff)
	c.removeOrphanDirs()
}

// releaseIdleRuntimes 释放超过保留时长未活动的会话媒体
// 进行中的转换或分析不打断，留到下一轮
func (c Core) releaseIdleRuntimes(cutoff time.Time) {
	ctx := context.Background()
	released := 0
	c.runtimes.Range(func(id string, r *Runtime) bool {
		if r.idleSince().After(cutoff) {
			return true
		}
		st := r.State()
		if st.Resource == nil || st.Busy == BusyConverting || st.Busy == BusyAnalyzing {
			return true
		}
		c.dispatch(ctx, r, Event{Kind: EventReset})
		c.persist(ctx, r)
		released++
		return true
	})
	if released > 0 {
		slog.Info("idle session media released", "count", released)
	}
}

// removeOrphanDirs 删除存储根目录下不属于任何在线会话的残留目录
// 进程重启后旧会话的媒体文件只能走这条路径回收
func (c Core) removeOrphanDirs() {
	root := c.conf.Server.Media.StorageDir
	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("scan media storage", "dir", root, "err", err)
		}
		return
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, ok := c.runtimes.Load(e.Name()); ok {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("remove orphan media dir", "dir", dir, "err", err)
			continue
		}
		slog.Info("orphan media dir removed", "dir", dir)
	}
}
