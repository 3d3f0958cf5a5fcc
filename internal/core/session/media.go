package session

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MediaManager 管理单个会话的媒体资源生命周期
// 临时播放句柄是独占资源：任一时刻至多一个存活，替换或清理时先释放旧句柄。
// 句柄只允许经由本管理器创建与回收，杜绝重复释放和悬挂引用。
type MediaManager struct {
	baseDir string

	m       sync.Mutex
	current *MediaResource
	handles map[string]string // handleID -> 文件路径，存活句柄表
}

func NewMediaManager(baseDir string) *MediaManager {
	return &MediaManager{
		baseDir: baseDir,
		handles: make(map[string]string, 1),
	}
}

// Current 当前资源，无媒体时返回 nil
func (m *MediaManager) Current() *MediaResource {
	m.m.Lock()
	defer m.m.Unlock()
	return m.current
}

// LiveHandles 存活句柄数，正常情况下恒为 0 或 1
func (m *MediaManager) LiveHandles() int {
	m.m.Lock()
	defer m.m.Unlock()
	return len(m.handles)
}

// SetSource 写入新上传的文件并创建新资源，先释放旧句柄再创建
func (m *MediaManager) SetSource(filename string, src io.Reader, size int64) (*MediaResource, error) {
	m.m.Lock()
	defer m.m.Unlock()

	m.releaseLocked()

	id := uuid.NewString()
	dir := filepath.Join(m.baseDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}

	path := filepath.Join(dir, "source"+strings.ToLower(filepath.Ext(filename)))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create media file: %w", err)
	}
	written, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("write media file: %w", err)
	}
	if size > 0 && written != size {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("short write: %d != %d", written, size)
	}

	handleID := uuid.NewString()
	res := MediaResource{
		ID:           id,
		HandleID:     handleID,
		SourceName:   filename,
		SourcePath:   path,
		PlayablePath: path,
		Dir:          dir,
		Size:         written,
	}
	m.current = &res
	m.handles[handleID] = path
	return &res, nil
}

// ReplaceWithConverted 用转换产物替换可播放文件
// 与 SetSource 同样是先释放再创建，但保留原始上传文件（分析仍用原始文件）
func (m *MediaManager) ReplaceWithConverted(convertedPath string) (*MediaResource, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.current == nil {
		return nil, fmt.Errorf("no media resource to replace")
	}
	prev := *m.current

	// 只回收旧句柄，原始文件保留
	delete(m.handles, prev.HandleID)
	if prev.Converted && prev.PlayablePath != prev.SourcePath {
		if err := os.Remove(prev.PlayablePath); err != nil && !os.IsNotExist(err) {
			slog.Warn("remove stale converted file", "path", prev.PlayablePath, "err", err)
		}
	}

	handleID := uuid.NewString()
	res := MediaResource{
		ID:           uuid.NewString(), // 新身份，旧资源的在途结果由守卫丢弃
		HandleID:     handleID,
		SourceName:   prev.SourceName,
		SourcePath:   prev.SourcePath,
		PlayablePath: convertedPath,
		Dir:          prev.Dir,
		Size:         prev.Size,
		Converted:    true,
	}
	m.current = &res
	m.handles[handleID] = convertedPath
	return &res, nil
}

// Release 无条件释放当前句柄与磁盘文件，幂等，可在无媒体时安全调用
func (m *MediaManager) Release() {
	m.m.Lock()
	defer m.m.Unlock()
	m.releaseLocked()
}

// PathForHandle 按句柄取可播放文件路径，句柄已释放时返回空
func (m *MediaManager) PathForHandle(handleID string) (string, bool) {
	m.m.Lock()
	defer m.m.Unlock()
	path, ok := m.handles[handleID]
	return path, ok
}

func (m *MediaManager) releaseLocked() {
	if m.current == nil {
		return
	}
	res := m.current
	delete(m.handles, res.HandleID)
	if res.Dir != "" {
		if err := os.RemoveAll(res.Dir); err != nil {
			slog.Warn("release media dir", "dir", res.Dir, "err", err)
		}
	}
	m.current = nil
}
