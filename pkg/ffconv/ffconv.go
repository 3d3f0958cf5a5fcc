// Package ffconv 封装 ffmpeg，把任意上传格式转成浏览器可播放的 MP4
// 输出固定为 H.264 + AAC + faststart，供 <video> 渐进式播放
package ffconv

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ixugo/goddd/pkg/queue"
)

// ErrNotReady 初始化失败（找不到 ffmpeg），与转换本身的失败区分开
// 两者都可恢复：前者提示安装依赖，后者提示换源文件重试
var ErrNotReady = errors.New("ffconv: ffmpeg is not available")

// ProgressFunc 转换进度回调，percent 取值 0-100 且单调不减
type ProgressFunc func(percent int)

// Converter ffmpeg 转换器
// 懒初始化：首次 EnsureReady 时才探测 ffmpeg 可执行文件
type Converter struct {
	once     sync.Once
	readyErr error

	m         sync.Mutex
	ffmpegLog *queue.CirQueue[string]
}

func New() *Converter {
	return &Converter{
		ffmpegLog: queue.NewCirQueue[string](100),
	}
}

// EnsureReady 确认 ffmpeg 可用，只探测一次
// 与 Convert 分离，让初始化失败和转换失败保持可区分
func (c *Converter) EnsureReady() error {
	c.once.Do(func() {
		if _, err := exec.LookPath("ffmpeg"); err != nil {
			c.readyErr = fmt.Errorf("%w: %s", ErrNotReady, err)
		}
	})
	return c.readyErr
}

// buildArgs 转码参数：H.264 + AAC，faststart 让 moov 前置以便边下边播
func (c *Converter) buildArgs(src, dst string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-y",
		"-i", src,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
		dst,
	}
}

// Convert 把 src 转换为 MP4 并写到 dst
// durationSec 用于把 ffmpeg 的时间进度折算成百分比，传 0 则只回调 0 和 100。
// 中间产物写在临时目录，无论成败都会清理，不跨次累积。
func (c *Converter) Convert(ctx context.Context, src, dst string, durationSec float64, onProgress ProgressFunc) error {
	if err := c.EnsureReady(); err != nil {
		return err
	}
	if src == "" || dst == "" {
		return fmt.Errorf("src and dst are required")
	}

	workDir, err := os.MkdirTemp("", "ffconv-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	tmpOut := filepath.Join(workDir, "converted.mp4")
	cmd := exec.CommandContext(ctx, "ffmpeg", c.buildArgs(src, tmpOut)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("get stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	var wg sync.WaitGroup
	parser := newProgressParser(durationSec, onProgress)
	wg.Add(2)
	go func() {
		defer wg.Done()
		parser.consume(stdout)
	}()
	go func() {
		defer wg.Done()
		c.readStderr(stderr)
	}()

	if onProgress != nil {
		onProgress(0)
	}
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg convert failed: %w, log: %s", err, c.lastLog())
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create dst dir: %w", err)
	}
	if err := os.Rename(tmpOut, dst); err != nil {
		// 跨文件系统时 rename 不可用，退化为复制
		if err := copyFile(tmpOut, dst); err != nil {
			return fmt.Errorf("move converted file: %w", err)
		}
	}

	if onProgress != nil {
		onProgress(100)
	}
	return nil
}

// readStderr 收集 ffmpeg 告警输出，失败时取末尾若干行拼进错误信息
func (c *Converter) readStderr(r io.Reader) {
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		c.m.Lock()
		c.ffmpegLog.Push(scan.Text())
		c.m.Unlock()
	}
}

func (c *Converter) lastLog() string {
	c.m.Lock()
	defer c.m.Unlock()
	lines := c.ffmpegLog.Range()
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "; ")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
