// Package ffprobe 封装 ffprobe，探测媒体文件能否在浏览器中直接播放
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Stream ffprobe 输出的单个流信息
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"` // video / audio
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// Format ffprobe 输出的容器信息
type Format struct {
	FormatName string `json:"format_name"` // 逗号分隔，如 mov,mp4,m4a,3gp,3g2,mj2
	Duration   string `json:"duration"`    // 秒，字符串形式
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// MediaInfo 一次探测的结果
type MediaInfo struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// 浏览器原生可解码的编解码组合
var (
	playableVideoCodecs = map[string]struct{}{
		"h264": {}, "vp8": {}, "vp9": {}, "av1": {},
	}
	playableAudioCodecs = map[string]struct{}{
		"aac": {}, "opus": {}, "vorbis": {}, "mp3": {},
	}
	playableContainers = map[string]struct{}{
		"mp4": {}, "webm": {}, "mov": {}, "m4a": {}, "matroska": {},
	}
)

var (
	lookOnce sync.Once
	lookErr  error
)

// ensureBinary 首次调用时检查 ffprobe 是否可用
func ensureBinary() error {
	lookOnce.Do(func() {
		if _, err := exec.LookPath("ffprobe"); err != nil {
			lookErr = fmt.Errorf("ffprobe not found in PATH: %w", err)
		}
	})
	return lookErr
}

// Probe 执行 ffprobe 并解析 JSON 输出
// 探测失败只代表预览不可用，不影响后续分析流程，由调用方降级处理
func Probe(ctx context.Context, path string) (*MediaInfo, error) {
	if err := ensureBinary(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	var info MediaInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return &info, nil
}

// Duration 容器时长（秒），不可用时返回 0
func (m *MediaInfo) Duration() float64 {
	d, err := strconv.ParseFloat(m.Format.Duration, 64)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// videoStream 返回第一个视频流
func (m *MediaInfo) videoStream() *Stream {
	for i := range m.Streams {
		if m.Streams[i].CodecType == "video" {
			return &m.Streams[i]
		}
	}
	return nil
}

// BrowserPlayable 判断媒体能否被浏览器原生 <video> 解码
// 容器、视频编码、音频编码（若存在）都要在白名单内
func (m *MediaInfo) BrowserPlayable() bool {
	container := false
	for _, name := range strings.Split(m.Format.FormatName, ",") {
		if _, ok := playableContainers[strings.TrimSpace(name)]; ok {
			container = true
			break
		}
	}
	if !container {
		return false
	}

	video := m.videoStream()
	if video == nil {
		return false
	}
	if _, ok := playableVideoCodecs[video.CodecName]; !ok {
		return false
	}

	for _, s := range m.Streams {
		if s.CodecType != "audio" {
			continue
		}
		if _, ok := playableAudioCodecs[s.CodecName]; !ok {
			return false
		}
	}
	return true
}
