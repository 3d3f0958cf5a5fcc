package session

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ixugo/goddd/pkg/reason"
)

// 上传校验的三类失败各有独立文案，前端按原文展示
const (
	msgInvalidType = "Please upload a valid video file"
	msgBadExt      = "Unsupported format. Allowed: MP4, AVI, MOV, WMV, FLV, WebM"
)

// msgTooLarge 大小提示跟随配置的上限，默认 100MiB 时文案与前端一致
func msgTooLarge(maxBytes int64) string {
	return fmt.Sprintf("File size must be less than %dMB", maxBytes>>20)
}

// 扩展名白名单，分析侧支持的容器
var allowedExts = map[string]struct{}{
	".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".flv": {}, ".webm": {},
}

// ValidateUpload 上传边界校验：内容嗅探 → 扩展名 → 大小
// head 取文件前 512 字节做内容嗅探，改后缀的非视频文件在第一步就拦下；
// 类型错误与大小超限必须返回可区分的提示。
func ValidateUpload(filename string, head []byte, size, maxBytes int64) error {
	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "video/") && !isSniffAmbiguous(contentType) {
		return reason.ErrBadRequest.SetMsg(msgInvalidType)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExts[ext]; !ok {
		return reason.ErrBadRequest.SetMsg(msgBadExt)
	}

	if size > maxBytes {
		return reason.ErrBadRequest.SetMsg(msgTooLarge(maxBytes))
	}
	return nil
}

// isSniffAmbiguous 嗅探不出具体类型时放行到扩展名校验
// AVI/WMV/FLV 部分封装嗅探结果是 application/octet-stream 或专有类型，不能据此拒绝
func isSniffAmbiguous(contentType string) bool {
	switch contentType {
	case "application/octet-stream", "video/avi", "video/x-msvideo", "video/x-flv", "video/webm":
		return true
	}
	return false
}
