// Package vdetect 封装远端暴力检测服务的 HTTP 客户端
// 服务契约：POST <base>/analysis，multipart 字段 file，2xx 返回 JSON 结果
package vdetect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const analysisPath = "/analysis"

// EnvBaseURL 未显式配置时读取的环境变量
const EnvBaseURL = "VIOLENS_ANALYSIS_URL"

// ErrNoEndpoint 检测服务地址未配置
// 属于配置错误，调用前快速失败，不发起网络请求
var ErrNoEndpoint = errors.New("vdetect: analysis endpoint is not configured")

// StatusError 非 2xx 响应，保留状态码和原始响应体原样上抛
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analysis service returned %d: %s", e.StatusCode, e.Body)
}

type Config struct {
	BaseURL string        // 检测服务根地址，如 http://127.0.0.1:8000
	Timeout time.Duration // 整个分析调用的超时，0 表示不限
}

// Engine 检测服务客户端
type Engine struct {
	cfg Config
	cli *http.Client
}

func NewEngine() Engine {
	return Engine{
		cli: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

func (e Engine) SetConfig(cfg Config) Engine {
	e.cfg = cfg
	e.cli.Timeout = cfg.Timeout
	return e
}

// BaseURL 解析检测服务地址：显式配置优先，其次环境变量，否则配置错误
func (e *Engine) BaseURL() (string, error) {
	if e.cfg.BaseURL != "" {
		return e.cfg.BaseURL, nil
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		return v, nil
	}
	return "", ErrNoEndpoint
}

// Analyze 上传视频文件并返回服务端的原始 JSON 响应体
// 非 2xx 返回 *StatusError，调用方保留上一次结果不动
func (e *Engine) Analyze(ctx context.Context, filePath string) ([]byte, error) {
	base, err := e.BaseURL()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer f.Close()

	// 大文件直接流式写 multipart，通过管道避免整体载入内存
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+analysisPath, pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call analysis service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read analysis response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	return body, nil
}
