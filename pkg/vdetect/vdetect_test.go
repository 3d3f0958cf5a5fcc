package vdetect

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("fake video bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAnalyzeOK(t *testing.T) {
	var gotField, gotFilename string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analysis" {
			t.Errorf("路径错误: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		if fhs := r.MultipartForm.File["file"]; len(fhs) == 1 {
			gotField = "file"
			gotFilename = fhs[0].Filename
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"summary":"ok","overall_risk":"low","detections":[]}`))
	}))
	defer srv.Close()

	e := NewEngine().SetConfig(Config{BaseURL: srv.URL})
	body, err := e.Analyze(context.Background(), writeTempVideo(t))
	if err != nil {
		t.Fatal(err)
	}
	if gotField != "file" {
		t.Error("multipart 字段名必须是 file")
	}
	if gotFilename != "clip.mp4" {
		t.Errorf("文件名错误: %s", gotFilename)
	}
	if !strings.Contains(string(body), `"summary":"ok"`) {
		t.Errorf("响应体错误: %s", body)
	}
}

func TestAnalyzeNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("model backend unavailable"))
	}))
	defer srv.Close()

	e := NewEngine().SetConfig(Config{BaseURL: srv.URL})
	_, err := e.Analyze(context.Background(), writeTempVideo(t))

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("应返回 StatusError，得到 %v", err)
	}
	// 状态码和响应体原样保留
	if se.StatusCode != http.StatusBadGateway {
		t.Errorf("状态码错误: %d", se.StatusCode)
	}
	if se.Body != "model backend unavailable" {
		t.Errorf("响应体错误: %q", se.Body)
	}
}

func TestAnalyzeNoEndpoint(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	e := NewEngine()
	_, err := e.Analyze(context.Background(), writeTempVideo(t))
	if !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("未配置地址应快速失败，得到 %v", err)
	}
}

func TestBaseURLFromEnv(t *testing.T) {
	t.Setenv(EnvBaseURL, "http://10.0.0.8:8000")
	e := NewEngine()
	base, err := e.BaseURL()
	if err != nil {
		t.Fatal(err)
	}
	if base != "http://10.0.0.8:8000" {
		t.Errorf("环境变量地址未生效: %s", base)
	}
}
