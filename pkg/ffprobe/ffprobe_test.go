package ffprobe

import (
	"encoding/json"
	"testing"
)

const sampleH264 = `{
	"streams": [
		{"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
		{"index": 1, "codec_name": "aac", "codec_type": "audio"}
	],
	"format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "120.533333"}
}`

const sampleWMV = `{
	"streams": [
		{"index": 0, "codec_name": "wmv3", "codec_type": "video"},
		{"index": 1, "codec_name": "wmav2", "codec_type": "audio"}
	],
	"format": {"format_name": "asf", "duration": "30.1"}
}`

func parse(t *testing.T, body string) *MediaInfo {
	t.Helper()
	var info MediaInfo
	if err := json.Unmarshal([]byte(body), &info); err != nil {
		t.Fatal(err)
	}
	return &info
}

func TestBrowserPlayableMP4(t *testing.T) {
	info := parse(t, sampleH264)
	if !info.BrowserPlayable() {
		t.Error("h264/aac in mp4 应可直接播放")
	}
	if d := info.Duration(); d < 120.5 || d > 120.6 {
		t.Errorf("时长解析错误: %v", d)
	}
}

func TestBrowserPlayableWMV(t *testing.T) {
	info := parse(t, sampleWMV)
	if info.BrowserPlayable() {
		t.Error("wmv 不应判定为可播放")
	}
}

func TestBrowserPlayableNoVideo(t *testing.T) {
	info := parse(t, `{"streams":[{"index":0,"codec_name":"aac","codec_type":"audio"}],"format":{"format_name":"mp4"}}`)
	if info.BrowserPlayable() {
		t.Error("无视频流不应判定为可播放")
	}
}

func TestBrowserPlayableBadAudio(t *testing.T) {
	// 视频可播但音频编码不在白名单
	info := parse(t, `{
		"streams": [
			{"index":0,"codec_name":"h264","codec_type":"video"},
			{"index":1,"codec_name":"wmav2","codec_type":"audio"}
		],
		"format": {"format_name": "mp4"}
	}`)
	if info.BrowserPlayable() {
		t.Error("不支持的音频编码应判定为不可播放")
	}
}

func TestDurationInvalid(t *testing.T) {
	info := parse(t, `{"format":{"format_name":"mp4","duration":"N/A"}}`)
	if d := info.Duration(); d != 0 {
		t.Errorf("非法时长应返回 0: %v", d)
	}
}
