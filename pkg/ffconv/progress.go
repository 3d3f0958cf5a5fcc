package ffconv

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// progressParser 解析 ffmpeg -progress 输出的 key=value 行
// out_time_ms 单位是微秒（ffmpeg 的历史遗留命名），折算成 0-100 的百分比
// 对外保证单调不减，ffmpeg 偶发的时间回退不会体现在回调里
type progressParser struct {
	totalUS    float64
	onProgress ProgressFunc
	last       int
}

func newProgressParser(durationSec float64, onProgress ProgressFunc) *progressParser {
	return &progressParser{
		totalUS:    durationSec * 1_000_000,
		onProgress: onProgress,
	}
}

// consume 逐行消费 progress 输出直到 EOF
func (p *progressParser) consume(r io.Reader) {
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		p.feed(scan.Text())
	}
}

// feed 处理单行，返回本行是否推进了进度
func (p *progressParser) feed(line string) bool {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return false
	}
	switch key {
	case "out_time_ms", "out_time_us":
		us, err := strconv.ParseFloat(value, 64)
		if err != nil || p.totalUS <= 0 {
			return false
		}
		percent := int(us / p.totalUS * 100)
		return p.report(percent)
	case "progress":
		if value == "end" {
			return p.report(100)
		}
	}
	return false
}

// report 回调百分比，夹在 [0,100] 并保持单调不减
func (p *progressParser) report(percent int) bool {
	percent = min(max(percent, 0), 100)
	if percent <= p.last {
		return false
	}
	p.last = percent
	if p.onProgress != nil {
		p.onProgress(percent)
	}
	return true
}
