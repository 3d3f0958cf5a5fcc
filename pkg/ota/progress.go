package ota

import (
	"io"
	"sync/atomic"
	"time"
)

const progressInterval = 100 * time.Millisecond

// ProgressReader 包装 io.Reader，周期性上报已读字节数
type ProgressReader struct {
	Total   int64
	Current atomic.Int64
	io.Reader
	OnProgress func(current, total int64)
	done       chan struct{}
}

func NewProgressReader(total int64, reader io.Reader, onProgress func(current, total int64)) *ProgressReader {
	p := ProgressReader{
		Total:      total,
		Reader:     reader,
		OnProgress: onProgress,
		done:       make(chan struct{}),
	}
	if onProgress != nil {
		go p.report()
	}
	return &p
}

// Close 停止上报协程，结束前补报一次最终进度
func (p *ProgressReader) Close() {
	close(p.done)
}

func (p *ProgressReader) report() {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.OnProgress(p.Current.Load(), p.Total)
		case <-p.done:
			p.OnProgress(p.Current.Load(), p.Total)
			return
		}
	}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.Reader.Read(b)
	p.Current.Add(int64(n))
	return n, err
}
