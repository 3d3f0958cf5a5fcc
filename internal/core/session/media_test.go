package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetSourceSingleLiveHandle(t *testing.T) {
	m := NewMediaManager(t.TempDir())

	var firstDir string
	// 连续上传 N 次，任一时刻至多一个存活句柄
	for i := 0; i < 5; i++ {
		res, err := m.SetSource("clip.mp4", strings.NewReader("fake video data"), 15)
		if err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			firstDir = res.Dir
		}
		if n := m.LiveHandles(); n != 1 {
			t.Fatalf("第 %d 次上传后期望 1 个存活句柄，实际 %d", i+1, n)
		}
	}

	// 旧资源目录应已删除
	if _, err := os.Stat(firstDir); !os.IsNotExist(err) {
		t.Fatal("被替换资源的目录应被删除")
	}
}

func TestSetSourceShortWrite(t *testing.T) {
	m := NewMediaManager(t.TempDir())
	if _, err := m.SetSource("clip.mp4", strings.NewReader("abc"), 100); err == nil {
		t.Fatal("声明大小与实际写入不符应报错")
	}
	if m.Current() != nil {
		t.Fatal("写入失败不应留下资源")
	}
}

func TestReplaceWithConverted(t *testing.T) {
	m := NewMediaManager(t.TempDir())
	orig, err := m.SetSource("clip.wmv", strings.NewReader("original"), 8)
	if err != nil {
		t.Fatal(err)
	}

	converted := filepath.Join(orig.Dir, "converted.mp4")
	if err := os.WriteFile(converted, []byte("converted"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := m.ReplaceWithConverted(converted)
	if err != nil {
		t.Fatal(err)
	}
	if res.ID == orig.ID {
		t.Fatal("转换产物应获得新资源身份")
	}
	if res.HandleID == orig.HandleID {
		t.Fatal("转换产物应获得新句柄")
	}
	if res.SourcePath != orig.SourcePath {
		t.Fatal("原始上传文件路径应保留，分析仍用原始文件")
	}
	if !res.Converted || res.PlayablePath != converted {
		t.Fatal("预览路径应指向转换产物")
	}
	if n := m.LiveHandles(); n != 1 {
		t.Fatalf("替换后期望 1 个存活句柄，实际 %d", n)
	}

	// 旧句柄失效，新句柄可取
	if _, ok := m.PathForHandle(orig.HandleID); ok {
		t.Fatal("旧句柄应已失效")
	}
	if path, ok := m.PathForHandle(res.HandleID); !ok || path != converted {
		t.Fatal("新句柄应指向转换产物")
	}
}

func TestReleaseIdempotent(t *testing.T) {
	m := NewMediaManager(t.TempDir())
	res, err := m.SetSource("clip.mp4", strings.NewReader("data"), 4)
	if err != nil {
		t.Fatal(err)
	}

	m.Release()
	if m.Current() != nil || m.LiveHandles() != 0 {
		t.Fatal("释放后不应有资源和句柄")
	}
	if _, err := os.Stat(res.Dir); !os.IsNotExist(err) {
		t.Fatal("释放应删除资源目录")
	}

	// 重复释放安全
	m.Release()
	m.Release()
}

func TestReleaseAfterConvertRemovesDir(t *testing.T) {
	m := NewMediaManager(t.TempDir())
	orig, err := m.SetSource("clip.wmv", strings.NewReader("original"), 8)
	if err != nil {
		t.Fatal(err)
	}
	converted := filepath.Join(orig.Dir, "converted.mp4")
	if err := os.WriteFile(converted, []byte("converted"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ReplaceWithConverted(converted); err != nil {
		t.Fatal(err)
	}

	// 转换赋予新身份后，释放仍要删掉最初的上传目录
	m.Release()
	if _, err := os.Stat(orig.Dir); !os.IsNotExist(err) {
		t.Fatal("释放应删除原始上传目录")
	}
}
