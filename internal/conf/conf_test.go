package conf

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetupConfigWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "config.toml")

	bc, err := SetupConfig(path)
	if err != nil {
		t.Fatalf("SetupConfig() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("默认配置未落盘: %v", err)
	}
	if bc.Server.HTTP.Port != 8080 {
		t.Errorf("默认端口 = %d, 期望 8080", bc.Server.HTTP.Port)
	}
	if bc.ConfigPath != path {
		t.Errorf("ConfigPath = %q, 期望 %q", bc.ConfigPath, path)
	}
}

func TestSetupConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	bc, err := SetupConfig(path)
	if err != nil {
		t.Fatalf("SetupConfig() error = %v", err)
	}

	bc.Server.Username = "ops"
	bc.Server.HTTP.Port = 9000
	if err := WriteConfig(bc, path); err != nil {
		t.Fatalf("WriteConfig() error = %v", err)
	}

	got, err := SetupConfig(path)
	if err != nil {
		t.Fatalf("重新读取配置失败: %v", err)
	}
	if got.Server.Username != "ops" || got.Server.HTTP.Port != 9000 {
		t.Errorf("回读配置 = %+v, 修改未生效", got.Server)
	}
}

func TestDurationSeconds(t *testing.T) {
	d := Duration(90)
	if got := d.Duration().Seconds(); got != 90 {
		t.Fatalf("Duration(90) = %v 秒, 期望 90", got)
	}
}
