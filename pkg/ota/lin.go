package ota

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ixugo/goddd/pkg/system"
)

const (
	linuxTarPath = "upgrade.tar.gz"
	upgradeDir   = "upgrade"
)

// downloadPackage 下载升级包到工作目录，进度通过 onProgress 上报
func downloadPackage(link string, onProgress func(current, total int64)) error {
	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Get(link)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("下载失败，状态码: %d", resp.StatusCode)
	}

	dst := filepath.Join(system.Getwd(), linuxTarPath)
	_ = os.RemoveAll(dst)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	defer f.Close()

	p := NewProgressReader(resp.ContentLength, resp.Body, onProgress)
	defer p.Close()

	_, err = io.Copy(f, p)
	return err
}

// extractPackage 把升级包解压到 upgrade 目录，剥掉压缩包的顶层目录
// 解压后的内容由使用者在重启前自行替换
func extractPackage() error {
	dest := filepath.Join(system.Getwd(), upgradeDir)
	_ = os.RemoveAll(dest)

	src := filepath.Join(system.Getwd(), linuxTarPath)

	top, err := topLevelDir(src)
	if err != nil {
		return err
	}

	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := extractFile(tr, header, dest, top); err != nil {
			return err
		}
	}
	return nil
}

// topLevelDir 读出压缩包的第一级目录名
func topLevelDir(src string) (string, error) {
	file, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return "", err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		parts := strings.Split(header.Name, "/")
		if len(parts) > 0 && parts[0] != "" {
			return parts[0], nil
		}
	}
}

func extractFile(tr *tar.Reader, header *tar.Header, destDir, topDir string) error {
	relative := header.Name
	if topDir != "" {
		relative = strings.TrimPrefix(relative, topDir+"/")
	}
	if relative == "" || relative == topDir {
		return nil
	}

	target := filepath.Join(destDir, relative)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("非法的压缩包路径: %s", header.Name)
	}

	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, os.FileMode(header.Mode))
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(f, tr)
		return err
	}
	return nil
}
