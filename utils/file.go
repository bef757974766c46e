package utils

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SaveFile 将上传内容写入 dst，同时计算 MD5 和写入字节数
func SaveFile(src io.Reader, dst string) (string, int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", 0, fmt.Errorf("create directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", 0, fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	hash := md5.New()
	n, err := io.Copy(io.MultiWriter(out, hash), src)
	if err != nil {
		return "", n, fmt.Errorf("write file: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), n, out.Close()
}

// SecureFilename 把客户端提供的文件名转换为可安全落盘的 ASCII 文件名。
// 结果可能为空字符串。
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range name {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	name = b.String()

	name = strings.NewReplacer("/", " ", `\`, " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")

	return strings.Trim(name, "._")
}

// FileExtension 返回最后一个点之后的小写扩展名，没有点时返回空字符串
func FileExtension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}
