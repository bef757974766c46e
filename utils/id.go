package utils

import (
	"strings"

	"github.com/google/uuid"
)

// UniqueIDLength 上传文件名前缀的长度
const UniqueIDLength = 8

// GenerateID 生成 8 位随机 ID（取 UUIDv4 的前 8 个十六进制字符）
func GenerateID() string {
	return uuid.NewString()[:UniqueIDLength]
}

// IsValidID 校验 ID 是否为 GenerateID 生成的格式
func IsValidID(id string) bool {
	if len(id) != UniqueIDLength {
		return false
	}
	return strings.Trim(id, "0123456789abcdef") == ""
}
