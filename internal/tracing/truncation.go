package tracing

import (
	"strings"
)

const (
	// DefaultMaxLength 默认最大属性长度
	DefaultMaxLength = 200

	// MaxSQLLength SQL语句最大长度
	MaxSQLLength = 500

	// MaxRedisLength Redis键值最大长度
	MaxRedisLength = 100

	// MaxQdrantLength Qdrant向量内容最大长度
	MaxQdrantLength = 100

	// MaxCVLength 简历内容最大长度
	MaxCVLength = 150

	// MaxPromptLength Prompt内容最大长度
	MaxPromptLength = 300
)

// maskPIILookup 需要掩码处理的关键字
var maskPIILookup = map[string]bool{
	"email":    true,
	"phone":    true,
	"password": true,
	"id_card":  true,
	"address":  true,
	"name":     true,
	"secret":   true,
	"token":    true,
	"姓名":       true,
	"地址":       true,
	"身份证":      true,
}

// SafeAttributeValue 确保属性值安全：敏感字段掩码，超长值截断。
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for keyword := range maskPIILookup {
		if strings.Contains(lowerName, keyword) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 对个人敏感信息进行掩码处理
func MaskPII(value string) string {
	if value == "" {
		return ""
	}

	runes := []rune(value)
	length := len(runes)

	if length <= 1 {
		return "*"
	}
	if length <= 4 {
		if length == 2 {
			return string(runes[0:1]) + "*"
		}
		return string(runes[0:1]) + strings.Repeat("*", length-2) + string(runes[length-1:])
	}

	// 长字符串（邮箱、手机号）保留前后各2位
	return string(runes[0:2]) + strings.Repeat("*", length-4) + string(runes[length-2:])
}

// TruncateString 截断字符串，中间用...连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}

	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeSQL 安全处理SQL语句
func SafeSQL(sql string) string {
	return TruncateString(sql, MaxSQLLength)
}

// SafeRedisKey 安全处理Redis键
func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}

// SafeCVContent 安全处理简历内容
func SafeCVContent(content string) string {
	return TruncateString(content, MaxCVLength)
}

// SafePrompt 安全处理Prompt内容
func SafePrompt(p string) string {
	return TruncateString(p, MaxPromptLength)
}
