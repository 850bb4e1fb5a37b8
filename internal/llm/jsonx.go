package llm

import (
	"regexp"
	"strings"
)

// 模型输出里常见的 Markdown 代码围栏
var codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// StripCodeFences 去掉 ```json ... ``` 围栏，返回内部文本。
// 没有围栏时原样返回（仅去除首尾空白）。
func StripCodeFences(text string) string {
	if m := codeFencePattern.FindStringSubmatch(text); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// ExtractJSONObject 从自由文本中取出第一个花括号配平的JSON对象。
// 模型经常在JSON前后加说明文字，这里按花括号层级截取。
func ExtractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	inStr := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inStr {
				escaped = true
			}
		case '"':
			inStr = !inStr
		case '{':
			if !inStr {
				level++
			}
		case '}':
			if !inStr {
				level--
				if level == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}

// SanitizeJSON 修复字符串字面量内部未转义的双引号。
// 通过检查 " 之后的首个非空白字符是否为 :, ], }, 或 , 来判断
// 该引号是否为字符串的真正结束；不是则改写为 \"。
func SanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		if c == '"' && !escaped {
			if !inStr {
				inStr = true
				b.WriteByte(c)
			} else {
				j := i + 1
				for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
					j++
				}
				if j < len(src) && (src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}') {
					inStr = false
					b.WriteByte(c)
				} else {
					b.WriteString("\\\"")
				}
			}
			escaped = false

		} else if c == '\\' && !escaped {
			escaped = true
			b.WriteByte(c)

		} else {
			b.WriteByte(c)
			escaped = false
		}
	}

	return b.String()
}

// ExtractStringField 正则兜底：JSON整体解析失败时，从文本中抓取
// "field": "value" 形式的单个字符串字段。
func ExtractStringField(text, field string) string {
	pattern := regexp.MustCompile(`"` + regexp.QuoteMeta(field) + `"\s*:\s*"([^"]+)"`)
	if m := pattern.FindStringSubmatch(text); len(m) == 2 {
		return m[1]
	}
	return ""
}
