package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"json围栏", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"裸围栏", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"无围栏", "  {\"a\":1}  ", `{"a":1}`},
		{"围栏外有说明", "好的，结果如下：\n```json\n{\"q\":\"x\"}\n```\n以上。", `{"q":"x"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripCodeFences(tc.in))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	text := `模型说：这是结果 {"score": 8, "detail": {"x": 1}} 后面还有话`
	got := ExtractJSONObject(text)
	assert.Equal(t, `{"score": 8, "detail": {"x": 1}}`, got)

	// 字符串内部的花括号不应影响配平
	text2 := `{"note": "包含 { 和 } 的文本", "ok": true}`
	got2 := ExtractJSONObject(text2)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(got2), &m))
	assert.Equal(t, true, m["ok"])

	assert.Equal(t, "", ExtractJSONObject("没有任何对象"))
}

func TestSanitizeJSON(t *testing.T) {
	// 字符串内部未转义的引号应被修复
	broken := `{"feedback": "候选人提到 "微服务" 经验不足"}`
	fixed := SanitizeJSON(broken)

	var m map[string]string
	require.NoError(t, json.Unmarshal([]byte(fixed), &m))
	assert.Contains(t, m["feedback"], "微服务")
}

func TestExtractStringField(t *testing.T) {
	text := `废话 "question": "请介绍你的Django项目" 更多废话`
	assert.Equal(t, "请介绍你的Django项目", ExtractStringField(text, "question"))
	assert.Equal(t, "", ExtractStringField(text, "missing"))
}
