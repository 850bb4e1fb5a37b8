package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestScoreRange 相似度始终落在 [0,1]
func TestScoreRange(t *testing.T) {
	cases := []struct {
		name string
		job  string
		cv   string
	}{
		{"完全相同", "Python Django PostgreSQL", "Python Django PostgreSQL"},
		{"部分重叠", "Go Kafka Redis 微服务", "Java Spring Redis"},
		{"毫无关系", "厨师 烘焙 甜点", "kernel driver embedded"},
		{"空简历", "Python backend", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Score(tc.job, tc.cv)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		})
	}
}

// TestScoreIdentity 同一文本与自身的相似度应约等于1
func TestScoreIdentity(t *testing.T) {
	text := "Senior Go developer with Kubernetes and gRPC experience"
	assert.InDelta(t, 1.0, Score(text, text), 1e-9)
}

// TestScoreOrderIndependent 联合拟合后比较与调用顺序无关
func TestScoreOrderIndependent(t *testing.T) {
	job := "Python backend developer, 3+ years, Django, PostgreSQL"
	cv := "5 years Python, Django, PostgreSQL, AWS"
	assert.InDelta(t, Score(job, cv), Score(cv, job), 1e-12)
}

// TestScoreLexicalOverlap 词面高度重叠的JD/CV对，相似度应明显大于0.3
func TestScoreLexicalOverlap(t *testing.T) {
	job := "Python backend developer, 3+ years, Django, PostgreSQL"
	cv := "5 years Python, Django, PostgreSQL, AWS"
	s := Score(job, cv)
	assert.Greater(t, s, 0.3, "词面重叠的JD/CV相似度应大于0.3，实际 %f", s)
}

// TestScoreNoOverlap 零词面重叠时相似度为0
func TestScoreNoOverlap(t *testing.T) {
	assert.Equal(t, 0.0, Score("golang kubernetes", "marketing sales"))
}

// TestCosineSimilarityZeroVector 任一零向量时余弦相似度精确为0
func TestCosineSimilarityZeroVector(t *testing.T) {
	zero3 := []float64{0, 0, 0}
	assert.Equal(t, 0.0, CosineSimilarity(zero3, []float64{1, 2, 3}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 2, 3}, zero3))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0}, []float64{0}))
	// 维度不一致也不应panic
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1}, []float64{1, 2}))
}

// TestTokenize 单字符词元被过滤，大小写归一
func TestTokenize(t *testing.T) {
	toks := Tokenize("Python, 3+ years of Go!")
	assert.Equal(t, []string{"python", "years", "of", "go"}, toks)
}
