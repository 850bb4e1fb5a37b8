package similarity // JD与简历文本的TF-IDF余弦相似度

import (
	"math"
	"regexp"
	"strings"
)

// 词元为至少2个字符的字母/数字序列，单字符噪声直接丢弃
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Tokenize 小写化后按词元模式切分
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// Vectorizer 一次比较专用的TF-IDF向量器。
// 每次比较都在两篇文档的联合语料上重新拟合，
// 比较彼此独立、与调用顺序无关，不存在跨请求共享的可变状态。
type Vectorizer struct {
	vocabulary map[string]int
	idf        []float64
}

// NewVectorizer 在给定文档集上拟合词表和IDF（平滑后加1，再做L2归一化）
func NewVectorizer(docs []string) *Vectorizer {
	v := &Vectorizer{vocabulary: make(map[string]int)}

	tokenized := make([][]string, len(docs))
	for i, doc := range docs {
		tokenized[i] = Tokenize(doc)
		for _, tok := range tokenized[i] {
			if _, ok := v.vocabulary[tok]; !ok {
				v.vocabulary[tok] = len(v.vocabulary)
			}
		}
	}

	// 文档频率
	df := make([]int, len(v.vocabulary))
	for _, toks := range tokenized {
		seen := make(map[int]bool, len(toks))
		for _, tok := range toks {
			idx := v.vocabulary[tok]
			if !seen[idx] {
				seen[idx] = true
				df[idx]++
			}
		}
	}

	n := float64(len(docs))
	v.idf = make([]float64, len(df))
	for i, d := range df {
		v.idf[i] = math.Log((1+n)/(1+float64(d))) + 1
	}

	return v
}

// Transform 将一篇文档映射为L2归一化的TF-IDF向量
func (v *Vectorizer) Transform(doc string) []float64 {
	vec := make([]float64, len(v.vocabulary))
	for _, tok := range Tokenize(doc) {
		if idx, ok := v.vocabulary[tok]; ok {
			vec[idx]++
		}
	}

	var norm float64
	for i := range vec {
		vec[i] *= v.idf[i]
		norm += vec[i] * vec[i]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// CosineSimilarity 余弦相似度。任一向量为零向量时定义为0，避免除零。
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// 浮点误差钳制到 [0,1]
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// Score 计算JD文本与简历文本的相似度，返回 [0,1]。
// 向量器在 [jobText, cvText] 联合语料上拟合，保证两个向量同词表同维度。
func Score(jobText, cvText string) float64 {
	v := NewVectorizer([]string{jobText, cvText})
	return CosineSimilarity(v.Transform(jobText), v.Transform(cvText))
}
