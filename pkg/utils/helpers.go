package utils

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"hash/fnv"
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// StringPtr 返回字符串的指针
func StringPtr(s string) *string {
	return &s
}

// TimePtr 返回时间的指针，零值返回nil
func TimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// IntPtr 返回int的指针
func IntPtr(i int) *int {
	return &i
}

// Float64Ptr 返回float64的指针
func Float64Ptr(f float64) *float64 {
	return &f
}

// CalculateMD5 计算字节切片的MD5
func CalculateMD5(data []byte) string {
	hasher := md5.New()
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

// HashTextID 由文本内容生成稳定的十进制字符串ID。
// 用于调用方未提供岗位ID时，从JD文本派生一个可复现的ID。
func HashTextID(text string) string {
	h := fnv.New64a()
	h.Write([]byte(text))
	return strconv.FormatUint(h.Sum64(), 10)
}

// ConvertArrayToJSON 将字符串数组转换为JSON列类型
func ConvertArrayToJSON(arr []string) datatypes.JSON {
	if len(arr) == 0 {
		return datatypes.JSON("[]")
	}

	jsonBytes, err := json.Marshal(arr)
	if err != nil {
		// 序列化字符串数组基本不会失败，兜底返回空数组
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(jsonBytes)
}
