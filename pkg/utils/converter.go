package utils

import (
	"strings"
	"unicode/utf8"
)

// BytesToString 将消息的key/value转换为可展示的UTF-8字符串
// nil表示字段不存在，与空字符串区分
func BytesToString(b []byte) *string {
	if b == nil {
		return nil
	}
	var s string
	if utf8.Valid(b) {
		s = string(b)
	} else {
		// 非法字节替换为U+FFFD
		s = strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return &s
}

// Int32Or 返回指针值，指针为nil时返回默认值
func Int32Or(v *int32, def int32) int32 {
	if v == nil {
		return def
	}
	return *v
}

// StringOr 返回指针值，指针为nil时返回默认值
func StringOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}
