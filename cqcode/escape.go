package cqcode

import "strings"

const specialChars = "[]&,"

var (
	textEscaper  = strings.NewReplacer("&", "&amp;", "[", "&#91;", "]", "&#93;")
	valueEscaper = strings.NewReplacer("&", "&amp;", "[", "&#91;", "]", "&#93;", ",", "&#44;")
	unescaper    = strings.NewReplacer("&#44;", ",", "&#91;", "[", "&#93;", "]", "&amp;", "&")
)

// Escape 转义 CQ 码中的特殊字符。insideCQ 为 true 时额外转义逗号，用于标签内的值
func Escape(s string, insideCQ bool) string {
	if !strings.ContainsAny(s, specialChars) {
		return s
	}
	if insideCQ {
		return valueEscaper.Replace(s)
	}
	return textEscaper.Replace(s)
}

// Unescape 反转义，是 Escape 的逆操作
func Unescape(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return unescaper.Replace(s)
}
