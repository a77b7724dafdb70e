package parser

import (
	"regexp"
	"strings"
)

var (
	// 连续空白折叠为单个空格
	whitespaceRe = regexp.MustCompile(`\s+`)
	// 清除联系信息字符集之外的特殊符号
	// 保留: 单词字符、空白、@ + ( ) - . , # &
	specialCharRe = regexp.MustCompile(`[^\w\s@\+\(\)\-\.\,\#\&]`)
)

// NormalizeText 清洗提取出的原始文本
// 幂等：对已归一化的文本再处理结果不变
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = specialCharRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
