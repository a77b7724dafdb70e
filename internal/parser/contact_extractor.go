package parser

import (
	"regexp"
	"strings"

	"job-match-go/internal/types"
)

var (
	emailRe = regexp.MustCompile(`[\w\.-]+@[\w\.-]+`)

	// 电话模式按优先级排列：国际格式 > 美式括号格式 > 裸10位数字
	// 依次尝试，命中即停
	phoneRes = []*regexp.Regexp{
		regexp.MustCompile(`(\+?\d{1,3}[\s\-]?\d{3,4}[\s\-]?\d{3,4}[\s\-]?\d{3,4})`),
		regexp.MustCompile(`(\(\d{3}\)\s?\d{3}[\s\-]?\d{4})`),
		regexp.MustCompile(`(\d{10})`),
	}

	// 姓名候选行不能包含 @、+ 或数字
	nameDisqualifierRe = regexp.MustCompile(`[@\+\d]`)
)

// ExtractContactInfo 用正则从文本中抽取姓名、邮箱和电话
// scanLines 限制姓名候选扫描的行数
func ExtractContactInfo(text string, scanLines int) types.ContactInfo {
	if text == "" {
		return types.ContactInfo{}
	}

	info := types.ContactInfo{}

	// 邮箱取第一个匹配
	if m := emailRe.FindString(text); m != "" {
		info.Email = m
	}

	// 电话按模式优先级匹配
	for _, re := range phoneRes {
		if m := re.FindString(text); m != "" {
			info.Phone = m
			break
		}
	}

	// 姓名：前若干行中第一条不超过4个词且不含数字/@/+的非空行
	lines := strings.Split(text, "\n")
	if scanLines <= 0 {
		scanLines = 5
	}
	if len(lines) > scanLines {
		lines = lines[:scanLines]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(strings.Fields(line)) <= 4 && !nameDisqualifierRe.MatchString(line) {
			info.Name = line
			break
		}
	}

	return info
}
