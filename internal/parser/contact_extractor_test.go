package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractContactInfoEmail(t *testing.T) {
	info := ExtractContactInfo("Contact me at jane.doe@example.com or john@backup.org", 5)
	assert.Equal(t, "jane.doe@example.com", info.Email, "应取第一个邮箱")
}

// 电话模式按优先级匹配：国际格式先于裸10位数字
func TestExtractContactInfoPhonePriority(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"国际格式", "Phone: +86 138 0013 8000", "+86 138 0013 8000"},
		{"美式括号格式", "Call (555) 123-4567 today", "(555) 123-4567"},
		{"裸10位数字", "ID 55 phone 5551234567 end", "5551234567"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ExtractContactInfo(tt.text, 5)
			assert.Equal(t, tt.want, info.Phone)
		})
	}
}

// 高优先级模式存在时，即使低优先级模式也能匹配，也取高优先级的结果
func TestExtractContactInfoPhoneFirstPatternWins(t *testing.T) {
	text := "+1 555 123 4567 backup (999) 888-7777"
	info := ExtractContactInfo(text, 5)
	assert.Equal(t, "+1 555 123 4567", info.Phone)
}

func TestExtractContactInfoName(t *testing.T) {
	text := "Jane Doe\nSenior Engineer at ACME\njane@example.com"
	info := ExtractContactInfo(text, 5)
	assert.Equal(t, "Jane Doe", info.Name)
}

// 含数字、@ 或 + 的行不能作为姓名
func TestExtractContactInfoNameSkipsDisqualified(t *testing.T) {
	text := "jane@example.com\n+86 13800138000\nJane Doe\nrest of resume"
	info := ExtractContactInfo(text, 5)
	assert.Equal(t, "Jane Doe", info.Name)
}

// 超过4个词的行不能作为姓名
func TestExtractContactInfoNameTokenLimit(t *testing.T) {
	text := "An Extremely Long Headline With Many Words\nJane Doe"
	info := ExtractContactInfo(text, 5)
	assert.Equal(t, "Jane Doe", info.Name)
}

// 只扫描前N行
func TestExtractContactInfoNameScanWindow(t *testing.T) {
	text := "l1@x\nl2@x\nl3@x\nl4@x\nl5@x\nJane Doe"
	info := ExtractContactInfo(text, 5)
	assert.Empty(t, info.Name, "第6行的姓名不应被扫描到")
}

func TestExtractContactInfoEmptyText(t *testing.T) {
	info := ExtractContactInfo("", 5)
	assert.Empty(t, info.Name)
	assert.Empty(t, info.Email)
	assert.Empty(t, info.Phone)
}
