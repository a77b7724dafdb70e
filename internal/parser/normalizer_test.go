package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTextCollapsesWhitespace(t *testing.T) {
	input := "John  Doe\n\tSoftware   Engineer"
	assert.Equal(t, "John Doe Software Engineer", NormalizeText(input))
}

func TestNormalizeTextKeepsContactChars(t *testing.T) {
	// @ + ( ) - . , # & 属于联系信息字符集，必须保留
	input := "john.doe@example.com +1 (555) 123-4567 C# R&D"
	assert.Equal(t, input, NormalizeText(input))
}

func TestNormalizeTextStripsSpecials(t *testing.T) {
	input := "Skills: Go* Python! [Rust] {C++}"
	out := NormalizeText(input)
	assert.NotContains(t, out, "*")
	assert.NotContains(t, out, "!")
	assert.NotContains(t, out, "[")
	assert.NotContains(t, out, "{")
	// 加号保留
	assert.Contains(t, out, "C++")
}

// 归一化必须幂等
func TestNormalizeTextIdempotent(t *testing.T) {
	input := "  Jane\tDoe  ** skills: Go, Rust!  "
	once := NormalizeText(input)
	assert.Equal(t, once, NormalizeText(once))
}

func TestNormalizeTextEmpty(t *testing.T) {
	assert.Equal(t, "", NormalizeText(""))
	assert.Equal(t, "", NormalizeText("   \t\n "))
}
