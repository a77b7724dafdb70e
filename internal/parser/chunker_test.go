package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChunkTextShortInput 短文本应原样返回单个分块
func TestChunkTextShortInput(t *testing.T) {
	text := "短文本，不需要分块。"
	chunks := ChunkText(text, 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunkTextEmptyInput(t *testing.T) {
	assert.Nil(t, ChunkText("", 1000, 200))
}

// TestChunkTextOverlap 相邻分块之间应有重叠
func TestChunkTextOverlap(t *testing.T) {
	// 无句号文本，强制按固定长度切分
	text := strings.Repeat("a", 2500)
	chunks := ChunkText(text, 1000, 200)

	require.True(t, len(chunks) >= 2, "长文本应产生多个分块")
	// 第一块满长
	assert.Equal(t, 1000, len([]rune(chunks[0])))
	// 第二块以第一块的尾部200字符开头
	assert.True(t, strings.HasPrefix(chunks[1], strings.Repeat("a", 200)))
}

// TestChunkTextCoversTail 最后一个分块必须覆盖到文本结尾
func TestChunkTextCoversTail(t *testing.T) {
	text := strings.Repeat("b", 3000) + "TAIL"
	chunks := ChunkText(text, 1000, 200)
	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], "TAIL"))
}

// TestChunkTextTerminates 当分块終点恰好落在文本结尾时不能因重叠回退而死循环
func TestChunkTextTerminates(t *testing.T) {
	// 2000 字符恰好是 chunk_size 的整数倍，end 会精确落在 len(text)
	text := strings.Repeat("c", 2000)
	chunks := ChunkText(text, 1000, 200)

	require.NotEmpty(t, chunks)
	// [0,1000) [800,1800) [1600,2000)
	assert.Equal(t, 3, len(chunks))
	// 末块之后不应再产生分块
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))
}

// TestChunkTextSentenceBoundary 后半段有句号时应在句号后断开
func TestChunkTextSentenceBoundary(t *testing.T) {
	// 句号位于 700 处（> chunk_size/2），应在此断开
	text := strings.Repeat("x", 699) + "." + strings.Repeat("y", 800)
	chunks := ChunkText(text, 1000, 200)

	require.True(t, len(chunks) >= 2)
	assert.True(t, strings.HasSuffix(chunks[0], "."), "首块应在句号处结束")
	assert.Equal(t, 700, len([]rune(chunks[0])))
}

// TestChunkTextIgnoresEarlyPeriod 句号落在前半段时不作为断点
func TestChunkTextIgnoresEarlyPeriod(t *testing.T) {
	text := strings.Repeat("x", 300) + "." + strings.Repeat("y", 1500)
	chunks := ChunkText(text, 1000, 200)

	require.True(t, len(chunks) >= 2)
	assert.Equal(t, 1000, len([]rune(chunks[0])), "前半段句号不应提前截断")
}

// TestChunkTextTrimsWhitespace 分块应裁剪首尾空白
func TestChunkTextTrimsWhitespace(t *testing.T) {
	text := strings.Repeat("x", 600) + ". " + strings.Repeat("y", 900)
	chunks := ChunkText(text, 1000, 200)
	for i, c := range chunks {
		assert.Equal(t, strings.TrimSpace(c), c, "分块 %d 未裁剪空白", i)
	}
}
