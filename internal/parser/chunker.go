package parser

import (
	"strings"
)

// ChunkText 将文本切成带重叠的分块，供检索使用
// 分块按字符（rune）计数；在后半段遇到句号时优先在句边界断开
// 返回的每个分块都做了首尾空白裁剪
func ChunkText(text string, chunkSize, overlap int) []string {
	if text == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 5
	}

	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0

	for start < len(runes) {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		// 优先在句号处断开，但只接受落在分块后半段的句边界
		if end < len(runes) {
			if lastPeriod := lastIndexRune(runes, '.', start, end); lastPeriod > start+chunkSize/2 {
				end = lastPeriod + 1
			}
		}

		chunks = append(chunks, strings.TrimSpace(string(runes[start:end])))

		// 末块覆盖到文本结尾即结束，避免回退重叠造成的死循环
		if end == len(runes) {
			break
		}

		start = end - overlap
	}

	return chunks
}

// lastIndexRune 在 runes[start:end) 中查找 target 最后一次出现的位置，未找到返回 -1
func lastIndexRune(runes []rune, target rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if runes[i] == target {
			return i
		}
	}
	return -1
}
