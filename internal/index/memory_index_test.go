package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-match-go/internal/types"
)

func chunksOf(contents ...string) []types.TextChunk {
	chunks := make([]types.TextChunk, len(contents))
	for i, c := range contents {
		chunks[i] = types.TextChunk{Index: i, Content: c}
	}
	return chunks
}

func TestMemoryIndex_SearchOrdersBySimilarity(t *testing.T) {
	idx := NewMemoryIndex()
	err := idx.Add(chunksOf("golang后端", "前端开发", "数据库调优"), [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	})
	require.NoError(t, err)
	require.Equal(t, 3, idx.Len())

	results, err := idx.Search([]float64{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "golang后端", results[0].Chunk.Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "数据库调优", results[1].Chunk.Content)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestMemoryIndex_TopKLargerThanIndex(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.Add(chunksOf("only one"), [][]float64{{1, 1}}))

	results, err := idx.Search([]float64{1, 1}, 4)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestMemoryIndex_DeduplicatesByContent(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.Add(chunksOf("重复内容", "重复内容", "独立内容"), [][]float64{
		{0, 1},
		{1, 0},
		{0.5, 0.5},
	}))

	results, err := idx.Search([]float64{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 2, "相同内容只应返回一条")
	assert.Equal(t, "重复内容", results[0].Chunk.Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9, "重复内容应保留得分最高的一条")
}

func TestMemoryIndex_EmptyIndex(t *testing.T) {
	idx := NewMemoryIndex()
	results, err := idx.Search([]float64{1, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx := NewMemoryIndex()
	err := idx.Add(chunksOf("a", "b"), [][]float64{{1, 0}, {1, 0, 0}})
	require.Error(t, err, "维度不一致应报错")

	idx2 := NewMemoryIndex()
	require.NoError(t, idx2.Add(chunksOf("a"), [][]float64{{1, 0}}))
	_, err = idx2.Search([]float64{1, 0, 0}, 1)
	require.Error(t, err)
}

func TestMemoryIndex_InvalidArguments(t *testing.T) {
	idx := NewMemoryIndex()
	require.Error(t, idx.Add(chunksOf("a"), nil), "分块与向量数量不一致应报错")

	_, err := idx.Search(nil, 4)
	require.Error(t, err)
	_, err = idx.Search([]float64{1}, 0)
	require.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{3, 4}, []float64{3, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{1, 1}), "零向量相似度为0")
}
