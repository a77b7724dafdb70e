// Package index 提供检索增强流程使用的内存向量索引。
// 索引按文档构建，随请求生命周期存在，不做持久化；
// 持久化的分块向量由 Qdrant 存储层负责。
package index

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"job-match-go/internal/logger"
	"job-match-go/internal/types"
)

// ScoredChunk 是一次相似度检索的单条结果
type ScoredChunk struct {
	Chunk types.TextChunk
	Score float64 // 余弦相似度, [-1, 1]
}

// MemoryIndex 基于暴力余弦扫描的内存向量索引。
// 单份简历或职位描述的分块数量通常在几十以内，线性扫描足够。
type MemoryIndex struct {
	mu      sync.RWMutex
	chunks  []types.TextChunk
	vectors [][]float64
	dim     int
	logger  zerolog.Logger
}

// NewMemoryIndex 创建空索引
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		logger: logger.Logger.With().Str("component", "memory_index").Logger(),
	}
}

// Add 批量加入分块及其向量，两个切片必须等长。
// 所有向量维度必须一致，首次加入的向量决定索引维度。
func (m *MemoryIndex) Add(chunks []types.TextChunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("分块数量(%d)与向量数量(%d)不一致", len(chunks), len(vectors))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range chunks {
		vec := vectors[i]
		if len(vec) == 0 {
			return fmt.Errorf("第 %d 个向量为空", i)
		}
		if m.dim == 0 {
			m.dim = len(vec)
		} else if len(vec) != m.dim {
			return fmt.Errorf("第 %d 个向量维度 %d 与索引维度 %d 不一致", i, len(vec), m.dim)
		}
		m.chunks = append(m.chunks, chunks[i])
		m.vectors = append(m.vectors, vec)
	}

	m.logger.Debug().Int("added", len(chunks)).Int("total", len(m.chunks)).Msg("向量已加入索引")
	return nil
}

// Len 返回已索引的分块数量
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Search 返回与查询向量余弦相似度最高的topK个分块，按相似度降序。
// 内容相同的分块只保留得分最高的一条。
func (m *MemoryIndex) Search(queryVector []float64, topK int) ([]ScoredChunk, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("查询向量为空")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK 必须为正数, 收到: %d", topK)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.chunks) == 0 {
		return nil, nil
	}
	if len(queryVector) != m.dim {
		return nil, fmt.Errorf("查询向量维度 %d 与索引维度 %d 不一致", len(queryVector), m.dim)
	}

	scored := make([]ScoredChunk, 0, len(m.chunks))
	seen := make(map[string]int) // content -> scored中的下标
	for i, vec := range m.vectors {
		score := cosineSimilarity(queryVector, vec)
		chunk := m.chunks[i]
		if prev, ok := seen[chunk.Content]; ok {
			if score > scored[prev].Score {
				scored[prev] = ScoredChunk{Chunk: chunk, Score: score}
			}
			continue
		}
		seen[chunk.Content] = len(scored)
		scored = append(scored, ScoredChunk{Chunk: chunk, Score: score})
	}

	// 相同得分按分块顺序排列，保证结果可复现
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

// cosineSimilarity 计算两个等长向量的余弦相似度，零向量返回0
func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
