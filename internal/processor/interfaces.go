package processor

import (
	"context"

	"github.com/cloudwego/eino/components/embedding"

	"job-match-go/internal/index"
	"job-match-go/internal/types"
)

//
// 文档解析相关接口
//

// TextExtractor 文档文本提取接口
type TextExtractor interface {
	// ExtractText 从文件字节中提取纯文本及元数据，按文件名后缀识别格式
	ExtractText(ctx context.Context, data []byte, filename string) (string, map[string]interface{}, error)

	// DetectFormat 根据文件名判断文档格式
	DetectFormat(filename string) types.DocumentFormat
}

//
// 向量嵌入相关接口
//

// TextEmbedder 文本向量化接口 (符合 cloudwego/eino 规范)
type TextEmbedder interface {
	// EmbedStrings 将文本转换为向量表示
	EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error)

	// GetDimensions 返回嵌入向量的维度
	GetDimensions() int
}

// VectorIndex 检索用的向量索引接口
type VectorIndex interface {
	Add(chunks []types.TextChunk, vectors [][]float64) error
	Search(queryVector []float64, topK int) ([]index.ScoredChunk, error)
	Len() int
}

//
// 大模型问答相关接口
//

// QuestionAnswerer 基于给定上下文片段回答单个问题
type QuestionAnswerer interface {
	Answer(ctx context.Context, question string, contextChunks []string) (string, error)
}

// JobEnhancer 将职位描述文本整理为结构化的增强职位信息
type JobEnhancer interface {
	Enhance(ctx context.Context, chunks []string, jobCtx types.JobContext) (*types.EnhancedJob, error)
}

//
// 档案抽取相关接口
//

// ProfileExtractor 从归一化的文档文本中抽取技能档案
type ProfileExtractor interface {
	Extract(ctx context.Context, text string) (*types.SkillProfile, error)
}
