package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"job-match-go/internal/config"
	"job-match-go/internal/logger"
	"job-match-go/internal/parser"
	"job-match-go/internal/storage"
	"job-match-go/internal/types"
)

// JDProcessor 负责职位描述PDF的文本提取与LLM增强，
// 增强结果以职位ID为键缓存在Redis中。
type JDProcessor struct {
	extractor TextExtractor
	enhancer  JobEnhancer
	storage   *storage.Storage
	pipeline  config.PipelineConfig
	logger    zerolog.Logger
}

// NewJDProcessor 创建JDProcessor实例
func NewJDProcessor(extractor TextExtractor, enhancer JobEnhancer, store *storage.Storage, pipeline config.PipelineConfig) (*JDProcessor, error) {
	if extractor == nil {
		return nil, fmt.Errorf("TextExtractor 不能为空")
	}
	if enhancer == nil {
		return nil, fmt.Errorf("JobEnhancer 不能为空")
	}
	if store == nil {
		return nil, fmt.Errorf("Storage 不能为空")
	}

	return &JDProcessor{
		extractor: extractor,
		enhancer:  enhancer,
		storage:   store,
		pipeline:  pipeline,
		logger:    logger.Logger.With().Str("component", "jd_processor").Logger(),
	}, nil
}

// EnhanceResult 职位增强的产出
type EnhanceResult struct {
	Enhanced  *types.EnhancedJob
	RawText   string // 提取出的PDF全文
	FromCache bool
}

// EnhanceJobDocument 提取职位PDF文本并生成结构化增强描述。
// 同一职位的增强结果优先走Redis缓存，LLM只在未命中时调用。
func (p *JDProcessor) EnhanceJobDocument(ctx context.Context, jobID string, pdfData []byte, jobCtx types.JobContext) (*EnhanceResult, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID 不能为空")
	}
	if len(pdfData) == 0 {
		return nil, fmt.Errorf("职位PDF内容不能为空")
	}

	if p.storage.Redis != nil {
		cached, err := p.storage.Redis.GetEnhancedJob(ctx, jobID)
		if err == nil && cached != nil {
			p.logger.Debug().Str("job_id", jobID).Msg("职位增强结果缓存命中")
			return &EnhanceResult{Enhanced: cached, FromCache: true}, nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			p.logger.Warn().Err(err).Str("job_id", jobID).Msg("读取职位增强缓存失败，继续生成")
		}
	}

	rawText, _, err := p.extractor.ExtractText(ctx, pdfData, "job.pdf")
	if err != nil {
		return nil, NewExtractionError(jobID, err.Error())
	}
	if strings.TrimSpace(rawText) == "" {
		return nil, NewEmptyInputError(jobID, "职位PDF无可用文本")
	}

	normalized := parser.NormalizeText(rawText)
	chunks := parser.ChunkText(normalized, p.pipeline.ChunkSize, p.pipeline.ChunkOverlap)

	enhanced, err := p.enhancer.Enhance(ctx, chunks, jobCtx)
	if err != nil {
		return nil, NewBackendError(jobID, err.Error())
	}

	if p.storage.Redis != nil {
		if err := p.storage.Redis.CacheEnhancedJob(ctx, jobID, enhanced); err != nil {
			p.logger.Warn().Err(err).Str("job_id", jobID).Msg("写入职位增强缓存失败")
		}
	}

	p.publishJobEnhanced(ctx, jobID, jobCtx, enhanced)

	return &EnhanceResult{Enhanced: enhanced, RawText: rawText}, nil
}

// publishJobEnhanced 发布职位增强事件，失败只记录日志
func (p *JDProcessor) publishJobEnhanced(ctx context.Context, jobID string, jobCtx types.JobContext, enhanced *types.EnhancedJob) {
	if p.storage.RabbitMQ == nil {
		return
	}
	event := &storage.JobEnhancedEvent{
		JobID:            jobID,
		Title:            jobCtx.Title,
		Company:          jobCtx.Company,
		RequirementCount: len(enhanced.KeyRequirements),
		EnhancedAt:       time.Now(),
	}
	if err := p.storage.RabbitMQ.PublishJobEnhanced(ctx, event); err != nil {
		p.logger.Warn().Err(err).Str("job_id", jobID).Msg("发布职位增强事件失败")
	}
}
