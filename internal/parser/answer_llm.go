package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"job-match-go/internal/logger"
)

// LLMAnswerer 基于检索到的上下文分块回答单个抽取问题
// 封装LLM客户端和Prompt逻辑
type LLMAnswerer struct {
	llmModel      model.ToolCallingChatModel
	systemMessage string
	logger        zerolog.Logger
}

// LLMAnswererOption 是回答器的配置选项
type LLMAnswererOption func(*LLMAnswerer)

// WithAnswererSystemMessage 设置自定义系统消息
func WithAnswererSystemMessage(msg string) LLMAnswererOption {
	return func(a *LLMAnswerer) {
		a.systemMessage = msg
	}
}

// NewLLMAnswerer 创建一个新的回答器实例
func NewLLMAnswerer(llmModel model.ToolCallingChatModel, options ...LLMAnswererOption) *LLMAnswerer {
	answerer := &LLMAnswerer{
		llmModel:      llmModel,
		systemMessage: "你是一个简历信息抽取助手。只依据提供的简历片段回答问题，不要编造片段之外的内容。",
		logger:        logger.Logger.With().Str("component", "llm_answerer").Logger(),
	}

	// 应用选项
	for _, opt := range options {
		opt(answerer)
	}

	return answerer
}

// Answer 用给定的上下文分块回答一个问题，返回纯文本答案
func (a *LLMAnswerer) Answer(ctx context.Context, question string, contextChunks []string) (string, error) {
	if a.llmModel == nil {
		return "", fmt.Errorf("LLMAnswerer: llmModel is not initialized")
	}
	if question == "" {
		return "", fmt.Errorf("LLMAnswerer: question must not be empty")
	}

	// 1. 构建Prompt：拼接上下文片段 + 问题
	var sb strings.Builder
	sb.WriteString("Use the following resume excerpts to answer the question. Answer with the extracted content only.\n\n")
	for i, chunk := range contextChunks {
		sb.WriteString(fmt.Sprintf("--- Excerpt %d ---\n%s\n\n", i+1, chunk))
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)

	messages := []*einoschema.Message{
		einoschema.SystemMessage(a.systemMessage),
		einoschema.UserMessage(sb.String()),
	}

	a.logger.Debug().
		Str("question", question).
		Int("chunks", len(contextChunks)).
		Msg("调用LLM回答抽取问题")

	// 2. 调用LLM
	response, err := a.llmModel.Generate(ctx, messages)
	if err != nil {
		a.logger.Warn().Err(err).Str("question", question).Msg("LLM调用失败")
		return "", fmt.Errorf("LLMAnswerer: LLM call failed: %w", err)
	}

	if response == nil || response.Content == "" {
		return "", fmt.Errorf("LLMAnswerer: LLM returned empty response")
	}

	// 去除BOM并裁剪空白
	answer := strings.TrimSpace(strings.TrimPrefix(response.Content, "\uFEFF"))
	return answer, nil
}
