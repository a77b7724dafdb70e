package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"

	"job-match-go/internal/config"
	"job-match-go/internal/logger"
	"job-match-go/internal/parser"
	"job-match-go/internal/storage"
	"job-match-go/internal/storage/models"
	"job-match-go/internal/types"
)

// 离线维护工具: 全量扫描简历表，重新嵌入并重建Qdrant中的分块向量。
// 用于向量库迁移、嵌入模型升级后的数据重建。

const (
	concurrency = 5
	batchSize   = 20
)

func main() {
	dryRun := flag.Bool("dry-run", false, "只统计待处理简历，不执行重建")
	flag.Parse()

	logger.Init(logger.Config{Level: "info", Format: "pretty"})

	ctx := context.Background()

	cfg, err := config.LoadConfig("")
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()

	if storageManager.MySQL == nil || storageManager.Qdrant == nil {
		logger.Fatal().Msg("重建任务需要MySQL与Qdrant均可用")
	}

	embedder, err := parser.NewAliyunEmbedder(cfg.Aliyun.APIKey, cfg.Aliyun.Embedding)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化嵌入器失败")
	}

	var (
		total     int
		failed    int
		semaphore = make(chan struct{}, concurrency)
		wg        sync.WaitGroup
		mu        sync.Mutex
	)

	cursor := ""
	for {
		resumes, err := storageManager.MySQL.ListResumesBatch(ctx, cursor, batchSize)
		if err != nil {
			logger.Fatal().Err(err).Msg("扫描简历表失败")
		}
		if len(resumes) == 0 {
			break
		}
		cursor = resumes[len(resumes)-1].ResumeID

		for i := range resumes {
			resume := resumes[i]
			total++

			if *dryRun {
				continue
			}

			wg.Add(1)
			semaphore <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-semaphore }()

				if err := reindexResume(ctx, cfg, storageManager, embedder, &resume); err != nil {
					logger.Error().Err(err).Str("resume_id", resume.ResumeID).Msg("重建向量失败")
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}()
		}
	}
	wg.Wait()

	logger.Info().Int("total", total).Int("failed", failed).Bool("dry_run", *dryRun).Msg("向量重建完成")
	if failed > 0 {
		os.Exit(1)
	}
}

// reindexResume 重新嵌入单份简历的文本分块并覆盖写入向量库。
// 点ID由简历ID与分块序号确定，重复执行幂等。
func reindexResume(ctx context.Context, cfg *config.Config, storageManager *storage.Storage, embedder *parser.AliyunEmbedder, resume *models.Resume) error {
	text := resume.RawText
	if text == "" {
		// 数据库没有留存文本时尝试对象存储中的归一化副本
		if storageManager.MinIO != nil && resume.NormalizedTextPathOSS != "" {
			stored, err := storageManager.MinIO.GetNormalizedText(ctx, resume.NormalizedTextPathOSS)
			if err != nil {
				return fmt.Errorf("读取归一化文本失败: %w", err)
			}
			text = stored
		}
	}
	if text == "" {
		return fmt.Errorf("简历无可用文本")
	}

	chunks := parser.ChunkText(text, cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap)
	if len(chunks) == 0 {
		return fmt.Errorf("分块结果为空")
	}

	vectors, err := embedder.EmbedStrings(ctx, chunks)
	if err != nil {
		return fmt.Errorf("嵌入失败: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("嵌入数量不匹配: chunks=%d vectors=%d", len(chunks), len(vectors))
	}

	textChunks := make([]types.TextChunk, len(chunks))
	for i, content := range chunks {
		textChunks[i] = types.TextChunk{Index: i, Content: content}
	}

	if _, err := storageManager.Qdrant.StoreResumeChunkVectors(ctx, resume.ResumeID, resume.UserID, textChunks, vectors); err != nil {
		return fmt.Errorf("写入向量库失败: %w", err)
	}
	return nil
}
