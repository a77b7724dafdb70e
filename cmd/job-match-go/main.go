package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzerolog "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"

	"job-match-go/internal/api/handler"
	"job-match-go/internal/api/router"
	"job-match-go/internal/config"
	"job-match-go/internal/logger"
	"job-match-go/internal/parser"
	"job-match-go/internal/processor"
	"job-match-go/internal/storage"
	"job-match-go/internal/tracing"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "配置文件路径，缺省时按默认位置查找")
	pflag.Parse()

	initLogger(*configPath)

	// 1. 加载配置文件
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置文件失败")
	}

	ctx := context.Background()

	// 2. 初始化链路追踪
	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.InitTracerProvider(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化链路追踪失败，继续无追踪运行")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracing(shutdownCtx); err != nil {
					logger.Warn().Err(err).Msg("关闭链路追踪失败")
				}
			}()
		}
	}

	// 3. 初始化存储管理器
	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储管理器失败")
	}
	defer storageManager.Close()

	// 4. 初始化流水线与处理器
	pipeline, jdProcessor, err := initializePipeline(ctx, cfg, storageManager)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化处理流水线失败")
	}
	logger.Info().Msg("处理流水线初始化成功")

	// 5. 创建HTTP服务器并注册路由
	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.Default(
		server.WithHostPorts(cfg.Server.Address),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, router.Handlers{
		User:        handler.NewUserHandler(storageManager),
		Resume:      handler.NewResumeHandler(cfg, storageManager, pipeline),
		Job:         handler.NewJobHandler(cfg, storageManager, jdProcessor),
		Application: handler.NewApplicationHandler(storageManager),
	})

	// 6. 启动HTTP服务器
	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	// 7. 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("服务器关闭失败")
	}

	logger.Info().Msg("优雅退出完成")
}

// 初始化日志系统
func initLogger(configPath string) {
	isProduction := os.Getenv("ENV") == "production"

	// 尝试加载配置文件中的日志设置
	cfg, err := config.LoadConfig(configPath)

	logConfig := logger.Config{
		Level:        "debug",
		Format:       "pretty",
		TimeFormat:   time.RFC3339,
		ReportCaller: true,
	}
	if err == nil && cfg != nil {
		logConfig.Level = cfg.Logger.Level
		logConfig.Format = cfg.Logger.Format
		logConfig.TimeFormat = cfg.Logger.TimeFormat
		logConfig.ReportCaller = cfg.Logger.ReportCaller
	} else if isProduction {
		logConfig.Level = "info"
		logConfig.Format = "json"
		logConfig.ReportCaller = false
	}

	logger.Init(logConfig)

	logger.Logger = logger.Logger.With().
		Str("app", "job-match-go").
		Logger()

	// Hertz框架日志走同一个zerolog输出
	hlog.SetLogger(hertzzerolog.From(logger.Logger))
}

// initializePipeline 组装简历流水线与JD增强处理器。
// 未配置Aliyun API密钥时退化为纯正则抽取，JD增强不可用。
func initializePipeline(ctx context.Context, cfg *config.Config, storageManager *storage.Storage) (*processor.ResumePipeline, *processor.JDProcessor, error) {
	if storageManager == nil || storageManager.MySQL == nil {
		return nil, nil, fmt.Errorf("MySQL存储未初始化")
	}

	extractor, err := parser.NewDocumentExtractor(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化文档抽取器失败: %w", err)
	}

	fallback := processor.NewFallbackExtractor(cfg.Pipeline)

	components := &processor.Components{
		Extractor: extractor,
		Primary:   fallback,
		Fallback:  fallback,
		Storage:   storageManager,
	}

	var jdProcessor *processor.JDProcessor
	if cfg.Aliyun.APIKey != "" {
		embedder, err := parser.NewAliyunEmbedder(cfg.Aliyun.APIKey, cfg.Aliyun.Embedding)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化嵌入器失败，向量检索不可用")
		} else {
			components.Embedder = embedder
		}

		chatModel, err := parser.NewAliyunQwenChatModel(cfg.Aliyun.APIKey, cfg.Aliyun.Model, cfg.Aliyun.APIURL)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化LLM模型失败，退化为正则抽取")
		} else {
			if components.Embedder != nil {
				answerer := parser.NewLLMAnswerer(chatModel)
				primary, err := processor.NewRAGExtractor(components.Embedder, answerer, cfg.Pipeline)
				if err != nil {
					logger.Warn().Err(err).Msg("初始化检索增强抽取器失败，退化为正则抽取")
				} else {
					components.Primary = primary
				}
			}

			enhancer := parser.NewJDEnhancer(chatModel, parser.WithContentCharLimit(cfg.JDEnhancer.ContentCharLimit))
			jdProcessor, err = processor.NewJDProcessor(extractor, enhancer, storageManager, cfg.Pipeline)
			if err != nil {
				logger.Warn().Err(err).Msg("初始化JD增强处理器失败，职位PDF将不做增强")
				jdProcessor = nil
			}
		}
	} else {
		logger.Warn().Msg("未配置Aliyun API密钥，使用正则抽取，JD增强不可用")
	}

	pipeline, err := processor.NewResumePipeline(components, &processor.Settings{
		Pipeline:        cfg.Pipeline,
		PipelineVersion: cfg.ActivePipelineVersion,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("初始化简历流水线失败: %w", err)
	}

	return pipeline, jdProcessor, nil
}
