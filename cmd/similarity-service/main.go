package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	hlog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzerolog "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"

	"recruit-agent-go/internal/api/handler"
	"recruit-agent-go/internal/api/router"
	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/interview"
	"recruit-agent-go/internal/llm"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/parser"
	"recruit-agent-go/internal/storage"
	"recruit-agent-go/internal/tracing"
)

const serviceName = "similarity-service"

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径，留空时在常见位置查找")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		File:         cfg.Logger.File,
	})
	hlog.SetLogger(hertzzerolog.From(logger.Logger))
	logger.Info().Str("service", serviceName).Msg("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, serviceName, cfg.Tracing.Endpoint, cfg.Tracing.SampleRatio)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化链路追踪失败")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()

	components, err := buildComponents(ctx, cfg, storageManager)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化AI组件失败")
	}

	api := handler.NewHandler(cfg, storageManager, components)

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		tracer,
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, api)
	logger.Info().Str("address", cfg.Server.Address).Msg("HTTP服务器启动中")

	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP服务器关闭失败")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("链路追踪关闭失败")
	}
	logger.Info().Msg("优雅退出完成")
}

// buildComponents 装配简历解析、向量化与面试问答组件
func buildComponents(ctx context.Context, cfg *config.Config, storageManager *storage.Storage) (*handler.AIComponents, error) {
	componentLogger := log.New(logger.Logger, "", 0)
	if cfg.Logger.Level != "debug" {
		componentLogger = log.New(io.Discard, "", 0)
	}

	pdfExtractor, err := parser.NewEinoPDFExtractor(ctx, parser.WithEinoLogger(componentLogger))
	if err != nil {
		return nil, err
	}

	var tikaExtractor *parser.TikaDocExtractor
	if cfg.Tika.ServerURL != "" {
		tikaOpts := []parser.TikaDocOption{parser.WithTikaDocLogger(componentLogger)}
		if cfg.Tika.Timeout > 0 {
			tikaOpts = append(tikaOpts, parser.WithTikaTimeout(time.Duration(cfg.Tika.Timeout)*time.Second))
		}
		tikaExtractor = parser.NewTikaDocExtractor(cfg.Tika.ServerURL, tikaOpts...)
	}
	extractor := parser.NewDocumentExtractor(pdfExtractor, tikaExtractor)

	chainTimeout := time.Duration(cfg.OpenRouter.TimeoutSeconds) * time.Second
	chain, err := llm.NewModelChain(cfg.OpenRouter.APIKey, cfg.OpenRouter.APIURL, cfg.OpenRouter.Models,
		llm.WithQPMLimits(cfg.ModelQPMLimits),
		llm.WithChainTimeout(chainTimeout),
		llm.WithChainLogger(componentLogger),
	)
	if err != nil {
		return nil, err
	}

	parserOpts := []parser.CVParserOption{
		parser.WithParseLimits(cfg.CVParser.MaxChars, cfg.CVParser.Temperature, cfg.CVParser.MaxTokens),
	}
	if cfg.CVParser.UseLLM {
		parserOpts = append(parserOpts, parser.WithLLMChain(chain))
	}
	if cfg.OpenRouter.MultimodalModel != "" {
		multimodal, merr := parser.NewMultimodalCVParser(cfg.OpenRouter.APIKey, cfg.OpenRouter.MultimodalModel, cfg.OpenRouter.APIURL)
		if merr != nil {
			return nil, merr
		}
		parserOpts = append(parserOpts, parser.WithMultimodalParser(multimodal))
	}
	cvParser, err := parser.NewCVParser(extractor, parserOpts...)
	if err != nil {
		return nil, err
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	generator := interview.NewGenerator(chain,
		interview.WithTotalQuestions(cfg.Interview.TotalQuestions),
		interview.WithGenerateParams(cfg.Interview.Temperature, cfg.Interview.MaxTokens),
	)
	evaluator := interview.NewEvaluator(chain)

	var transcripts *interview.TranscriptStore
	if storageManager.Redis != nil && storageManager.Redis.Client != nil {
		transcripts, err = interview.NewTranscriptStore(storageManager.Redis.Client, 30*24*time.Hour)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn().Msg("Redis未配置，面试对话不留档")
	}

	return &handler.AIComponents{
		Extractor:   extractor,
		CVParser:    cvParser,
		Embedder:    embedder,
		Generator:   generator,
		Evaluator:   evaluator,
		Transcripts: transcripts,
	}, nil
}

// buildEmbedder 向量化器选择：配置了远端embedding服务时走OpenAI兼容
// 接口，否则用本地确定性哈希向量化保证离线可用。
func buildEmbedder(cfg *config.Config) (parser.TextEmbedder, error) {
	emb := cfg.OpenRouter.Embedding
	if emb.BaseURL != "" {
		dims := emb.Dimensions
		if dims <= 0 {
			dims = cfg.Qdrant.Dimension
		}
		return parser.NewOpenAIEmbedder(cfg.OpenRouter.APIKey, emb.BaseURL, emb.Model, dims)
	}
	logger.Info().Int("dimensions", cfg.Qdrant.Dimension).Msg("未配置embedding服务，使用本地哈希向量化")
	return parser.NewHashingEmbedder(cfg.Qdrant.Dimension)
}
