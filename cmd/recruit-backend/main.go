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

	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/llm"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/outbox"
	"recruit-agent-go/internal/parser"
	"recruit-agent-go/internal/recruiter"
	"recruit-agent-go/internal/recruiter/aiclient"
	"recruit-agent-go/internal/storage"
	"recruit-agent-go/internal/tracing"
)

const serviceName = "recruit-backend"

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

	if storageManager.RabbitMQ != nil {
		if err := storageManager.RabbitMQ.SetupApplicationEventsTopology(); err != nil {
			logger.Fatal().Err(err).Msg("声明投递事件拓扑失败")
		}
	}

	extractor, cvParser, err := buildParsers(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化简历解析组件失败")
	}

	ai, err := aiclient.NewClient(cfg.Server.AIServiceURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化AI服务客户端失败")
	}

	api := recruiter.NewHandler(cfg, storageManager, extractor, cvParser, ai)

	// outbox中继：把已落库的事件搬运到RabbitMQ
	var relay *outbox.MessageRelay
	if storageManager.MySQL != nil && storageManager.RabbitMQ != nil {
		relayLogger := log.New(logger.Logger, "[MessageRelay] ", log.LstdFlags)
		relay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ, relayLogger,
			outbox.WithPollingInterval(config.GetDuration(cfg.RabbitMQ.RetryInterval, 5*time.Second)))
		relay.Start()
		logger.Info().Msg("outbox消息中继已启动")
	} else {
		logger.Warn().Msg("MySQL或RabbitMQ未配置，outbox消息中继不启动")
	}

	// 向量化消费者：投递事件异步同步进Qdrant
	var consumer *recruiter.VectorizeConsumer
	if storageManager.RabbitMQ != nil && storageManager.Qdrant != nil {
		embedder, eerr := buildEmbedder(cfg)
		if eerr != nil {
			logger.Fatal().Err(eerr).Msg("初始化向量化器失败")
		}
		consumer = recruiter.NewVectorizeConsumer(cfg, storageManager, embedder)
		if err := consumer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("启动向量化消费者失败")
		}
		logger.Info().Str("queue", cfg.RabbitMQ.VectorizeQueue).Msg("向量化消费者已启动")
	} else {
		logger.Warn().Msg("RabbitMQ或Qdrant未配置，向量化消费者不启动")
	}

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		tracer,
		server.WithHostPorts(cfg.Server.BackendAddress),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	recruiter.RegisterRoutes(h, api, cfg.Server.APIKeys)
	logger.Info().Str("address", cfg.Server.BackendAddress).Msg("HTTP服务器启动中")

	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出")

	if relay != nil {
		relay.Stop()
	}
	if consumer != nil {
		consumer.Stop()
	}

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

// buildParsers 装配文档提取器与简历解析器
func buildParsers(ctx context.Context, cfg *config.Config) (*parser.DocumentExtractor, *parser.CVParser, error) {
	componentLogger := log.New(logger.Logger, "", 0)
	if cfg.Logger.Level != "debug" {
		componentLogger = log.New(io.Discard, "", 0)
	}

	pdfExtractor, err := parser.NewEinoPDFExtractor(ctx, parser.WithEinoLogger(componentLogger))
	if err != nil {
		return nil, nil, err
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

	parserOpts := []parser.CVParserOption{
		parser.WithParseLimits(cfg.CVParser.MaxChars, cfg.CVParser.Temperature, cfg.CVParser.MaxTokens),
	}
	if cfg.CVParser.UseLLM {
		chain, cerr := llm.NewModelChain(cfg.OpenRouter.APIKey, cfg.OpenRouter.APIURL, cfg.OpenRouter.Models,
			llm.WithQPMLimits(cfg.ModelQPMLimits),
			llm.WithChainTimeout(time.Duration(cfg.OpenRouter.TimeoutSeconds)*time.Second),
			llm.WithChainLogger(componentLogger),
		)
		if cerr != nil {
			return nil, nil, cerr
		}
		parserOpts = append(parserOpts, parser.WithLLMChain(chain))
	}
	if cfg.OpenRouter.MultimodalModel != "" {
		multimodal, merr := parser.NewMultimodalCVParser(cfg.OpenRouter.APIKey, cfg.OpenRouter.MultimodalModel, cfg.OpenRouter.APIURL)
		if merr != nil {
			return nil, nil, merr
		}
		parserOpts = append(parserOpts, parser.WithMultimodalParser(multimodal))
	}

	cvParser, err := parser.NewCVParser(extractor, parserOpts...)
	if err != nil {
		return nil, nil, err
	}
	return extractor, cvParser, nil
}

// buildEmbedder 消费者侧向量化器，选择逻辑与AI服务保持一致
func buildEmbedder(cfg *config.Config) (parser.TextEmbedder, error) {
	emb := cfg.OpenRouter.Embedding
	if emb.BaseURL != "" {
		dims := emb.Dimensions
		if dims <= 0 {
			dims = cfg.Qdrant.Dimension
		}
		return parser.NewOpenAIEmbedder(cfg.OpenRouter.APIKey, emb.BaseURL, emb.Model, dims)
	}
	return parser.NewHashingEmbedder(cfg.Qdrant.Dimension)
}
