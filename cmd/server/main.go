// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm-agent-go/internal/agent"
	"crm-agent-go/internal/config"
	"crm-agent-go/internal/handler"
	"crm-agent-go/internal/middleware"
	"crm-agent-go/internal/pipeline"
	"crm-agent-go/internal/repository"
	"crm-agent-go/internal/service"
	"crm-agent-go/pkg/database"
	"crm-agent-go/pkg/embedding"
	"crm-agent-go/pkg/es"
	"crm-agent-go/pkg/kafka"
	"crm-agent-go/pkg/llm"
	"crm-agent-go/pkg/log"
	"crm-agent-go/pkg/storage"
	"crm-agent-go/pkg/tika"
	"crm-agent-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "path to the YAML config file")
	seedDir := flag.String("seed", "initfile", "directory of knowledge files to ingest at startup")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. 初始化数据库、Redis、ES 与 MinIO
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatal("MySQL 初始化失败", err)
	}
	rdb, err := database.NewRedis(rootCtx, cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err != nil {
		log.Fatal("Redis 初始化失败", err)
	}
	esClient, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		log.Fatal("Elasticsearch 初始化失败", err)
	}
	store, err := storage.NewMinIO(rootCtx, cfg.MinIO)
	if err != nil {
		log.Fatal("MinIO 初始化失败", err)
	}
	producer := kafka.NewProducer(cfg.Kafka)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}()

	// 4. 初始化 Repository
	policy := repository.RetryPolicy(cfg.Agent.Retry)
	sessionRepo := repository.NewSessionRepository(db, policy)
	crmRepo := repository.NewCRMRepository(db, policy)
	chunkRepo := repository.NewKnowledgeChunkRepository(db, policy)
	personaCache := repository.NewPersonaCache(rdb, cfg.Agent.PersonaCacheTTL)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)

	searchService := service.NewSearchService(embeddingClient, esClient, cfg.Elasticsearch.IndexName)
	graphService := service.NewGraphService(esClient, cfg.Elasticsearch.GraphIndexName)
	documentService := service.NewDocumentService(crmRepo, store)
	accessValidator := service.NewAccessValidator(sessionRepo, crmRepo, personaCache, cfg.Agent.SessionTTL)

	agentCfg := agent.ConfigFrom(cfg.Agent)
	orchestrator := agent.NewOrchestrator(crmRepo, searchService, graphService, documentService, agentCfg)
	assembler := agent.NewAssembler(agentCfg)

	chatService := service.NewChatService(accessValidator, sessionRepo, orchestrator, assembler, llmClient,
		service.PromptsFrom(cfg.LLM.Prompt), cfg.Agent.HistoryLimit)
	conversationService := service.NewConversationService(accessValidator, sessionRepo)
	adminService := service.NewAdminService(producer, store.Bucket())

	// 6. 初始化入库管道并启动后台 Kafka 消费者
	processor := pipeline.NewProcessor(store, tikaClient, embeddingClient, es.NewIndexer(esClient, cfg.Elasticsearch.IndexName), chunkRepo)
	consumer := kafka.NewConsumer(cfg.Kafka, kafka.NewRedisAttemptCounter(rdb), processor)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		consumer.Run(rootCtx)
	}()

	// 6.1 导入 seed 目录中的知识文件，已入库则跳过
	go pipeline.SeedDirectory(rootCtx, *seedDir, store, chunkRepo, producer)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// 8. 注册路由
	chatHandler := handler.NewChatHandler(chatService)
	conversationHandler := handler.NewConversationHandler(conversationService)
	apiV1 := r.Group("/api/v1", middleware.OptionalAuth(jwtManager))
	{
		chat := apiV1.Group("/chat")
		{
			chat.POST("/send", chatHandler.Send)
			chat.GET("/ws", chatHandler.Handle)
			chat.POST("/clear", conversationHandler.Clear)
			chat.GET("/history", conversationHandler.History)
		}

		apiV1.GET("/search/hybrid", handler.NewSearchHandler(searchService).HybridSearch)

		// 管理员路由组，需要管理员角色
		admin := apiV1.Group("/admin", middleware.AdminAuth())
		{
			admin.POST("/knowledge/ingest", handler.NewAdminHandler(adminService).IngestKnowledge)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 先停止接收新请求，进行中的流式响应随请求上下文结束
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 再停止消费者，等待当前任务返回
	stop()
	select {
	case <-consumerDone:
	case <-ctx.Done():
		log.Warnf("等待 Kafka 消费者退出超时")
	}

	if err := rdb.Close(); err != nil {
		log.Errorf("关闭 Redis 连接失败: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("服务已优雅关闭")
}
