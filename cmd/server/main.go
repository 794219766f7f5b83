// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"persona-craft-go/internal/config"
	"persona-craft-go/internal/handler"
	"persona-craft-go/internal/middleware"
	"persona-craft-go/internal/model"
	"persona-craft-go/internal/pipeline"
	"persona-craft-go/internal/repository"
	"persona-craft-go/internal/service"
	"persona-craft-go/pkg/database"
	"persona-craft-go/pkg/embedding"
	"persona-craft-go/pkg/kafka"
	"persona-craft-go/pkg/llm"
	"persona-craft-go/pkg/log"
	"persona-craft-go/pkg/storage"
	"persona-craft-go/pkg/tika"
	"persona-craft-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、MinIO 与 Kafka
	database.InitPostgres(cfg.Database.Postgres.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	kafka.InitProducer(cfg.Kafka)

	// 同步表结构
	if err := database.DB.AutoMigrate(
		&model.User{},
		&model.Document{},
		&model.DocumentChunk{},
		&model.Persona{},
	); err != nil {
		log.Fatalf("同步表结构失败: %v", err)
	}

	// 4. 初始化 Repository
	embeddingClient := embedding.NewClient(cfg.Embedding)
	userRepository := repository.NewUserRepository(database.DB)
	documentRepo := repository.NewDocumentRepository(database.DB)
	chunkRepo := repository.NewChunkRepository(database.DB, embeddingClient)
	personaRepo := repository.NewPersonaRepository(database.DB)
	generationRepo := repository.NewGenerationRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	tikaClient := tika.NewClient(cfg.Tika)
	llmClient := llm.NewClient(cfg.LLM)
	splitter := pipeline.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	ingestor := pipeline.NewIngestor(splitter, chunkRepo)

	userService := service.NewUserService(userRepository, jwtManager)
	contributionService := service.NewContributionService(documentRepo, ingestor)
	retrievalService := service.NewRetrievalService(embeddingClient, chunkRepo)
	uploadService := service.NewUploadService(contributionService, tikaClient, cfg.MinIO)
	personaService := service.NewPersonaService(retrievalService, llmClient, personaRepo, generationRepo)

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", handler.NewUserHandler(userService).Register)
			users.POST("/login", handler.NewUserHandler(userService).Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", handler.NewUserHandler(userService).GetProfile)
				authed.POST("/logout", handler.NewUserHandler(userService).Logout)
			}
		}

		// Contribution 路由组，需要认证
		contributions := apiV1.Group("/contributions")
		contributions.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			contributionHandler := handler.NewContributionHandler(contributionService)
			contributions.POST("", contributionHandler.Create)
			contributions.GET("", contributionHandler.List)
			contributions.GET("/:id", contributionHandler.Get)
			contributions.PUT("/:id", contributionHandler.Update)
			contributions.DELETE("/:id", contributionHandler.Delete)

			// 文件上传摄取走同一条认证链
			uploadHandler := handler.NewUploadHandler(uploadService)
			contributions.POST("/upload", uploadHandler.Upload)
			contributions.GET("/:id/source", uploadHandler.SourceURL)
		}

		// Search 路由组，需要认证
		search := apiV1.Group("/search")
		search.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			search.GET("", handler.NewSearchHandler(retrievalService).Search)
		}

		// Persona 路由组，需要认证
		personas := apiV1.Group("/personas")
		personas.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			personaHandler := handler.NewPersonaHandler(personaService, userService, jwtManager)
			personas.GET("", personaHandler.List)
			personas.GET("/:id", personaHandler.Get)
		}

		// 生成路由 (WebSocket)
		r.GET("/generate/:token", handler.NewPersonaHandler(personaService, userService, jwtManager).Generate)
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	kafka.CloseProducer()
	log.Info("服务已优雅关闭")
}
