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

	"devtone-chat-go/internal/config"
	"devtone-chat-go/internal/handler"
	"devtone-chat-go/internal/middleware"
	"devtone-chat-go/internal/model"
	"devtone-chat-go/internal/repository"
	"devtone-chat-go/internal/service"
	"devtone-chat-go/pkg/database"
	"devtone-chat-go/pkg/es"
	"devtone-chat-go/pkg/kafka"
	"devtone-chat-go/pkg/log"
	"devtone-chat-go/pkg/pubsub"
	"devtone-chat-go/pkg/storage"
	"devtone-chat-go/pkg/token"

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

	// 3. 初始化数据库、Redis 与旁路依赖
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		// 检索是旁路能力，初始化失败只降级坐席搜索，不阻塞聊天
		log.Errorf("es 初始化失败，聊天记录检索不可用: %s", err)
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 迁移聊天子系统的表结构
	if err := database.DB.AutoMigrate(&model.ChatSession{}, &model.ChatMessage{}, &model.Agent{}); err != nil {
		log.Fatal("数据库迁移失败", err)
	}

	// 5. 初始化 Repository 与事件代理
	sessionRepo := repository.NewSessionRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)
	agentRepo := repository.NewAgentRepository(database.DB)
	broker := pubsub.NewBroker(database.RDB)

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	sessionService := service.NewSessionService(sessionRepo, messageRepo, broker)
	messageService := service.NewMessageService(messageRepo, sessionService, broker, cfg.Elasticsearch.IndexName, cfg.Chat.AttachmentInlineLimit)
	typingService := service.NewTypingService(broker)
	agentService := service.NewAgentService(agentRepo, jwtManager)
	registry := service.NewPresenceRegistry()

	// 7. 坐席表为空时创建默认账号（幂等）
	if err := agentService.Bootstrap(context.Background(), "admin", "devtone@2024"); err != nil {
		log.Errorf("初始化默认坐席失败: %v", err)
	}

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	sessionHandler := handler.NewSessionHandler(sessionService)
	messageHandler := handler.NewMessageHandler(messageService, typingService)
	agentHandler := handler.NewAgentHandler(agentService)
	presenceHandler := handler.NewPresenceHandler(registry)

	apiV1 := r.Group("/api/v1")
	{
		// 访客端路由（无需认证，会话 ID 即凭证）
		chat := apiV1.Group("/chat")
		{
			chat.POST("/sessions", sessionHandler.Create)
			chat.GET("/sessions/:id", sessionHandler.Get)
			chat.GET("/sessions/:id/messages", messageHandler.History)
			chat.POST("/sessions/:id/messages", messageHandler.SendUserMessage)
			chat.POST("/sessions/:id/typing", messageHandler.NotifyTyping)
			chat.GET("/sessions/:id/attachments/:messageId", messageHandler.Attachment)
		}

		// 坐席认证路由
		agents := apiV1.Group("/agents")
		{
			agents.POST("/login", agentHandler.Login)
			agents.POST("/refreshToken", agentHandler.RefreshToken)
		}

		// 坐席控制台路由，需要认证
		agent := apiV1.Group("/agent")
		agent.Use(middleware.AgentAuthMiddleware(jwtManager, agentService))
		{
			agent.POST("/sessions/:id/messages", messageHandler.SendAgentMessage)
			agent.POST("/sessions/:id/resolve", sessionHandler.Resolve)
			agent.POST("/sessions/:id/reopen", sessionHandler.Reopen)
			agent.POST("/messages/:id/read", messageHandler.MarkRead)
			agent.GET("/messages/search", messageHandler.Search)
			agent.GET("/unread", messageHandler.UnreadCount)
		}
	}

	// 在线状态 WebSocket（访客与坐席共用一条连接宣告身份）
	r.GET("/ws/presence", presenceHandler.Handle)

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

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// 在线注册表只存在于内存中，进程退出后所有在线状态随之消失
	log.Info("服务已优雅关闭")
}
