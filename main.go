package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"bym-bot/internal/agent"
	"bym-bot/internal/chatlog"
	"bym-bot/internal/config"
	"bym-bot/internal/gemini"
	"bym-bot/internal/logger"
	"bym-bot/internal/onebot"
	"bym-bot/internal/persona"
	"bym-bot/internal/reply"
	"bym-bot/internal/server"
)

func main() {
	fmt.Println("=================================")
	fmt.Println("    伪人 - 赛博QQ群友")
	fmt.Println("=================================")

	// 加载配置
	configPath := "config/config.yaml"
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志系统
	logger.Init(cfg.App.LogLevel, cfg.App.Debug)

	zap.L().Info("配置已加载", zap.String("path", configPath))

	// 消息日志（可选）
	var store *chatlog.Store
	if cfg.ChatLog.Enabled {
		store, err = chatlog.NewStore(cfg)
		if err != nil {
			zap.L().Fatal("消息日志初始化失败", zap.Error(err))
		}
		defer store.Close()
		zap.L().Info("消息日志已启用")
	}

	// 会话引擎
	historyStore := gemini.NewStore(cfg.Gemini.HistoryWindow)
	engine, err := gemini.NewClient(context.Background(),
		cfg.Gemini.APIKey, cfg.Gemini.BaseURL, cfg.Gemini.Model,
		historyStore, cfg.App.Debug)
	if err != nil {
		zap.L().Fatal("会话引擎创建失败", zap.Error(err))
	}
	zap.L().Info("会话引擎已就绪", zap.String("model", cfg.Gemini.Model))

	// OneBot客户端
	botClient := onebot.NewClient(cfg)
	if err := botClient.Connect(); err != nil {
		zap.L().Fatal("OneBot连接失败", zap.Error(err))
	}
	defer botClient.Close()

	// 人格
	p := persona.NewPersona(&cfg.Persona)
	zap.L().Info("人格已加载", zap.String("name", p.GetName()))

	// 回复投递
	scheduler := reply.NewScheduler(botClient,
		cfg.Chat.MaxChunks, cfg.Chat.QuoteChance, cfg.Chat.MaxChunkDelay)

	// Agent
	bym := agent.New(cfg, p, engine, botClient, store, scheduler)
	bym.Start()

	// HTTP服务
	httpServer := server.NewServer(cfg, store, botClient)
	go httpServer.Start()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	zap.L().Info("已上线，按 Ctrl+C 退出", zap.String("persona", p.GetName()))
	<-quit

	zap.L().Info("正在关闭...")
	httpServer.Stop()
	zap.L().Info("再见！")
}
