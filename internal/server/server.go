package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bym-bot/internal/chatlog"
	"bym-bot/internal/config"
	"bym-bot/internal/onebot"
)

// Server HTTP服务
type Server struct {
	cfg     *config.Config
	store   *chatlog.Store
	bot     *onebot.Client
	server  *http.Server
	started time.Time
}

// NewServer 创建HTTP服务
func NewServer(cfg *config.Config, store *chatlog.Store, bot *onebot.Client) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		bot:     bot,
		started: time.Now(),
	}
}

// Start 启动HTTP服务
func (s *Server) Start() {
	if !s.cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// 健康检查
	r.GET("/health", s.healthCheck)

	api := r.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/messages", s.listMessages)
		api.GET("/stats", s.getStats)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}

	zap.L().Info("HTTP服务启动", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zap.L().Error("HTTP服务异常", zap.Error(err))
	}
}

// Stop 停止HTTP服务
func (s *Server) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
}

// healthCheck 健康检查
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"name":   "bym_bot",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// getStatus 运行状态
func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"bot_qq":  s.bot.GetSelfID(),
		"persona": s.cfg.Persona.Name,
		"model":   s.cfg.Gemini.Model,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

// parsePageParams 解析分页参数
func parsePageParams(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return
}

// listMessages 消息记录
func (s *Server) listMessages(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "消息日志未启用"})
		return
	}

	groupID, _ := strconv.ParseInt(c.DefaultQuery("group_id", "0"), 10, 64)
	page, pageSize := parsePageParams(c)

	messages, total, err := s.store.ListMessages(groupID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      messages,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// getStats 统计信息
func (s *Server) getStats(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "消息日志未启用"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.store.GetStats()})
}
