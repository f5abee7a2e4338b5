package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"bym-bot/internal/config"
	"bym-bot/internal/gemini"
	"bym-bot/internal/onebot"
)

// ToolContext 工具执行上下文
type ToolContext struct {
	GroupID     int64
	SelfID      int64
	SourceMsgID int64 // 触发本轮对话的消息ID
	Bot         *onebot.Client
	Cfg         *config.Config
}

// ctxKey 上下文键类型
type ctxKey string

const toolContextKey ctxKey = "tool_context"

// WithToolContext 将工具上下文放入 context
func WithToolContext(ctx context.Context, tc *ToolContext) context.Context {
	return context.WithValue(ctx, toolContextKey, tc)
}

// GetToolContext 从 context 获取工具上下文
func GetToolContext(ctx context.Context) *ToolContext {
	if tc, ok := ctx.Value(toolContextKey).(*ToolContext); ok {
		return tc
	}
	return nil
}

// LogToolCall 记录工具调用
func LogToolCall(toolName string, args map[string]any, output map[string]any, err error) {
	cfg := config.Get()
	if cfg == nil || !cfg.Debug.ShowToolCalls {
		return
	}
	inputJSON, _ := sonic.Marshal(args)
	outputJSON, _ := sonic.Marshal(output)
	if err != nil {
		zap.L().Debug("工具调用", zap.String("tool", toolName), zap.String("input", string(inputJSON)), zap.String("output", string(outputJSON)), zap.Error(err))
	} else {
		zap.L().Debug("工具调用", zap.String("tool", toolName), zap.String("input", string(inputJSON)), zap.String("output", string(outputJSON)))
	}
}

// Capabilities 决定工具目录里哪些工具对当前对话可见
type Capabilities struct {
	BotAdmin bool // 机器人在该群是管理员或群主
	BotOwner bool // 机器人是群主，专属头衔只有群主能设
	SerpKey  bool // 配置了搜索 API Key
	MusicAPI bool
	ImageAPI bool
}

// CapabilitiesFrom 根据配置和机器人自身的群角色计算能力集
func CapabilitiesFrom(cfg *config.Config, selfRole string) Capabilities {
	return Capabilities{
		BotAdmin: selfRole == "admin" || selfRole == "owner",
		BotOwner: selfRole == "owner",
		SerpKey:  cfg.Tools.SerpKey != "",
		MusicAPI: cfg.Tools.MusicAPI != "",
		ImageAPI: cfg.Tools.ImageAPI != "",
	}
}

// BuildRegistry 按能力集组装工具目录
func BuildRegistry(caps Capabilities) *gemini.Registry {
	reg := gemini.NewRegistry()

	reg.MustRegister(&weatherTool{})
	reg.MustRegister(&websiteTool{})
	reg.MustRegister(&sendAvatarTool{})
	reg.MustRegister(&pokeTool{})

	if caps.SerpKey {
		reg.MustRegister(&webSearchTool{})
	}
	if caps.MusicAPI {
		reg.MustRegister(&searchMusicTool{})
		reg.MustRegister(&sendMusicTool{})
	}
	if caps.ImageAPI {
		reg.MustRegister(&searchImageTool{})
		reg.MustRegister(&sendPictureTool{})
	}
	reg.MustRegister(&searchVideoTool{})
	reg.MustRegister(&sendVideoTool{})

	if caps.BotAdmin {
		reg.MustRegister(&editCardTool{})
		reg.MustRegister(&muteTool{})
		reg.MustRegister(&kickOutTool{})
	}
	if caps.BotOwner {
		reg.MustRegister(&setTitleTool{})
	}

	return reg
}

// httpClient 工具共用的 HTTP 客户端
var httpClient = &http.Client{Timeout: 15 * time.Second}

// fetchJSON 请求 URL 并反序列化 JSON 响应
func fetchJSON(ctx context.Context, url string, out any) error {
	body, err := fetchBody(ctx, url, 4<<20)
	if err != nil {
		return err
	}
	return sonic.Unmarshal(body, out)
}

// fetchBody 请求 URL 并返回响应体，限制最大读取量
func fetchBody(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; bym-bot)")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("请求失败，状态码 %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBytes))
}

// ===== 参数读取助手 =====

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argInt64(args map[string]any, key string) int64 {
	switch v := args[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func argBool(args map[string]any, key string) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return false
}

// senderID 从注入的 sender 字段读取触发者QQ号
func senderID(args map[string]any) int64 {
	if m, ok := args["sender"].(map[string]any); ok {
		return argInt64(m, "user_id")
	}
	return 0
}

func failure(msg string) map[string]any {
	return map[string]any{"success": false, "message": msg}
}

func success(msg string) map[string]any {
	return map[string]any{"success": true, "message": msg}
}
