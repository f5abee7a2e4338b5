package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// 生成参数缺省值，与后端建议值一致
const (
	defaultMaxOutputTokens = 1000
	defaultTemperature     = 0.9
	defaultTopP            = 0.95
	defaultTopK            = 16
	defaultMaxToolHops     = 8
)

// mustResubmit 这些工具的结果必须立刻回灌给模型再调一次工具，
// 下一轮强制 ANY 模式，防止模型拿到搜索结果却不行动。
var mustResubmit = map[string]bool{
	"searchImage": true,
	"searchMusic": true,
	"searchVideo": true,
}

// relaxedSafety 全类目关闭内容拦截（人设如此，不做审查）
var relaxedSafety = []*genai.SafetySetting{
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdOff},
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdOff},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdOff},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdOff},
	{Category: genai.HarmCategoryCivicIntegrity, Threshold: genai.HarmBlockThresholdBlockNone},
}

// ErrToolLoopExceeded 工具连环调用超出上限
var ErrToolLoopExceeded = errors.New("工具调用循环超出上限")

// BackendError 后端调用失败（非200或响应结构异常），对当轮会话是致命的
type BackendError struct {
	Code int
	Body string
	Err  error
}

func (e *BackendError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("后端调用失败[%d]: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("后端调用失败: %s", e.Body)
}

func (e *BackendError) Unwrap() error { return e.Err }

// InlineImage 随消息内联上传的图片
type InlineImage struct {
	MIMEType string
	Data     []byte
}

// Caller 发起本轮会话的群成员信息，派发工具时注入参数
type Caller struct {
	UserID   int64
	Nickname string
	Card     string
	Role     string // owner/admin/member
	IsAdmin  bool
	IsOwner  bool
}

func (c Caller) senderMap() map[string]any {
	return map[string]any{
		"user_id":  c.UserID,
		"nickname": c.Nickname,
		"card":     c.Card,
		"role":     c.Role,
	}
}

// SendOptions 单次会话的全部参数
type SendOptions struct {
	System          string
	MaxOutputTokens int32
	Temperature     float32
	TopP            float32
	TopK            float32
	Images          []InlineImage
	Tools           *Registry
	Search          bool // 启用内置 google_search
	CodeExecution   bool // 启用内置代码执行沙箱
	ParentMessageID string
	Caller          Caller
	MaxToolHops     int
	// ReplyTextCallback 模型在发起工具调用的同时附带的文本
	// （"我去查一下"之类的过场话）在工具执行前立刻经此回调发出
	ReplyTextCallback func(text string)
}

// Reply 会话最终结果
type Reply struct {
	Text            string
	ID              string
	ParentMessageID string
	Errored         bool
}

// backend 生成调用的抽象，测试时可替换
type backend interface {
	generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type genaiBackend struct {
	client *genai.Client
	model  string
}

func (b *genaiBackend) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return b.client.Models.GenerateContent(ctx, b.model, contents, cfg)
}

// Client 面向 Gemini 的会话引擎
// 负责构建请求、解析响应、派发工具调用并把结果回灌给模型，
// 直到产出纯文本的最终回答。
type Client struct {
	backend backend
	store   *Store
	debug   bool
}

// NewClient 创建会话引擎
func NewClient(ctx context.Context, apiKey, baseURL, model string, store *Store, debug bool) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions.BaseURL = baseURL
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}
	return &Client{
		backend: &genaiBackend{client: gc, model: model},
		store:   store,
		debug:   debug,
	}, nil
}

// Store 返回引擎使用的会话历史存储
func (c *Client) Store() *Store { return c.store }

// 会话循环状态
type loopState int

const (
	stateAwaitingModel loopState = iota
	stateDispatchingTool
	stateDone
	stateFailed
)

// SendMessage 执行一次"问模型、跑工具、再问模型"的完整循环
// text 为空时必须附带图片，否则静默忽略。
// 后端失败返回 *BackendError；工具层面的失败一律吞掉回灌给模型。
func (c *Client) SendMessage(ctx context.Context, text string, opt *SendOptions) (*Reply, error) {
	if opt == nil {
		opt = &SendOptions{}
	}
	maxHops := opt.MaxToolHops
	if maxHops <= 0 {
		maxHops = defaultMaxToolHops
	}

	var (
		funcResp  *genai.FunctionResponse
		parentID  = opt.ParentMessageID
		hops      int
		state     = stateAwaitingModel
		reply     *Reply
		loopErr   error
		pendingFC *genai.FunctionCall
		userMsg   *Message
		modelMsg  *Message
	)

	for {
		switch state {
		case stateAwaitingModel:
			if text == "" && len(opt.Images) == 0 && funcResp == nil {
				// 无文本也无图片：当作无事发生
				return &Reply{ParentMessageID: parentID}, nil
			}

			userMsg = c.buildUserMessage(text, opt.Images, funcResp, parentID)
			contents := append(c.store.Chain(parentID), userMsg.Content)
			cfg := c.buildConfig(opt, funcResp)

			resp, err := c.backend.generate(ctx, contents, cfg)
			if err != nil {
				loopErr = wrapBackendError(err)
				state = stateFailed
				break
			}
			if c.debug {
				if raw, err := sonic.MarshalString(resp); err == nil {
					zap.L().Debug("模型原始响应", zap.String("body", raw))
				}
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				loopErr = &BackendError{Body: "响应缺少候选内容"}
				state = stateFailed
				break
			}

			content := resp.Candidates[0].Content
			grounding := resp.Candidates[0].GroundingMetadata

			if fc := findFunctionCall(content); fc != nil {
				// 工具调用前模型附带的过场文本先行发出
				if side := firstText(content); side != "" {
					zap.L().Info("模型过场发言", zap.String("text", side))
					if opt.ReplyTextCallback != nil {
						opt.ReplyTextCallback(side)
					}
				}
				if fc.Name == "" {
					// 无名函数调用无从派发，以错误标记的空结果终止
					reply = &Reply{ParentMessageID: parentID, Errored: true}
					state = stateDone
					break
				}
				modelMsg = &Message{ID: uuid.NewString(), ParentID: userMsg.ID, Content: content}
				pendingFC = fc
				state = stateDispatchingTool
				break
			}

			// 纯文本最终回答
			c.store.Put(userMsg)
			modelMsg = &Message{ID: uuid.NewString(), ParentID: userMsg.ID, Content: content}
			c.store.Put(modelMsg)

			final := flattenContent(content)
			final += formatCitations(grounding)
			reply = &Reply{Text: final, ID: modelMsg.ID, ParentMessageID: userMsg.ID}
			state = stateDone

		case stateDispatchingTool:
			hops++
			if hops > maxHops {
				loopErr = fmt.Errorf("%w（%d跳）", ErrToolLoopExceeded, maxHops)
				state = stateFailed
				break
			}

			result := c.dispatchTool(ctx, pendingFC, opt)

			c.store.Put(userMsg)
			c.store.Put(modelMsg)

			funcResp = &genai.FunctionResponse{
				Name: pendingFC.Name,
				Response: map[string]any{
					"name":    pendingFC.Name,
					"content": result,
				},
			}
			parentID = modelMsg.ID
			text = ""
			pendingFC = nil
			state = stateAwaitingModel

		case stateDone:
			return reply, nil

		case stateFailed:
			return nil, loopErr
		}
	}
}

// buildUserMessage 构建本轮用户回合：工具结果接续或文本+图片
func (c *Client) buildUserMessage(text string, images []InlineImage, funcResp *genai.FunctionResponse, parentID string) *Message {
	var parts []*genai.Part
	if funcResp != nil {
		parts = append(parts, &genai.Part{FunctionResponse: funcResp})
	} else {
		parts = append(parts, &genai.Part{Text: text})
		for _, img := range images {
			mime := img.MIMEType
			if mime == "" {
				mime = "image/jpeg"
			}
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{MIMEType: mime, Data: img.Data},
			})
		}
	}
	return &Message{
		ID:       uuid.NewString(),
		ParentID: parentID,
		Content:  &genai.Content{Role: "user", Parts: parts},
	}
}

// buildConfig 组装生成配置：系统提示词、安全策略、采样参数、工具声明
// 附带图片时完全不声明工具——后端的函数调用与图像输入互斥。
func (c *Client) buildConfig(opt *SendOptions, funcResp *genai.FunctionResponse) *genai.GenerateContentConfig {
	maxTokens := opt.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutputTokens
	}
	temperature := opt.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	topP := opt.TopP
	if topP <= 0 {
		topP = defaultTopP
	}
	topK := opt.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: maxTokens,
		Temperature:     genai.Ptr(temperature),
		TopP:            genai.Ptr(topP),
		TopK:            genai.Ptr(topK),
		SafetySettings:  relaxedSafety,
	}
	if opt.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: opt.System}},
		}
	}

	if len(opt.Images) > 0 {
		return cfg
	}

	if opt.Tools != nil && opt.Tools.Len() > 0 {
		cfg.Tools = append(cfg.Tools, &genai.Tool{
			FunctionDeclarations: opt.Tools.Declarations(),
		})
		mode := genai.FunctionCallingConfigModeAuto
		if funcResp != nil && mustResubmit[funcResp.Name] {
			mode = genai.FunctionCallingConfigModeAny
		}
		cfg.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: mode},
		}
	}
	if opt.Search {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if opt.CodeExecution {
		cfg.Tools = append(cfg.Tools, &genai.Tool{CodeExecution: &genai.ToolCodeExecution{}})
	}
	return cfg
}

// dispatchTool 派发一次工具调用
// 未注册的名字和执行中的异常都折叠成错误载荷回灌给模型，绝不向上抛。
func (c *Client) dispatchTool(ctx context.Context, fc *genai.FunctionCall, opt *SendOptions) map[string]any {
	var tool Tool
	if opt.Tools != nil {
		tool, _ = opt.Tools.Lookup(fc.Name)
	}
	if tool == nil {
		zap.L().Warn("模型请求了不存在的工具", zap.String("name", fc.Name))
		return map[string]any{"error": fmt.Sprintf("Function %s doesn't exist", fc.Name)}
	}

	args := make(map[string]any, len(fc.Args)+4)
	for k, v := range fc.Args {
		args[k] = v
	}
	args["isAdmin"] = opt.Caller.IsAdmin
	args["isOwner"] = opt.Caller.IsOwner
	args["sender"] = opt.Caller.senderMap()
	args["mode"] = "gemini"

	zap.L().Info("派发工具调用", zap.String("name", fc.Name))
	if c.debug {
		if raw, err := sonic.MarshalString(args); err == nil {
			zap.L().Debug("工具参数", zap.String("args", raw))
		}
	}

	result, err := tool.Invoke(ctx, args)
	if err != nil {
		zap.L().Error("工具执行失败", zap.String("name", fc.Name), zap.Error(err))
		return map[string]any{"error": fmt.Sprintf("Function execute error: %s", err.Error())}
	}
	if result == nil {
		result = map[string]any{}
	}
	return result
}

// findFunctionCall 找出响应里的第一个函数调用
func findFunctionCall(content *genai.Content) *genai.FunctionCall {
	for _, part := range content.Parts {
		if part != nil && part.FunctionCall != nil {
			return part.FunctionCall
		}
	}
	return nil
}

// firstText 找出响应里的第一段文本
func firstText(content *genai.Content) string {
	for _, part := range content.Parts {
		if part != nil && part.Text != "" {
			return part.Text
		}
	}
	return ""
}

// flattenContent 把文本、可执行代码及其运行结果拼成一段最终文本
func flattenContent(content *genai.Content) string {
	var final string
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			final += part.Text
		}
		if part.ExecutableCode != nil {
			final += "\n执行代码：\n```" + string(part.ExecutableCode.Language) + "\n" +
				part.ExecutableCode.Code + "\n```\n\n"
		}
		if part.CodeExecutionResult != nil {
			final += fmt.Sprintf("\n执行结果(%s)：\n```\n%s\n```\n\n",
				part.CodeExecutionResult.Outcome, part.CodeExecutionResult.Output)
		}
	}
	return final
}

// formatCitations 把检索溯源信息格式化为参考资料块
func formatCitations(gm *genai.GroundingMetadata) string {
	if gm == nil || len(gm.GroundingChunks) == 0 {
		return ""
	}
	block := "\n参考资料\n"
	for _, chunk := range gm.GroundingChunks {
		if chunk != nil && chunk.Web != nil {
			block += fmt.Sprintf("[%s]\n", chunk.Web.Title)
		}
	}
	for _, q := range gm.WebSearchQueries {
		zap.L().Info("检索关键词", zap.String("query", q))
	}
	return block
}

// wrapBackendError 将底层错误统一包装为 BackendError
func wrapBackendError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &BackendError{Code: apiErr.Code, Body: apiErr.Message, Err: err}
	}
	return &BackendError{Body: err.Error(), Err: err}
}
