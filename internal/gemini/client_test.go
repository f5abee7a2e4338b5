package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"
)

// fakeBackend 按脚本逐次返回响应，并记录每次请求
type fakeBackend struct {
	responses []*genai.GenerateContentResponse
	errs      []error
	contents  [][]*genai.Content
	configs   []*genai.GenerateContentConfig
	idx       int
}

func (b *fakeBackend) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	b.contents = append(b.contents, contents)
	b.configs = append(b.configs, cfg)
	i := b.idx
	b.idx++
	if i < len(b.errs) && b.errs[i] != nil {
		return nil, b.errs[i]
	}
	if i >= len(b.responses) {
		// 脚本用尽时重复最后一个响应
		i = len(b.responses) - 1
	}
	return b.responses[i], nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: text}},
			},
		}},
	}
}

func fcResponse(sideText, name string, args map[string]any) *genai.GenerateContentResponse {
	var parts []*genai.Part
	if sideText != "" {
		parts = append(parts, &genai.Part{Text: sideText})
	}
	parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{Name: name, Args: args}})
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: parts},
		}},
	}
}

func newTestClient(b *fakeBackend) *Client {
	return &Client{backend: b, store: NewStore(40)}
}

// stubTool 可编程的测试工具
type stubTool struct {
	name string
	fn   func(ctx context.Context, args map[string]any) (map[string]any, error)
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "测试用" }
func (t *stubTool) Parameters() *genai.Schema {
	return &genai.Schema{Type: genai.TypeObject}
}
func (t *stubTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	return t.fn(ctx, args)
}

func TestSendMessageEmptyInput(t *testing.T) {
	b := &fakeBackend{}
	c := newTestClient(b)

	reply, err := c.SendMessage(context.Background(), "", &SendOptions{ParentMessageID: "p1"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply.ParentMessageID != "p1" || reply.Text != "" {
		t.Errorf("空输入应原样返回: %+v", reply)
	}
	if len(b.contents) != 0 {
		t.Errorf("空输入不应触发后端调用")
	}
}

func TestSendMessagePlainText(t *testing.T) {
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{textResponse("你好呀")}}
	c := newTestClient(b)

	reply, err := c.SendMessage(context.Background(), "你好", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply.Text != "你好呀" {
		t.Errorf("Text = %q", reply.Text)
	}
	if reply.ID == "" || reply.ParentMessageID == "" {
		t.Errorf("应返回消息ID用于续链: %+v", reply)
	}
	if c.store.Len() != 2 {
		t.Errorf("用户和模型回合都应入库, got %d", c.store.Len())
	}

	// 续链后历史被带上
	_, err = c.SendMessage(context.Background(), "再说一句", &SendOptions{ParentMessageID: reply.ID})
	if err != nil {
		t.Fatalf("续链 SendMessage: %v", err)
	}
	if got := len(b.contents[1]); got != 3 {
		t.Errorf("第二轮应携带2条历史+1条新消息, got %d", got)
	}
}

func TestSendMessageToolDispatch(t *testing.T) {
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{
		fcResponse("", "echo", map[string]any{"word": "hi"}),
		textResponse("搞定"),
	}}
	c := newTestClient(b)

	var gotArgs map[string]any
	reg := NewRegistry()
	reg.MustRegister(&stubTool{name: "echo", fn: func(_ context.Context, args map[string]any) (map[string]any, error) {
		gotArgs = args
		return map[string]any{"word": args["word"]}, nil
	}})

	reply, err := c.SendMessage(context.Background(), "复读hi", &SendOptions{
		Tools: reg,
		Caller: Caller{
			UserID: 42, Nickname: "小明", Role: "admin", IsAdmin: true,
		},
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply.Text != "搞定" {
		t.Errorf("Text = %q", reply.Text)
	}

	if gotArgs == nil {
		t.Fatal("工具未被调用")
	}
	if gotArgs["word"] != "hi" {
		t.Errorf("原始参数丢失: %v", gotArgs)
	}
	if gotArgs["isAdmin"] != true || gotArgs["mode"] != "gemini" {
		t.Errorf("注入参数缺失: %v", gotArgs)
	}
	sender, ok := gotArgs["sender"].(map[string]any)
	if !ok || sender["user_id"] != int64(42) {
		t.Errorf("sender 注入错误: %v", gotArgs["sender"])
	}

	// 第二轮请求的末尾应是工具结果回合
	second := b.contents[1]
	last := second[len(second)-1]
	fr := last.Parts[0].FunctionResponse
	if fr == nil || fr.Name != "echo" {
		t.Fatalf("工具结果未回灌: %+v", last)
	}
	payload, _ := fr.Response["content"].(map[string]any)
	if payload["word"] != "hi" {
		t.Errorf("回灌载荷错误: %v", fr.Response)
	}
}

func TestSendMessageSideTextCallback(t *testing.T) {
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{
		fcResponse("我去查一下", "echo", nil),
		textResponse("查到了"),
	}}
	c := newTestClient(b)

	reg := NewRegistry()
	reg.MustRegister(&stubTool{name: "echo", fn: func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	}})

	var sides []string
	_, err := c.SendMessage(context.Background(), "查查", &SendOptions{
		Tools:             reg,
		ReplyTextCallback: func(text string) { sides = append(sides, text) },
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(sides) != 1 || sides[0] != "我去查一下" {
		t.Errorf("过场文本未回调: %v", sides)
	}
}

func TestSendMessageNamelessFunctionCall(t *testing.T) {
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{
		fcResponse("", "", nil),
	}}
	c := newTestClient(b)

	reply, err := c.SendMessage(context.Background(), "你好", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if !reply.Errored {
		t.Error("无名函数调用应标记 Errored")
	}
	if reply.Text != "" {
		t.Errorf("无名函数调用不应有文本: %q", reply.Text)
	}
}

func TestSendMessageUnknownTool(t *testing.T) {
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{
		fcResponse("", "nosuch", nil),
		textResponse("好吧"),
	}}
	c := newTestClient(b)

	_, err := c.SendMessage(context.Background(), "试试", &SendOptions{Tools: NewRegistry()})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	second := b.contents[1]
	fr := second[len(second)-1].Parts[0].FunctionResponse
	payload, _ := fr.Response["content"].(map[string]any)
	if payload["error"] != "Function nosuch doesn't exist" {
		t.Errorf("未知工具错误载荷: %v", payload)
	}
}

func TestSendMessageToolError(t *testing.T) {
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{
		fcResponse("", "boom", nil),
		textResponse("出错了呢"),
	}}
	c := newTestClient(b)

	reg := NewRegistry()
	reg.MustRegister(&stubTool{name: "boom", fn: func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return nil, errors.New("炸了")
	}})

	reply, err := c.SendMessage(context.Background(), "来", &SendOptions{Tools: reg})
	if err != nil {
		t.Fatalf("工具失败不应上抛: %v", err)
	}
	if reply.Text != "出错了呢" {
		t.Errorf("Text = %q", reply.Text)
	}

	second := b.contents[1]
	fr := second[len(second)-1].Parts[0].FunctionResponse
	payload, _ := fr.Response["content"].(map[string]any)
	if payload["error"] != "Function execute error: 炸了" {
		t.Errorf("工具异常载荷: %v", payload)
	}
}

func TestSendMessageToolLoopExceeded(t *testing.T) {
	// 后端永远要求调工具
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{
		fcResponse("", "echo", nil),
	}}
	c := newTestClient(b)

	reg := NewRegistry()
	reg.MustRegister(&stubTool{name: "echo", fn: func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	}})

	_, err := c.SendMessage(context.Background(), "来", &SendOptions{Tools: reg, MaxToolHops: 2})
	if !errors.Is(err, ErrToolLoopExceeded) {
		t.Fatalf("应返回 ErrToolLoopExceeded, got %v", err)
	}
}

func TestSendMessageImagesExcludeTools(t *testing.T) {
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{textResponse("好图")}}
	c := newTestClient(b)

	reg := NewRegistry()
	reg.MustRegister(&stubTool{name: "echo", fn: func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	}})

	_, err := c.SendMessage(context.Background(), "看图", &SendOptions{
		Tools:  reg,
		Search: true,
		Images: []InlineImage{{MIMEType: "image/png", Data: []byte{1, 2}}},
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	cfg := b.configs[0]
	if len(cfg.Tools) != 0 {
		t.Errorf("带图片的请求不应声明任何工具: %+v", cfg.Tools)
	}

	// 图片应已内联进用户回合
	first := b.contents[0]
	parts := first[len(first)-1].Parts
	if len(parts) != 2 || parts[1].InlineData == nil || parts[1].InlineData.MIMEType != "image/png" {
		t.Errorf("图片未内联: %+v", parts)
	}
}

func TestSendMessageMustResubmitForcesAnyMode(t *testing.T) {
	b := &fakeBackend{responses: []*genai.GenerateContentResponse{
		fcResponse("", "searchMusic", map[string]any{"keyword": "晴天"}),
		fcResponse("", "sendMusic", map[string]any{"id": float64(7)}),
		textResponse("歌来了"),
	}}
	c := newTestClient(b)

	reg := NewRegistry()
	for _, name := range []string{"searchMusic", "sendMusic"} {
		reg.MustRegister(&stubTool{name: name, fn: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			return map[string]any{}, nil
		}})
	}

	_, err := c.SendMessage(context.Background(), "点首晴天", &SendOptions{Tools: reg})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if mode := b.configs[0].ToolConfig.FunctionCallingConfig.Mode; mode != genai.FunctionCallingConfigModeAuto {
		t.Errorf("首轮应为 AUTO 模式, got %v", mode)
	}
	if mode := b.configs[1].ToolConfig.FunctionCallingConfig.Mode; mode != genai.FunctionCallingConfigModeAny {
		t.Errorf("搜索类工具之后应强制 ANY 模式, got %v", mode)
	}
	if mode := b.configs[2].ToolConfig.FunctionCallingConfig.Mode; mode != genai.FunctionCallingConfigModeAuto {
		t.Errorf("普通工具之后应回到 AUTO 模式, got %v", mode)
	}
}

func TestSendMessageBackendError(t *testing.T) {
	b := &fakeBackend{
		responses: []*genai.GenerateContentResponse{textResponse("")},
		errs:      []error{errors.New("网络炸了")},
	}
	c := newTestClient(b)

	_, err := c.SendMessage(context.Background(), "你好", nil)
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("应返回 BackendError, got %v", err)
	}
	if c.store.Len() != 0 {
		t.Errorf("失败的回合不应入库")
	}
}

func TestFlattenContentWithCodeExecution(t *testing.T) {
	content := &genai.Content{Parts: []*genai.Part{
		{Text: "算出来了"},
		{ExecutableCode: &genai.ExecutableCode{Language: "PYTHON", Code: "print(1+1)"}},
		{CodeExecutionResult: &genai.CodeExecutionResult{Outcome: "OUTCOME_OK", Output: "2"}},
	}}
	got := flattenContent(content)
	for _, want := range []string{"算出来了", "执行代码：", "```PYTHON", "print(1+1)", "执行结果(OUTCOME_OK)：", "\n2\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("缺少 %q:\n%s", want, got)
		}
	}
}

func TestFormatCitations(t *testing.T) {
	gm := &genai.GroundingMetadata{
		GroundingChunks: []*genai.GroundingChunk{
			{Web: &genai.GroundingChunkWeb{Title: "维基百科"}},
			{Web: &genai.GroundingChunkWeb{Title: "知乎"}},
		},
	}
	got := formatCitations(gm)
	if !strings.Contains(got, "参考资料") || !strings.Contains(got, "[维基百科]") || !strings.Contains(got, "[知乎]") {
		t.Errorf("引用格式错误: %q", got)
	}
	if formatCitations(nil) != "" {
		t.Error("无溯源信息时应为空")
	}
}
