package tools

import (
	"strings"
	"testing"

	"bym-bot/internal/config"
)

func TestArgInt64(t *testing.T) {
	args := map[string]any{
		"f": float64(42),
		"i": int64(7),
		"n": 3,
		"s": "100",
		"x": "不是数字",
	}
	cases := map[string]int64{"f": 42, "i": 7, "n": 3, "s": 100, "x": 0, "missing": 0}
	for key, want := range cases {
		if got := argInt64(args, key); got != want {
			t.Errorf("argInt64(%q) = %d, want %d", key, got, want)
		}
	}
}

func TestArgHelpers(t *testing.T) {
	args := map[string]any{"name": "小沐", "flag": true, "num": 1}

	if got := argString(args, "name"); got != "小沐" {
		t.Errorf("argString = %q", got)
	}
	if got := argString(args, "num"); got != "" {
		t.Errorf("非字符串应返回空串: %q", got)
	}
	if !argBool(args, "flag") || argBool(args, "name") {
		t.Error("argBool 结果错误")
	}
}

func TestSenderID(t *testing.T) {
	args := map[string]any{
		"sender": map[string]any{"user_id": float64(114514), "nickname": "张三"},
	}
	if got := senderID(args); got != 114514 {
		t.Errorf("senderID = %d", got)
	}
	if got := senderID(map[string]any{}); got != 0 {
		t.Errorf("缺少 sender 时应为 0: %d", got)
	}
}

func TestCleanHTML(t *testing.T) {
	html := `<html><head><script>alert(1)</script><style>body{}</style></head>
<body><h1>标题</h1><p>第一段&nbsp;&amp;&lt;测试&gt;</p></body></html>`
	got := cleanHTML(html)

	if strings.Contains(got, "alert") || strings.Contains(got, "body{}") {
		t.Errorf("脚本/样式未剔除: %q", got)
	}
	if strings.Contains(got, "<") && !strings.Contains(got, "<测试>") {
		t.Errorf("标签未剔除: %q", got)
	}
	if !strings.Contains(got, "标题") || !strings.Contains(got, "第一段 &<测试>") {
		t.Errorf("正文丢失: %q", got)
	}
}

func TestCleanHTMLTruncates(t *testing.T) {
	long := strings.Repeat("字", maxPageRunes+100)
	got := cleanHTML(long)

	runes := []rune(got)
	if len(runes) != maxPageRunes+2 {
		t.Errorf("截断后长度 = %d", len(runes))
	}
	if !strings.HasSuffix(got, "……") {
		t.Errorf("截断应以省略号结尾")
	}
}

func TestCapabilitiesFrom(t *testing.T) {
	cfg := &config.Config{
		Tools: config.ToolsConfig{SerpKey: "k", MusicAPI: "", ImageAPI: "u"},
	}

	caps := CapabilitiesFrom(cfg, "admin")
	if !caps.BotAdmin || !caps.SerpKey || caps.MusicAPI || !caps.ImageAPI {
		t.Errorf("caps = %+v", caps)
	}
	// 管理员不是群主
	if caps.BotOwner {
		t.Error("管理员不应有群主能力")
	}
	if CapabilitiesFrom(cfg, "member").BotAdmin {
		t.Error("普通成员不应有管理能力")
	}
	owner := CapabilitiesFrom(cfg, "owner")
	if !owner.BotAdmin || !owner.BotOwner {
		t.Error("群主应同时有管理和群主能力")
	}
}

func TestBuildRegistryGating(t *testing.T) {
	base := BuildRegistry(Capabilities{})
	for _, name := range []string{"weather", "website", "sendAvatar", "poke", "searchVideo", "sendVideo"} {
		if _, ok := base.Lookup(name); !ok {
			t.Errorf("基础工具 %s 缺失", name)
		}
	}
	for _, name := range []string{"search", "searchMusic", "sendMusic", "searchImage", "sendPicture", "jinyan", "kickOut", "editCard", "setTitle"} {
		if _, ok := base.Lookup(name); ok {
			t.Errorf("无能力时不应注册 %s", name)
		}
	}

	// 只是管理员时不挂载专属头衔工具
	admin := BuildRegistry(Capabilities{BotAdmin: true})
	if _, ok := admin.Lookup("jinyan"); !ok {
		t.Error("管理员应有禁言工具")
	}
	if _, ok := admin.Lookup("setTitle"); ok {
		t.Error("非群主不应有专属头衔工具")
	}

	full := BuildRegistry(Capabilities{BotAdmin: true, BotOwner: true, SerpKey: true, MusicAPI: true, ImageAPI: true})
	for _, name := range []string{"search", "searchMusic", "sendMusic", "searchImage", "sendPicture", "jinyan", "kickOut", "editCard", "setTitle"} {
		if _, ok := full.Lookup(name); !ok {
			t.Errorf("全能力下应注册 %s", name)
		}
	}
	if full.Len() <= base.Len() {
		t.Errorf("全能力目录应更大: %d <= %d", full.Len(), base.Len())
	}
}
