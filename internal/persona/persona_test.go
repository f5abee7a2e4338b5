package persona

import (
	"strings"
	"testing"
	"time"

	"bym-bot/internal/config"
)

func testPersona() *Persona {
	return NewPersona(&config.PersonaConfig{
		Name:       "小沐",
		Preset:     "你是一个爱吐槽的大学生。",
		FuckPrompt: "现在进入对线模式，语气尖锐一点。",
	})
}

func TestRenderIdentity(t *testing.T) {
	pc := testPersona().BuildContext(114514, "张三", 42, false, nil, "")
	out := pc.Render()

	for _, want := range []string{
		"你的名字是“小沐”",
		"群号是114514",
		"群名片是张三",
		"qq号是42",
		"<EMPTY>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("提示词缺少 %q", want)
		}
	}
	if !strings.Contains(out, "你是一个爱吐槽的大学生。") {
		t.Error("提示词缺少人设补充")
	}
}

func TestRenderFuckSuffix(t *testing.T) {
	p := testPersona()

	out := p.BuildContext(1, "a", 1, true, nil, "").Render()
	if !strings.Contains(out, "对线模式") {
		t.Error("嘴臭模式应附加提示段")
	}
	out = p.BuildContext(1, "a", 1, false, nil, "").Render()
	if strings.Contains(out, "对线模式") {
		t.Error("普通模式不应附加嘴臭提示段")
	}
}

func TestRenderHistory(t *testing.T) {
	history := []HistoryEntry{
		{
			Time:     time.Date(2026, 8, 1, 12, 30, 0, 0, time.Local),
			Card:     "老李",
			Nickname: "李四",
			UserID:   777,
			Role:     "admin",
			Title:    "镇群之宝",
			Content:  "今晚开黑吗",
		},
		{
			Time:     time.Date(2026, 8, 1, 12, 31, 0, 0, time.Local),
			Nickname: "王五",
			UserID:   888,
			Role:     "member",
			Content:  "带我一个",
		},
	}
	out := testPersona().BuildContext(1, "a", 1, false, history, "").Render()

	// 名片优先于昵称
	if !strings.Contains(out, "【老李】 (QQ: 777)") {
		t.Error("记录应显示群名片")
	}
	if !strings.Contains(out, "【王五】 (QQ: 888)") {
		t.Error("无名片时应回落到昵称")
	}
	if !strings.Contains(out, "角色：管理员 头衔：镇群之宝") {
		t.Error("记录应带角色和头衔")
	}
	if !strings.Contains(out, "[2026-08-01 12:30:00]") {
		t.Error("记录应带时间戳")
	}
	if !strings.Contains(out, "内容：今晚开黑吗") {
		t.Error("记录应带消息内容")
	}
}

func TestRenderExtraGroupPrompt(t *testing.T) {
	out := testPersona().BuildContext(1, "a", 1, false, nil, "这个群只聊原神。").Render()
	if !strings.Contains(out, "## 群特殊说明") || !strings.Contains(out, "这个群只聊原神。") {
		t.Error("群专属提示词未注入")
	}

	out = testPersona().BuildContext(1, "a", 1, false, nil, "").Render()
	if strings.Contains(out, "## 群特殊说明") {
		t.Error("无群专属提示词时不应出现小节标题")
	}
}

func TestRoleName(t *testing.T) {
	cases := map[string]string{
		"owner":  "群主",
		"admin":  "管理员",
		"member": "普通成员",
		"":       "普通成员",
		"weird":  "普通成员",
	}
	for role, want := range cases {
		if got := RoleName(role); got != want {
			t.Errorf("RoleName(%q) = %q, want %q", role, got, want)
		}
	}
}
