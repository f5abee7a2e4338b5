package config

import "testing"

func TestApplyDefaults(t *testing.T) {
	c := &Config{}
	c.applyDefaults()

	if c.Chat.MaxChunks != 3 || c.Chat.HistorySize != 20 || c.Chat.QuoteChance != 10 {
		t.Errorf("Chat 默认值错误: %+v", c.Chat)
	}
	if c.Chat.RecallAfter != 10 || c.Chat.MaxChunkDelay != 3000 {
		t.Errorf("Chat 默认值错误: %+v", c.Chat)
	}
	if c.Gemini.MaxToolHops != 8 {
		t.Errorf("MaxToolHops 默认值 = %d", c.Gemini.MaxToolHops)
	}
	if c.OneBot.ReconnectInterval != 5 {
		t.Errorf("ReconnectInterval 默认值 = %d", c.OneBot.ReconnectInterval)
	}
}

func TestApplyDefaultsKeepsExplicit(t *testing.T) {
	c := &Config{}
	c.Chat.MaxChunks = 5
	c.Gemini.MaxToolHops = 2
	c.applyDefaults()

	if c.Chat.MaxChunks != 5 || c.Gemini.MaxToolHops != 2 {
		t.Errorf("显式配置被覆盖: %+v %+v", c.Chat, c.Gemini)
	}
}

func TestIsGroupDisabled(t *testing.T) {
	c := &Config{
		Groups: []GroupConfig{
			{GroupID: 1, Enabled: true},
			{GroupID: 2, Enabled: false},
		},
	}

	if c.IsGroupDisabled(1) {
		t.Error("启用的群不应禁用")
	}
	if !c.IsGroupDisabled(2) {
		t.Error("enabled=false 的群应禁用")
	}
	// 未列出的群默认允许
	if c.IsGroupDisabled(3) {
		t.Error("未配置的群默认允许")
	}
}

func TestIsMaster(t *testing.T) {
	c := &Config{}
	c.OneBot.MasterQQ = []int64{111, 222}

	if !c.IsMaster(111) || !c.IsMaster(222) {
		t.Error("主人列表识别失败")
	}
	if c.IsMaster(333) {
		t.Error("非主人误判")
	}
}

func TestGetGroupConfig(t *testing.T) {
	c := &Config{
		Groups: []GroupConfig{{GroupID: 7, Enabled: true, ExtraPrompt: "只聊原神"}},
	}

	gc := c.GetGroupConfig(7)
	if gc == nil || gc.ExtraPrompt != "只聊原神" {
		t.Errorf("GetGroupConfig(7) = %+v", gc)
	}
	if c.GetGroupConfig(8) != nil {
		t.Error("不存在的群应返回 nil")
	}
}
