package agent

import (
	"testing"

	"bym-bot/internal/config"
	"bym-bot/internal/onebot"
)

const selfID = int64(10000)

func pokeTestAgent() *Agent {
	return &Agent{cfg: &config.Config{
		Persona: config.PersonaConfig{
			FuckTrigger: "有人敢戳你主人，喷他",
		},
		OneBot: config.OneBotConfig{
			MasterQQ: []int64{555},
		},
		Trigger: config.TriggerConfig{
			Enabled:       true,
			EnablePoke:    true,
			PokeReplyRate: 0.5,
		},
		Groups: []config.GroupConfig{
			{GroupID: 200, Enabled: false},
		},
	}}
}

func TestDecidePokeMasterTarget(t *testing.T) {
	a := pokeTestAgent()

	// 任何人戳主人都要开腔，且带嘴臭触发文本
	act := a.decidePoke(&onebot.PokeEvent{GroupID: 1, OperatorID: 42, TargetID: 555}, selfID, 0.9)
	if !act.engage {
		t.Fatal("主人被戳应开腔")
	}
	if !act.fuck {
		t.Error("主人被戳应进入嘴臭模式")
	}
	if act.content != "有人敢戳你主人，喷他" {
		t.Errorf("触发文本 = %q", act.content)
	}
	if act.counter {
		t.Error("主人被戳不应反击戳操作者")
	}
}

func TestDecidePokeMasterTriggerFallback(t *testing.T) {
	a := pokeTestAgent()
	a.cfg.Persona.FuckTrigger = ""

	act := a.decidePoke(&onebot.PokeEvent{GroupID: 1, OperatorID: 42, TargetID: 555}, selfID, 0.9)
	if !act.engage || act.content != "主人被戳了" {
		t.Errorf("未配置触发文本时应回落: %+v", act)
	}
}

func TestDecidePokeSelfTarget(t *testing.T) {
	a := pokeTestAgent()
	poke := &onebot.PokeEvent{GroupID: 1, OperatorID: 42, TargetID: selfID}

	// 掷出低于反击概率：先戳回去，再开腔
	act := a.decidePoke(poke, selfID, 0.1)
	if !act.engage || !act.counter {
		t.Errorf("低掷值应反击并开腔: %+v", act)
	}
	if act.content != "被戳了一下，反击！" {
		t.Errorf("反击触发文本 = %q", act.content)
	}

	// 掷出高于反击概率：只开腔
	act = a.decidePoke(poke, selfID, 0.9)
	if !act.engage || act.counter {
		t.Errorf("高掷值应只开腔: %+v", act)
	}
	if act.content != "被戳了一下" {
		t.Errorf("触发文本 = %q", act.content)
	}
	if act.fuck {
		t.Error("机器人被戳不应进入嘴臭模式")
	}
}

func TestDecidePokeIgnoresOthers(t *testing.T) {
	a := pokeTestAgent()

	// 路人互戳不理会
	if act := a.decidePoke(&onebot.PokeEvent{GroupID: 1, OperatorID: 42, TargetID: 43}, selfID, 0.0); act.engage {
		t.Errorf("路人互戳不应开腔: %+v", act)
	}
	// 禁用群里戳谁都不理
	if act := a.decidePoke(&onebot.PokeEvent{GroupID: 200, OperatorID: 42, TargetID: 555}, selfID, 0.0); act.engage {
		t.Errorf("禁用群不应开腔: %+v", act)
	}
	// 非群聊事件不理会
	if act := a.decidePoke(&onebot.PokeEvent{GroupID: 0, OperatorID: 42, TargetID: selfID}, selfID, 0.0); act.engage {
		t.Errorf("非群聊事件不应开腔: %+v", act)
	}
}
