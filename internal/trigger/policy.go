package trigger

import (
	"math/rand"
	"strings"

	"bym-bot/internal/config"
	"bym-bot/internal/onebot"
)

// Decision 触发决策结果
type Decision struct {
	Engage bool // 是否让引擎接管本条消息
	Forced bool // 被@、被引用或被叫到名字，绕过随机数
	Fuck   bool // 命中嘴臭关键词，切换人设并标记自动撤回
}

// Policy 回复触发策略
// 决定伪人对一条群消息是装没看见还是接话，避免逢消息必答。
type Policy struct {
	cfg *config.Config
	// randInt 可注入的随机源，返回 [0,n) 的均匀整数
	randInt func(n int) int
}

// NewPolicy 创建触发策略
func NewPolicy(cfg *config.Config) *Policy {
	return &Policy{cfg: cfg, randInt: rand.Intn}
}

// Decide 对一条群消息做触发决策
// selfID 是机器人自己的QQ号，用于识别引用自己消息的场景。
func (p *Policy) Decide(msg *onebot.GroupMessage, selfID int64) Decision {
	d := Decision{}
	if !p.cfg.Trigger.Enabled {
		return d
	}
	// 群级开关一票否决
	if p.cfg.IsGroupDisabled(msg.GroupID) {
		return d
	}

	d.Fuck = p.matchFuckKeyword(msg.Content)

	// 显式@机器人，必答
	if msg.MentionBot {
		d.Engage = true
		d.Forced = true
		return d
	}
	// 引用了机器人自己的消息，必答
	if msg.Reply != nil && msg.Reply.SenderID == selfID {
		d.Engage = true
		d.Forced = true
		return d
	}
	// 消息里叫到了名字或别名，必答
	if p.nameMentioned(msg.Content) {
		d.Engage = true
		d.Forced = true
		return d
	}

	// 其余按概率随机接话
	if p.randInt(100) < p.cfg.Trigger.ReplyRate {
		d.Engage = true
	}
	return d
}

// nameMentioned 检查文本是否包含人格名字或别名
func (p *Policy) nameMentioned(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	name := p.cfg.Persona.Name
	if name != "" && strings.Contains(lower, strings.ToLower(name)) {
		return true
	}
	for _, alias := range p.cfg.Persona.AliasNames {
		if alias != "" && strings.Contains(lower, strings.ToLower(alias)) {
			return true
		}
	}
	return false
}

// matchFuckKeyword 检查是否命中嘴臭关键词
func (p *Policy) matchFuckKeyword(text string) bool {
	if text == "" {
		return false
	}
	for _, kw := range p.cfg.Persona.FuckKeywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
