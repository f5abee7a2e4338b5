package persona

import (
	"fmt"
	"strings"
	"time"

	"bym-bot/internal/config"
)

// roleNames 群角色的中文名
var roleNames = map[string]string{
	"owner":  "群主",
	"admin":  "管理员",
	"member": "普通成员",
}

// RoleName 群角色中文名，未知角色按普通成员处理
func RoleName(role string) string {
	if name, ok := roleNames[role]; ok {
		return name
	}
	return "普通成员"
}

// HistoryEntry 注入提示词的一条聊天记录
type HistoryEntry struct {
	Time     time.Time
	Card     string // 群名片，为空时用昵称
	Nickname string
	UserID   int64
	Role     string
	Title    string // 专属头衔
	Content  string
}

func (h HistoryEntry) displayName() string {
	if h.Card != "" {
		return h.Card
	}
	return h.Nickname
}

// PromptContext 系统提示词的组成要素
// 以结构化数据组装，而不是散落各处的字符串拼接，方便测试。
type PromptContext struct {
	BotName    string
	GroupID    int64
	SenderCard string // 当前说话人的群名片或昵称
	SenderQQ   int64
	Preset     string // 人设补充
	FuckSuffix string // 嘴臭模式附加段，非嘴臭模式为空
	History    []HistoryEntry
	ExtraGroup string // 群专属额外提示词
}

// Persona 人格定义
type Persona struct {
	cfg *config.PersonaConfig
}

// NewPersona 创建人格
func NewPersona(cfg *config.PersonaConfig) *Persona {
	return &Persona{cfg: cfg}
}

// GetName 人格名字
func (p *Persona) GetName() string { return p.cfg.Name }

// BuildContext 组装一次会话的提示词上下文
func (p *Persona) BuildContext(groupID int64, senderCard string, senderQQ int64, fuck bool, history []HistoryEntry, extraGroup string) *PromptContext {
	pc := &PromptContext{
		BotName:    p.cfg.Name,
		GroupID:    groupID,
		SenderCard: senderCard,
		SenderQQ:   senderQQ,
		Preset:     p.cfg.Preset,
		History:    history,
		ExtraGroup: extraGroup,
	}
	if fuck {
		pc.FuckSuffix = p.cfg.FuckPrompt
	}
	return pc
}

// Render 渲染系统提示词
// 身份、能力、注意事项、人设补充、聊天记录依序拼成最终文本。
func (pc *PromptContext) Render() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf(`你的名字是“%s”，你在一个qq群里，群号是%d，当前和你说话的人群名片是%s, qq号是%d, 请你结合用户的发言和聊天记录作出回应，要求表现得随性一点，最好参与讨论，混入其中。

**你擅长做的事情包括：**
- 分享图片、视频、音乐、画图、发语音（你可以找到有趣的内容和大家分享）。
- 搜索信息（如果群友需要帮助，你可以查找并提供答案）。
- 提供一些有趣的想法或建议（比如活动推荐、闲聊互动）。
- 帮助解答疑问，但请以一种轻松自然的语气。

**注意事项：**
- **聊天目标**：你的回复应像人类一样自然随意，有趣但不过分插科打诨。
- **工具使用**：当需要查找或分享内容时，你可以假装是自己找的，但实际上可以调用工具完成任务。禁止敷衍只发文字来敷衍别人，你必须去调用工具。
- **语言优先**：优先使用中文。
- **简练表达**：如果不知道说什么，可以随意复读群友的某句话，表现得像一个真实的参与者。
- 如果当前情况下不需要你说话，可以返回 "<EMPTY>"。`,
		pc.BotName, pc.GroupID, pc.SenderCard, pc.SenderQQ))

	if pc.Preset != "" {
		b.WriteString(pc.Preset)
	}
	if pc.FuckSuffix != "" {
		b.WriteString(pc.FuckSuffix)
	}
	if pc.ExtraGroup != "" {
		b.WriteString("\n\n## 群特殊说明\n")
		b.WriteString(pc.ExtraGroup)
	}

	b.WriteString("以下是聊天记录:")
	for _, entry := range pc.History {
		title := ""
		if entry.Title != "" {
			title = fmt.Sprintf(" 头衔：%s", entry.Title)
		}
		b.WriteString(fmt.Sprintf("\n```\n[%s] 【%s】 (QQ: %d)\n角色：%s%s\n内容：%s\n```\n",
			entry.Time.Format("2006-01-02 15:04:05"), entry.displayName(), entry.UserID,
			RoleName(entry.Role), title, entry.Content))
	}
	b.WriteString(fmt.Sprintf("\n根据上面的群聊消息来进行第一人称对话，保留“%s”的角色风格，不要附加任何奇怪的东西，不能模仿聊天记录的格式，禁止重复聊天记录。", pc.BotName))

	return b.String()
}
