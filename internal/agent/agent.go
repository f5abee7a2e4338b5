package agent

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"bym-bot/internal/chatlog"
	"bym-bot/internal/config"
	"bym-bot/internal/gemini"
	"bym-bot/internal/onebot"
	"bym-bot/internal/persona"
	"bym-bot/internal/renderer"
	"bym-bot/internal/reply"
	"bym-bot/internal/tools"
	"bym-bot/internal/trigger"
	"bym-bot/internal/utils"
)

// 单次会话最多携带的图片数
const maxInlineImages = 3

// Agent 把触发决策、提示词组装、会话引擎和回复投递串起来的主流程
type Agent struct {
	cfg       *config.Config
	persona   *persona.Persona
	engine    *gemini.Client
	bot       *onebot.Client
	store     *chatlog.Store // 可为 nil（消息日志未启用）
	scheduler *reply.Scheduler
	policy    *trigger.Policy

	// 每个群各自的近期消息缓冲，作为提示词里的聊天记录
	buffers   map[int64]*utils.RingBuffer[*onebot.GroupMessage]
	buffersMu sync.RWMutex
}

// New 创建 Agent
func New(
	cfg *config.Config,
	p *persona.Persona,
	engine *gemini.Client,
	bot *onebot.Client,
	store *chatlog.Store,
	scheduler *reply.Scheduler,
) *Agent {
	return &Agent{
		cfg:       cfg,
		persona:   p,
		engine:    engine,
		bot:       bot,
		store:     store,
		scheduler: scheduler,
		policy:    trigger.NewPolicy(cfg),
		buffers:   make(map[int64]*utils.RingBuffer[*onebot.GroupMessage]),
	}
}

// Start 注册事件回调
func (a *Agent) Start() {
	a.bot.OnMessage(a.onMessage)
	if a.cfg.Trigger.EnablePoke {
		a.bot.OnPoke(a.onPoke)
	}
	zap.L().Info("Agent 已启动", zap.String("persona", a.persona.GetName()))
}

// onMessage 每条群消息都进缓冲和日志，再做触发决策
func (a *Agent) onMessage(msg *onebot.GroupMessage) {
	if msg.UserID == a.bot.GetSelfID() {
		return
	}

	a.addBuffer(msg)
	a.logMessage(msg, false)

	d := a.policy.Decide(msg, a.bot.GetSelfID())
	if !d.Engage {
		return
	}

	zap.L().Info("触发回复",
		zap.Int64("group_id", msg.GroupID),
		zap.Int64("user_id", msg.UserID),
		zap.Bool("forced", d.Forced),
		zap.Bool("fuck", d.Fuck))

	go a.handle(msg, d)
}

// addBuffer 把消息放进所属群的环形缓冲
func (a *Agent) addBuffer(msg *onebot.GroupMessage) {
	a.buffersMu.Lock()
	defer a.buffersMu.Unlock()

	buf, ok := a.buffers[msg.GroupID]
	if !ok {
		size := a.cfg.Chat.HistorySize * 2
		buf = utils.NewRingBuffer[*onebot.GroupMessage](size)
		a.buffers[msg.GroupID] = buf
	}
	buf.Push(msg)
}

// recentHistory 取出该群最近的聊天记录
func (a *Agent) recentHistory(groupID int64) []persona.HistoryEntry {
	a.buffersMu.RLock()
	buf, ok := a.buffers[groupID]
	a.buffersMu.RUnlock()
	if !ok {
		return nil
	}

	msgs := buf.GetLast(a.cfg.Chat.HistorySize)
	entries := make([]persona.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, persona.HistoryEntry{
			Time:     m.Time,
			Card:     m.Card,
			Nickname: m.Nickname,
			UserID:   m.UserID,
			Role:     m.Role,
			Title:    m.Title,
			Content:  m.Content,
		})
	}
	return entries
}

// logMessage 写消息日志，未启用时跳过
func (a *Agent) logMessage(msg *onebot.GroupMessage, selfSent bool) {
	if a.store == nil {
		return
	}
	entry := chatlog.MessageLog{
		MessageID:  msg.MessageID,
		GroupID:    msg.GroupID,
		UserID:     msg.UserID,
		Nickname:   msg.Nickname,
		Card:       msg.Card,
		Role:       msg.Role,
		Content:    msg.Content,
		MentionBot: msg.MentionBot,
		SelfSent:   selfSent,
	}
	if err := a.store.AddMessage(entry); err != nil {
		zap.L().Warn("写消息日志失败", zap.Error(err))
	}
}

// handle 完整处理一次触发：下载图片、组提示词、跑会话、投递回复
func (a *Agent) handle(msg *onebot.GroupMessage, d trigger.Decision) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	images := a.downloadImages(ctx, msg)

	// 群成员快照，既用于 @名字解析也用于识别机器人自己的群角色
	members, err := a.bot.GetGroupMemberList(msg.GroupID, false)
	if err != nil {
		zap.L().Warn("获取群成员列表失败", zap.Int64("group_id", msg.GroupID), zap.Error(err))
	}
	directory := renderer.MemberDirectory(members)
	selfRole := "member"
	for _, m := range members {
		if m.UserID == a.bot.GetSelfID() {
			selfRole = m.Role
			break
		}
	}

	var extraPrompt string
	if gc := a.cfg.GetGroupConfig(msg.GroupID); gc != nil {
		extraPrompt = gc.ExtraPrompt
	}

	pc := a.persona.BuildContext(
		msg.GroupID,
		msg.DisplayName(),
		msg.UserID,
		d.Fuck,
		a.recentHistory(msg.GroupID),
		extraPrompt,
	)

	var recallAfter time.Duration
	if d.Fuck {
		recallAfter = time.Duration(a.cfg.Chat.RecallAfter) * time.Second
	}

	job := &reply.Job{
		GroupID:     msg.GroupID,
		SourceMsgID: msg.MessageID,
		ResolveAt:   true,
		Members:     directory,
		RecallAfter: recallAfter,
	}

	caps := tools.CapabilitiesFrom(a.cfg, selfRole)
	toolCtx := tools.WithToolContext(ctx, &tools.ToolContext{
		GroupID:     msg.GroupID,
		SelfID:      a.bot.GetSelfID(),
		SourceMsgID: msg.MessageID,
		Bot:         a.bot,
		Cfg:         a.cfg,
	})

	opt := &gemini.SendOptions{
		System:          pc.Render(),
		MaxOutputTokens: a.cfg.Gemini.MaxOutputTokens,
		Temperature:     a.cfg.Gemini.Temperature,
		TopP:            a.cfg.Gemini.TopP,
		TopK:            a.cfg.Gemini.TopK,
		Images:          images,
		Tools:           tools.BuildRegistry(caps),
		Search:          a.cfg.Gemini.EnableSearch,
		CodeExecution:   a.cfg.Gemini.EnableCodeExecution,
		MaxToolHops:     a.cfg.Gemini.MaxToolHops,
		Caller: gemini.Caller{
			UserID:   msg.UserID,
			Nickname: msg.Nickname,
			Card:     msg.Card,
			Role:     msg.Role,
			IsAdmin:  msg.Role == "admin" || msg.Role == "owner" || a.cfg.IsMaster(msg.UserID),
			IsOwner:  msg.Role == "owner" || a.cfg.IsMaster(msg.UserID),
		},
		// 工具执行前模型附带的过场话直接发出去
		ReplyTextCallback: func(text string) {
			side := *job
			side.Text = text
			a.scheduler.Deliver(&side)
		},
	}

	result, err := a.engine.SendMessage(toolCtx, msg.Content, opt)
	if err != nil {
		zap.L().Error("会话失败", zap.Int64("group_id", msg.GroupID), zap.Error(err))
		return
	}
	if result == nil || result.Text == "" {
		return
	}

	job.Text = result.Text
	a.scheduler.Deliver(job)

	if a.store != nil {
		if err := a.store.MarkReplied(msg.MessageID); err != nil {
			zap.L().Debug("标记回复状态失败", zap.Error(err))
		}
	}
}

// downloadImages 把消息里的图片拉到内存，供多模态输入
func (a *Agent) downloadImages(ctx context.Context, msg *onebot.GroupMessage) []gemini.InlineImage {
	var images []gemini.InlineImage
	for _, img := range msg.Images {
		if len(images) >= maxInlineImages {
			break
		}
		if img.URL == "" {
			continue
		}
		data, mime, err := utils.FetchImage(ctx, img.URL)
		if err != nil {
			zap.L().Warn("下载图片失败", zap.String("url", img.URL), zap.Error(err))
			continue
		}
		images = append(images, gemini.InlineImage{MIMEType: mime, Data: data})
	}
	return images
}

// pokeAction 戳一戳事件的处理决定
type pokeAction struct {
	engage  bool
	counter bool   // 先戳回去再开腔
	fuck    bool
	content string // 注入会话的触发文本
}

// decidePoke 判定一次戳一戳要不要理会
// 机器人被戳必开腔（按概率先反击），主人被任何人戳则注入嘴臭触发文本。
func (a *Agent) decidePoke(poke *onebot.PokeEvent, selfID int64, roll float64) pokeAction {
	if poke.GroupID == 0 || a.cfg.IsGroupDisabled(poke.GroupID) {
		return pokeAction{}
	}

	switch {
	case poke.TargetID == selfID:
		act := pokeAction{engage: true, content: "被戳了一下"}
		if roll < a.cfg.Trigger.PokeReplyRate {
			act.counter = true
			act.content = "被戳了一下，反击！"
		}
		return act
	case a.cfg.IsMaster(poke.TargetID):
		content := a.cfg.Persona.FuckTrigger
		if content == "" {
			content = "主人被戳了"
		}
		return pokeAction{engage: true, fuck: true, content: content}
	}
	return pokeAction{}
}

// onPoke 处理戳一戳
func (a *Agent) onPoke(poke *onebot.PokeEvent) {
	act := a.decidePoke(poke, a.bot.GetSelfID(), rand.Float64())
	if !act.engage {
		return
	}

	if act.counter {
		if err := a.bot.GroupPoke(poke.GroupID, poke.OperatorID); err != nil {
			zap.L().Warn("反击戳一戳失败", zap.Error(err))
		}
	}

	info, err := a.bot.GetGroupMemberInfo(poke.GroupID, poke.OperatorID, false)
	if err != nil {
		zap.L().Warn("获取戳一戳发起人信息失败", zap.Error(err))
		return
	}
	synthetic := &onebot.GroupMessage{
		GroupID:  poke.GroupID,
		UserID:   poke.OperatorID,
		Nickname: info.Nickname,
		Card:     info.Card,
		Role:     info.Role,
		Time:     time.Now(),
		Content:  act.content,
	}
	go a.handle(synthetic, trigger.Decision{Engage: true, Forced: true, Fuck: act.fuck})
}
