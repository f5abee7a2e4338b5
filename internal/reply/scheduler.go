package reply

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"bym-bot/internal/onebot"
	"bym-bot/internal/renderer"
)

// 默认分条参数
const (
	defaultMaxChunks   = 3
	defaultQuoteChance = 10
	defaultMaxDelay    = 3 * time.Second
	perRuneDelay       = 200 * time.Millisecond
)

// Sender 发送端抽象，由 OneBot 客户端实现
type Sender interface {
	// SendGroupSegments 发送消息段，quote>0 时引用该消息，返回新消息ID
	SendGroupSegments(groupID int64, segs []onebot.Segment, quote int64) (int64, error)
	// ScheduleRecall 延迟撤回消息
	ScheduleRecall(messageID int64, after time.Duration)
}

// Scheduler 分条回复调度器
// 把长回答拆成有限条数、按句子边界断开，逐条渲染发送，
// 条间按长度比例停顿模拟打字节奏。
type Scheduler struct {
	sender      Sender
	maxChunks   int
	quoteChance int           // 引用回复概率，0-100
	maxDelay    time.Duration // 条间最大停顿
}

// NewScheduler 创建调度器，非法参数回落到默认值
func NewScheduler(sender Sender, maxChunks, quoteChance int, maxDelayMS int) *Scheduler {
	s := &Scheduler{
		sender:      sender,
		maxChunks:   maxChunks,
		quoteChance: quoteChance,
		maxDelay:    time.Duration(maxDelayMS) * time.Millisecond,
	}
	if s.maxChunks <= 0 {
		s.maxChunks = defaultMaxChunks
	}
	if s.quoteChance <= 0 || s.quoteChance > 100 {
		s.quoteChance = defaultQuoteChance
	}
	if s.maxDelay <= 0 {
		s.maxDelay = defaultMaxDelay
	}
	return s
}

// Job 一次回复任务
type Job struct {
	GroupID     int64
	SourceMsgID int64            // 触发回复的原始消息，引用时指向它
	Text        string           // 模型产出的完整回答
	ResolveAt   bool             // 是否解析 @名字
	Members     map[string]int64 // 群成员名字快照
	RecallAfter time.Duration    // >0 时每条回复定时自动撤回（嘴臭模式）
}

// Deliver 拆分、渲染并逐条发出回复
func (s *Scheduler) Deliver(job *Job) {
	pieces := SplitReply(job.Text, s.maxChunks)
	for _, piece := range pieces {
		segs := renderer.Convert(piece, job.ResolveAt, job.Members)
		segs = renderer.FilterSegments(segs)
		if len(segs) == 0 {
			continue
		}

		var quote int64
		if rand.Intn(100) < s.quoteChance {
			quote = job.SourceMsgID
		}

		msgID, err := s.sender.SendGroupSegments(job.GroupID, segs, quote)
		if err != nil {
			zap.L().Error("发送回复失败", zap.Int64("group_id", job.GroupID), zap.Error(err))
			continue
		}
		if job.RecallAfter > 0 && msgID > 0 {
			s.sender.ScheduleRecall(msgID, job.RecallAfter)
		}

		// 条间停顿，按字数比例，封顶 maxDelay
		delay := time.Duration(len([]rune(piece))) * perRuneDelay
		if delay > s.maxDelay {
			delay = s.maxDelay
		}
		time.Sleep(delay)
	}
}

// SplitReply 按句末标点（。？换行）把回答拆成至多 limit 段
// 紧邻 ASCII 问号的边界不拆（"??"、"?？"这类连用按整体保留），
// 因断句丢掉的句尾"？"会补回原段。
func SplitReply(text string, limit int) []string {
	if limit <= 0 {
		limit = 1
	}
	runes := []rune(text)
	var pieces []string
	start := 0
	for i := 0; i < len(runes) && len(pieces) < limit-1; i++ {
		r := runes[i]
		if r != '。' && r != '？' && r != '\n' {
			continue
		}
		if i > 0 && runes[i-1] == '?' {
			continue
		}
		if i+1 < len(runes) && runes[i+1] == '?' {
			continue
		}
		piece := string(runes[start:i])
		if r == '？' {
			piece += "？"
		}
		pieces = append(pieces, piece)
		start = i + 1
	}
	pieces = append(pieces, string(runes[start:]))
	return pieces
}
