package gemini

import (
	"sync"

	"google.golang.org/genai"
)

// Message 会话历史中的一条消息
// parentID 指向它所延续的消息，形成一条链；创建后不再修改。
type Message struct {
	ID       string
	ParentID string
	Content  *genai.Content
}

// Store 会话历史存储
// 只追加；windowSize>0 时按 parentID 链回溯的条数受窗口限制，
// 避免上下文无限增长。
type Store struct {
	mu         sync.RWMutex
	messages   map[string]*Message
	windowSize int
}

// NewStore 创建历史存储，windowSize<=0 表示不限制回溯条数
func NewStore(windowSize int) *Store {
	return &Store{
		messages:   make(map[string]*Message),
		windowSize: windowSize,
	}
}

// Put 追加一条消息
func (s *Store) Put(msg *Message) {
	if msg == nil || msg.ID == "" {
		return
	}
	s.mu.Lock()
	s.messages[msg.ID] = msg
	s.mu.Unlock()
}

// Get 按 id 取消息
func (s *Store) Get(id string) (*Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	return msg, ok
}

// Len 已存储的消息数量
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Chain 从 parentID 出发沿链回溯，按时间先后顺序返回内容
// parentID 为空或找不到时返回空切片。
func (s *Store) Chain(parentID string) []*genai.Content {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reversed []*genai.Content
	id := parentID
	for id != "" {
		msg, ok := s.messages[id]
		if !ok {
			break
		}
		reversed = append(reversed, msg.Content)
		if s.windowSize > 0 && len(reversed) >= s.windowSize {
			break
		}
		id = msg.ParentID
	}

	contents := make([]*genai.Content, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		contents = append(contents, reversed[i])
	}
	return contents
}
