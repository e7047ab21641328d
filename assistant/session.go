package assistant

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultConversationTitle 是新对话的默认标题。
const DefaultConversationTitle = "新的对话"

// Session 持有一个用户的当前对话、历史对话和分析中标记。
// 同一 Session 上的多轮对话按提交顺序串行执行。
type Session struct {
	UserID string

	turn sync.Mutex

	mu      sync.RWMutex
	current *Conversation
	history []*Conversation

	analyzing atomic.Bool
	now       func() time.Time
}

// NewSession 创建空 session，尚无对话。
func NewSession(userID string) *Session {
	return &Session{UserID: userID, now: time.Now}
}

// StartConversation 新建对话并设为当前对话，title 为空时使用默认标题。
func (s *Session) StartConversation(poemID, title string) Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(poemID, title).snapshot()
}

func (s *Session) startLocked(poemID, title string) *Conversation {
	if title == "" {
		title = DefaultConversationTitle
	}
	ts := s.clock()
	c := &Conversation{
		ID:        uuid.NewString(),
		UserID:    s.UserID,
		PoemID:    poemID,
		Title:     title,
		Messages:  []Message{},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	s.current = c
	s.history = append(s.history, c)
	return c
}

// Current 返回当前对话的快照。
func (s *Session) Current() (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Conversation{}, false
	}
	return s.current.snapshot(), true
}

// Conversation 按 id 返回对话快照。
func (s *Session) Conversation(id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c := s.find(id); c != nil {
		return c.snapshot(), true
	}
	return Conversation{}, false
}

// History 返回全部对话，最近更新的在前。
func (s *Session) History() []Conversation {
	s.mu.RLock()
	out := make([]Conversation, 0, len(s.history))
	for _, c := range s.history {
		out = append(out, c.snapshot())
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Analyzing 表示是否有一轮对话正在处理，仅用于界面提示。
func (s *Session) Analyzing() bool {
	return s.analyzing.Load()
}

// appendMessage 追加消息。convID 为空时写入当前对话，没有当前对话则隐式创建；
// 返回实际写入的对话 id，同一轮的回复据此写回同一个对话。
func (s *Session) appendMessage(convID string, role Role, content string, typ MessageType) (Message, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.find(convID)
	if c == nil {
		c = s.current
	}
	if c == nil {
		c = s.startLocked("", "")
	}
	msg := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: s.clock(),
		Type:      typ,
	}
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = msg.Timestamp
	return msg, c.ID
}

func (s *Session) find(id string) *Conversation {
	if id == "" {
		return nil
	}
	for _, c := range s.history {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *Session) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (c *Conversation) snapshot() Conversation {
	cp := *c
	cp.Messages = append([]Message(nil), c.Messages...)
	if cp.Messages == nil {
		cp.Messages = []Message{}
	}
	return cp
}
