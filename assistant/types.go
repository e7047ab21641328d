package assistant

import "time"

// Role 标记消息发送方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageType 是消息的用途标签。
type MessageType string

const (
	TypeQuestion    MessageType = "question"
	TypeAnalysis    MessageType = "analysis"
	TypeInteraction MessageType = "interaction"
)

// Valid 判断是否为已知类型。
func (t MessageType) Valid() bool {
	switch t {
	case TypeQuestion, TypeAnalysis, TypeInteraction:
		return true
	}
	return false
}

// Message 一旦创建不再修改。
type Message struct {
	ID        string      `json:"id"`
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"type"`
}

// Conversation 是一次对话，消息按时间顺序追加。
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PoemID    string    `json:"poem_id,omitempty"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Intent 是用户输入的意图分类。
type Intent string

const (
	IntentRead    Intent = "read"
	IntentAnalyze Intent = "analyze"
	IntentUnknown Intent = "unknown"
)

// IntentResult 每次输入重新计算，不持久化。
type IntentResult struct {
	Intent Intent
	Title  string
}

// HasTitle 表示是否提取到了诗题。
func (r IntentResult) HasTitle() bool {
	return r.Title != ""
}
