package assistant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock 每次调用前进一秒。
func stepClock() func() time.Time {
	t := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestSessionStartConversation(t *testing.T) {
	sess := NewSession("u1")
	_, ok := sess.Current()
	assert.False(t, ok)

	conv := sess.StartConversation("7", "")
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "u1", conv.UserID)
	assert.Equal(t, "7", conv.PoemID)
	assert.Equal(t, DefaultConversationTitle, conv.Title)
	assert.Empty(t, conv.Messages)

	titled := sess.StartConversation("", "读唐诗")
	cur, ok := sess.Current()
	require.True(t, ok)
	assert.Equal(t, titled.ID, cur.ID)
	assert.Equal(t, "读唐诗", cur.Title)

	got, ok := sess.Conversation(conv.ID)
	require.True(t, ok)
	assert.Equal(t, conv.ID, got.ID)
	_, ok = sess.Conversation("missing")
	assert.False(t, ok)
}

func TestSessionHistorySortedByUpdate(t *testing.T) {
	sess := NewSession("u1")
	sess.now = stepClock()

	first := sess.StartConversation("", "第一")
	second := sess.StartConversation("", "第二")
	// 往第一个对话追加消息，使其成为最近更新
	sess.appendMessage(first.ID, RoleUser, "你好", TypeQuestion)

	history := sess.History()
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, second.ID, history[1].ID)
}

func TestSessionAppendCreatesConversation(t *testing.T) {
	sess := NewSession("u1")
	msg, convID := sess.appendMessage("", RoleUser, "你好", TypeInteraction)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, TypeInteraction, msg.Type)

	cur, ok := sess.Current()
	require.True(t, ok)
	assert.Equal(t, convID, cur.ID)
	assert.Equal(t, DefaultConversationTitle, cur.Title)
	assert.Equal(t, msg.Timestamp, cur.UpdatedAt)
}

func TestSessionSnapshotsAreIndependent(t *testing.T) {
	sess := NewSession("u1")
	sess.appendMessage("", RoleUser, "你好", TypeQuestion)

	snap, _ := sess.Current()
	snap.Messages[0].Content = "改过"
	snap.Messages = append(snap.Messages, Message{Content: "多余"})

	cur, _ := sess.Current()
	require.Len(t, cur.Messages, 1)
	assert.Equal(t, "你好", cur.Messages[0].Content)
}

func TestMessageTypeValid(t *testing.T) {
	assert.True(t, TypeQuestion.Valid())
	assert.True(t, TypeAnalysis.Valid())
	assert.True(t, TypeInteraction.Valid())
	assert.False(t, MessageType("chat").Valid())
}
