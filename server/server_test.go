package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poetry_companion/assistant"
	"poetry_companion/poetry"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo := poetry.NewSeededRepository()
	a, err := assistant.NewAssistant(repo, nil)
	require.NoError(t, err)
	srv, err := New(a, repo)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, target, body, user string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestPostMessageRead(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodPost, "/api/messages", `{"content":"阅读《静夜思》"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[messageResp](t, rec)
	assert.Equal(t, "静夜思 / 李白（唐）\n\n床前明月光，疑是地上霜。举头望明月，低头思故乡。", resp.Reply)
	assert.Contains(t, resp.ReplyHTML, "<p>静夜思 / 李白（唐）</p>")
	assert.NotEmpty(t, resp.ConversationID)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, assistant.RoleUser, resp.Messages[0].Role)
	assert.Equal(t, assistant.TypeQuestion, resp.Messages[0].Type)
	assert.Equal(t, assistant.TypeAnalysis, resp.Messages[1].Type)
}

func TestPostMessageValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/messages", `{"content":"   "}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "content is required", decode[map[string]string](t, rec)["error"])

	rec = do(t, srv, http.MethodPost, "/api/messages", `{"content":"你好","type":"chat"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/messages", `{"content":`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversationsArePerUser(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/conversations", `{"title":"读唐诗","poem_id":"1"}`, "alice")
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[assistant.Conversation](t, rec)
	assert.Equal(t, "读唐诗", created.Title)
	assert.Equal(t, "alice", created.UserID)

	rec = do(t, srv, http.MethodPost, "/api/messages", `{"content":"赏析《春晓》","type":"interaction"}`, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[messageResp](t, rec)
	assert.Equal(t, created.ID, resp.ConversationID)
	assert.Equal(t, "未找到标题为“春晓”的诗歌，无法进行赏析。", resp.Reply)

	rec = do(t, srv, http.MethodGet, "/api/conversations/"+created.ID, "", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[assistant.Conversation](t, rec).Messages, 2)

	// bob 看不到 alice 的对话
	rec = do(t, srv, http.MethodGet, "/api/conversations/"+created.ID, "", "bob")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, srv, http.MethodGet, "/api/conversations", "", "bob")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]assistant.Conversation](t, rec))
}

func TestConversationHistoryOrder(t *testing.T) {
	srv := newTestServer(t)
	first := decode[assistant.Conversation](t, do(t, srv, http.MethodPost, "/api/conversations", `{}`, ""))
	second := decode[assistant.Conversation](t, do(t, srv, http.MethodPost, "/api/conversations", `{}`, ""))
	assert.Equal(t, assistant.DefaultConversationTitle, first.Title)

	// 新消息写入当前对话，即 second
	do(t, srv, http.MethodPost, "/api/messages", `{"content":"你好"}`, "")

	history := decode[[]assistant.Conversation](t, do(t, srv, http.MethodGet, "/api/conversations", "", ""))
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)
}

func TestStatus(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/api/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]bool](t, rec)
	assert.False(t, got["analyzing"])
	assert.False(t, got["llm_configured"])
}

func TestPoemEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/poems?q="+urlEscape("山水诗"), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]poetry.Poem](t, rec), 2)

	rec = do(t, srv, http.MethodGet, "/api/poems?q="+urlEscape("你好"), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = do(t, srv, http.MethodGet, "/api/poems", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/poems/lookup?title="+urlEscape("江雪"), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "柳宗元", decode[poetry.Poem](t, rec).PoetName)

	rec = do(t, srv, http.MethodGet, "/api/poems/lookup?title="+urlEscape("春晓"), "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/poets/"+urlEscape("李白"), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[poetry.PoetProfile](t, rec)
	assert.Equal(t, "李白", profile.Name)
	assert.Len(t, profile.Poems, 1)

	rec = do(t, srv, http.MethodGet, "/api/poets/"+urlEscape("无名氏"), "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRenderMarkdown(t *testing.T) {
	html := renderMarkdown("静夜思 / 李白（唐）\n\n床前明月光，\n疑是地上霜。")
	assert.Contains(t, html, "<p>静夜思 / 李白（唐）</p>")
	assert.Contains(t, html, "床前明月光，<br")
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(nil, poetry.NewSeededRepository())
	assert.Error(t, err)
}

func urlEscape(s string) string {
	return url.PathEscape(s)
}

// heldLLM 在 release 关闭前阻塞，用来在一轮对话进行中插入其他请求。
type heldLLM struct {
	started chan struct{}
	release chan struct{}
}

func (h *heldLLM) Complete(context.Context, assistant.Prompt) (string, error) {
	close(h.started)
	<-h.release
	return "模型回复", nil
}

func TestPostMessageReportsConversationOfTheTurn(t *testing.T) {
	repo := poetry.NewSeededRepository()
	llm := &heldLLM{started: make(chan struct{}), release: make(chan struct{})}
	a, err := assistant.NewAssistant(repo, llm)
	require.NoError(t, err)
	srv, err := New(a, repo)
	require.NoError(t, err)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- do(t, srv, http.MethodPost, "/api/messages", `{"content":"阅读《静夜思》"}`, "alice")
	}()

	<-llm.started
	rec := do(t, srv, http.MethodPost, "/api/conversations", `{"title":"新话题"}`, "alice")
	require.Equal(t, http.StatusCreated, rec.Code)
	fresh := decode[assistant.Conversation](t, rec)
	close(llm.release)

	rec = <-done
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[messageResp](t, rec)
	assert.NotEqual(t, fresh.ID, resp.ConversationID)
	assert.Equal(t, "模型回复", resp.Reply)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "阅读《静夜思》", resp.Messages[0].Content)
	assert.Equal(t, "模型回复", resp.Messages[1].Content)

	// 新对话仍为空
	rec = do(t, srv, http.MethodGet, "/api/conversations/"+fresh.ID, "", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[assistant.Conversation](t, rec).Messages)
}
