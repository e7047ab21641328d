package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"poetry_companion/poetry"
)

// ErrNilSession 表示调用方没有提供 session。
var ErrNilSession = errors.New("assistant: session is required")

const (
	defaultContextPoems    = 3
	defaultSuggestionLimit = 5
)

// Assistant 负责一轮对话：识别意图、查诗、调用大模型或回退到模板。
type Assistant struct {
	repo       poetry.Repository
	llm        LLMClient
	classifier Classifier
	gen        GenerationOptions

	contextPoems    int
	suggestionLimit int
	now             func() time.Time
}

// Option 调整 Assistant 的可选参数。
type Option func(*Assistant)

// WithClassifier 替换默认的触发词分类器。
func WithClassifier(c Classifier) Option {
	return func(a *Assistant) {
		if c != nil {
			a.classifier = c
		}
	}
}

// WithGenerationOptions 覆盖三类请求的采样参数。
func WithGenerationOptions(o GenerationOptions) Option {
	return func(a *Assistant) { a.gen = o }
}

// WithContextPoems 设置自由对话时放进提示词的诗歌数量上限。
func WithContextPoems(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.contextPoems = n
		}
	}
}

// WithSuggestionLimit 设置关键词检索结果最多列出几首。
func WithSuggestionLimit(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.suggestionLimit = n
		}
	}
}

// NewAssistant 创建编排器，llm 为 nil 时只使用模板回复。
func NewAssistant(repo poetry.Repository, llm LLMClient, opts ...Option) (*Assistant, error) {
	if repo == nil {
		return nil, errors.New("poem repository is required")
	}
	if llm == nil {
		llm = DisabledLLM{}
	}
	a := &Assistant{
		repo:            repo,
		llm:             llm,
		classifier:      NewRegexClassifier(),
		gen:             DefaultGenerationOptions(),
		contextPoems:    defaultContextPoems,
		suggestionLimit: defaultSuggestionLimit,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// LLMConfigured 表示当前是否会调用大模型。
func (a *Assistant) LLMConfigured() bool {
	return IsConfigured(a.llm)
}

// Turn 是一轮对话的结果。Conversation 是写入本轮消息的那个对话在本轮结束时的快照，
// 期间即使开始了新对话也不受影响。
type Turn struct {
	Reply        string
	Conversation Conversation
}

// SendMessage 处理用户的一条消息并返回助手回复。
// 查询或生成失败都会落到确定性的文本，返回的错误只有 ErrNilSession。
func (a *Assistant) SendMessage(ctx context.Context, sess *Session, content string, typ MessageType) (string, error) {
	turn, err := a.Exchange(ctx, sess, content, typ)
	if err != nil {
		return "", err
	}
	return turn.Reply, nil
}

// Exchange 与 SendMessage 相同，另外返回本轮所写对话的快照。
func (a *Assistant) Exchange(ctx context.Context, sess *Session, content string, typ MessageType) (Turn, error) {
	if sess == nil {
		return Turn{}, ErrNilSession
	}
	if typ == "" {
		typ = TypeQuestion
	}

	sess.turn.Lock()
	defer sess.turn.Unlock()

	_, convID := sess.appendMessage("", RoleUser, content, typ)
	reply := a.answer(ctx, sess, content)
	sess.appendMessage(convID, RoleAssistant, reply, TypeAnalysis)

	conv, _ := sess.Conversation(convID)
	return Turn{Reply: reply, Conversation: conv}, nil
}

func (a *Assistant) answer(ctx context.Context, sess *Session, content string) string {
	sess.analyzing.Store(true)
	defer sess.analyzing.Store(false)

	res := a.classifier.Classify(content)
	log.Debug().Str("user", sess.UserID).Str("intent", string(res.Intent)).Str("title", res.Title).Msg("classified message")

	switch {
	case res.Intent == IntentRead && res.HasTitle():
		return a.read(ctx, content, res.Title)
	case res.Intent == IntentAnalyze && res.HasTitle():
		return a.analyze(ctx, content, res.Title)
	default:
		return a.general(ctx, content)
	}
}

func (a *Assistant) read(ctx context.Context, content, title string) string {
	p, ok := a.lookup(ctx, title)
	if !ok {
		return ReadNotFoundReply(title)
	}
	if text, ok := a.complete(ctx, "read", BuildReadPrompt(*p, content, a.gen)); ok {
		return text
	}
	return BuildReadingReply(*p)
}

func (a *Assistant) analyze(ctx context.Context, content, title string) string {
	p, ok := a.lookup(ctx, title)
	if !ok {
		return AnalyzeNotFoundReply(title)
	}
	if text, ok := a.complete(ctx, "analyze", BuildAnalyzePrompt(*p, content, a.gen)); ok {
		return text
	}
	return BuildAnalysisReply(*p)
}

func (a *Assistant) general(ctx context.Context, content string) string {
	if a.LLMConfigured() {
		poems := a.contextFor(ctx, content)
		if text, ok := a.complete(ctx, "general", BuildGeneralPrompt(content, poems, a.gen)); ok {
			return text
		}
	}

	keyword := searchKeyword(content)
	if keyword == "" {
		return GuidanceMessage
	}
	poems, err := a.repo.SearchByText(ctx, keyword)
	if err != nil {
		log.Warn().Err(err).Str("keyword", keyword).Msg("keyword search failed")
		return GuidanceMessage
	}
	return BuildSuggestionList(poems, a.suggestionLimit)
}

// contextFor 尽力查出消息中《》提到的诗，查询失败时不带资料继续。
func (a *Assistant) contextFor(ctx context.Context, content string) []poetry.Poem {
	titles := ExtractTitles(content)
	if len(titles) == 0 {
		return nil
	}
	poems, err := a.repo.FindManyByTitles(ctx, titles)
	if err != nil {
		log.Warn().Err(err).Strs("titles", titles).Msg("context poem lookup failed")
		return nil
	}
	if len(poems) > a.contextPoems {
		poems = poems[:a.contextPoems]
	}
	return poems
}

func (a *Assistant) lookup(ctx context.Context, title string) (*poetry.Poem, bool) {
	p, err := a.repo.FindByTitle(ctx, title)
	if err != nil {
		if !errors.Is(err, poetry.ErrNotFound) {
			log.Warn().Err(err).Str("title", title).Msg("poem lookup failed")
		}
		return nil, false
	}
	if p == nil {
		return nil, false
	}
	return p, true
}

// complete 只尝试一次，失败或未配置时由调用方回退到模板。
func (a *Assistant) complete(ctx context.Context, kind string, prompt Prompt) (string, bool) {
	if !a.LLMConfigured() {
		log.Debug().Str("kind", kind).Msg("llm not configured, using template reply")
		return "", false
	}
	start := a.now()
	text, err := a.llm.Complete(ctx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyCompletion
	}
	if err != nil {
		log.Warn().Err(err).Str("kind", kind).Dur("elapsed", a.now().Sub(start)).Msg("llm completion failed, falling back")
		return "", false
	}
	log.Debug().Str("kind", kind).Dur("elapsed", a.now().Sub(start)).Msg("llm completion ok")
	return text, true
}
