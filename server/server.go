package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"poetry_companion/assistant"
	"poetry_companion/poetry"
)

// UserHeader 携带调用方的用户 id，鉴权不在本服务范围内。
const (
	UserHeader  = "X-User-ID"
	DefaultUser = "current-user"
)

type Server struct {
	echo      *echo.Echo
	assistant *assistant.Assistant
	repo      poetry.Repository
	store     *sessionStore
}

// sessionStore 每个用户一个 Session，首次访问时创建。
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*assistant.Session
}

func newStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*assistant.Session)}
}

func (s *sessionStore) get(userID string) *assistant.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = assistant.NewSession(userID)
		s.sessions[userID] = sess
	}
	return sess
}

func New(a *assistant.Assistant, repo poetry.Repository) (*Server, error) {
	if a == nil {
		return nil, errors.New("assistant required")
	}
	if repo == nil {
		return nil, errors.New("poem repository required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:      e,
		assistant: a,
		repo:      repo,
		store:     newStore(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	api := s.echo.Group("/api")
	api.POST("/conversations", s.handleConversationCreate)
	api.GET("/conversations", s.handleConversationList)
	api.GET("/conversations/:id", s.handleConversationGet)
	api.POST("/messages", s.handleMessage)
	api.GET("/status", s.handleStatus)

	api.GET("/poems", s.handlePoemSearch)
	api.GET("/poems/lookup", s.handlePoemLookup)
	api.GET("/poets/:name", s.handlePoet)
}

// Handler 暴露路由，便于 httptest 直接调用。
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start 阻塞监听 addr，Shutdown 触发的关闭不视为错误。
func (s *Server) Start(addr string) error {
	log.Info().Str("addr", addr).Msg("server listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 等待进行中的请求结束。
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// --- Handlers ---

type conversationCreateReq struct {
	PoemID string `json:"poem_id"`
	Title  string `json:"title"`
}

type messageReq struct {
	Content string                `json:"content"`
	Type    assistant.MessageType `json:"type"`
}

type messageResp struct {
	ConversationID string              `json:"conversation_id"`
	Reply          string              `json:"reply"`
	ReplyHTML      string              `json:"reply_html"`
	Messages       []assistant.Message `json:"messages"`
}

func (s *Server) handleConversationCreate(c echo.Context) error {
	var req conversationCreateReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	conv := s.session(c).StartConversation(req.PoemID, strings.TrimSpace(req.Title))
	return c.JSON(http.StatusCreated, conv)
}

func (s *Server) handleConversationList(c echo.Context) error {
	return c.JSON(http.StatusOK, s.session(c).History())
}

func (s *Server) handleConversationGet(c echo.Context) error {
	conv, ok := s.session(c).Conversation(c.Param("id"))
	if !ok {
		return fail(c, http.StatusNotFound, "conversation not found")
	}
	return c.JSON(http.StatusOK, conv)
}

func (s *Server) handleMessage(c echo.Context) error {
	var req messageReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return fail(c, http.StatusBadRequest, "content is required")
	}
	if req.Type != "" && !req.Type.Valid() {
		return fail(c, http.StatusBadRequest, "invalid message type")
	}

	turn, err := s.assistant.Exchange(c.Request().Context(), s.session(c), content, req.Type)
	if err != nil {
		log.Error().Err(err).Msg("send message")
		return fail(c, http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, messageResp{
		ConversationID: turn.Conversation.ID,
		Reply:          turn.Reply,
		ReplyHTML:      renderMarkdown(turn.Reply),
		Messages:       turn.Conversation.Messages,
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{
		"analyzing":      s.session(c).Analyzing(),
		"llm_configured": s.assistant.LLMConfigured(),
	})
}

func (s *Server) handlePoemSearch(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return fail(c, http.StatusBadRequest, "query parameter q is required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	poems, err := s.repo.SearchByText(ctx, q)
	if err != nil {
		log.Warn().Err(err).Str("q", q).Msg("poem search failed")
		return fail(c, http.StatusInternalServerError, "poem search failed")
	}
	if poems == nil {
		poems = []poetry.Poem{}
	}
	return c.JSON(http.StatusOK, poems)
}

func (s *Server) handlePoemLookup(c echo.Context) error {
	title := strings.TrimSpace(c.QueryParam("title"))
	if title == "" {
		return fail(c, http.StatusBadRequest, "query parameter title is required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	p, err := s.repo.FindByTitle(ctx, title)
	switch {
	case errors.Is(err, poetry.ErrNotFound):
		return fail(c, http.StatusNotFound, "poem not found")
	case err != nil:
		log.Warn().Err(err).Str("title", title).Msg("poem lookup failed")
		return fail(c, http.StatusInternalServerError, "poem lookup failed")
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handlePoet(c echo.Context) error {
	name := strings.TrimSpace(c.Param("name"))
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	poems, err := s.repo.FindByPoet(ctx, name)
	if err != nil {
		log.Warn().Err(err).Str("poet", name).Msg("poet lookup failed")
		return fail(c, http.StatusInternalServerError, "poet lookup failed")
	}
	profile, err := poetry.BuildPoetProfile(name, poems)
	if errors.Is(err, poetry.ErrNotFound) {
		return fail(c, http.StatusNotFound, "poet not found")
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}

// --- Helpers ---

func (s *Server) session(c echo.Context) *assistant.Session {
	user := strings.TrimSpace(c.Request().Header.Get(UserHeader))
	if user == "" {
		user = DefaultUser
	}
	return s.store.get(user)
}

func fail(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}
