package poetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// DefaultView 是暴露诗歌字段的只读视图。
	DefaultView = "poems_view"

	poemColumns = "id,title,content,poet_name,dynasty_name,poem_type,poet_description,created_at"

	// 按标题查询时取回的候选行数，结果在本地按字面值再过滤一次。
	titleLookupLimit = "10"
)

// PostgRESTConfig 描述托管数据库的 REST 查询入口（Supabase）。
type PostgRESTConfig struct {
	BaseURL string
	APIKey  string
	View    string
}

// PostgRESTRepository 通过 /rest/v1 接口查询诗歌。
type PostgRESTRepository struct {
	baseURL string
	apiKey  string
	view    string
	client  *http.Client
}

// NewPostgRESTRepository 校验配置并创建仓库；client 为空时使用 30 秒超时的默认客户端。
func NewPostgRESTRepository(cfg PostgRESTConfig, client *http.Client) (*PostgRESTRepository, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return nil, errors.New("postgrest: base url and api key are required")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	view := cfg.View
	if view == "" {
		view = DefaultView
	}
	return &PostgRESTRepository{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		view:    view,
		client:  client,
	}, nil
}

func (r *PostgRESTRepository) FindByTitle(ctx context.Context, title string) (*Poem, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrNotFound
	}
	lit := ilikeLiteral(title)
	want := strings.ToLower(title)
	// 先精确（忽略大小写）匹配，再模糊匹配；* 只能换成单字通配，结果再按字面值过滤。
	stages := []struct {
		pattern string
		accept  func(string) bool
	}{
		{lit, func(t string) bool { return t == want }},
		{"*" + lit + "*", func(t string) bool { return strings.Contains(t, want) }},
	}
	for _, st := range stages {
		q := r.selectQuery()
		q.Set("title", "ilike."+st.pattern)
		q.Set("order", "title.asc")
		q.Set("limit", titleLookupLimit)
		poems, err := r.queryPoems(ctx, q)
		if err != nil {
			return nil, err
		}
		for i := range poems {
			if st.accept(strings.ToLower(poems[i].Title)) {
				return &poems[i], nil
			}
		}
	}
	return nil, ErrNotFound
}

func (r *PostgRESTRepository) SearchByText(ctx context.Context, query string) ([]Poem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	like := quoteValue("*" + ilikeLiteral(query) + "*")
	q := r.selectQuery()
	q.Set("or", fmt.Sprintf("(title.ilike.%s,content.ilike.%s,poet_name.ilike.%s,poem_type.ilike.%s)", like, like, like, like))
	q.Set("order", "title.asc")
	poems, err := r.queryPoems(ctx, q)
	if err != nil || !strings.Contains(query, "*") {
		return poems, err
	}
	lower := strings.ToLower(query)
	kept := poems[:0]
	for _, p := range poems {
		if matchesQuery(p, lower) {
			kept = append(kept, p)
		}
	}
	return kept, nil
}

func (r *PostgRESTRepository) FindManyByTitles(ctx context.Context, titles []string) ([]Poem, error) {
	titles = uniqueTitles(titles)
	if len(titles) == 0 {
		return nil, nil
	}
	quoted := make([]string, len(titles))
	for i, t := range titles {
		quoted[i] = quoteValue(t)
	}
	q := r.selectQuery()
	q.Set("title", "in.("+strings.Join(quoted, ",")+")")
	return r.queryPoems(ctx, q)
}

func (r *PostgRESTRepository) FindByPoet(ctx context.Context, poet string) ([]Poem, error) {
	poet = strings.TrimSpace(poet)
	if poet == "" {
		return nil, nil
	}
	q := r.selectQuery()
	q.Set("poet_name", "eq."+poet)
	q.Set("order", "title.asc")
	return r.queryPoems(ctx, q)
}

func (r *PostgRESTRepository) selectQuery() url.Values {
	q := url.Values{}
	q.Set("select", poemColumns)
	return q
}

func (r *PostgRESTRepository) queryPoems(ctx context.Context, q url.Values) ([]Poem, error) {
	body, err := r.do(ctx, http.MethodGet, r.view, q, nil)
	if err != nil {
		return nil, err
	}
	return decodePoemRows(body)
}

// do 发送一次 REST 请求，非 2xx 视为失败。
func (r *PostgRESTRepository) do(ctx context.Context, method, table string, q url.Values, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s", r.baseURL, table)
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("postgrest %s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(data, "message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return nil, fmt.Errorf("postgrest %s %s: status %d: %s", method, table, resp.StatusCode, msg)
	}
	return data, nil
}

func decodePoemRows(body []byte) ([]Poem, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("postgrest: malformed response body")
	}
	res := gjson.ParseBytes(body)
	if !res.IsArray() {
		return nil, errors.New("postgrest: expected a JSON array")
	}
	var poems []Poem
	res.ForEach(func(_, row gjson.Result) bool {
		poems = append(poems, Poem{
			ID:              row.Get("id").String(),
			Title:           row.Get("title").String(),
			Content:         row.Get("content").String(),
			PoetName:        row.Get("poet_name").String(),
			Dynasty:         row.Get("dynasty_name").String(),
			Tags:            splitTags(row.Get("poem_type").String()),
			PoetDescription: row.Get("poet_description").String(),
			CreatedAt:       parseTimestamp(row.Get("created_at").String()),
		})
		return true
	})
	return poems, nil
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ilikeLiteral 转义 LIKE 通配符，与 postgres 仓库的 escapeLike 一致。
// PostgREST 会把 * 全部替换成 %，无法转义，这里换成单字通配 _，由调用方按字面值过滤。
func ilikeLiteral(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`, "*", "_").Replace(s)
}

// quoteValue 给过滤值加双引号，避免逗号和括号破坏 or/in 语法。
func quoteValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}
