package poetry

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound 表示按标题查询不到诗歌。
var ErrNotFound = errors.New("poem not found")

// Poem 对应 poems_view 中的一行，只读。
type Poem struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	PoetName        string    `json:"poet_name"`
	Dynasty         string    `json:"dynasty"`
	Tags            []string  `json:"tags"`
	PoetDescription string    `json:"poet_description,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// PrimaryTag 返回第一个分类标签，可能为空。
func (p Poem) PrimaryTag() string {
	if len(p.Tags) == 0 {
		return ""
	}
	return p.Tags[0]
}

// PoetProfile 汇总某位诗人的信息与作品。
type PoetProfile struct {
	Name        string `json:"name"`
	Dynasty     string `json:"dynasty"`
	Description string `json:"description,omitempty"`
	Poems       []Poem `json:"poems"`
}

// Repository 是外部诗歌库的查询接口。
type Repository interface {
	FindByTitle(ctx context.Context, title string) (*Poem, error)
	SearchByText(ctx context.Context, query string) ([]Poem, error)
	FindManyByTitles(ctx context.Context, titles []string) ([]Poem, error)
	FindByPoet(ctx context.Context, poet string) ([]Poem, error)
}

// BuildPoetProfile 从某位诗人的作品列表拼出简介；列表为空时返回 ErrNotFound。
func BuildPoetProfile(name string, poems []Poem) (*PoetProfile, error) {
	if len(poems) == 0 {
		return nil, ErrNotFound
	}
	profile := &PoetProfile{Name: name, Poems: poems}
	for _, p := range poems {
		if profile.Dynasty == "" {
			profile.Dynasty = p.Dynasty
		}
		if profile.Description == "" {
			profile.Description = p.PoetDescription
		}
	}
	return profile, nil
}

// splitTags 把 poem_type 字段拆成标签。
func splitTags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '，' || r == '、' || r == ';' || r == '；'
	})
	var tags []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}

// uniqueTitles 去掉空白与重复标题，保持顺序。
func uniqueTitles(titles []string) []string {
	seen := make(map[string]struct{}, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
