package poetry

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepository 是不依赖网络的诗歌库，未配置数据库时使用，也用于测试。
type MemoryRepository struct {
	mu    sync.RWMutex
	poems []Poem
}

// NewMemoryRepository 用给定诗歌创建仓库，poems 会被复制。
func NewMemoryRepository(poems ...Poem) *MemoryRepository {
	cp := make([]Poem, len(poems))
	copy(cp, poems)
	return &MemoryRepository{poems: cp}
}

// NewSeededRepository 返回带内置示例数据的仓库。
func NewSeededRepository() *MemoryRepository {
	return NewMemoryRepository(SeedPoems()...)
}

// Add 追加一首诗。
func (r *MemoryRepository) Add(p Poem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.poems = append(r.poems, p)
}

func (r *MemoryRepository) FindByTitle(_ context.Context, title string) (*Poem, error) {
	want := strings.ToLower(strings.TrimSpace(title))
	if want == "" {
		return nil, ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.poems {
		if strings.ToLower(p.Title) == want {
			found := p
			return &found, nil
		}
	}
	for _, p := range r.poems {
		if strings.Contains(strings.ToLower(p.Title), want) {
			found := p
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) SearchByText(_ context.Context, query string) ([]Poem, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Poem
	for _, p := range r.poems {
		if matchesQuery(p, q) {
			out = append(out, p)
		}
	}
	sortByTitle(out)
	return out, nil
}

func (r *MemoryRepository) FindManyByTitles(_ context.Context, titles []string) ([]Poem, error) {
	titles = uniqueTitles(titles)
	if len(titles) == 0 {
		return nil, nil
	}
	set := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		set[t] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Poem
	for _, p := range r.poems {
		if _, ok := set[p.Title]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemoryRepository) FindByPoet(_ context.Context, poet string) ([]Poem, error) {
	poet = strings.TrimSpace(poet)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Poem
	for _, p := range r.poems {
		if p.PoetName == poet {
			out = append(out, p)
		}
	}
	sortByTitle(out)
	return out, nil
}

func matchesQuery(p Poem, q string) bool {
	if strings.Contains(strings.ToLower(p.Title), q) ||
		strings.Contains(strings.ToLower(p.Content), q) ||
		strings.Contains(strings.ToLower(p.PoetName), q) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

func sortByTitle(poems []Poem) {
	sort.SliceStable(poems, func(i, j int) bool { return poems[i].Title < poems[j].Title })
}

// SeedPoems 返回内置示例诗歌。
func SeedPoems() []Poem {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	const (
		liBai  = "唐代伟大的浪漫主义诗人，被后人誉为“诗仙”。"
		duFu   = "唐代伟大的现实主义诗人，被后人誉为“诗圣”。"
		wangZH = "盛唐边塞诗人，以登高望远之作闻名。"
		liuZY  = "唐代文学家，唐宋八大家之一。"
	)
	return []Poem{
		{ID: "1", Title: "静夜思", Content: "床前明月光，疑是地上霜。举头望明月，低头思故乡。", PoetName: "李白", Dynasty: "唐", Tags: []string{"思乡诗"}, PoetDescription: liBai, CreatedAt: created},
		{ID: "2", Title: "春望", Content: "国破山河在，城春草木深。感时花溅泪，恨别鸟惊心。烽火连三月，家书抵万金。白头搔更短，浑欲不胜簪。", PoetName: "杜甫", Dynasty: "唐", Tags: []string{"爱国诗"}, PoetDescription: duFu, CreatedAt: created},
		{ID: "3", Title: "登鹳雀楼", Content: "白日依山尽，黄河入海流。欲穷千里目，更上一层楼。", PoetName: "王之涣", Dynasty: "唐", Tags: []string{"山水诗"}, PoetDescription: wangZH, CreatedAt: created},
		{ID: "4", Title: "江雪", Content: "千山鸟飞绝，万径人踪灭。孤舟蓑笠翁，独钓寒江雪。", PoetName: "柳宗元", Dynasty: "唐", Tags: []string{"山水诗"}, PoetDescription: liuZY, CreatedAt: created},
	}
}
