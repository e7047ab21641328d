package poetry

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// CSV 列名，与古诗词数据表一致。
const (
	colTitle    = "诗歌名称"
	colPoet     = "作者"
	colDynasty  = "朝代"
	colContent  = "诗歌正文"
	colCategory = "诗歌分类"
)

// 默认类型为抒情诗。
const defaultTypeID = 5

var poemTypeIDs = map[string]int{
	"思乡诗":  1,
	"山水诗":  2,
	"记行诗":  3,
	"送别诗":  4,
	"抒情诗":  5,
	"咏物诗":  6,
	"爱国诗":  7,
	"田园诗":  8,
	"怀古诗":  9,
	"爱情诗":  10,
	"酬赠诗":  11,
	"边塞诗":  12,
	"叙事诗":  13,
	"讽喻诗":  14,
	"亲情诗":  15,
	"哲理诗":  16,
	"节日诗":  17,
	"咏史怀古": 9,
}

// ImportRecord 是 CSV 中的一行。
type ImportRecord struct {
	Title    string
	Poet     string
	Dynasty  string
	Content  string
	Category string
}

// ImportResult 统计一次导入。
type ImportResult struct {
	Total    int
	Imported int
	Failed   int
}

// Importer 把 CSV 诗歌数据写入托管数据库的基础表（dynasties / poets / poems）。
type Importer struct {
	repo    *PostgRESTRepository
	now     func() time.Time
	dynasty map[string]string
	poet    map[string]string
}

// NewImporter 复用 PostgREST 仓库的连接配置。
func NewImporter(repo *PostgRESTRepository) (*Importer, error) {
	if repo == nil {
		return nil, errors.New("importer: postgrest repository is required")
	}
	return &Importer{
		repo:    repo,
		now:     time.Now,
		dynasty: make(map[string]string),
		poet:    make(map[string]string),
	}, nil
}

// ReadRecords 解析带表头的 CSV。
func ReadRecords(r io.Reader) ([]ImportRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range []string{colTitle, colPoet, colDynasty, colContent} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("csv missing column %q", col)
		}
	}

	get := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []ImportRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		records = append(records, ImportRecord{
			Title:    get(row, colTitle),
			Poet:     get(row, colPoet),
			Dynasty:  get(row, colDynasty),
			Content:  get(row, colContent),
			Category: get(row, colCategory),
		})
	}
	return records, nil
}

// Import 逐行导入；单行失败只计数并记录日志，不中断整体流程。
func (im *Importer) Import(ctx context.Context, records []ImportRecord) ImportResult {
	res := ImportResult{Total: len(records)}
	for i, rec := range records {
		if err := im.importOne(ctx, rec); err != nil {
			res.Failed++
			log.Warn().Err(err).Int("row", i+1).Str("title", rec.Title).Msg("import poem failed")
			continue
		}
		res.Imported++
		log.Debug().Int("row", i+1).Str("title", rec.Title).Msg("poem imported")
	}
	log.Info().Int("total", res.Total).Int("imported", res.Imported).Int("failed", res.Failed).Msg("import finished")
	return res
}

func (im *Importer) importOne(ctx context.Context, rec ImportRecord) error {
	if rec.Title == "" || rec.Content == "" {
		return errors.New("title and content are required")
	}
	dynastyID, err := im.dynastyID(ctx, rec.Dynasty)
	if err != nil {
		return fmt.Errorf("dynasty %q: %w", rec.Dynasty, err)
	}
	poetID, err := im.poetID(ctx, rec.Poet, dynastyID)
	if err != nil {
		return fmt.Errorf("poet %q: %w", rec.Poet, err)
	}

	row := map[string]any{
		"title":            rec.Title,
		"content":          rec.Content,
		"poet_id":          poetID,
		"dynasty_id":       dynastyID,
		"type_id":          PoemTypeID(rec.Category),
		"difficulty_level": DifficultyLevel(rec.Content),
		"popularity":       5,
		"created_at":       im.now().Format(time.RFC3339),
	}
	_, err = im.repo.do(ctx, "POST", "poems", nil, row)
	return err
}

func (im *Importer) dynastyID(ctx context.Context, name string) (string, error) {
	if id, ok := im.dynasty[name]; ok {
		return id, nil
	}
	id, err := im.getOrCreate(ctx, "dynasties", name, map[string]any{
		"name":        name,
		"description": name + "时期",
	})
	if err != nil {
		return "", err
	}
	im.dynasty[name] = id
	return id, nil
}

func (im *Importer) poetID(ctx context.Context, name, dynastyID string) (string, error) {
	if id, ok := im.poet[name]; ok {
		return id, nil
	}
	id, err := im.getOrCreate(ctx, "poets", name, map[string]any{
		"name":        name,
		"dynasty_id":  dynastyID,
		"description": "著名诗人" + name,
	})
	if err != nil {
		return "", err
	}
	im.poet[name] = id
	return id, nil
}

// getOrCreate 先按 name 查询，不存在再插入，返回行 id。
func (im *Importer) getOrCreate(ctx context.Context, table, name string, row map[string]any) (string, error) {
	if name == "" {
		return "", errors.New("name is empty")
	}
	q := url.Values{}
	q.Set("select", "id")
	q.Set("name", "eq."+name)
	body, err := im.repo.do(ctx, "GET", table, q, nil)
	if err != nil {
		return "", err
	}
	if id := gjson.GetBytes(body, "0.id"); id.Exists() {
		return id.String(), nil
	}

	body, err = im.repo.do(ctx, "POST", table, nil, row)
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(body, "0.id")
	if !id.Exists() {
		return "", fmt.Errorf("insert into %s returned no id", table)
	}
	return id.String(), nil
}

// PoemTypeID 把诗歌分类映射为类型编号。
func PoemTypeID(category string) int {
	if id, ok := poemTypeIDs[strings.TrimSpace(category)]; ok {
		return id
	}
	return defaultTypeID
}

// DifficultyLevel 按正文字数给出 1~3 的难度。
func DifficultyLevel(content string) int {
	n := utf8.RuneCountInString(content)
	switch {
	case n <= 20:
		return 1
	case n <= 50:
		return 2
	default:
		return 3
	}
}
