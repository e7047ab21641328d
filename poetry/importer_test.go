package poetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore 模拟 dynasties / poets / poems 三张表。
type fakeStore struct {
	mu     sync.Mutex
	nextID int
	names  map[string]map[string]int
	poems  []map[string]any
	posts  map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		names: map[string]map[string]int{"dynasties": {}, "poets": {}},
		posts: map[string]int{},
	}
}

func (s *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		name := strings.TrimPrefix(r.URL.Query().Get("name"), "eq.")
		if id, ok := s.names[table][name]; ok {
			fmt.Fprintf(w, `[{"id":%d}]`, id)
			return
		}
		_, _ = io.WriteString(w, "[]")
	case http.MethodPost:
		s.posts[table]++
		var row map[string]any
		_ = json.NewDecoder(r.Body).Decode(&row)
		s.nextID++
		if table == "poems" {
			s.poems = append(s.poems, row)
		} else {
			s.names[table][row["name"].(string)] = s.nextID
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `[{"id":%d}]`, s.nextID)
	}
}

const sampleCSV = "\ufeff诗歌名称,作者,朝代,诗歌正文,诗歌分类\n" +
	"静夜思,李白,唐,床前明月光，疑是地上霜。举头望明月，低头思故乡。,思乡诗\n" +
	"望庐山瀑布,李白,唐,日照香炉生紫烟，遥看瀑布挂前川。飞流直下三千尺，疑是银河落九天。,山水诗\n" +
	"无正文,佚名,宋,,\n"

func TestReadRecords(t *testing.T) {
	records, err := ReadRecords(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, ImportRecord{
		Title:    "静夜思",
		Poet:     "李白",
		Dynasty:  "唐",
		Content:  "床前明月光，疑是地上霜。举头望明月，低头思故乡。",
		Category: "思乡诗",
	}, records[0])
	assert.Empty(t, records[2].Content)
}

func TestReadRecordsMissingColumn(t *testing.T) {
	_, err := ReadRecords(strings.NewReader("诗歌名称,作者\n静夜思,李白\n"))
	assert.Error(t, err)
}

func TestImporterImport(t *testing.T) {
	store := newFakeStore()
	srv := httptest.NewServer(store)
	defer srv.Close()

	repo, err := NewPostgRESTRepository(PostgRESTConfig{BaseURL: srv.URL, APIKey: "service-key"}, srv.Client())
	require.NoError(t, err)
	im, err := NewImporter(repo)
	require.NoError(t, err)
	im.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	records, err := ReadRecords(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	res := im.Import(context.Background(), records)
	assert.Equal(t, ImportResult{Total: 3, Imported: 2, Failed: 1}, res)

	// 同一朝代、同一诗人只创建一次
	assert.Equal(t, 1, store.posts["dynasties"])
	assert.Equal(t, 1, store.posts["poets"])
	assert.Equal(t, 2, store.posts["poems"])

	require.Len(t, store.poems, 2)
	first := store.poems[0]
	assert.Equal(t, "静夜思", first["title"])
	assert.EqualValues(t, 1, first["type_id"])
	assert.EqualValues(t, 2, first["difficulty_level"])
	assert.Equal(t, "2024-05-01T00:00:00Z", first["created_at"])
	assert.EqualValues(t, 2, store.poems[1]["type_id"])
}

func TestPoemTypeID(t *testing.T) {
	assert.Equal(t, 1, PoemTypeID("思乡诗"))
	assert.Equal(t, 7, PoemTypeID(" 爱国诗 "))
	assert.Equal(t, 5, PoemTypeID("未知分类"))
	assert.Equal(t, 5, PoemTypeID(""))
}

func TestDifficultyLevel(t *testing.T) {
	assert.Equal(t, 1, DifficultyLevel(strings.Repeat("字", 20)))
	assert.Equal(t, 2, DifficultyLevel(strings.Repeat("字", 21)))
	assert.Equal(t, 2, DifficultyLevel(strings.Repeat("字", 50)))
	assert.Equal(t, 3, DifficultyLevel(strings.Repeat("字", 51)))
}

func TestNewImporterRequiresRepository(t *testing.T) {
	_, err := NewImporter(nil)
	assert.Error(t, err)
}
