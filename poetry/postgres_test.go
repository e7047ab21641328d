package poetry

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\dir`, escapeLike(`c:\dir`))
	assert.Equal(t, "静夜思", escapeLike("静夜思"))
}

func TestNewPostgresRepositoryRequiresURL(t *testing.T) {
	_, err := NewPostgresRepository(context.Background(), "", "")
	assert.Error(t, err)
}

// 需要一个带 poems_view 的数据库，设置 POETRY_TEST_DATABASE_URL 后运行。
func TestPostgresRepositoryIntegration(t *testing.T) {
	dsn := os.Getenv("POETRY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("POETRY_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	repo, err := NewPostgresRepository(ctx, dsn, "")
	require.NoError(t, err)
	defer repo.Close()

	p, err := repo.FindByTitle(ctx, "静夜思")
	require.NoError(t, err)
	assert.Equal(t, "李白", p.PoetName)

	_, err = repo.FindByTitle(ctx, "不存在的诗题xyz")
	assert.ErrorIs(t, err, ErrNotFound)

	poems, err := repo.FindManyByTitles(ctx, []string{"静夜思"})
	require.NoError(t, err)
	assert.NotEmpty(t, poems)
}
