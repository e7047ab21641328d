package poetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository 直接连接托管数据库读取 poems_view。
type PostgresRepository struct {
	pool *pgxpool.Pool
	view string
}

// NewPostgresRepository 建立连接池并 ping 一次。
func NewPostgresRepository(ctx context.Context, databaseURL, view string) (*PostgresRepository, error) {
	if databaseURL == "" {
		return nil, errors.New("postgres: database url is required")
	}
	if view == "" {
		view = DefaultView
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &PostgresRepository{pool: pool, view: pgx.Identifier{view}.Sanitize()}, nil
}

// Close 释放连接池。
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func (r *PostgresRepository) FindByTitle(ctx context.Context, title string) (*Poem, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrNotFound
	}
	poems, err := r.query(ctx, "WHERE title ILIKE $1 LIMIT 1", escapeLike(title))
	if err != nil {
		return nil, err
	}
	if len(poems) == 0 {
		poems, err = r.query(ctx, "WHERE title ILIKE $1 ORDER BY title LIMIT 1", "%"+escapeLike(title)+"%")
		if err != nil {
			return nil, err
		}
	}
	if len(poems) == 0 {
		return nil, ErrNotFound
	}
	return &poems[0], nil
}

func (r *PostgresRepository) SearchByText(ctx context.Context, query string) ([]Poem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	return r.query(ctx,
		"WHERE title ILIKE $1 OR content ILIKE $1 OR poet_name ILIKE $1 OR poem_type ILIKE $1 ORDER BY title",
		"%"+escapeLike(query)+"%")
}

func (r *PostgresRepository) FindManyByTitles(ctx context.Context, titles []string) ([]Poem, error) {
	titles = uniqueTitles(titles)
	if len(titles) == 0 {
		return nil, nil
	}
	return r.query(ctx, "WHERE title = ANY($1)", titles)
}

func (r *PostgresRepository) FindByPoet(ctx context.Context, poet string) ([]Poem, error) {
	poet = strings.TrimSpace(poet)
	if poet == "" {
		return nil, nil
	}
	return r.query(ctx, "WHERE poet_name = $1 ORDER BY title", poet)
}

func (r *PostgresRepository) query(ctx context.Context, where string, args ...any) ([]Poem, error) {
	sql := fmt.Sprintf(`SELECT id::text, title, coalesce(content, ''), coalesce(poet_name, ''),
        coalesce(dynasty_name, ''), coalesce(poem_type, ''), coalesce(poet_description, ''), created_at
        FROM %s %s`, r.view, where)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query poems: %w", err)
	}
	defer rows.Close()

	var poems []Poem
	for rows.Next() {
		var (
			p         Poem
			poemType  string
			createdAt *time.Time
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.PoetName, &p.Dynasty, &poemType, &p.PoetDescription, &createdAt); err != nil {
			return nil, fmt.Errorf("postgres: scan poem: %w", err)
		}
		p.Tags = splitTags(poemType)
		if createdAt != nil {
			p.CreatedAt = *createdAt
		}
		poems = append(poems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate poems: %w", err)
	}
	return poems, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(s)
}
