package regulation

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresIndex serves canonical regulation passages from the plu_chunks
// table: one row per article, keyed by commune INSEE code and zonage.
type PostgresIndex struct {
	db *sql.DB
}

func NewPostgresIndex(db *sql.DB) *PostgresIndex {
	return &PostgresIndex{db: db}
}

func (s *PostgresIndex) FindExcerpts(ctx context.Context, insee, code string) ([]Excerpt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT article_title, content
		FROM public.plu_chunks
		WHERE insee = $1 AND zonage = $2
		ORDER BY id`, insee, code)
	if err != nil {
		return nil, fmt.Errorf("query plu_chunks: %w", err)
	}
	defer rows.Close()

	var excerpts []Excerpt
	for rows.Next() {
		var article, content sql.NullString
		if err := rows.Scan(&article, &content); err != nil {
			return nil, fmt.Errorf("scan plu_chunks row: %w", err)
		}
		excerpts = append(excerpts, Excerpt{
			ZoneCode: code,
			Article:  article.String,
			Content:  content.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plu_chunks: %w", err)
	}
	if len(excerpts) == 0 {
		return nil, ErrNotFound
	}
	return excerpts, nil
}
