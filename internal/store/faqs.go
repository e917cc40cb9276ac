package store

import (
	"context"
	"fmt"
)

const faqColumns = `id, question, answer, category, language, tags, view_count, created_at, updated_at`

func scanFAQ(row interface{ Scan(...any) error }) (FAQ, error) {
	var item FAQ
	var tagsRaw []byte
	err := row.Scan(&item.ID, &item.Question, &item.Answer, &item.Category, &item.Language, &tagsRaw, &item.ViewCount, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return FAQ{}, err
	}
	item.Tags = decodeStrings(tagsRaw)
	return item, nil
}

func (s *PostgresStore) ListFAQs(ctx context.Context, category, language string, limit, offset int) ([]FAQ, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+faqColumns+`
		FROM faqs
		WHERE ($1='' OR category=$1) AND ($2='' OR language=$2)
		ORDER BY view_count DESC, question ASC
		LIMIT $3 OFFSET $4
	`, category, language, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list faqs: %w", err)
	}
	defer rows.Close()
	return collectFAQs(rows)
}

// ListFAQsByID keeps the order of ids.
func (s *PostgresStore) ListFAQsByID(ctx context.Context, ids []string) ([]FAQ, error) {
	if len(ids) == 0 {
		return []FAQ{}, nil
	}
	encoded, err := encodeStrings(ids)
	if err != nil {
		return nil, fmt.Errorf("marshal faq ids: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+faqColumns+`
		FROM (
			SELECT f.*, wanted.pos
			FROM faqs f
			JOIN jsonb_array_elements_text($1::jsonb) WITH ORDINALITY AS wanted(faq_id, pos) ON wanted.faq_id = f.id
		) ordered
		ORDER BY pos
	`, encoded)
	if err != nil {
		return nil, fmt.Errorf("list faqs by id: %w", err)
	}
	defer rows.Close()
	return collectFAQs(rows)
}

func collectFAQs(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]FAQ, error) {
	items := make([]FAQ, 0)
	for rows.Next() {
		item, err := scanFAQ(rows)
		if err != nil {
			return nil, fmt.Errorf("scan faq: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faqs: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetFAQ(ctx context.Context, id string) (FAQ, error) {
	item, err := scanFAQ(s.db.QueryRowContext(ctx, `SELECT `+faqColumns+` FROM faqs WHERE id=$1`, id))
	if err != nil {
		return FAQ{}, notFound(err)
	}
	return item, nil
}

// ViewFAQ increments the view counter and returns the updated row.
func (s *PostgresStore) ViewFAQ(ctx context.Context, id string) (FAQ, error) {
	item, err := scanFAQ(s.db.QueryRowContext(ctx, `
		UPDATE faqs SET view_count = view_count + 1
		WHERE id=$1
		RETURNING `+faqColumns, id))
	if err != nil {
		return FAQ{}, notFound(err)
	}
	return item, nil
}

func (s *PostgresStore) UpsertFAQ(ctx context.Context, item FAQ) (FAQ, error) {
	tags, err := encodeStrings(item.Tags)
	if err != nil {
		return FAQ{}, fmt.Errorf("marshal faq tags: %w", err)
	}
	stored, err := scanFAQ(s.db.QueryRowContext(ctx, `
		INSERT INTO faqs (id, question, answer, category, language, tags)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			question=EXCLUDED.question,
			answer=EXCLUDED.answer,
			category=EXCLUDED.category,
			language=EXCLUDED.language,
			tags=EXCLUDED.tags,
			updated_at=NOW()
		RETURNING `+faqColumns,
		item.ID, item.Question, item.Answer, item.Category, item.Language, tags,
	))
	if err != nil {
		return FAQ{}, fmt.Errorf("upsert faq: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) DeleteFAQ(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM faqs WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete faq: %w", err)
	}
	return requireAffected(result, "delete faq")
}

func (s *PostgresStore) ListFAQCategories(ctx context.Context) ([]FAQCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, count(*)
		FROM faqs
		GROUP BY category
		ORDER BY count(*) DESC, category ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list faq categories: %w", err)
	}
	defer rows.Close()

	items := make([]FAQCategory, 0)
	for rows.Next() {
		var item FAQCategory
		if err := rows.Scan(&item.Category, &item.Count); err != nil {
			return nil, fmt.Errorf("scan faq category: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faq categories: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountFAQs(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM faqs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count faqs: %w", err)
	}
	return count, nil
}
