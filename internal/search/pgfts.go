package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search ranks rows of one table with websearch_to_tsquery and ts_rank and
// builds snippets with ts_headline.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Hit, int, error) {
	if q.Text == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "websearch_to_tsquery('english', $1)"
	args := []any{q.Text}
	add := func(clause string, value any) string {
		args = append(args, value)
		return fmt.Sprintf(clause, len(args))
	}

	var base string
	where := []string{"t.fts @@ " + tsQuery}
	switch q.Index {
	case IndexLawyers:
		base = fmt.Sprintf(`
			SELECT t.id, t.name AS title,
				ts_headline('english', t.bio, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				ts_rank(t.fts, %s) AS rank
			FROM lawyers t`, tsQuery, tsQuery)
		if area := strings.ToLower(strings.TrimSpace(q.PracticeArea)); area != "" {
			where = append(where, add("t.practice_areas ? $%d", area))
		}
		if district := strings.TrimSpace(q.District); district != "" {
			where = append(where, add("lower(t.district) = lower($%d)", district))
		}
		if language := strings.TrimSpace(q.Language); language != "" {
			where = append(where, add("EXISTS (SELECT 1 FROM jsonb_array_elements_text(t.languages) l WHERE lower(l) = lower($%d))", language))
		}
		if q.Available != nil {
			where = append(where, add("t.available = $%d", *q.Available))
		}
	case IndexFAQs:
		base = fmt.Sprintf(`
			SELECT t.id, t.question AS title,
				ts_headline('english', t.answer, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				ts_rank(t.fts, %s) AS rank
			FROM faqs t`, tsQuery, tsQuery)
		if category := strings.TrimSpace(q.Category); category != "" {
			where = append(where, add("t.category = $%d", category))
		}
		if language := strings.TrimSpace(q.FAQLanguage); language != "" {
			where = append(where, add("t.language = $%d", language))
		}
	default:
		return nil, 0, fmt.Errorf("pgfts: unknown index %q", q.Index)
	}

	subQuery := base + " WHERE " + strings.Join(where, " AND ")
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub", subQuery)
	dataSQL := fmt.Sprintf(`SELECT id, title, snippet, rank
		FROM (%s) sub
		ORDER BY rank DESC, title ASC
		LIMIT %d OFFSET %d`, subQuery, limit, offset)

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		h := Hit{Index: q.Index}
		if err := rows.Scan(&h.ID, &h.Title, &h.Snippet, &h.Score); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		hits = append(hits, h)
	}

	return hits, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]LawyerRecord, []FAQRecord, error) {
	lawyerRows, err := p.db.QueryContext(ctx, `
		SELECT id, name, practice_areas, district, state, languages, bio, experience_years, rating, available
		FROM lawyers
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load lawyers: %w", err)
	}
	defer lawyerRows.Close()

	lawyers := make([]LawyerRecord, 0)
	for lawyerRows.Next() {
		var r LawyerRecord
		var areasRaw, languagesRaw []byte
		if err := lawyerRows.Scan(&r.ID, &r.Name, &areasRaw, &r.District, &r.State, &languagesRaw, &r.Bio, &r.ExperienceYears, &r.Rating, &r.Available); err != nil {
			return nil, nil, fmt.Errorf("scan lawyer: %w", err)
		}
		_ = json.Unmarshal(areasRaw, &r.PracticeAreas)
		_ = json.Unmarshal(languagesRaw, &r.Languages)
		lawyers = append(lawyers, NewLawyerRecord(r))
	}
	if err := lawyerRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate lawyers: %w", err)
	}

	faqRows, err := p.db.QueryContext(ctx, `SELECT id, question, answer, category, language, tags FROM faqs`)
	if err != nil {
		return nil, nil, fmt.Errorf("load faqs: %w", err)
	}
	defer faqRows.Close()

	faqs := make([]FAQRecord, 0)
	for faqRows.Next() {
		var r FAQRecord
		var tagsRaw []byte
		if err := faqRows.Scan(&r.ID, &r.Question, &r.Answer, &r.Category, &r.Language, &tagsRaw); err != nil {
			return nil, nil, fmt.Errorf("scan faq: %w", err)
		}
		_ = json.Unmarshal(tagsRaw, &r.Tags)
		faqs = append(faqs, r)
	}
	if err := faqRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate faqs: %w", err)
	}

	return lawyers, faqs, nil
}
