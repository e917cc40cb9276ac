package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// listedClause keeps admin-curated profiles and those whose account has
// showInDirectory set.
const listedClause = `(lawyers.user_id IS NULL OR EXISTS (
	SELECT 1 FROM privacy_settings p WHERE p.user_id = lawyers.user_id AND p.show_in_directory))`

const lawyerColumns = `id, COALESCE(user_id, ''), name, email, phone, practice_areas, district, state, languages,
	experience_years, rating, fee_min, fee_max, bio, bar_council_id, available, created_at, updated_at`

var lawyerOrder = map[string]string{
	"rating":     "rating DESC, experience_years DESC, name ASC",
	"experience": "experience_years DESC, rating DESC, name ASC",
	"name":       "name ASC",
	"fee":        "fee_min ASC, name ASC",
}

func scanLawyer(row interface{ Scan(...any) error }) (Lawyer, error) {
	var item Lawyer
	var areasRaw, languagesRaw []byte
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Name,
		&item.Email,
		&item.Phone,
		&areasRaw,
		&item.District,
		&item.State,
		&languagesRaw,
		&item.ExperienceYears,
		&item.Rating,
		&item.FeeMin,
		&item.FeeMax,
		&item.Bio,
		&item.BarCouncilID,
		&item.Available,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Lawyer{}, err
	}
	item.PracticeAreas = decodeStrings(areasRaw)
	item.Languages = decodeStrings(languagesRaw)
	return item, nil
}

func decodeStrings(raw []byte) []string {
	out := []string{}
	_ = json.Unmarshal(raw, &out)
	return out
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// normalizeAreas lowercases practice areas so JSONB containment matches.
func normalizeAreas(areas []string) []string {
	out := make([]string, 0, len(areas))
	seen := map[string]bool{}
	for _, area := range areas {
		area = strings.ToLower(strings.TrimSpace(area))
		if area == "" || seen[area] {
			continue
		}
		seen[area] = true
		out = append(out, area)
	}
	return out
}

// ListLawyers returns a page of the directory and the total matching rows.
func (s *PostgresStore) ListLawyers(ctx context.Context, filter LawyerFilter) ([]Lawyer, int, error) {
	where, args := lawyerWhere(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	order, ok := lawyerOrder[filter.Sort]
	if !ok {
		order = lawyerOrder["rating"]
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM lawyers WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count lawyers: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM lawyers WHERE %s ORDER BY %s LIMIT %d OFFSET %d`, lawyerColumns, where, order, limit, offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list lawyers: %w", err)
	}
	defer rows.Close()

	items := make([]Lawyer, 0)
	for rows.Next() {
		item, err := scanLawyer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lawyer: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate lawyers: %w", err)
	}
	return items, total, nil
}

func lawyerWhere(filter LawyerFilter) (string, []any) {
	clauses := []string{"TRUE"}
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if len(filter.IDs) > 0 {
		encoded, _ := encodeStrings(filter.IDs)
		add("id IN (SELECT jsonb_array_elements_text($%d::jsonb))", encoded)
	}
	if area := strings.ToLower(strings.TrimSpace(filter.PracticeArea)); area != "" {
		add("practice_areas ? $%d", area)
	}
	if district := strings.TrimSpace(filter.District); district != "" {
		add("lower(district) = lower($%d)", district)
	}
	if language := strings.TrimSpace(filter.Language); language != "" {
		add("EXISTS (SELECT 1 FROM jsonb_array_elements_text(languages) l WHERE lower(l) = lower($%d))", language)
	}
	if filter.MinExperience > 0 {
		add("experience_years >= $%d", filter.MinExperience)
	}
	if filter.Available != nil {
		add("available = $%d", *filter.Available)
	}
	if filter.Listed {
		clauses = append(clauses, listedClause)
	}
	return strings.Join(clauses, " AND "), args
}

// ListMatchCandidates returns available, listed lawyers sharing the practice
// area or district. Empty criteria return every available listed lawyer.
func (s *PostgresStore) ListMatchCandidates(ctx context.Context, practiceArea, district string) ([]Lawyer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+lawyerColumns+`
		FROM lawyers
		WHERE available AND `+listedClause+`
		  AND (($1='' AND $2='') OR ($1<>'' AND practice_areas ? $1) OR ($2<>'' AND lower(district)=lower($2)))
		ORDER BY rating DESC, experience_years DESC, name ASC
		LIMIT 500
	`, strings.ToLower(strings.TrimSpace(practiceArea)), strings.TrimSpace(district))
	if err != nil {
		return nil, fmt.Errorf("list match candidates: %w", err)
	}
	defer rows.Close()

	items := make([]Lawyer, 0)
	for rows.Next() {
		item, err := scanLawyer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetLawyer(ctx context.Context, id string) (Lawyer, error) {
	item, err := scanLawyer(s.db.QueryRowContext(ctx, `SELECT `+lawyerColumns+` FROM lawyers WHERE id=$1`, id))
	if err != nil {
		return Lawyer{}, notFound(err)
	}
	return item, nil
}

func (s *PostgresStore) GetLawyerByUserID(ctx context.Context, userID string) (Lawyer, error) {
	item, err := scanLawyer(s.db.QueryRowContext(ctx, `SELECT `+lawyerColumns+` FROM lawyers WHERE user_id=$1`, userID))
	if err != nil {
		return Lawyer{}, notFound(err)
	}
	return item, nil
}

// UpsertLawyer inserts or replaces a directory entry and returns the stored row.
func (s *PostgresStore) UpsertLawyer(ctx context.Context, item Lawyer) (Lawyer, error) {
	areas, err := encodeStrings(normalizeAreas(item.PracticeAreas))
	if err != nil {
		return Lawyer{}, fmt.Errorf("marshal practice areas: %w", err)
	}
	languages, err := encodeStrings(item.Languages)
	if err != nil {
		return Lawyer{}, fmt.Errorf("marshal languages: %w", err)
	}
	stored, err := scanLawyer(s.db.QueryRowContext(ctx, `
		INSERT INTO lawyers (id, user_id, name, email, phone, practice_areas, district, state, languages,
			experience_years, rating, fee_min, fee_max, bio, bar_council_id, available)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6::jsonb, $7, $8, $9::jsonb, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			user_id=EXCLUDED.user_id,
			name=EXCLUDED.name,
			email=EXCLUDED.email,
			phone=EXCLUDED.phone,
			practice_areas=EXCLUDED.practice_areas,
			district=EXCLUDED.district,
			state=EXCLUDED.state,
			languages=EXCLUDED.languages,
			experience_years=EXCLUDED.experience_years,
			rating=EXCLUDED.rating,
			fee_min=EXCLUDED.fee_min,
			fee_max=EXCLUDED.fee_max,
			bio=EXCLUDED.bio,
			bar_council_id=EXCLUDED.bar_council_id,
			available=EXCLUDED.available,
			updated_at=NOW()
		RETURNING `+lawyerColumns,
		item.ID, item.UserID, item.Name, item.Email, item.Phone, areas, item.District, item.State, languages,
		item.ExperienceYears, item.Rating, item.FeeMin, item.FeeMax, item.Bio, item.BarCouncilID, item.Available,
	))
	if isUniqueViolation(err) {
		return Lawyer{}, ErrConflict
	}
	if err != nil {
		return Lawyer{}, fmt.Errorf("upsert lawyer: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) DeleteLawyer(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM lawyers WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete lawyer: %w", err)
	}
	return requireAffected(result, "delete lawyer")
}

func (s *PostgresStore) CountLawyers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM lawyers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count lawyers: %w", err)
	}
	return count, nil
}
