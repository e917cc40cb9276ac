package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"nyaysakhi/api/internal/matching"
	"nyaysakhi/api/internal/rbac"
	"nyaysakhi/api/internal/search"
	"nyaysakhi/api/internal/store"
	"nyaysakhi/api/internal/util"
)

const (
	matchCacheTTL = 5 * time.Minute
	// searchCandidateLimit caps the hits a text query is filtered and
	// paged over.
	searchCandidateLimit = 200
)

// LawyerQuery is a directory listing request.
type LawyerQuery struct {
	Text          string
	PracticeArea  string
	District      string
	Language      string
	MinExperience int
	Available     *bool
	Sort          string
	Limit         int
	Offset        int
}

type LawyerInput struct {
	UserID          string   `json:"userId"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Phone           string   `json:"phone"`
	PracticeAreas   []string `json:"practiceAreas"`
	District        string   `json:"district"`
	State           string   `json:"state"`
	Languages       []string `json:"languages"`
	ExperienceYears int      `json:"experienceYears"`
	Rating          float64  `json:"rating"`
	FeeMin          int      `json:"feeMin"`
	FeeMax          int      `json:"feeMax"`
	Bio             string   `json:"bio"`
	BarCouncilID    string   `json:"barCouncilId"`
	Available       *bool    `json:"available"`
}

// ListLawyers serves the public directory. With a text query, hits are
// ranked by relevance unless a sort is given; total counts the hits left
// after every filter.
func (s *Service) ListLawyers(ctx context.Context, query LawyerQuery) (map[string]any, error) {
	limit := clampLimit(query.Limit, 20, 100)
	offset := max(query.Offset, 0)

	if text := strings.TrimSpace(query.Text); text != "" {
		response := s.search.Search(ctx, search.Query{
			Text:         text,
			Index:        search.IndexLawyers,
			Limit:        searchCandidateLimit,
			PracticeArea: query.PracticeArea,
			District:     query.District,
			Language:     query.Language,
			Available:    query.Available,
		})
		ids := make([]string, 0, len(response.Hits))
		for _, hit := range response.Hits {
			ids = append(ids, hit.ID)
		}
		lawyers, total := []store.Lawyer{}, 0
		if len(ids) > 0 {
			filter := store.LawyerFilter{
				IDs:           ids,
				MinExperience: query.MinExperience,
				Listed:        true,
				Sort:          query.Sort,
				Limit:         limit,
				Offset:        offset,
			}
			if query.Sort == "" {
				filter.Limit, filter.Offset = len(ids), 0
			}
			found, count, err := s.store.ListLawyers(ctx, filter)
			if err != nil {
				return nil, err
			}
			total = count
			if query.Sort == "" {
				ordered := orderByIDs(found, ids)
				lawyers = ordered[min(offset, len(ordered)):min(offset+limit, len(ordered))]
			} else {
				lawyers = found
			}
		}
		return map[string]any{
			"lawyers": lawyerViews(lawyers),
			"total":   total,
			"limit":   limit,
			"offset":  offset,
			"backend": response.Backend,
		}, nil
	}

	lawyers, total, err := s.store.ListLawyers(ctx, store.LawyerFilter{
		PracticeArea:  query.PracticeArea,
		District:      query.District,
		Language:      query.Language,
		MinExperience: query.MinExperience,
		Available:     query.Available,
		Listed:        true,
		Sort:          query.Sort,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"lawyers": lawyerViews(lawyers),
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	}, nil
}

func orderByIDs(lawyers []store.Lawyer, ids []string) []store.Lawyer {
	byID := make(map[string]store.Lawyer, len(lawyers))
	for _, lawyer := range lawyers {
		byID[lawyer.ID] = lawyer
	}
	out := make([]store.Lawyer, 0, len(lawyers))
	for _, id := range ids {
		if lawyer, ok := byID[id]; ok {
			out = append(out, lawyer)
		}
	}
	return out
}

func (s *Service) GetLawyer(ctx context.Context, id string) (map[string]any, error) {
	lawyer, err := s.store.GetLawyer(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound("Lawyer")
		}
		return nil, err
	}
	return lawyerView(lawyer), nil
}

func (s *Service) CreateLawyer(ctx context.Context, session Session, input LawyerInput) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionManageDirectory) {
		return nil, errForbidden()
	}
	lawyer := applyLawyerInput(store.Lawyer{ID: util.NewID("lwr"), Available: true}, input, true)
	if fields := validateLawyer(lawyer); len(fields) > 0 {
		return nil, errValidation(fields)
	}
	return s.saveLawyer(ctx, lawyer)
}

// UpdateLawyer lets admins edit any entry and lawyers edit their own.
func (s *Service) UpdateLawyer(ctx context.Context, session Session, id string, input LawyerInput) (map[string]any, error) {
	existing, err := s.store.GetLawyer(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound("Lawyer")
		}
		return nil, err
	}
	admin := s.Can(session.Role, rbac.ActionManageDirectory)
	if !admin {
		if !s.Can(session.Role, rbac.ActionManageProfile) || existing.UserID == "" || existing.UserID != session.UserID {
			return nil, errForbidden()
		}
	}
	lawyer := applyLawyerInput(existing, input, admin)
	if fields := validateLawyer(lawyer); len(fields) > 0 {
		return nil, errValidation(fields)
	}
	return s.saveLawyer(ctx, lawyer)
}

func (s *Service) saveLawyer(ctx context.Context, lawyer store.Lawyer) (map[string]any, error) {
	stored, err := s.store.UpsertLawyer(ctx, lawyer)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domainError(http.StatusConflict, "LAWYER_EXISTS", "A profile is already linked to this account", nil)
		}
		return nil, err
	}
	s.search.IndexLawyer(lawyerRecord(stored))
	return lawyerView(stored), nil
}

func (s *Service) DeleteLawyer(ctx context.Context, session Session, id string) error {
	if !s.Can(session.Role, rbac.ActionManageDirectory) {
		return errForbidden()
	}
	if err := s.store.DeleteLawyer(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errNotFound("Lawyer")
		}
		return err
	}
	s.search.DeleteLawyer(id)
	return nil
}

// applyLawyerInput copies editable fields. Only admins may relink the account
// or set the rating.
func applyLawyerInput(lawyer store.Lawyer, input LawyerInput, admin bool) store.Lawyer {
	if admin {
		lawyer.UserID = strings.TrimSpace(input.UserID)
		lawyer.Rating = input.Rating
	}
	lawyer.Name = strings.TrimSpace(input.Name)
	lawyer.Email = strings.ToLower(strings.TrimSpace(input.Email))
	lawyer.Phone = strings.TrimSpace(input.Phone)
	lawyer.PracticeAreas = cleanList(input.PracticeAreas, true)
	lawyer.District = strings.TrimSpace(input.District)
	lawyer.State = strings.TrimSpace(input.State)
	lawyer.Languages = cleanList(input.Languages, false)
	lawyer.ExperienceYears = input.ExperienceYears
	lawyer.FeeMin = input.FeeMin
	lawyer.FeeMax = input.FeeMax
	lawyer.Bio = strings.TrimSpace(input.Bio)
	lawyer.BarCouncilID = strings.TrimSpace(input.BarCouncilID)
	if input.Available != nil {
		lawyer.Available = *input.Available
	}
	return lawyer
}

func cleanList(values []string, lower bool) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if lower {
			value = strings.ToLower(value)
		}
		key := strings.ToLower(value)
		if value == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, value)
	}
	return out
}

func validateLawyer(lawyer store.Lawyer) map[string]string {
	fields := map[string]string{}
	if lawyer.Name == "" {
		fields["name"] = "is required"
	}
	if len(lawyer.PracticeAreas) == 0 {
		fields["practiceAreas"] = "at least one practice area is required"
	}
	if lawyer.ExperienceYears < 0 {
		fields["experienceYears"] = "must not be negative"
	}
	if lawyer.Rating < 0 || lawyer.Rating > 5 {
		fields["rating"] = "must be between 0 and 5"
	}
	if lawyer.FeeMin < 0 || lawyer.FeeMax < 0 {
		fields["fee"] = "must not be negative"
	} else if lawyer.FeeMax > 0 && lawyer.FeeMin > lawyer.FeeMax {
		fields["feeMin"] = "must not exceed feeMax"
	}
	return fields
}

type cachedMatches struct {
	Criteria matching.Criteria `json:"criteria"`
	Matches  []matching.Result `json:"matches"`
}

// MatchLawyers ranks the directory against a processed document.
func (s *Service) MatchLawyers(ctx context.Context, session Session, documentID string, limit int) (map[string]any, error) {
	document, err := s.visibleDocument(ctx, session, documentID)
	if err != nil {
		return nil, err
	}
	result, err := s.documentMatches(ctx, document, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"documentId": document.ID,
		"criteria":   result.Criteria,
		"matches":    result.Matches,
	}, nil
}

func (s *Service) documentMatches(ctx context.Context, document store.Document, limit int) (cachedMatches, error) {
	data, ok := decodeExtracted(document)
	if document.Status != store.DocumentProcessed || !ok || document.ProcessedAt == nil {
		return cachedMatches{}, domainError(http.StatusConflict, "DOCUMENT_NOT_PROCESSED",
			"Document has not been processed yet", map[string]any{"status": document.Status})
	}
	limit = clampLimit(limit, matching.DefaultLimit, matching.MaxLimit)

	key := fmt.Sprintf("matches:%s:%d:%d", document.ID, document.ProcessedAt.UnixNano(), limit)
	var cached cachedMatches
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.log.Warn("read match cache", zap.String("document_id", document.ID), zap.Error(err))
	} else if hit {
		return cached, nil
	}

	criteria := matching.CriteriaFromDocument(data)
	candidates, err := s.store.ListMatchCandidates(ctx, criteria.PracticeArea, criteria.District)
	if err != nil {
		return cachedMatches{}, err
	}
	if len(candidates) == 0 && !criteria.Empty() {
		candidates, err = s.store.ListMatchCandidates(ctx, "", "")
		if err != nil {
			return cachedMatches{}, err
		}
	}
	profiles := make([]matching.Profile, 0, len(candidates))
	for _, lawyer := range candidates {
		profiles = append(profiles, lawyerProfile(lawyer))
	}
	result := cachedMatches{
		Criteria: criteria,
		Matches:  matching.Rank(matching.Prefilter(profiles, criteria), criteria, matching.Options{Limit: limit}),
	}

	if err := s.cache.SetJSON(ctx, key, result, matchCacheTTL); err != nil {
		s.log.Warn("write match cache", zap.String("document_id", document.ID), zap.Error(err))
	}
	return result, nil
}

func lawyerProfile(lawyer store.Lawyer) matching.Profile {
	return matching.Profile{
		ID:              lawyer.ID,
		Name:            lawyer.Name,
		PracticeAreas:   lawyer.PracticeAreas,
		District:        lawyer.District,
		Languages:       lawyer.Languages,
		ExperienceYears: lawyer.ExperienceYears,
		Rating:          lawyer.Rating,
		Available:       lawyer.Available,
	}
}

func lawyerRecord(lawyer store.Lawyer) search.LawyerRecord {
	return search.NewLawyerRecord(search.LawyerRecord{
		ID:              lawyer.ID,
		Name:            lawyer.Name,
		PracticeAreas:   lawyer.PracticeAreas,
		District:        lawyer.District,
		State:           lawyer.State,
		Languages:       lawyer.Languages,
		Bio:             lawyer.Bio,
		ExperienceYears: lawyer.ExperienceYears,
		Rating:          lawyer.Rating,
		Available:       lawyer.Available,
	})
}

func lawyerView(lawyer store.Lawyer) map[string]any {
	areas := lawyer.PracticeAreas
	if areas == nil {
		areas = []string{}
	}
	languages := lawyer.Languages
	if languages == nil {
		languages = []string{}
	}
	return map[string]any{
		"id":              lawyer.ID,
		"userId":          lawyer.UserID,
		"name":            lawyer.Name,
		"email":           lawyer.Email,
		"phone":           lawyer.Phone,
		"practiceAreas":   areas,
		"district":        lawyer.District,
		"state":           lawyer.State,
		"languages":       languages,
		"experienceYears": lawyer.ExperienceYears,
		"rating":          lawyer.Rating,
		"feeMin":          lawyer.FeeMin,
		"feeMax":          lawyer.FeeMax,
		"bio":             lawyer.Bio,
		"barCouncilId":    lawyer.BarCouncilID,
		"available":       lawyer.Available,
		"createdAt":       lawyer.CreatedAt,
		"updatedAt":       lawyer.UpdatedAt,
	}
}

func lawyerViews(lawyers []store.Lawyer) []map[string]any {
	items := make([]map[string]any, 0, len(lawyers))
	for _, lawyer := range lawyers {
		items = append(items, lawyerView(lawyer))
	}
	return items
}
