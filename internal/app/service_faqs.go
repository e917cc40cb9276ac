package app

import (
	"context"
	"errors"
	"strings"

	"nyaysakhi/api/internal/rbac"
	"nyaysakhi/api/internal/search"
	"nyaysakhi/api/internal/store"
	"nyaysakhi/api/internal/util"
)

type FAQInput struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Category string   `json:"category"`
	Language string   `json:"language"`
	Tags     []string `json:"tags"`
}

func (s *Service) ListFAQs(ctx context.Context, category, language string, limit, offset int) ([]map[string]any, error) {
	faqs, err := s.store.ListFAQs(ctx, strings.TrimSpace(category), strings.TrimSpace(language), clampLimit(limit, 50, 200), max(offset, 0))
	if err != nil {
		return nil, err
	}
	return faqViews(faqs), nil
}

// SearchFAQs runs a knowledge-base search and returns the hits with their
// full entries.
func (s *Service) SearchFAQs(ctx context.Context, text, category, language string, limit, offset int) (map[string]any, error) {
	limit = clampLimit(limit, 10, 50)
	offset = max(offset, 0)
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errValidation(map[string]string{"q": "is required"})
	}
	response := s.search.Search(ctx, search.Query{
		Text:        text,
		Index:       search.IndexFAQs,
		Limit:       limit,
		Offset:      offset,
		Category:    strings.TrimSpace(category),
		FAQLanguage: strings.TrimSpace(language),
	})
	faqs, err := s.faqsForHits(ctx, response.Hits)
	if err != nil {
		return nil, err
	}
	items := faqViews(faqs)
	snippets := make(map[string]string, len(response.Hits))
	for _, hit := range response.Hits {
		snippets[hit.ID] = hit.Snippet
	}
	for _, item := range items {
		item["snippet"] = snippets[item["id"].(string)]
	}
	return map[string]any{
		"faqs":    items,
		"total":   response.Total,
		"query":   response.Query,
		"backend": response.Backend,
	}, nil
}

func (s *Service) faqsForHits(ctx context.Context, hits []search.Hit) ([]store.FAQ, error) {
	if len(hits) == 0 {
		return []store.FAQ{}, nil
	}
	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.ID)
	}
	return s.store.ListFAQsByID(ctx, ids)
}

// GetFAQ returns an entry and counts the view.
func (s *Service) GetFAQ(ctx context.Context, id string) (map[string]any, error) {
	faq, err := s.store.ViewFAQ(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound("FAQ")
		}
		return nil, err
	}
	return faqView(faq), nil
}

func (s *Service) FAQCategories(ctx context.Context) ([]map[string]any, error) {
	categories, err := s.store.ListFAQCategories(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(categories))
	for _, category := range categories {
		items = append(items, map[string]any{"category": category.Category, "count": category.Count})
	}
	return items, nil
}

func (s *Service) CreateFAQ(ctx context.Context, session Session, input FAQInput) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionManageFAQ) {
		return nil, errForbidden()
	}
	return s.saveFAQ(ctx, store.FAQ{ID: util.NewID("faq")}, input)
}

func (s *Service) UpdateFAQ(ctx context.Context, session Session, id string, input FAQInput) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionManageFAQ) {
		return nil, errForbidden()
	}
	existing, err := s.store.GetFAQ(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound("FAQ")
		}
		return nil, err
	}
	return s.saveFAQ(ctx, existing, input)
}

func (s *Service) saveFAQ(ctx context.Context, faq store.FAQ, input FAQInput) (map[string]any, error) {
	faq.Question = strings.TrimSpace(input.Question)
	faq.Answer = strings.TrimSpace(input.Answer)
	faq.Category = strings.ToLower(firstNonBlank(input.Category, "general"))
	faq.Language = strings.ToLower(firstNonBlank(input.Language, "en"))
	faq.Tags = cleanList(input.Tags, true)

	fields := map[string]string{}
	if faq.Question == "" {
		fields["question"] = "is required"
	}
	if faq.Answer == "" {
		fields["answer"] = "is required"
	}
	if len(fields) > 0 {
		return nil, errValidation(fields)
	}

	stored, err := s.store.UpsertFAQ(ctx, faq)
	if err != nil {
		return nil, err
	}
	s.search.IndexFAQ(faqRecord(stored))
	return faqView(stored), nil
}

func (s *Service) DeleteFAQ(ctx context.Context, session Session, id string) error {
	if !s.Can(session.Role, rbac.ActionManageFAQ) {
		return errForbidden()
	}
	if err := s.store.DeleteFAQ(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errNotFound("FAQ")
		}
		return err
	}
	s.search.DeleteFAQ(id)
	return nil
}

func faqRecord(faq store.FAQ) search.FAQRecord {
	tags := faq.Tags
	if tags == nil {
		tags = []string{}
	}
	return search.FAQRecord{
		ID:       faq.ID,
		Question: faq.Question,
		Answer:   faq.Answer,
		Category: faq.Category,
		Language: faq.Language,
		Tags:     tags,
	}
}

func faqView(faq store.FAQ) map[string]any {
	tags := faq.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"id":        faq.ID,
		"question":  faq.Question,
		"answer":    faq.Answer,
		"category":  faq.Category,
		"language":  faq.Language,
		"tags":      tags,
		"viewCount": faq.ViewCount,
		"updatedAt": faq.UpdatedAt,
	}
}

func faqViews(faqs []store.FAQ) []map[string]any {
	items := make([]map[string]any, 0, len(faqs))
	for _, faq := range faqs {
		items = append(items, faqView(faq))
	}
	return items
}
