package search

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const (
	BackendMeili = "meilisearch"
	BackendPG    = "postgres"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili  *Meili
	pgfts  Searcher
	loader RecordLoader
	log    *zap.Logger
}

// RecordLoader reads every searchable row for a full reindex.
type RecordLoader interface {
	LoadAllRecords(ctx context.Context) ([]LawyerRecord, []FAQRecord, error)
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{meili: meili, log: log}
	if pgfts != nil {
		s.pgfts = pgfts
		s.loader = pgfts
	}
	return s
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	q.Text = strings.TrimSpace(q.Text)
	if s.meili != nil && s.meili.Healthy() {
		hits, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Hits: nonNil(hits), Total: total, Query: q.Text, Backend: BackendMeili}
		}
		s.log.Warn("meilisearch error, falling back to postgres", zap.String("index", string(q.Index)), zap.Error(err))
	}

	if s.pgfts == nil {
		return Response{Hits: []Hit{}, Query: q.Text, Backend: BackendPG}
	}
	hits, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		s.log.Error("postgres search failed", zap.String("index", string(q.Index)), zap.Error(err))
		return Response{Hits: []Hit{}, Total: 0, Query: q.Text, Backend: BackendPG}
	}
	return Response{Hits: nonNil(hits), Total: total, Query: q.Text, Backend: BackendPG}
}

func (s *Service) meiliReady() bool {
	return s.meili != nil && s.meili.Healthy()
}

// IndexLawyer indexes a directory entry (fire-and-forget to Meilisearch).
func (s *Service) IndexLawyer(record LawyerRecord) {
	if !s.meiliReady() {
		return
	}
	go func() {
		if err := s.meili.IndexLawyers([]LawyerRecord{record}); err != nil {
			s.log.Warn("index lawyer", zap.String("id", record.ID), zap.Error(err))
		}
	}()
}

// DeleteLawyer removes a directory entry from the index (fire-and-forget).
func (s *Service) DeleteLawyer(id string) {
	if !s.meiliReady() {
		return
	}
	go func() {
		if err := s.meili.Delete(IndexLawyers, id); err != nil {
			s.log.Warn("delete lawyer from index", zap.String("id", id), zap.Error(err))
		}
	}()
}

// IndexFAQ indexes a knowledge-base entry (fire-and-forget to Meilisearch).
func (s *Service) IndexFAQ(record FAQRecord) {
	if !s.meiliReady() {
		return
	}
	go func() {
		if err := s.meili.IndexFAQs([]FAQRecord{record}); err != nil {
			s.log.Warn("index faq", zap.String("id", record.ID), zap.Error(err))
		}
	}()
}

// DeleteFAQ removes a knowledge-base entry from the index (fire-and-forget).
func (s *Service) DeleteFAQ(id string) {
	if !s.meiliReady() {
		return
	}
	go func() {
		if err := s.meili.Delete(IndexFAQs, id); err != nil {
			s.log.Warn("delete faq from index", zap.String("id", id), zap.Error(err))
		}
	}()
}

// ReindexAll pushes every record into Meilisearch and returns the counts.
func (s *Service) ReindexAll(lawyers []LawyerRecord, faqs []FAQRecord) (int, int, error) {
	if !s.meiliReady() {
		return 0, 0, ErrUnavailable
	}
	if err := s.meili.IndexLawyers(lawyers); err != nil {
		return 0, 0, err
	}
	if err := s.meili.IndexFAQs(faqs); err != nil {
		return len(lawyers), 0, err
	}
	return len(lawyers), len(faqs), nil
}

// ReindexAllFromPG reindexes all searchable rows from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) (int, int, error) {
	if !s.meiliReady() || s.loader == nil {
		return 0, 0, ErrUnavailable
	}
	lawyers, faqs, err := s.loader.LoadAllRecords(ctx)
	if err != nil {
		return 0, 0, err
	}
	nLawyers, nFAQs, err := s.ReindexAll(lawyers, faqs)
	if err != nil {
		return nLawyers, nFAQs, err
	}
	s.log.Info("search reindexed", zap.Int("lawyers", nLawyers), zap.Int("faqs", nFAQs))
	return nLawyers, nFAQs, nil
}

// Healthy reports whether the primary backend is reachable.
func (s *Service) Healthy() bool {
	return s.meiliReady()
}

// Close stops background monitoring.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

func nonNil(h []Hit) []Hit {
	if h == nil {
		return []Hit{}
	}
	return h
}

// NewLawyerRecord fills the lowercased filter keys.
func NewLawyerRecord(r LawyerRecord) LawyerRecord {
	r.DistrictKey = strings.ToLower(strings.TrimSpace(r.District))
	r.LanguageKeys = make([]string, 0, len(r.Languages))
	for _, language := range r.Languages {
		r.LanguageKeys = append(r.LanguageKeys, strings.ToLower(strings.TrimSpace(language)))
	}
	areas := make([]string, 0, len(r.PracticeAreas))
	for _, area := range r.PracticeAreas {
		areas = append(areas, strings.ToLower(strings.TrimSpace(area)))
	}
	r.PracticeAreas = areas
	if r.Languages == nil {
		r.Languages = []string{}
	}
	return r
}
