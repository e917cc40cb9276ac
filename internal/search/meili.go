package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when the primary index cannot be reached.
var ErrUnavailable = errors.New("search: meilisearch unavailable")

const (
	idxLawyers = "nyay_lawyers"
	idxFAQs    = "nyay_faqs"
)

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	log     *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
	closed  atomic.Bool
}

// NewMeili creates a Meilisearch client and configures indexes.
// An unreachable server is reported as unhealthy; the health loop picks it up later.
func NewMeili(url, apiKey string, log *zap.Logger) *Meili {
	if log == nil {
		log = zap.NewNop()
	}
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		log:    log,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxLawyers,
			filterable: []string{"practiceAreas", "districtKey", "languageKeys", "available"},
			searchable: []string{"name", "practiceAreas", "district", "bio", "languages"},
		},
		{
			uid:        idxFAQs,
			filterable: []string{"category", "language"},
			searchable: []string{"question", "tags", "answer"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			m.log.Debug("create index (may already exist)", zap.String("index", idx.uid), zap.Error(err))
		}

		index := m.client.Index(idx.uid)
		filterable := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			m.log.Warn("update filterable attributes", zap.String("index", idx.uid), zap.Error(err))
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			m.log.Warn("update searchable attributes", zap.String("index", idx.uid), zap.Error(err))
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.log.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor. Safe to call twice.
func (m *Meili) Close() {
	if m.closed.CompareAndSwap(false, true) {
		close(m.done)
	}
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries one index with the filters that apply to it.
func (m *Meili) Search(ctx context.Context, q Query) ([]Hit, int, error) {
	if !m.healthy.Load() {
		return nil, 0, ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	uid, err := indexUID(q.Index)
	if err != nil {
		return nil, 0, err
	}

	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 20
	}

	sr := &meili.SearchRequest{
		IndexUID:              uid,
		Query:                 q.Text,
		Limit:                 limit,
		Offset:                int64(q.Offset),
		AttributesToHighlight: []string{"*"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
		ShowRankingScore:      true,
	}
	if filters := meiliFilters(q); len(filters) > 0 {
		sr.Filter = filters
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{sr},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var hits []Hit
	total := 0
	for _, res := range resp.Results {
		total += int(res.EstimatedTotalHits)
		for _, hit := range res.Hits {
			hits = append(hits, hitFromMeili(hit, q.Index))
		}
	}
	return hits, total, nil
}

func indexUID(idx Index) (string, error) {
	switch idx {
	case IndexLawyers:
		return idxLawyers, nil
	case IndexFAQs:
		return idxFAQs, nil
	default:
		return "", fmt.Errorf("search: unknown index %q", idx)
	}
}

func meiliFilters(q Query) []string {
	var filters []string
	switch q.Index {
	case IndexLawyers:
		if v := strings.ToLower(strings.TrimSpace(q.PracticeArea)); v != "" {
			filters = append(filters, fmt.Sprintf("practiceAreas = %s", strconv.Quote(v)))
		}
		if v := strings.ToLower(strings.TrimSpace(q.District)); v != "" {
			filters = append(filters, fmt.Sprintf("districtKey = %s", strconv.Quote(v)))
		}
		if v := strings.ToLower(strings.TrimSpace(q.Language)); v != "" {
			filters = append(filters, fmt.Sprintf("languageKeys = %s", strconv.Quote(v)))
		}
		if q.Available != nil {
			filters = append(filters, fmt.Sprintf("available = %t", *q.Available))
		}
	case IndexFAQs:
		if v := strings.TrimSpace(q.Category); v != "" {
			filters = append(filters, fmt.Sprintf("category = %s", strconv.Quote(v)))
		}
		if v := strings.TrimSpace(q.FAQLanguage); v != "" {
			filters = append(filters, fmt.Sprintf("language = %s", strconv.Quote(v)))
		}
	}
	return filters
}

func hitFromMeili(hit meili.Hit, idx Index) Hit {
	h := Hit{Index: idx, ID: decodeString(hit, "id"), Score: decodeFloat(hit, "_rankingScore")}
	switch idx {
	case IndexLawyers:
		h.Title = firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name"))
		h.Snippet = firstNonBlank(decodeFormattedString(hit, "bio"), decodeString(hit, "bio"))
	case IndexFAQs:
		h.Title = firstNonBlank(decodeFormattedString(hit, "question"), decodeString(hit, "question"))
		h.Snippet = firstNonBlank(decodeFormattedString(hit, "answer"), decodeString(hit, "answer"))
	}
	return h
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFloat(hit meili.Hit, key string) float64 {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	return 0
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(formatted[key], &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexLawyers bulk-indexes directory entries.
func (m *Meili) IndexLawyers(records []LawyerRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxLawyers).AddDocuments(records, nil)
	return err
}

// IndexFAQs bulk-indexes knowledge-base entries.
func (m *Meili) IndexFAQs(records []FAQRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxFAQs).AddDocuments(records, nil)
	return err
}

// Delete removes one record from an index.
func (m *Meili) Delete(idx Index, id string) error {
	uid, err := indexUID(idx)
	if err != nil {
		return err
	}
	_, err = m.client.Index(uid).DeleteDocument(id, nil)
	return err
}
