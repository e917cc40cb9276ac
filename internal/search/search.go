package search

import "context"

// Index identifies a searchable collection.
type Index string

const (
	IndexLawyers Index = "lawyers"
	IndexFAQs    Index = "faqs"
)

// Hit is a single search result. For lawyers Title is the name, for FAQs the
// question.
type Hit struct {
	Index   Index   `json:"index"`
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score,omitempty"`
}

// Query describes a search request against one index.
type Query struct {
	Text   string
	Index  Index
	Limit  int
	Offset int

	// Lawyer filters
	PracticeArea string
	District     string
	Language     string
	Available    *bool

	// FAQ filters
	Category    string
	FAQLanguage string
}

// Response is the envelope returned to callers.
type Response struct {
	Hits    []Hit  `json:"hits"`
	Total   int    `json:"total"`
	Query   string `json:"query"`
	Backend string `json:"backend"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Hit, int, error)
	Healthy() bool
}

// LawyerRecord is the data we index for a directory entry.
type LawyerRecord struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	PracticeAreas   []string `json:"practiceAreas"`
	District        string   `json:"district"`
	DistrictKey     string   `json:"districtKey"`
	State           string   `json:"state"`
	Languages       []string `json:"languages"`
	LanguageKeys    []string `json:"languageKeys"`
	Bio             string   `json:"bio"`
	ExperienceYears int      `json:"experienceYears"`
	Rating          float64  `json:"rating"`
	Available       bool     `json:"available"`
}

// FAQRecord is the data we index for a knowledge-base entry.
type FAQRecord struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Category string   `json:"category"`
	Language string   `json:"language"`
	Tags     []string `json:"tags"`
}
