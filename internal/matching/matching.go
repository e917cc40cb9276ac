// Package matching ranks directory lawyers against the criteria drawn from a
// client's case.
package matching

import (
	"math"
	"sort"
	"strings"

	"nyaysakhi/api/internal/extract"
)

const (
	baseScore         = 0.4
	practiceAreaBonus = 0.4
	districtBonus     = 0.2
	maxScore          = 1.0

	DefaultLimit = 10
	MaxLimit     = 50
)

// Reasons attached to a result.
const (
	ReasonPracticeArea = "practice_area"
	ReasonDistrict     = "district"
	ReasonLanguage     = "language"
)

type Profile struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	PracticeAreas   []string `json:"practiceAreas"`
	District        string   `json:"district"`
	Languages       []string `json:"languages"`
	ExperienceYears int      `json:"experienceYears"`
	Rating          float64  `json:"rating"`
	Available       bool     `json:"available"`
}

type Criteria struct {
	PracticeArea string `json:"practiceArea,omitempty"`
	District     string `json:"district,omitempty"`
	Language     string `json:"language,omitempty"`
}

// Empty reports whether no criterion would ever match.
func (c Criteria) Empty() bool {
	return norm(c.PracticeArea) == "" && norm(c.District) == "" && norm(c.Language) == ""
}

type Options struct {
	Limit              int
	MinScore           float64
	IncludeUnavailable bool
}

type Result struct {
	Profile Profile  `json:"lawyer"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// Score adds the practice area and district bonuses to the base score.
func Score(p Profile, c Criteria) float64 {
	score, _ := evaluate(p, c)
	return score
}

func evaluate(p Profile, c Criteria) (float64, []string) {
	score := baseScore
	reasons := []string{}
	if containsFold(p.PracticeAreas, c.PracticeArea) {
		score += practiceAreaBonus
		reasons = append(reasons, ReasonPracticeArea)
	}
	if equalFold(p.District, c.District) {
		score += districtBonus
		reasons = append(reasons, ReasonDistrict)
	}
	if containsFold(p.Languages, c.Language) {
		reasons = append(reasons, ReasonLanguage)
	}
	return math.Min(maxScore, math.Round(score*100)/100), reasons
}

// Rank scores every profile and returns the best first. Ties go to a
// language match, then rating, then experience, then name.
func Rank(profiles []Profile, c Criteria, opts Options) []Result {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	results := make([]Result, 0, len(profiles))
	for _, p := range profiles {
		if !p.Available && !opts.IncludeUnavailable {
			continue
		}
		score, reasons := evaluate(p, c)
		if score < opts.MinScore {
			continue
		}
		results = append(results, Result{Profile: p, Score: score, Reasons: reasons})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if al, bl := hasReason(a, ReasonLanguage), hasReason(b, ReasonLanguage); al != bl {
			return al
		}
		if a.Profile.Rating != b.Profile.Rating {
			return a.Profile.Rating > b.Profile.Rating
		}
		if a.Profile.ExperienceYears != b.Profile.ExperienceYears {
			return a.Profile.ExperienceYears > b.Profile.ExperienceYears
		}
		return strings.ToLower(a.Profile.Name) < strings.ToLower(b.Profile.Name)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Prefilter keeps profiles that share the practice area or district with the
// criteria. With no overlap at all, or no criteria, every profile is kept.
func Prefilter(profiles []Profile, c Criteria) []Profile {
	if norm(c.PracticeArea) == "" && norm(c.District) == "" {
		return profiles
	}
	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		if containsFold(p.PracticeAreas, c.PracticeArea) || equalFold(p.District, c.District) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return profiles
	}
	return out
}

// CriteriaFromDocument derives criteria from extracted document fields.
func CriteriaFromDocument(d extract.Data) Criteria {
	return Criteria{
		PracticeArea: d.PracticeArea,
		District:     d.District,
		Language:     languageName(d.Language),
	}
}

var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
}

func languageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

func hasReason(r Result, reason string) bool {
	for _, got := range r.Reasons {
		if got == reason {
			return true
		}
	}
	return false
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func equalFold(a, b string) bool {
	b = norm(b)
	return b != "" && norm(a) == b
}

func containsFold(list []string, want string) bool {
	for _, item := range list {
		if equalFold(item, want) {
			return true
		}
	}
	return false
}
