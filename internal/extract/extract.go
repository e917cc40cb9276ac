// Package extract turns OCR text from Indian legal documents into structured
// fields. Everything is pattern based and deterministic.
package extract

import (
	"math"
	"strings"
	"unicode"
)

// Data is the structured result stored alongside a processed document.
type Data struct {
	DocumentType  string   `json:"documentType"`
	CaseNumber    string   `json:"caseNumber,omitempty"`
	FIRNumber     string   `json:"firNumber,omitempty"`
	PoliceStation string   `json:"policeStation,omitempty"`
	CourtName     string   `json:"courtName,omitempty"`
	Petitioners   []string `json:"petitioners"`
	Respondents   []string `json:"respondents"`
	Dates         []string `json:"dates"`
	Sections      []string `json:"sections"`
	Acts          []string `json:"acts"`
	Amounts       []string `json:"amounts"`
	District      string   `json:"district,omitempty"`
	State         string   `json:"state,omitempty"`
	PracticeArea  string   `json:"practiceArea,omitempty"`
	Language      string   `json:"language,omitempty"`
	Keywords      []string `json:"keywords"`
	Confidence    float64  `json:"confidence"`
}

const keywordLimit = 10

// Extract runs every field extractor over text. Blank input yields an empty
// result of type "other" with zero confidence.
func Extract(text string) Data {
	data := Data{
		DocumentType: TypeOther,
		Petitioners:  []string{},
		Respondents:  []string{},
		Dates:        []string{},
		Sections:     []string{},
		Acts:         []string{},
		Amounts:      []string{},
		Keywords:     []string{},
	}
	text = normalize(text)
	if strings.TrimSpace(text) == "" {
		return data
	}

	hits := map[string]int{}
	data.DocumentType = classifyDocument(text, hits)
	data.CaseNumber = findCaseNumber(text)
	data.FIRNumber = findFIR(text)
	data.PoliceStation = findPoliceStation(text)
	data.CourtName = findCourt(text)
	data.Petitioners, data.Respondents = findParties(text)
	data.Dates = findDates(text)
	data.Sections = findSections(text)
	data.Acts = findActs(text)
	data.Amounts = findAmounts(text)
	data.District, data.State = findLocation(text)
	data.PracticeArea = classifyPracticeArea(text, data.Acts, data.Sections, hits)
	data.Language = detectLanguage(text)
	data.Keywords = topKeywords(hits, keywordLimit)
	data.Confidence = confidence(data)
	return data
}

// confidence is the share of key fields found, scaled to 0.9, plus 0.1 when
// the document type was recognised.
func confidence(d Data) float64 {
	found := 0
	for _, present := range []bool{
		d.CaseNumber != "" || d.FIRNumber != "",
		d.CourtName != "" || d.PoliceStation != "",
		len(d.Petitioners)+len(d.Respondents) > 0,
		len(d.Dates) > 0,
		len(d.Sections)+len(d.Acts) > 0,
		d.District != "" || d.State != "",
		d.PracticeArea != "",
	} {
		if present {
			found++
		}
	}
	score := float64(found) / 7 * 0.9
	if d.DocumentType != TypeOther {
		score += 0.1
	}
	return math.Min(1, math.Round(score*100)/100)
}

// Summary renders a one-line description for chat context and reports.
func (d Data) Summary() string {
	parts := []string{"Document type: " + strings.ReplaceAll(d.DocumentType, "_", " ")}
	if d.PracticeArea != "" {
		parts = append(parts, "practice area: "+d.PracticeArea)
	}
	if d.CaseNumber != "" {
		parts = append(parts, "case number: "+d.CaseNumber)
	}
	if d.FIRNumber != "" {
		parts = append(parts, "FIR: "+d.FIRNumber)
	}
	if d.CourtName != "" {
		parts = append(parts, "court: "+d.CourtName)
	}
	if len(d.Sections) > 0 {
		parts = append(parts, "sections: "+strings.Join(d.Sections, ", "))
	}
	if len(d.Acts) > 0 {
		parts = append(parts, "acts: "+strings.Join(d.Acts, ", "))
	}
	if d.District != "" {
		parts = append(parts, "district: "+d.District)
	}
	return strings.Join(parts, "; ")
}

// normalize folds OCR artefacts: CRLF, non-breaking spaces and tabs.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Map(func(r rune) rune {
		switch r {
		case '\u00a0', '\t', '\u2009', '\u202f':
			return ' '
		}
		return r
	}, text)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var lowerWords = map[string]bool{"of": true, "and": true, "at": true, "the": true, "for": true}

// titleCase capitalises each word, keeping connectives lowercase and leaving
// bracketed or dotted abbreviations alone.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		lower := strings.ToLower(word)
		if i > 0 && lowerWords[lower] {
			words[i] = lower
			continue
		}
		runes := []rune(lower)
		for j, r := range runes {
			if unicode.IsLetter(r) {
				runes[j] = unicode.ToUpper(r)
				break
			}
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if strings.EqualFold(existing, value) {
			return list
		}
	}
	return append(list, value)
}
