package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var caseNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bcase\s+(?:no\.?|number)\s*[:\-]?\s*([A-Z0-9][A-Z0-9./\-() ]*?\d)(?:\s|$|,|;)`),
	regexp.MustCompile(`(?i)\b((?:W\.?\s?P\.?|Crl\.?\s?A\.?|Crl\.?\s?M\.?\s?P\.?|Crl\.?\s?Rev\.?|C\.?\s?S\.?|O\.?\s?S\.?|C\.?\s?C\.?|M\.?\s?A\.?\s?C\.?\s?T\.?|S\.?\s?L\.?\s?P\.?|R\.?\s?F\.?\s?A\.?|C\.?\s?A\.?|Bail\s+Appln\.?|CC|MC)\s*(?:\([A-Za-z]+\))?\s*(?:No\.?\s*)?\d{1,7}\s*(?:/|of)\s*\d{2,4})`),
	regexp.MustCompile(`\b([A-Z]{1,6}(?:\.[A-Z]{1,4})*\s?/\s?\d{1,7}\s?/\s?\d{4})\b`),
}

var (
	firRe           = regexp.MustCompile(`(?i)\bF\.?\s?I\.?\s?R\.?\s*(?:No\.?|Number)?\s*[:\-]?\s*(\d{1,6}\s*/\s*\d{2,4}|\d{1,6})\b`)
	policeStationRe = regexp.MustCompile(`(?i:\bP\.\s?S\.|\bPS\b|\bPolice\s+Station)\s*[:\-]?\s*([A-Z][a-zA-Z]+(?:\s[A-Z][a-zA-Z]+){0,2})`)
	courtRe         = regexp.MustCompile(`(?i)\b(supreme\s+court\s+of\s+india|high\s+court\s+of\s+(?:` + highCourtSeats + `)|(?:` + highCourtSeats + `)\s+high\s+court|(?:chief\s+judicial\s+magistrate|judicial\s+magistrate(?:\s+first\s+class)?|metropolitan\s+magistrate|district\s+(?:and|&)\s+sessions\s+judge|additional\s+sessions\s+judge|sessions\s+judge|civil\s+judge(?:\s*\((?:senior|junior)\s+division\))?|family\s+court|district\s+consumer\s+disputes\s+redressal\s+(?:commission|forum)|consumer\s+disputes\s+redressal\s+(?:commission|forum)|labour\s+court|district\s+court)(?:\s*,\s*[a-z]+)?)\b`)

	versusRe       = regexp.MustCompile(`(?i)^\s*(.+?)\s+(?:vs\.?|versus|v\.|v/s\.?)\s+(.+?)\s*$`)
	petitionerRe   = regexp.MustCompile(`(?i)^\s*(?:petitioner|appellant|complainant|plaintiff|applicant)s?\s*(?:\(s\))?\s*(?:no\.?\s*\d+\s*)?[:\-]\s*(.+)$`)
	respondentRe   = regexp.MustCompile(`(?i)^\s*(?:respondent|defendant|accused|opposite\s+party)s?\s*(?:\(s\))?\s*(?:no\.?\s*\d+\s*)?[:\-]\s*(.+)$`)
	trailingRoleRe = regexp.MustCompile(`(?i)^\s*(.+?)\s*(?:\.{2,}|…+|-{2,})\s*(petitioner|appellant|complainant|plaintiff|applicant|respondent|defendant|accused)s?(?:\s*\(s\))?\s*$`)
	roleSuffixRe   = regexp.MustCompile(`(?i)[\s.…\-]*(?:petitioner|appellant|complainant|plaintiff|applicant|respondent|defendant|accused)s?(?:\s*\(s\))?\s*$`)
	partyPrefixRe  = regexp.MustCompile(`(?i)^(?:in\s+the\s+matter\s+of|between|and)\b\s*[:\-]?\s*`)

	sectionRe    = regexp.MustCompile(`(?i)\b(?:sections?|secs?\.?|u/s\.?|under\s+sections?)\s*(` + sectionNumber + `(?:\s*(?:,|/|and|&)\s*` + sectionNumber + `)*)(?:\s*(?:of\s+)?(?:the\s+)?(` + codePattern + `))?`)
	sectionNumRe = regexp.MustCompile(`(?i)` + sectionNumber)

	amountRe = regexp.MustCompile(`(?i)(?:₹|\bRs\.?|\bINR)\s*([0-9][0-9,]*(?:\.\d{1,2})?)(?:\s*(lakhs?|lacs?|crores?))?`)

	devanagariRe = regexp.MustCompile(`\p{Devanagari}`)
	letterRe     = regexp.MustCompile(`\p{L}`)
)

const highCourtSeats = `delhi|bombay|madras|calcutta|allahabad|karnataka|kerala|gujarat|punjab\s+(?:and|&)\s+haryana|rajasthan|patna|orissa|odisha|gauhati|telangana|andhra\s+pradesh|madhya\s+pradesh|jharkhand|chhattisgarh|uttarakhand|himachal\s+pradesh|jammu\s+(?:and|&)\s+kashmir|tripura|manipur|meghalaya|sikkim`

const sectionNumber = `\d{1,4}[A-Za-z]?(?:\s*\(\d+\))?`

const codePattern = `I\.?\s?P\.?\s?C\.?|Indian\s+Penal\s+Code|B\.?N\.?S\.?S|BNS|Bharatiya\s+Nyaya\s+Sanhita|Cr\.?\s?P\.?\s?C\.?|C\.?P\.?C\.?|N\.?\s?I\.?\s+Act|Negotiable\s+Instruments?\s+Act|I\.?T\.?\s+Act|Information\s+Technology\s+Act|Evidence\s+Act`

// statute is a canonical act name with the spellings that identify it.
type statute struct {
	name string
	re   *regexp.Regexp
}

var statutes = []statute{
	{"Indian Penal Code", regexp.MustCompile(`(?i)\bindian\s+penal\s+code\b|\bI\.?P\.?C\b`)},
	{"Bharatiya Nyaya Sanhita", regexp.MustCompile(`(?i)\bbharatiya\s+nyaya\s+sanhita\b|\bBNS\b`)},
	{"Code of Criminal Procedure", regexp.MustCompile(`(?i)\bcode\s+of\s+criminal\s+procedure\b|\bCr\.?\s?P\.?\s?C\b`)},
	{"Bharatiya Nagarik Suraksha Sanhita", regexp.MustCompile(`(?i)\bbharatiya\s+nagarik\s+suraksha\s+sanhita\b|\bBNSS\b`)},
	{"Code of Civil Procedure", regexp.MustCompile(`(?i)\bcode\s+of\s+civil\s+procedure\b|\bC\.P\.C\b|\bCPC\b`)},
	{"Negotiable Instruments Act, 1881", regexp.MustCompile(`(?i)\bnegotiable\s+instruments?\s+act\b|\bN\.?\s?I\.?\s+Act\b`)},
	{"Hindu Marriage Act, 1955", regexp.MustCompile(`(?i)\bhindu\s+marriage\s+act\b`)},
	{"Special Marriage Act, 1954", regexp.MustCompile(`(?i)\bspecial\s+marriage\s+act\b`)},
	{"Protection of Women from Domestic Violence Act, 2005", regexp.MustCompile(`(?i)\bdomestic\s+violence\s+act\b|\bPWDVA\b`)},
	{"Dowry Prohibition Act, 1961", regexp.MustCompile(`(?i)\bdowry\s+prohibition\s+act\b`)},
	{"Information Technology Act, 2000", regexp.MustCompile(`(?i)\binformation\s+technology\s+act\b|\bI\.?T\.?\s+Act\b`)},
	{"Consumer Protection Act, 2019", regexp.MustCompile(`(?i)\bconsumer\s+protection\s+act\b`)},
	{"Transfer of Property Act, 1882", regexp.MustCompile(`(?i)\btransfer\s+of\s+property\s+act\b`)},
	{"Registration Act, 1908", regexp.MustCompile(`(?i)\b(?:indian\s+)?registration\s+act\b`)},
	{"Indian Contract Act, 1872", regexp.MustCompile(`(?i)\b(?:indian\s+)?contract\s+act\b`)},
	{"Specific Relief Act, 1963", regexp.MustCompile(`(?i)\bspecific\s+relief\s+act\b`)},
	{"Industrial Disputes Act, 1947", regexp.MustCompile(`(?i)\bindustrial\s+disputes\s+act\b`)},
	{"Payment of Wages Act, 1936", regexp.MustCompile(`(?i)\bpayment\s+of\s+wages\s+act\b`)},
	{"Minimum Wages Act, 1948", regexp.MustCompile(`(?i)\bminimum\s+wages\s+act\b`)},
	{"Companies Act, 2013", regexp.MustCompile(`(?i)\bcompanies\s+act\b`)},
	{"Income Tax Act, 1961", regexp.MustCompile(`(?i)\bincome[\s-]+tax\s+act\b`)},
	{"Central Goods and Services Tax Act, 2017", regexp.MustCompile(`(?i)\bgoods\s+and\s+services\s+tax\s+act\b|\bC?GST\s+Act\b`)},
	{"Protection of Children from Sexual Offences Act, 2012", regexp.MustCompile(`(?i)\bprotection\s+of\s+children\s+from\s+sexual\s+offences\b|\bPOCSO\b`)},
	{"Narcotic Drugs and Psychotropic Substances Act, 1985", regexp.MustCompile(`(?i)\bnarcotic\s+drugs\s+and\s+psychotropic\b|\bNDPS\b`)},
	{"Motor Vehicles Act, 1988", regexp.MustCompile(`(?i)\bmotor\s+vehicles\s+act\b`)},
	{"Right to Information Act, 2005", regexp.MustCompile(`(?i)\bright\s+to\s+information\s+act\b|\bRTI\s+Act\b`)},
	{"Indian Evidence Act, 1872", regexp.MustCompile(`(?i)\b(?:indian\s+)?evidence\s+act\b`)},
	{"Arbitration and Conciliation Act, 1996", regexp.MustCompile(`(?i)\barbitration\s+and\s+conciliation\s+act\b`)},
	{"Real Estate (Regulation and Development) Act, 2016", regexp.MustCompile(`(?i)\breal\s+estate\s*\(regulation\s+and\s+development\)|\bRERA\b`)},
	{"Constitution of India", regexp.MustCompile(`(?i)\bconstitution\s+of\s+india\b`)},
}

func findCaseNumber(text string) string {
	for _, re := range caseNumberPatterns {
		if match := re.FindStringSubmatch(text); match != nil {
			return collapseSpace(strings.TrimRight(match[1], " .,;:"))
		}
	}
	return ""
}

func findFIR(text string) string {
	match := firRe.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return strings.ReplaceAll(collapseSpace(match[1]), " ", "")
}

func findPoliceStation(text string) string {
	match := policeStationRe.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return titleCase(match[1])
}

func findCourt(text string) string {
	match := courtRe.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return titleCase(match[1])
}

// findParties reads cause-title lines ("A vs B"), labelled lines
// ("Petitioner: A") and trailing role lines ("A ....Petitioner").
func findParties(text string) (petitioners, respondents []string) {
	petitioners, respondents = []string{}, []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > 200 {
			continue
		}
		if match := petitionerRe.FindStringSubmatch(line); match != nil {
			petitioners = appendParty(petitioners, match[1])
			continue
		}
		if match := respondentRe.FindStringSubmatch(line); match != nil {
			respondents = appendParty(respondents, match[1])
			continue
		}
		if match := trailingRoleRe.FindStringSubmatch(line); match != nil {
			switch strings.ToLower(match[2]) {
			case "respondent", "defendant", "accused":
				respondents = appendParty(respondents, match[1])
			default:
				petitioners = appendParty(petitioners, match[1])
			}
			continue
		}
		if match := versusRe.FindStringSubmatch(line); match != nil {
			petitioners = appendParty(petitioners, match[1])
			respondents = appendParty(respondents, match[2])
		}
	}
	return petitioners, respondents
}

func appendParty(list []string, raw string) []string {
	name := partyPrefixRe.ReplaceAllString(strings.TrimSpace(raw), "")
	name = roleSuffixRe.ReplaceAllString(name, "")
	name = strings.Trim(collapseSpace(name), " .,:;-…")
	if len(name) < 3 || len(name) > 120 || !letterRe.MatchString(name) {
		return list
	}
	return appendUnique(list, name)
}

// findSections expands "Sections 420/34 IPC" into one entry per section.
func findSections(text string) []string {
	out := []string{}
	for _, match := range sectionRe.FindAllStringSubmatch(text, -1) {
		code := canonicalCode(match[2])
		for _, number := range sectionNumRe.FindAllString(match[1], -1) {
			entry := "Section " + strings.ToUpper(strings.ReplaceAll(number, " ", ""))
			if code != "" {
				entry += " " + code
			}
			out = appendUnique(out, entry)
		}
	}
	return out
}

func canonicalCode(raw string) string {
	compact := strings.ToUpper(strings.Join(strings.Fields(strings.ReplaceAll(raw, ".", "")), " "))
	switch {
	case compact == "":
		return ""
	case compact == "IPC" || compact == "I P C" || strings.HasPrefix(compact, "INDIAN PENAL"):
		return "IPC"
	case compact == "BNSS" || compact == "B N S S":
		return "BNSS"
	case compact == "BNS" || strings.HasPrefix(compact, "BHARATIYA NYAYA"):
		return "BNS"
	case strings.HasPrefix(compact, "CR"):
		return "CrPC"
	case compact == "CPC":
		return "CPC"
	case strings.HasPrefix(compact, "NI") || strings.HasPrefix(compact, "N I") || strings.HasPrefix(compact, "NEGOTIABLE"):
		return "NI Act"
	case strings.HasPrefix(compact, "IT") || strings.HasPrefix(compact, "INFORMATION"):
		return "IT Act"
	case strings.HasPrefix(compact, "EVIDENCE"):
		return "Evidence Act"
	default:
		return compact
	}
}

func findActs(text string) []string {
	var found []positioned
	for _, s := range statutes {
		if loc := s.re.FindStringIndex(text); loc != nil {
			found = append(found, positioned{s.name, loc[0]})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	out := make([]string, 0, len(found))
	for _, item := range found {
		out = appendUnique(out, item.value)
	}
	return out
}

var amountMultipliers = map[string]float64{
	"lakh": 1e5, "lakhs": 1e5, "lac": 1e5, "lacs": 1e5,
	"crore": 1e7, "crores": 1e7,
}

// findAmounts normalises rupee amounts to plain digits, applying lakh and crore.
func findAmounts(text string) []string {
	out := []string{}
	for _, match := range amountRe.FindAllStringSubmatch(text, -1) {
		value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
		if err != nil || value <= 0 {
			continue
		}
		if multiplier, ok := amountMultipliers[strings.ToLower(match[2])]; ok {
			value *= multiplier
		}
		out = appendUnique(out, strconv.FormatFloat(value, 'f', -1, 64))
	}
	return out
}

// detectLanguage reports "hi" when Devanagari makes up a fifth of the letters.
func detectLanguage(text string) string {
	letters := len(letterRe.FindAllStringIndex(text, -1))
	if letters == 0 {
		return ""
	}
	devanagari := len(devanagariRe.FindAllStringIndex(text, -1))
	if float64(devanagari)/float64(letters) >= 0.2 {
		return "hi"
	}
	return "en"
}
