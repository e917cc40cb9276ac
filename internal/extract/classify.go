package extract

import (
	"regexp"
	"sort"
	"strings"
)

type term struct {
	re     *regexp.Regexp
	label  string
	weight float64
}

func terms(weight float64, labels ...string) []term {
	out := make([]term, 0, len(labels))
	for _, label := range labels {
		pattern := strings.ReplaceAll(regexp.QuoteMeta(label), " ", `\s+`)
		out = append(out, term{
			re:     regexp.MustCompile(`(?i)\b` + pattern + `\b`),
			label:  label,
			weight: weight,
		})
	}
	return out
}

func join(groups ...[]term) []term {
	var out []term
	for _, group := range groups {
		out = append(out, group...)
	}
	return out
}

// Document types in tie-break order.
const (
	TypeFIR          = "fir"
	TypeChargesheet  = "chargesheet"
	TypeCourtOrder   = "court_order"
	TypeLegalNotice  = "legal_notice"
	TypePetition     = "petition"
	TypeAgreement    = "agreement"
	TypeAffidavit    = "affidavit"
	TypePropertyDeed = "property_deed"
	TypeOther        = "other"
)

var documentTypeOrder = []string{
	TypeFIR, TypeChargesheet, TypeCourtOrder, TypeLegalNotice,
	TypePetition, TypeAgreement, TypeAffidavit, TypePropertyDeed,
}

var documentTypeTerms = map[string][]term{
	TypeFIR: join(
		terms(4, "first information report", "FIR No"),
		terms(2, "FIR", "police station", "informant", "complainant"),
		terms(1, "occurrence", "accused"),
	),
	TypeChargesheet: join(
		terms(4, "charge sheet", "chargesheet", "final report"),
		terms(2, "section 173", "investigating officer", "charge-sheet"),
	),
	TypeCourtOrder: join(
		terms(4, "it is hereby ordered", "judgment", "decree"),
		terms(2, "coram", "order", "ordered", "disposed of", "dismissed", "allowed"),
		terms(1, "hon'ble", "learned counsel"),
	),
	TypeLegalNotice: join(
		terms(4, "legal notice", "hereby call upon"),
		terms(2, "my client", "under instructions from", "notice under section", "failing which"),
	),
	TypePetition: join(
		terms(4, "most respectfully showeth", "writ petition"),
		terms(2, "petition", "prayer", "petitioner", "humbly prayed"),
	),
	TypeAgreement: join(
		terms(4, "this agreement", "parties hereto", "witnesseth"),
		terms(2, "agreement", "lessor", "lessee", "terms and conditions", "licensor", "licensee"),
	),
	TypeAffidavit: join(
		terms(4, "affidavit", "deponent", "solemnly affirm"),
		terms(2, "verification", "sworn"),
	),
	TypePropertyDeed: join(
		terms(4, "sale deed", "gift deed", "conveyance deed"),
		terms(2, "vendor", "vendee", "khasra", "survey no", "sub-registrar", "mutation"),
	),
}

// Practice areas in tie-break order.
const (
	AreaCriminal       = "criminal"
	AreaCivil          = "civil"
	AreaFamily         = "family"
	AreaProperty       = "property"
	AreaLabour         = "labour"
	AreaConsumer       = "consumer"
	AreaCorporate      = "corporate"
	AreaTax            = "tax"
	AreaConstitutional = "constitutional"
	AreaCyber          = "cyber"
)

var practiceAreaOrder = []string{
	AreaCriminal, AreaCivil, AreaFamily, AreaProperty, AreaLabour,
	AreaConsumer, AreaCorporate, AreaTax, AreaConstitutional, AreaCyber,
}

var practiceAreaTerms = map[string][]term{
	AreaCriminal: join(
		terms(3, "bail", "anticipatory bail", "murder", "theft", "assault", "cheating", "kidnapping", "robbery"),
		terms(2, "accused", "FIR", "police", "arrest", "offence", "cognizable", "custody"),
	),
	AreaCivil: join(
		terms(3, "civil suit", "injunction", "specific performance", "recovery suit", "money suit"),
		terms(2, "plaintiff", "defendant", "damages", "cheque", "dishonour"),
	),
	AreaFamily: join(
		terms(3, "divorce", "maintenance", "custody of the child", "dowry", "domestic violence", "alimony", "restitution of conjugal rights"),
		terms(2, "marriage", "husband", "wife", "matrimonial", "guardianship"),
	),
	AreaProperty: join(
		terms(3, "sale deed", "title deed", "encroachment", "partition", "possession", "mutation"),
		terms(2, "property", "land", "plot", "tenant", "landlord", "eviction", "rent"),
	),
	AreaLabour: join(
		terms(3, "wrongful termination", "retrenchment", "gratuity", "provident fund", "industrial dispute"),
		terms(2, "employer", "employee", "wages", "workman", "salary"),
	),
	AreaConsumer: join(
		terms(3, "consumer complaint", "deficiency in service", "unfair trade practice", "consumer forum", "consumer commission"),
		terms(2, "consumer", "refund", "defective", "warranty"),
	),
	AreaCorporate: join(
		terms(3, "shareholder", "board of directors", "insolvency", "winding up", "NCLT"),
		terms(2, "company", "director", "memorandum of association", "partnership"),
	),
	AreaTax: join(
		terms(3, "income tax", "assessment order", "GST", "tax demand", "show cause notice"),
		terms(2, "assessee", "tax", "penalty"),
	),
	AreaConstitutional: join(
		terms(3, "writ", "fundamental rights", "article 21", "article 14", "article 226", "article 32", "habeas corpus", "mandamus"),
		terms(2, "public interest litigation", "PIL"),
	),
	AreaCyber: join(
		terms(3, "cyber crime", "online fraud", "hacking", "phishing", "identity theft", "cyber cell"),
		terms(2, "OTP", "UPI", "social media", "email account"),
	),
}

// actAreas maps detected statutes to the practice area they imply.
var actAreas = map[string]string{
	"Indian Penal Code":                                     AreaCriminal,
	"Bharatiya Nyaya Sanhita":                               AreaCriminal,
	"Code of Criminal Procedure":                            AreaCriminal,
	"Bharatiya Nagarik Suraksha Sanhita":                    AreaCriminal,
	"Narcotic Drugs and Psychotropic Substances Act, 1985":  AreaCriminal,
	"Protection of Children from Sexual Offences Act, 2012": AreaCriminal,
	"Code of Civil Procedure":                               AreaCivil,
	"Negotiable Instruments Act, 1881":                      AreaCivil,
	"Indian Contract Act, 1872":                             AreaCivil,
	"Specific Relief Act, 1963":                             AreaCivil,
	"Arbitration and Conciliation Act, 1996":                AreaCivil,
	"Hindu Marriage Act, 1955":                              AreaFamily,
	"Special Marriage Act, 1954":                            AreaFamily,
	"Protection of Women from Domestic Violence Act, 2005":  AreaFamily,
	"Dowry Prohibition Act, 1961":                           AreaFamily,
	"Transfer of Property Act, 1882":                        AreaProperty,
	"Registration Act, 1908":                                AreaProperty,
	"Real Estate (Regulation and Development) Act, 2016":    AreaProperty,
	"Industrial Disputes Act, 1947":                         AreaLabour,
	"Payment of Wages Act, 1936":                            AreaLabour,
	"Minimum Wages Act, 1948":                               AreaLabour,
	"Consumer Protection Act, 2019":                         AreaConsumer,
	"Companies Act, 2013":                                   AreaCorporate,
	"Income Tax Act, 1961":                                  AreaTax,
	"Central Goods and Services Tax Act, 2017":              AreaTax,
	"Constitution of India":                                 AreaConstitutional,
	"Information Technology Act, 2000":                      AreaCyber,
}

const actWeight = 4

type scored struct {
	key   string
	score float64
}

// best returns the highest scoring key, breaking ties by order. It returns ""
// when no key reaches min.
func best(scores map[string]float64, order []string, min float64) string {
	winner := scored{}
	for _, key := range order {
		if scores[key] > winner.score {
			winner = scored{key: key, score: scores[key]}
		}
	}
	if winner.score < min {
		return ""
	}
	return winner.key
}

// hit records where a vocabulary term first appeared.
type hit struct {
	label string
	pos   int
}

func scoreTerms(text string, table map[string][]term, hits map[string]int) map[string]float64 {
	scores := make(map[string]float64, len(table))
	for key, list := range table {
		for _, t := range list {
			matches := t.re.FindAllStringIndex(text, -1)
			if len(matches) == 0 {
				continue
			}
			scores[key] += t.weight * float64(min(len(matches), 3))
			label := strings.ToLower(t.label)
			if pos, seen := hits[label]; !seen || matches[0][0] < pos {
				hits[label] = matches[0][0]
			}
		}
	}
	return scores
}

func classifyDocument(text string, hits map[string]int) string {
	scores := scoreTerms(text, documentTypeTerms, hits)
	if kind := best(scores, documentTypeOrder, 4); kind != "" {
		return kind
	}
	return TypeOther
}

func classifyPracticeArea(text string, acts, sections []string, hits map[string]int) string {
	scores := scoreTerms(text, practiceAreaTerms, hits)
	for _, act := range acts {
		if area, ok := actAreas[act]; ok {
			scores[area] += actWeight
		}
	}
	for _, section := range sections {
		if strings.HasSuffix(section, " IPC") || strings.HasSuffix(section, " BNS") {
			scores[AreaCriminal] += 2
		}
	}
	return best(scores, practiceAreaOrder, 2)
}

func topKeywords(hits map[string]int, limit int) []string {
	list := make([]hit, 0, len(hits))
	for label, pos := range hits {
		list = append(list, hit{label: label, pos: pos})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].pos != list[j].pos {
			return list[i].pos < list[j].pos
		}
		return list[i].label < list[j].label
	})
	out := make([]string, 0, limit)
	for _, item := range list {
		if len(out) == limit {
			break
		}
		out = append(out, item.label)
	}
	return out
}
