package extract

import (
	"regexp"
	"sort"
	"strings"
)

var states = []string{
	"Andhra Pradesh", "Arunachal Pradesh", "Assam", "Bihar", "Chhattisgarh", "Goa", "Gujarat",
	"Haryana", "Himachal Pradesh", "Jharkhand", "Karnataka", "Kerala", "Madhya Pradesh",
	"Maharashtra", "Manipur", "Meghalaya", "Mizoram", "Nagaland", "Odisha", "Punjab",
	"Rajasthan", "Sikkim", "Tamil Nadu", "Telangana", "Tripura", "Uttar Pradesh",
	"Uttarakhand", "West Bengal",
	"Andaman and Nicobar Islands", "Chandigarh", "Dadra and Nagar Haveli and Daman and Diu",
	"Delhi", "Jammu and Kashmir", "Ladakh", "Lakshadweep", "Puducherry",
}

var stateAliases = map[string]string{
	"Orissa":       "Odisha",
	"NCT of Delhi": "Delhi",
	"Pondicherry":  "Puducherry",
}

// districtState maps well known districts to their state or UT.
var districtState = map[string]string{
	"Agra": "Uttar Pradesh", "Ahmedabad": "Gujarat", "Ajmer": "Rajasthan", "Aligarh": "Uttar Pradesh",
	"Allahabad": "Uttar Pradesh", "Prayagraj": "Uttar Pradesh", "Amritsar": "Punjab",
	"Aurangabad": "Maharashtra", "Bengaluru Urban": "Karnataka", "Bengaluru": "Karnataka",
	"Bangalore": "Karnataka", "Bhopal": "Madhya Pradesh", "Bhubaneswar": "Odisha",
	"Bikaner": "Rajasthan", "Chennai": "Tamil Nadu", "Coimbatore": "Tamil Nadu",
	"Cuttack": "Odisha", "Dehradun": "Uttarakhand", "Dhanbad": "Jharkhand",
	"Ernakulam": "Kerala", "Faridabad": "Haryana", "Gautam Buddh Nagar": "Uttar Pradesh",
	"Ghaziabad": "Uttar Pradesh", "Gorakhpur": "Uttar Pradesh", "Gurugram": "Haryana",
	"Gurgaon": "Haryana", "Guwahati": "Assam", "Kamrup Metropolitan": "Assam",
	"Gwalior": "Madhya Pradesh", "Hyderabad": "Telangana", "Indore": "Madhya Pradesh",
	"Jabalpur": "Madhya Pradesh", "Jaipur": "Rajasthan", "Jalandhar": "Punjab",
	"Jammu": "Jammu and Kashmir", "Jodhpur": "Rajasthan", "Kanpur Nagar": "Uttar Pradesh",
	"Kanpur": "Uttar Pradesh", "Kolkata": "West Bengal", "Howrah": "West Bengal",
	"Kota": "Rajasthan", "Kozhikode": "Kerala", "Lucknow": "Uttar Pradesh",
	"Ludhiana": "Punjab", "Madurai": "Tamil Nadu", "Meerut": "Uttar Pradesh",
	"Mumbai": "Maharashtra", "Mumbai Suburban": "Maharashtra", "Mysuru": "Karnataka",
	"Mysore": "Karnataka", "Nagpur": "Maharashtra", "Nashik": "Maharashtra",
	"New Delhi": "Delhi", "South Delhi": "Delhi", "North Delhi": "Delhi", "East Delhi": "Delhi",
	"West Delhi": "Delhi", "Noida": "Uttar Pradesh", "Panaji": "Goa", "North Goa": "Goa", "South Goa": "Goa",
	"Patna": "Bihar", "Pune": "Maharashtra", "Raipur": "Chhattisgarh", "Rajkot": "Gujarat",
	"Ranchi": "Jharkhand", "Shimla": "Himachal Pradesh", "Srinagar": "Jammu and Kashmir",
	"Surat": "Gujarat", "Thane": "Maharashtra", "Thiruvananthapuram": "Kerala",
	"Tiruchirappalli": "Tamil Nadu", "Udaipur": "Rajasthan", "Vadodara": "Gujarat",
	"Varanasi": "Uttar Pradesh", "Vijayawada": "Andhra Pradesh", "Visakhapatnam": "Andhra Pradesh",
	"Warangal": "Telangana", "Chandigarh": "Chandigarh", "Puducherry": "Puducherry",
	"Mohali": "Punjab", "Sahibzada Ajit Singh Nagar": "Punjab", "Belagavi": "Karnataka",
	"Mangaluru": "Karnataka", "Dakshina Kannada": "Karnataka", "Thrissur": "Kerala",
	"Kollam": "Kerala", "Salem": "Tamil Nadu", "Vellore": "Tamil Nadu", "Guntur": "Andhra Pradesh",
	"Nellore": "Andhra Pradesh", "Bareilly": "Uttar Pradesh", "Moradabad": "Uttar Pradesh",
	"Muzaffarpur": "Bihar", "Gaya": "Bihar", "Bhagalpur": "Bihar", "Jamshedpur": "Jharkhand",
	"East Singhbhum": "Jharkhand", "Bilaspur": "Chhattisgarh", "Ujjain": "Madhya Pradesh",
	"Solapur": "Maharashtra", "Kolhapur": "Maharashtra", "Bhavnagar": "Gujarat",
	"Jamnagar": "Gujarat", "Haridwar": "Uttarakhand", "Nainital": "Uttarakhand",
	"Siliguri": "West Bengal", "Darjeeling": "West Bengal", "Durg": "Chhattisgarh",
}

var (
	stateRe    = alternation(append(append([]string{}, states...), aliasKeys()...))
	districtRe = alternation(districtNames())
	// "District: Lucknow", "Dist. Pune", "District of Thane", "District: East Khasi Hills"
	districtLabelRe = regexp.MustCompile(`(?i:\bdistrict\s*[:\-]|\bdist\.\s*[:\-]?|\bdistrict\s+of)\s*([A-Z][a-zA-Z]+(?:[ \t]+[A-Z][a-zA-Z]+){0,3})`)
)

// districtStopWords end a labelled district when the next field follows on
// the same line.
var districtStopWords = map[string]bool{
	"police": true, "station": true, "ps": true, "state": true, "court": true,
	"tehsil": true, "taluka": true, "year": true, "date": true, "circle": true,
}

func aliasKeys() []string {
	keys := make([]string, 0, len(stateAliases))
	for key := range stateAliases {
		keys = append(keys, key)
	}
	return keys
}

func districtNames() []string {
	names := make([]string, 0, len(districtState))
	for name := range districtState {
		names = append(names, name)
	}
	return names
}

// alternation builds a whole-word regexp over the title-case and upper-case
// spellings of names, longest first so "New Delhi" wins over "Delhi". Matching
// is not fully case-insensitive because several district names are also
// common lowercase words.
func alternation(names []string) *regexp.Regexp {
	sorted := make([]string, 0, len(names)*2)
	for _, name := range names {
		sorted = append(sorted, name, strings.ToUpper(name))
	}
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	quoted := make([]string, len(sorted))
	for i, name := range sorted {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(name), " ", `\s+`)
	}
	return regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
}

func canonicalDistrict(name string) (string, bool) {
	name = collapseSpace(name)
	for district := range districtState {
		if strings.EqualFold(district, name) {
			return district, true
		}
	}
	return "", false
}

func canonicalState(name string) string {
	name = collapseSpace(name)
	for alias, state := range stateAliases {
		if strings.EqualFold(alias, name) {
			return state
		}
	}
	for _, state := range states {
		if strings.EqualFold(state, name) {
			return state
		}
	}
	return ""
}

func findLocation(text string) (district, state string) {
	if match := districtLabelRe.FindStringSubmatch(text); match != nil {
		district = labelledDistrict(match[1])
	}
	if district == "" {
		if match := districtRe.FindString(text); match != "" {
			district, _ = canonicalDistrict(match)
		}
	}

	if match := stateRe.FindString(text); match != "" {
		state = canonicalState(match)
	}
	if state == "" && district != "" {
		state = districtState[district]
	}
	return district, state
}

// labelledDistrict resolves the words after a district label. The longest
// known prefix wins; otherwise the whole label is kept.
func labelledDistrict(captured string) string {
	words := strings.Fields(captured)
	for i, word := range words {
		if districtStopWords[strings.ToLower(word)] {
			words = words[:i]
			break
		}
	}
	for n := len(words); n > 0; n-- {
		if canonical, ok := canonicalDistrict(strings.Join(words[:n], " ")); ok {
			return canonical
		}
	}
	return titleCase(strings.Join(words, " "))
}
