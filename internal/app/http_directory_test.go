package app

import (
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nyaysakhi/api/internal/cache"
	"nyaysakhi/api/internal/extract"
	"nyaysakhi/api/internal/search"
	"nyaysakhi/api/internal/store"
)

func seedDirectory(fs *fakeStore) {
	for _, lawyer := range []store.Lawyer{
		{ID: "lwr-a", Name: "Anjali Deshmukh", PracticeAreas: []string{"criminal"}, District: "Pune", Languages: []string{"Marathi", "Hindi"}, ExperienceYears: 12, Rating: 4.6, Available: true},
		{ID: "lwr-b", Name: "Bhavesh Shah", PracticeAreas: []string{"criminal", "civil"}, District: "Mumbai", ExperienceYears: 8, Rating: 4.8, Available: true},
		{ID: "lwr-c", Name: "Chitra Iyer", PracticeAreas: []string{"family"}, District: "Pune", ExperienceYears: 20, Rating: 4.9, Available: true},
		{ID: "lwr-d", Name: "Dev Malhotra", PracticeAreas: []string{"tax"}, District: "Delhi", ExperienceYears: 3, Rating: 4.0, Available: true},
		{ID: "lwr-e", Name: "Esha Rao", PracticeAreas: []string{"criminal"}, District: "Pune", ExperienceYears: 30, Rating: 5.0, Available: false},
	} {
		fs.lawyers[lawyer.ID] = lawyer
	}
}

func newMatchCache(t *testing.T) *cache.Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedis(client, "nyay:test:")
}

func TestMatchLawyersRanksByScore(t *testing.T) {
	fs := newFakeStore()
	owner := seedUser(fs, "asha", "user")
	seedDirectory(fs)
	processedDocument(t, fs, "doc-1", owner.ID, extract.Data{DocumentType: "fir", PracticeArea: "criminal", District: "Pune", Language: "hi"})
	server := NewHTTPServer(newTestService(t, fs, Deps{Cache: newMatchCache(t)}), "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/lawyers/matches/doc-1", bearerFor(t, owner), nil)
	expectCode(t, rr, payload, http.StatusOK, "")

	criteria := payload["criteria"].(map[string]any)
	assert.Equal(t, "criminal", criteria["practiceArea"])
	assert.Equal(t, "Pune", criteria["district"])
	assert.Equal(t, "Hindi", criteria["language"])

	matches := payload["matches"].([]any)
	require.Len(t, matches, 3)
	var ids []string
	var scores []float64
	for _, item := range matches {
		match := item.(map[string]any)
		ids = append(ids, match["lawyer"].(map[string]any)["id"].(string))
		scores = append(scores, match["score"].(float64))
	}
	assert.Equal(t, []string{"lwr-a", "lwr-b", "lwr-c"}, ids)
	assert.Equal(t, []float64{1.0, 0.8, 0.6}, scores)

	first := matches[0].(map[string]any)
	assert.ElementsMatch(t, []any{"practice_area", "district", "language"}, first["reasons"])
}

func TestMatchLawyersUsesCache(t *testing.T) {
	fs := newFakeStore()
	owner := seedUser(fs, "asha", "user")
	seedDirectory(fs)
	processedDocument(t, fs, "doc-1", owner.ID, extract.Data{PracticeArea: "criminal", District: "Pune"})
	server := NewHTTPServer(newTestService(t, fs, Deps{Cache: newMatchCache(t)}), "*")
	token := bearerFor(t, owner)

	for i := 0; i < 2; i++ {
		rr, payload := doJSON(t, server, http.MethodGet, "/api/lawyers/matches/doc-1", token, nil)
		expectCode(t, rr, payload, http.StatusOK, "")
		require.Len(t, payload["matches"], 3)
	}
	assert.Equal(t, 1, fs.matchCandidateCalls)

	// A different limit is a different cache entry.
	rr, payload := doJSON(t, server, http.MethodGet, "/api/lawyers/matches/doc-1?limit=1", token, nil)
	expectCode(t, rr, payload, http.StatusOK, "")
	assert.Len(t, payload["matches"], 1)
	assert.Equal(t, 2, fs.matchCandidateCalls)
}

func TestMatchLawyersFallsBackToWholeDirectory(t *testing.T) {
	fs := newFakeStore()
	owner := seedUser(fs, "asha", "user")
	seedDirectory(fs)
	processedDocument(t, fs, "doc-1", owner.ID, extract.Data{PracticeArea: "consumer", District: "Nagpur"})
	server := NewHTTPServer(newTestService(t, fs, Deps{}), "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/lawyers/matches/doc-1", bearerFor(t, owner), nil)

	expectCode(t, rr, payload, http.StatusOK, "")
	matches := payload["matches"].([]any)
	require.Len(t, matches, 4)
	for _, item := range matches {
		assert.Equal(t, 0.4, item.(map[string]any)["score"])
	}
	assert.Equal(t, 2, fs.matchCandidateCalls)
}

func TestMatchLawyersRequiresProcessedDocument(t *testing.T) {
	fs := newFakeStore()
	owner := seedUser(fs, "asha", "user")
	document := processedDocument(t, fs, "doc-1", owner.ID, extract.Data{})
	document.Status = store.DocumentUploaded
	document.ExtractedData = nil
	document.ProcessedAt = nil
	fs.documents["doc-1"] = document
	server := NewHTTPServer(newTestService(t, fs, Deps{}), "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/lawyers/matches/doc-1", bearerFor(t, owner), nil)

	expectCode(t, rr, payload, http.StatusConflict, "DOCUMENT_NOT_PROCESSED")
}

func TestMatchLawyersHidesOtherUsersDocuments(t *testing.T) {
	fs := newFakeStore()
	owner := seedUser(fs, "asha", "user")
	other := seedUser(fs, "ravi", "user")
	processedDocument(t, fs, "doc-1", owner.ID, extract.Data{PracticeArea: "criminal"})
	server := NewHTTPServer(newTestService(t, fs, Deps{}), "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/lawyers/matches/doc-1", bearerFor(t, other), nil)

	expectCode(t, rr, payload, http.StatusNotFound, "NOT_FOUND")
}

func TestListLawyersIsPublicAndFiltered(t *testing.T) {
	fs := newFakeStore()
	seedDirectory(fs)
	server := NewHTTPServer(newTestService(t, fs, Deps{}), "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/lawyers?district=Pune&available=true", "", nil)

	expectCode(t, rr, payload, http.StatusOK, "")
	lawyers := payload["lawyers"].([]any)
	require.Len(t, lawyers, 2)
	assert.Equal(t, float64(2), payload["total"])
	assert.Equal(t, float64(20), payload["limit"])
}

func TestListLawyersTextSearchKeepsHitOrder(t *testing.T) {
	fs := newFakeStore()
	seedDirectory(fs)
	searcher := &fakeSearch{
		backend: search.BackendMeili,
		hits: map[search.Index][]search.Hit{
			search.IndexLawyers: {{Index: search.IndexLawyers, ID: "lwr-c"}, {Index: search.IndexLawyers, ID: "lwr-a"}},
		},
	}
	server := NewHTTPServer(newTestService(t, fs, Deps{Search: searcher}), "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/lawyers?q=pune", "", nil)

	expectCode(t, rr, payload, http.StatusOK, "")
	assert.Equal(t, search.BackendMeili, payload["backend"])
	lawyers := payload["lawyers"].([]any)
	require.Len(t, lawyers, 2)
	assert.Equal(t, "lwr-c", lawyers[0].(map[string]any)["id"])
	assert.Equal(t, "lwr-a", lawyers[1].(map[string]any)["id"])
	require.Len(t, searcher.queries, 1)
	assert.Equal(t, search.IndexLawyers, searcher.queries[0].Index)
}

func TestGetLawyerNotFound(t *testing.T) {
	server := NewHTTPServer(newTestService(t, newFakeStore(), Deps{}), "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/lawyers/lwr-missing", "", nil)

	expectCode(t, rr, payload, http.StatusNotFound, "NOT_FOUND")
}

func TestLawyerDirectoryWrites(t *testing.T) {
	fs := newFakeStore()
	admin := seedUser(fs, "root", "admin")
	user := seedUser(fs, "asha", "user")
	lawyerUser := seedUser(fs, "meera", "lawyer")
	searcher := &fakeSearch{}
	server := NewHTTPServer(newTestService(t, fs, Deps{Search: searcher}), "*")

	input := map[string]any{
		"name":            "Meera Kulkarni",
		"practiceAreas":   []string{" Criminal ", "criminal", "Family"},
		"district":        "Pune",
		"experienceYears": 9,
		"userId":          lawyerUser.ID,
		"rating":          4.5,
	}

	rr, payload := doJSON(t, server, http.MethodPost, "/api/lawyers", bearerFor(t, user), input)
	expectCode(t, rr, payload, http.StatusForbidden, "FORBIDDEN")

	rr, payload = doJSON(t, server, http.MethodPost, "/api/lawyers", bearerFor(t, admin), map[string]any{"experienceYears": -1})
	expectCode(t, rr, payload, http.StatusBadRequest, "VALIDATION_FAILED")
	details := payload["details"].(map[string]any)
	assert.Contains(t, details, "name")
	assert.Contains(t, details, "practiceAreas")
	assert.Contains(t, details, "experienceYears")

	rr, payload = doJSON(t, server, http.MethodPost, "/api/lawyers", bearerFor(t, admin), input)
	expectCode(t, rr, payload, http.StatusCreated, "")
	id := payload["id"].(string)
	assert.Equal(t, []any{"criminal", "family"}, payload["practiceAreas"])
	assert.Equal(t, true, payload["available"])
	assert.Contains(t, searcher.indexed, id)

	// The linked lawyer edits their own profile but cannot change the rating.
	own := map[string]any{"name": "Meera K.", "practiceAreas": []string{"criminal"}, "district": "Pune", "rating": 5, "available": false}
	rr, payload = doJSON(t, server, http.MethodPut, "/api/lawyers/"+id, bearerFor(t, lawyerUser), own)
	expectCode(t, rr, payload, http.StatusOK, "")
	assert.Equal(t, "Meera K.", payload["name"])
	assert.Equal(t, 4.5, payload["rating"])
	assert.Equal(t, false, payload["available"])

	rr, payload = doJSON(t, server, http.MethodPut, "/api/lawyers/"+id, bearerFor(t, user), own)
	expectCode(t, rr, payload, http.StatusForbidden, "FORBIDDEN")

	rr, payload = doJSON(t, server, http.MethodDelete, "/api/lawyers/"+id, bearerFor(t, admin), nil)
	expectCode(t, rr, payload, http.StatusOK, "")
	assert.Contains(t, searcher.removed, id)
}

func TestFAQReadsAndSearch(t *testing.T) {
	fs := newFakeStore()
	fs.faqs["faq-1"] = store.FAQ{ID: "faq-1", Question: "What is an FIR?", Answer: "A First Information Report is ...", Category: "criminal", Language: "en"}
	fs.faqs["faq-2"] = store.FAQ{ID: "faq-2", Question: "How do I file for divorce?", Answer: "You can file ...", Category: "family", Language: "en"}
	searcher := &fakeSearch{hits: map[search.Index][]search.Hit{
		search.IndexFAQs: {{Index: search.IndexFAQs, ID: "faq-1", Snippet: "A <mark>First Information Report</mark>"}},
	}}
	server := NewHTTPServer(newTestService(t, fs, Deps{Search: searcher}), "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/faqs?category=family", "", nil)
	expectCode(t, rr, payload, http.StatusOK, "")
	require.Len(t, payload["faqs"], 1)

	rr, payload = doJSON(t, server, http.MethodGet, "/api/faqs/search", "", nil)
	expectCode(t, rr, payload, http.StatusBadRequest, "VALIDATION_FAILED")

	rr, payload = doJSON(t, server, http.MethodGet, "/api/faqs/search?q=fir", "", nil)
	expectCode(t, rr, payload, http.StatusOK, "")
	faqs := payload["faqs"].([]any)
	require.Len(t, faqs, 1)
	assert.Equal(t, "A <mark>First Information Report</mark>", faqs[0].(map[string]any)["snippet"])
	assert.Equal(t, "fir", payload["query"])

	rr, payload = doJSON(t, server, http.MethodGet, "/api/faqs/categories", "", nil)
	expectCode(t, rr, payload, http.StatusOK, "")
	require.Len(t, payload["categories"], 2)

	rr, payload = doJSON(t, server, http.MethodGet, "/api/faqs/faq-1", "", nil)
	expectCode(t, rr, payload, http.StatusOK, "")
	assert.Equal(t, 1, fs.faqs["faq-1"].ViewCount)

	rr, payload = doJSON(t, server, http.MethodGet, "/api/faqs/faq-9", "", nil)
	expectCode(t, rr, payload, http.StatusNotFound, "NOT_FOUND")
}

func TestFAQWritesRequireManagePermission(t *testing.T) {
	fs := newFakeStore()
	admin := seedUser(fs, "root", "admin")
	lawyerUser := seedUser(fs, "meera", "lawyer")
	searcher := &fakeSearch{}
	server := NewHTTPServer(newTestService(t, fs, Deps{Search: searcher}), "*")
	body := map[string]any{"question": "Can police refuse an FIR?", "answer": "No, for cognizable offences ..."}

	rr, payload := doJSON(t, server, http.MethodPost, "/api/faqs", bearerFor(t, lawyerUser), body)
	expectCode(t, rr, payload, http.StatusForbidden, "FORBIDDEN")

	rr, payload = doJSON(t, server, http.MethodPost, "/api/faqs", bearerFor(t, admin), map[string]any{"question": "?"})
	expectCode(t, rr, payload, http.StatusBadRequest, "VALIDATION_FAILED")

	rr, payload = doJSON(t, server, http.MethodPost, "/api/faqs", bearerFor(t, admin), body)
	expectCode(t, rr, payload, http.StatusCreated, "")
	assert.Equal(t, "general", payload["category"])
	assert.Equal(t, "en", payload["language"])
	id := payload["id"].(string)
	assert.Contains(t, searcher.indexed, id)

	rr, payload = doJSON(t, server, http.MethodDelete, "/api/faqs/"+id, bearerFor(t, admin), nil)
	expectCode(t, rr, payload, http.StatusOK, "")
	assert.Contains(t, searcher.removed, id)
}

func lawyerIDs(t *testing.T, items any) []string {
	t.Helper()
	ids := []string{}
	for _, item := range items.([]any) {
		entry := item.(map[string]any)
		if lawyer, ok := entry["lawyer"].(map[string]any); ok {
			entry = lawyer
		}
		ids = append(ids, entry["id"].(string))
	}
	return ids
}

func TestDirectoryListsLinkedProfilesOnlyAfterOptIn(t *testing.T) {
	fs := newFakeStore()
	owner := seedUser(fs, "asha", "user")
	meera := seedUser(fs, "meera", "lawyer")
	seedDirectory(fs)
	fs.lawyers["lwr-m"] = store.Lawyer{ID: "lwr-m", UserID: meera.ID, Name: "Meera Kulkarni", PracticeAreas: []string{"criminal"}, District: "Pune", Rating: 5.0, Available: true}
	processedDocument(t, fs, "doc-1", owner.ID, extract.Data{PracticeArea: "criminal", District: "Pune"})
	server := NewHTTPServer(newTestService(t, fs, Deps{}), "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/lawyers?district=Pune", "", nil)
	expectCode(t, rr, payload, http.StatusOK, "")
	assert.NotContains(t, lawyerIDs(t, payload["lawyers"]), "lwr-m")

	rr, payload = doJSON(t, server, http.MethodGet, "/api/lawyers/matches/doc-1", bearerFor(t, owner), nil)
	expectCode(t, rr, payload, http.StatusOK, "")
	assert.NotContains(t, lawyerIDs(t, payload["matches"]), "lwr-m")

	rr, payload = doJSON(t, server, http.MethodPut, "/api/me/privacy", bearerFor(t, meera), map[string]any{"showInDirectory": true})
	expectCode(t, rr, payload, http.StatusOK, "")

	rr, payload = doJSON(t, server, http.MethodGet, "/api/lawyers?district=Pune", "", nil)
	expectCode(t, rr, payload, http.StatusOK, "")
	assert.Contains(t, lawyerIDs(t, payload["lawyers"]), "lwr-m")

	rr, payload = doJSON(t, server, http.MethodGet, "/api/lawyers/matches/doc-1", bearerFor(t, owner), nil)
	expectCode(t, rr, payload, http.StatusOK, "")
	assert.Equal(t, "lwr-m", lawyerIDs(t, payload["matches"])[0])
}

func TestDirectoryTextSearchSortsAndCountsFilteredHits(t *testing.T) {
	fs := newFakeStore()
	seedDirectory(fs)
	searcher := &fakeSearch{
		hits: map[search.Index][]search.Hit{
			search.IndexLawyers: {
				{Index: search.IndexLawyers, ID: "lwr-d"},
				{Index: search.IndexLawyers, ID: "lwr-a"},
				{Index: search.IndexLawyers, ID: "lwr-b"},
				{Index: search.IndexLawyers, ID: "lwr-c"},
			},
		},
	}
	server := NewHTTPServer(newTestService(t, fs, Deps{Search: searcher}), "*")

	rr, payload := doJSON(t, server, http.MethodGet, "/api/lawyers?q=advocate&minExperience=5", "", nil)
	expectCode(t, rr, payload, http.StatusOK, "")
	assert.Equal(t, []string{"lwr-a", "lwr-b", "lwr-c"}, lawyerIDs(t, payload["lawyers"]))
	assert.Equal(t, float64(3), payload["total"])

	rr, payload = doJSON(t, server, http.MethodGet, "/api/lawyers?q=advocate&limit=1&offset=1", "", nil)
	expectCode(t, rr, payload, http.StatusOK, "")
	assert.Equal(t, []string{"lwr-a"}, lawyerIDs(t, payload["lawyers"]))
	assert.Equal(t, float64(4), payload["total"])

	rr, payload = doJSON(t, server, http.MethodGet, "/api/lawyers?q=advocate&sort=experience&limit=2", "", nil)
	expectCode(t, rr, payload, http.StatusOK, "")
	assert.Equal(t, []string{"lwr-c", "lwr-a"}, lawyerIDs(t, payload["lawyers"]))
	assert.Equal(t, float64(4), payload["total"])

	rr, payload = doJSON(t, server, http.MethodGet, "/api/lawyers?q=advocate&sort=rating&limit=2&offset=1", "", nil)
	expectCode(t, rr, payload, http.StatusOK, "")
	assert.Equal(t, []string{"lwr-b", "lwr-a"}, lawyerIDs(t, payload["lawyers"]))
	assert.Equal(t, searchCandidateLimit, searcher.queries[0].Limit)
}
