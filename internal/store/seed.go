package store

import (
	"context"
	"fmt"

	"nyaysakhi/api/internal/util"
)

var demoLawyers = []Lawyer{
	{Name: "Adv. Anjali Deshmukh", PracticeAreas: []string{"criminal"}, District: "Pune", State: "Maharashtra", Languages: []string{"Marathi", "Hindi", "English"}, ExperienceYears: 12, Rating: 4.6, FeeMin: 1500, FeeMax: 5000, Bio: "Bail, FIR quashing and trial defence."},
	{Name: "Adv. Rakesh Verma", PracticeAreas: []string{"criminal", "civil"}, District: "Lucknow", State: "Uttar Pradesh", Languages: []string{"Hindi", "English"}, ExperienceYears: 18, Rating: 4.7, FeeMin: 2000, FeeMax: 8000, Bio: "Sessions court practice and civil recovery suits."},
	{Name: "Adv. Chitra Iyer", PracticeAreas: []string{"family"}, District: "Chennai", State: "Tamil Nadu", Languages: []string{"Tamil", "English"}, ExperienceYears: 20, Rating: 4.9, FeeMin: 2500, FeeMax: 10000, Bio: "Divorce, custody and maintenance."},
	{Name: "Adv. Farhan Qureshi", PracticeAreas: []string{"property", "civil"}, District: "Hyderabad", State: "Telangana", Languages: []string{"Urdu", "Telugu", "English"}, ExperienceYears: 9, Rating: 4.4, FeeMin: 1000, FeeMax: 4000, Bio: "Title disputes, tenancy and partition."},
	{Name: "Adv. Meenakshi Rao", PracticeAreas: []string{"labour", "consumer"}, District: "Bengaluru Urban", State: "Karnataka", Languages: []string{"Kannada", "English"}, ExperienceYears: 7, Rating: 4.3, FeeMin: 800, FeeMax: 3000, Bio: "Wage claims and consumer commission matters."},
}

var demoFAQs = []FAQ{
	{Question: "What is an FIR?", Answer: "A First Information Report is the written record police make when they receive information about a cognizable offence. You are entitled to a free copy.", Category: "criminal", Language: "en", Tags: []string{"fir", "police"}},
	{Question: "Can the police refuse to register an FIR?", Answer: "No. For a cognizable offence the officer in charge must register it. If refused, you can write to the Superintendent of Police or approach the Magistrate under Section 175(3) BNSS.", Category: "criminal", Language: "en", Tags: []string{"fir", "police", "bnss"}},
	{Question: "How do I apply for bail?", Answer: "Bail is applied for before the court that has jurisdiction. For bailable offences it is a right; for others the court decides. A lawyer can file the application.", Category: "criminal", Language: "en", Tags: []string{"bail"}},
	{Question: "How long does a mutual consent divorce take?", Answer: "After filing a joint petition there is usually a six month cooling-off period, which the court can waive in suitable cases.", Category: "family", Language: "en", Tags: []string{"divorce"}},
	{Question: "Who can get free legal aid?", Answer: "Women, children, SC/ST members, industrial workmen, persons in custody and people below the income limit can get free legal aid from the Legal Services Authority.", Category: "general", Language: "en", Tags: []string{"legal aid", "nalsa"}},
	{Question: "FIR क्या होता है?", Answer: "FIR यानी प्रथम सूचना रिपोर्ट, संज्ञेय अपराध की सूचना मिलने पर पुलिस द्वारा दर्ज की जाती है। इसकी प्रति मुफ्त में पाने का आपको अधिकार है।", Category: "criminal", Language: "hi", Tags: []string{"fir"}},
}

// SeedDemo inserts the demo directory and FAQs into empty tables. It returns
// how many rows of each were added.
func (s *PostgresStore) SeedDemo(ctx context.Context) (int, int, error) {
	lawyers, err := s.CountLawyers(ctx)
	if err != nil {
		return 0, 0, err
	}
	addedLawyers := 0
	if lawyers == 0 {
		for _, lawyer := range demoLawyers {
			lawyer.ID = util.NewID("lwr")
			lawyer.Available = true
			if _, err := s.UpsertLawyer(ctx, lawyer); err != nil {
				return addedLawyers, 0, fmt.Errorf("seed lawyer %q: %w", lawyer.Name, err)
			}
			addedLawyers++
		}
	}

	faqs, err := s.CountFAQs(ctx)
	if err != nil {
		return addedLawyers, 0, err
	}
	addedFAQs := 0
	if faqs == 0 {
		for _, faq := range demoFAQs {
			faq.ID = util.NewID("faq")
			if _, err := s.UpsertFAQ(ctx, faq); err != nil {
				return addedLawyers, addedFAQs, fmt.Errorf("seed faq %q: %w", faq.Question, err)
			}
			addedFAQs++
		}
	}
	return addedLawyers, addedFAQs, nil
}
