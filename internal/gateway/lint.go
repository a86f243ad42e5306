package gateway

// LintReport is static advice about query text. Producing it never touches
// the store and never records history.
type LintReport struct {
	Valid          bool           `json:"valid"`
	Classification Classification `json:"classification"`
	Errors         []string       `json:"errors"`
	Warnings       []string       `json:"warnings"`
	Suggestions    []string       `json:"suggestions"`
}

// suspiciousWords are legal in a SELECT but common in injected text.
var suspiciousWords = []string{"UNION", "EXEC"}

// Lint checks text the way the editor does before submission.
//
// Errors mirror the classifier: text that would be rejected is not Valid.
// Warnings flag comment markers, UNION, EXEC and a SELECT without FROM.
// A SELECT without LIMIT gets a suggestion.
func Lint(text string) LintReport {
	st := classify(text)
	report := LintReport{
		Valid:          st.class == ReadOnly,
		Classification: st.class,
		Errors:         []string{},
		Warnings:       []string{},
		Suggestions:    []string{},
	}
	if !report.Valid {
		report.Errors = append(report.Errors, st.detail)
		return report
	}

	if st.comments > 0 {
		report.Warnings = append(report.Warnings, `query contains comments ("--" or "/* */"); check that it is not malicious`)
	}
	for _, word := range suspiciousWords {
		if hasWord(st.tokens, word) {
			report.Warnings = append(report.Warnings, "query contains "+word+"; check that it is not malicious")
		}
	}
	if st.pragma {
		return report
	}
	if !hasWord(st.tokens, "FROM") {
		report.Warnings = append(report.Warnings, "query may be missing a FROM clause")
	}
	if !hasTopLevel(significant(st.tokens), "LIMIT") {
		report.Suggestions = append(report.Suggestions, "consider adding a LIMIT clause to avoid fetching large results")
	}
	return report
}
