package insight

import "regexp"

// disallowedKeywords are disease-diagnosis terms forbidden from insights:
// diagnosing plant disease is explicitly out of scope for this generator.
var disallowedKeywords = []string{
	"disease", "infection", "pathogen", "fungus", "bacteria", "virus", "blight", "rot", "mold",
}

var keywordPatterns = buildKeywordPatterns()

func buildKeywordPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(disallowedKeywords))
	for i, kw := range disallowedKeywords {
		patterns[i] = regexp.MustCompile(`(?i)\b` + kw + `\b`)
	}
	return patterns
}

// sanitizeText substitutes every disallowed keyword, matched
// case-insensitively, with "condition".
func sanitizeText(s string) string {
	for _, p := range keywordPatterns {
		s = p.ReplaceAllString(s, "condition")
	}
	return s
}

// sanitizeInsight scrubs summary and every recommendation's action/reason.
func sanitizeInsight(in DraftInsight) DraftInsight {
	in.Summary = sanitizeText(in.Summary)
	for i, rec := range in.Recommendations {
		rec.Action = sanitizeText(rec.Action)
		rec.Reason = sanitizeText(rec.Reason)
		in.Recommendations[i] = rec
	}
	return in
}
