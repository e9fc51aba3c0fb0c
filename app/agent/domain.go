package agent

import "strings"

// domainKeywords maps each domain to its trigger words. Order matters:
// the first domain with any keyword present in the combined query and
// answer text wins.
var domainKeywords = []struct {
	name     string
	keywords []string
}{
	{"insurance", []string{"policy", "coverage", "claim", "premium", "insurance"}},
	{"legal", []string{"contract", "agreement", "clause", "legal", "compliance"}},
	{"hr", []string{"employment", "employee", "benefits", "salary", "hr"}},
	{"compliance", []string{"regulation", "compliance", "audit", "safety", "training"}},
}

// classifyDomain tags the exchange with a coarse topical domain based on
// keyword matching over the query and answer text.
func classifyDomain(query, answer string) string {
	content := strings.ToLower(query + " " + answer)

	for _, domain := range domainKeywords {
		for _, keyword := range domain.keywords {
			if strings.Contains(content, keyword) {
				return domain.name
			}
		}
	}
	return "unknown"
}
