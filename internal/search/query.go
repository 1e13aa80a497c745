// Package search builds tiered provider queries and ranks the results.
package search

import (
	"fmt"
	"strings"

	"github.com/sells-group/contact-cli/internal/model"
)

// TierCount is the number of query tiers produced per provider.
const TierCount = 3

// prioritySites are the site filter groups for the tiered queries, searched
// in order. Tier 3 has no site filter.
var prioritySites = [][]string{
	// Tier 1: provider-specific directories
	{"doximity.com", "npiprofile.com"},
	// Tier 2: government and academic
	{".gov", ".edu"},
}

// socialBlocklist holds domains excluded from search results.
var socialBlocklist = []string{
	"facebook.com",
	"twitter.com",
	"x.com",
	"instagram.com",
	"linkedin.com",
	"tiktok.com",
	"reddit.com",
	"pinterest.com",
	"snapchat.com",
	"threads.net",
	"tumblr.com",
	"youtube.com",
}

// BuildBaseQuery combines the provider's name and location with role
// keywords into a single query string.
func BuildBaseQuery(p model.Provider) string {
	var parts []string
	for _, s := range []string{p.FirstName, p.MiddleName, p.LastName, p.City, p.StateCode} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	parts = append(parts, "doctor healthcare provider")
	return strings.Join(parts, " ")
}

// BuildQueries returns the tiered queries for a provider, most trusted tier
// first. Site groups are OR-combined into one query each; the final query is
// a general search with a contact hint.
func BuildQueries(p model.Provider) []string {
	base := BuildBaseQuery(p)
	queries := make([]string, 0, TierCount)

	for _, group := range prioritySites {
		filters := make([]string, len(group))
		for i, site := range group {
			filters[i] = "site:" + site
		}
		queries = append(queries, fmt.Sprintf("%s (%s)", base, strings.Join(filters, " OR ")))
	}

	queries = append(queries, base+" contact information")
	return queries
}

// IsBlockedURL reports whether the URL belongs to a blocked social domain.
func IsBlockedURL(u string) bool {
	lower := strings.ToLower(u)
	for _, blocked := range socialBlocklist {
		if strings.Contains(lower, blocked) {
			return true
		}
	}
	return false
}

// RankURL returns a priority rank for a URL, lower is better:
// 0 provider directories, 1 .gov, 2 .edu, 3 .org, 4 health-related
// keywords, 5 everything else.
func RankURL(u string) int {
	lower := strings.ToLower(u)
	switch {
	case strings.Contains(lower, "doximity.com") || strings.Contains(lower, "npiprofile.com"):
		return 0
	case strings.Contains(lower, ".gov"):
		return 1
	case strings.Contains(lower, ".edu"):
		return 2
	case strings.Contains(lower, ".org"):
		return 3
	}
	for _, kw := range []string{"hospital", "health", "medical", "clinic"} {
		if strings.Contains(lower, kw) {
			return 4
		}
	}
	return 5
}
