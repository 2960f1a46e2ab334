// Package analyzer derives screening signals from the crawled page graph:
// content risk, policy presence, entity identity, business context, and MCC
// classification.
package analyzer

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/merchantsafe/kyc-screener/internal/models"
	"github.com/merchantsafe/kyc-screener/internal/pagegraph"
)

const (
	proximityWindow = 50  // max distance between words of a multi-word phrase
	snippetRadius   = 100 // characters captured either side of a hit
	snippetMaxLen   = 200
	intentWindow    = 120 // characters inspected around a hit for intent markers
)

var dummyTextRe = regexp.MustCompile(`(?i)` + strings.Join(dummyTextPatterns, "|"))

// ContentRiskAnalyzer scans visible text for restricted-keyword evidence.
type ContentRiskAnalyzer struct {
	logger *slog.Logger
}

// NewContentRiskAnalyzer creates a content risk analyzer.
func NewContentRiskAnalyzer(logger *slog.Logger) *ContentRiskAnalyzer {
	return &ContentRiskAnalyzer{logger: logger.With("component", "content_risk")}
}

// Analyze scans every fetched page and aggregates restricted keyword hits
// with intent, corroboration, and severity.
func (a *ContentRiskAnalyzer) Analyze(pages []*pagegraph.PageArtifact) *models.ContentRiskResult {
	result := &models.ContentRiskResult{
		Corroboration: make(map[string][]string),
	}
	categoryURLs := make(map[string]map[string]bool)

	for _, page := range pages {
		if !page.OK() || page.VisibleText == "" {
			continue
		}
		pageURL := page.FinalURL
		if pageURL == "" {
			pageURL = page.RequestedURL
		}
		lower := strings.ToLower(page.VisibleText)

		for category, keywords := range restrictedKeywords {
			for _, keyword := range keywords {
				pos := matchKeyword(lower, keyword)
				if pos < 0 {
					continue
				}

				hit := models.RestrictedKeywordHit{
					Category: category,
					Keyword:  keyword,
					PageURL:  pageURL,
					Snippet:  extractSnippet(page.VisibleText, pos, len(keyword)),
					Intent:   classifyIntent(lower, pos, len(keyword)),
					PageType: string(page.Type),
					Severity: models.HitSeverityLow,
				}
				result.RestrictedKeywordsFound = append(result.RestrictedKeywordsFound, hit)

				if categoryURLs[category] == nil {
					categoryURLs[category] = make(map[string]bool)
				}
				categoryURLs[category][pageURL] = true
			}
		}

		for _, m := range dummyTextRe.FindAllStringIndex(lower, 3) {
			result.DummyWordsDetected = true
			result.DummyTextHits = append(result.DummyTextHits, models.DummyTextHit{
				PageURL: pageURL,
				Snippet: extractSnippet(page.VisibleText, m[0], m[1]-m[0]),
			})
		}
	}

	// Corroboration: a category seen on two or more distinct URLs.
	for category, urls := range categoryURLs {
		if len(urls) < 2 {
			continue
		}
		list := make([]string, 0, len(urls))
		for u := range urls {
			list = append(list, u)
		}
		sort.Strings(list)
		result.Corroboration[category] = list
	}

	for i := range result.RestrictedKeywordsFound {
		hit := &result.RestrictedKeywordsFound[i]
		hit.Corroborated = len(result.Corroboration[hit.Category]) >= 2

		switch {
		case highRiskCategories[hit.Category] && hit.Corroborated:
			hit.Severity = models.HitSeverityCritical
		case highRiskCategories[hit.Category]:
			hit.Severity = models.HitSeverityModerate
		default:
			hit.Severity = models.HitSeverityLow
		}

		if hit.Intent == models.IntentProhibitive && pagegraph.IsPolicyPage(pagegraph.PageType(hit.PageType)) {
			result.PolicyMentionsCount++
		} else {
			result.RiskContributingCount++
		}
	}

	a.logger.Debug("content risk analysis completed",
		"hits", len(result.RestrictedKeywordsFound),
		"risk_contributing", result.RiskContributingCount,
		"policy_mentions", result.PolicyMentionsCount,
	)
	return result
}

// matchKeyword finds a keyword with hyphen-space flexible semantics. A
// multi-word phrase matches when all words occur in order within the
// proximity window. Returns the byte offset of the first word, or -1.
func matchKeyword(text, keyword string) int {
	keyword = strings.ToLower(keyword)
	normalized := strings.ReplaceAll(keyword, "-", " ")
	words := strings.Fields(normalized)
	if len(words) == 0 {
		return -1
	}

	// Single-word keywords match on word boundaries.
	if len(words) == 1 {
		return findWord(text, words[0])
	}

	// Multi-word: locate the first word, then require each subsequent word
	// within the window.
	start := 0
	for {
		pos := findWordFrom(text, words[0], start)
		if pos < 0 {
			return -1
		}
		cursor := pos + len(words[0])
		matched := true
		for _, w := range words[1:] {
			next := findWordFrom(text, w, cursor)
			if next < 0 || next-cursor > proximityWindow {
				matched = false
				break
			}
			cursor = next + len(w)
		}
		if matched {
			return pos
		}
		start = pos + len(words[0])
	}
}

func findWord(text, word string) int {
	return findWordFrom(text, word, 0)
}

func findWordFrom(text, word string, from int) int {
	for from <= len(text)-len(word) {
		idx := strings.Index(text[from:], word)
		if idx < 0 {
			return -1
		}
		pos := from + idx
		if isWordBoundary(text, pos, len(word)) {
			return pos
		}
		from = pos + 1
	}
	return -1
}

func isWordBoundary(text string, pos, length int) bool {
	before := pos == 0 || !isAlnum(text[pos-1])
	end := pos + length
	after := end >= len(text) || !isAlnum(text[end])
	return before && after
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// extractSnippet captures text around a hit, preserving original case.
func extractSnippet(text string, pos, length int) string {
	start := pos - snippetRadius
	if start < 0 {
		start = 0
	}
	end := pos + length + snippetRadius
	if end > len(text) {
		end = len(text)
	}
	snippet := strings.TrimSpace(text[start:end])
	if len(snippet) > snippetMaxLen {
		snippet = snippet[:snippetMaxLen]
	}
	return snippet
}

// classifyIntent inspects the window around a hit for prohibitive versus
// promotional markers. Prohibitive wins on a tie.
func classifyIntent(lower string, pos, length int) models.Intent {
	start := pos - intentWindow
	if start < 0 {
		start = 0
	}
	end := pos + length + intentWindow
	if end > len(lower) {
		end = len(lower)
	}
	window := lower[start:end]

	for _, marker := range prohibitiveMarkers {
		if strings.Contains(window, marker) {
			return models.IntentProhibitive
		}
	}
	for _, marker := range promotionalMarkers {
		if strings.Contains(window, marker) {
			return models.IntentPromotional
		}
	}
	return models.IntentNeutral
}
